package api

import (
	"context"

	"github.com/devonagro/herdsync/internal/types"
)

// SearchFarms fetches all farms with their pastures and unit of measure
// embedded.
func (c *Client) SearchFarms(ctx context.Context) ([]types.Farm, error) {
	var farms []types.Farm
	if err := c.getJSON(ctx, searchPath("farms", "|pastures|unitOfMeasure|"), &farms); err != nil {
		return nil, err
	}
	return farms, nil
}

// SearchEvents fetches all events with their event details embedded.
func (c *Client) SearchEvents(ctx context.Context) ([]types.Event, error) {
	var events []types.Event
	if err := c.getJSON(ctx, searchPath("events", "|eventDetails|"), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// SearchBreeds fetches all breeds.
func (c *Client) SearchBreeds(ctx context.Context) ([]types.Breed, error) {
	var breeds []types.Breed
	if err := c.getJSON(ctx, searchPath("breeds", "|animalType|"), &breeds); err != nil {
		return nil, err
	}
	return breeds, nil
}

// SearchAnimalTypes fetches all animal types with breeds and age groups
// embedded.
func (c *Client) SearchAnimalTypes(ctx context.Context) ([]types.AnimalType, error) {
	var animalTypes []types.AnimalType
	if err := c.getJSON(ctx, searchPath("animal-types", "|breeds|ageGroups|"), &animalTypes); err != nil {
		return nil, err
	}
	return animalTypes, nil
}

// SearchAgeGroups fetches all age groups.
func (c *Client) SearchAgeGroups(ctx context.Context) ([]types.AgeGroup, error) {
	var ageGroups []types.AgeGroup
	if err := c.getJSON(ctx, searchPath("age-groups", "|animalType|"), &ageGroups); err != nil {
		return nil, err
	}
	return ageGroups, nil
}

// SearchUnitOfMeasures fetches all units of measure. The endpoint takes no
// relation expansion.
func (c *Client) SearchUnitOfMeasures(ctx context.Context) ([]types.UnitOfMeasure, error) {
	var units []types.UnitOfMeasure
	if err := c.getJSON(ctx, searchPath("unit-of-measures", ""), &units); err != nil {
		return nil, err
	}
	return units, nil
}
