// Package reference serves the read-mostly master data (farms, events,
// breeds, ...) as a read-through cache over the local store with a network
// fallback. Pastures and event details are never fetched on their own; they
// ride along inside farms and events and are flattened into their own cache
// keys.
package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/devonagro/herdsync/internal/store"
	"github.com/devonagro/herdsync/internal/types"
)

// Cache keys, one row per data-set.
const (
	typeFarms          = "farms"
	typePastures       = "pastures"
	typeEvents         = "events"
	typeEventDetails   = "eventDetails"
	typeBreeds         = "breeds"
	typeAnimalTypes    = "animalTypes"
	typeAgeGroups      = "ageGroups"
	typeUnitOfMeasures = "unitOfMeasures"
)

// Fetcher is the remote side of the cache. *api.Client satisfies it.
type Fetcher interface {
	SearchFarms(ctx context.Context) ([]types.Farm, error)
	SearchEvents(ctx context.Context) ([]types.Event, error)
	SearchBreeds(ctx context.Context) ([]types.Breed, error)
	SearchAnimalTypes(ctx context.Context) ([]types.AnimalType, error)
	SearchAgeGroups(ctx context.Context) ([]types.AgeGroup, error)
	SearchUnitOfMeasures(ctx context.Context) ([]types.UnitOfMeasure, error)
}

// Service is the read-through reference cache.
type Service struct {
	db  *store.Store
	api Fetcher
}

// NewService creates the cache over the given store and remote fetcher.
func NewService(db *store.Store, api Fetcher) *Service {
	return &Service{db: db, api: api}
}

// LoadAll primes the cache: the six independent data-sets are fetched and
// persisted concurrently, then pastures and event details are extracted from
// what came back. A single failed fetch caches an empty set and does not
// stop the others; the first error is still returned so the caller can log
// a warning without blocking login.
func (s *Service) LoadAll(ctx context.Context) error {
	var (
		farms  []types.Farm
		events []types.Event

		mu       sync.Mutex
		firstErr error
	)

	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	var wg sync.WaitGroup
	run := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(fn())
		}()
	}

	run(func() (err error) { farms, err = fetchAndCache(ctx, s, typeFarms, s.api.SearchFarms); return })
	run(func() (err error) { events, err = fetchAndCache(ctx, s, typeEvents, s.api.SearchEvents); return })
	run(func() error { _, err := fetchAndCache(ctx, s, typeBreeds, s.api.SearchBreeds); return err })
	run(func() error { _, err := fetchAndCache(ctx, s, typeAnimalTypes, s.api.SearchAnimalTypes); return err })
	run(func() error { _, err := fetchAndCache(ctx, s, typeAgeGroups, s.api.SearchAgeGroups); return err })
	run(func() error { _, err := fetchAndCache(ctx, s, typeUnitOfMeasures, s.api.SearchUnitOfMeasures); return err })
	wg.Wait()

	// Dependent sets come out of the parent payloads, never their own
	// fetches.
	record(s.cachePasturesFrom(ctx, farms))
	record(s.cacheEventDetailsFrom(ctx, events))

	return firstErr
}

// fetchAndCache fetches one data-set and replaces its cache row. A network
// failure degrades to an empty set; the caching step still runs so the row
// reflects the attempt.
func fetchAndCache[T any](ctx context.Context, s *Service, dataType string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	items, err := fetch(ctx)
	if err != nil {
		slog.Error("reference fetch failed", "type", dataType, "error", err)
		items = []T{}
	}
	if cacheErr := s.save(ctx, dataType, items); cacheErr != nil {
		return items, cacheErr
	}
	return items, err
}

func (s *Service) cachePasturesFrom(ctx context.Context, farms []types.Farm) error {
	pastures := []types.Pasture{}
	for _, farm := range farms {
		pastures = append(pastures, farm.Pastures...)
	}
	return s.save(ctx, typePastures, pastures)
}

func (s *Service) cacheEventDetailsFrom(ctx context.Context, events []types.Event) error {
	details := []types.EventDetail{}
	for _, event := range events {
		details = append(details, event.EventDetails...)
	}
	return s.save(ctx, typeEventDetails, details)
}

// Farms returns the cached farms, falling back to the network (and
// backfilling the cache plus the derived pastures) when the cache is empty.
// A cached empty list counts as no cache. Errors degrade to an empty slice.
func (s *Service) Farms(ctx context.Context) []types.Farm {
	if cached, ok := load[types.Farm](ctx, s, typeFarms); ok {
		return cached
	}

	slog.Debug("reference cache empty, fetching from API", "type", typeFarms)
	farms, err := s.api.SearchFarms(ctx)
	if err != nil {
		slog.Error("reference fetch failed", "type", typeFarms, "error", err)
		return []types.Farm{}
	}
	if err := s.save(ctx, typeFarms, farms); err != nil {
		slog.Error("reference cache write failed", "type", typeFarms, "error", err)
	}
	if err := s.cachePasturesFrom(ctx, farms); err != nil {
		slog.Error("reference cache write failed", "type", typePastures, "error", err)
	}
	return farms
}

// Pastures returns the cached pastures, optionally narrowed to one farm.
// Pastures are only ever populated as a side effect of fetching farms.
func (s *Service) Pastures(ctx context.Context, farmID int64) []types.Pasture {
	pastures, _ := load[types.Pasture](ctx, s, typePastures)
	if farmID == 0 {
		return pastures
	}
	filtered := []types.Pasture{}
	for _, p := range pastures {
		if p.FarmID == farmID {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// Events returns the cached events with network fallback, backfilling the
// derived event details on a fresh fetch.
func (s *Service) Events(ctx context.Context) []types.Event {
	if cached, ok := load[types.Event](ctx, s, typeEvents); ok {
		return cached
	}

	slog.Debug("reference cache empty, fetching from API", "type", typeEvents)
	events, err := s.api.SearchEvents(ctx)
	if err != nil {
		slog.Error("reference fetch failed", "type", typeEvents, "error", err)
		return []types.Event{}
	}
	if err := s.save(ctx, typeEvents, events); err != nil {
		slog.Error("reference cache write failed", "type", typeEvents, "error", err)
	}
	if err := s.cacheEventDetailsFrom(ctx, events); err != nil {
		slog.Error("reference cache write failed", "type", typeEventDetails, "error", err)
	}
	return events
}

// EventDetails returns the cached event details, optionally narrowed to one
// event. Populated only as a side effect of fetching events.
func (s *Service) EventDetails(ctx context.Context, eventID int64) []types.EventDetail {
	details, _ := load[types.EventDetail](ctx, s, typeEventDetails)
	if eventID == 0 {
		return details
	}
	filtered := []types.EventDetail{}
	for _, d := range details {
		if d.EventID == eventID {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// Breeds returns the cached breeds with network fallback, optionally
// narrowed to one animal type.
func (s *Service) Breeds(ctx context.Context, animalTypeID int64) []types.Breed {
	breeds := readThrough(ctx, s, typeBreeds, s.api.SearchBreeds)
	if animalTypeID == 0 {
		return breeds
	}
	filtered := []types.Breed{}
	for _, b := range breeds {
		if b.AnimalTypeID == animalTypeID {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// AnimalTypes returns the cached animal types with network fallback.
func (s *Service) AnimalTypes(ctx context.Context) []types.AnimalType {
	return readThrough(ctx, s, typeAnimalTypes, s.api.SearchAnimalTypes)
}

// AgeGroups returns the cached age groups with network fallback, optionally
// narrowed to one animal type.
func (s *Service) AgeGroups(ctx context.Context, animalTypeID int64) []types.AgeGroup {
	groups := readThrough(ctx, s, typeAgeGroups, s.api.SearchAgeGroups)
	if animalTypeID == 0 {
		return groups
	}
	filtered := []types.AgeGroup{}
	for _, g := range groups {
		if g.AnimalTypeID == animalTypeID {
			filtered = append(filtered, g)
		}
	}
	return filtered
}

// UnitOfMeasures returns the cached units of measure with network fallback.
func (s *Service) UnitOfMeasures(ctx context.Context) []types.UnitOfMeasure {
	return readThrough(ctx, s, typeUnitOfMeasures, s.api.SearchUnitOfMeasures)
}

// ClearCache wipes every cached reference row.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.db.ClearReferenceData(ctx)
}

// readThrough is the plain cache-then-network path shared by the sets with
// no derived children.
func readThrough[T any](ctx context.Context, s *Service, dataType string, fetch func(context.Context) ([]T, error)) []T {
	if cached, ok := load[T](ctx, s, dataType); ok {
		return cached
	}

	slog.Debug("reference cache empty, fetching from API", "type", dataType)
	items, err := fetch(ctx)
	if err != nil {
		slog.Error("reference fetch failed", "type", dataType, "error", err)
		return []T{}
	}
	if err := s.save(ctx, dataType, items); err != nil {
		slog.Error("reference cache write failed", "type", dataType, "error", err)
	}
	return items
}

// load reads one cached data-set. ok is false when the row is missing,
// unreadable or empty: a cached empty result triggers the network path the
// same as no cache at all.
func load[T any](ctx context.Context, s *Service, dataType string) ([]T, bool) {
	data, err := s.db.GetReferenceData(ctx, dataType)
	if err != nil {
		slog.Error("reference cache read failed", "type", dataType, "error", err)
		return []T{}, false
	}
	if data == nil {
		return []T{}, false
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Error("reference cache parse failed", "type", dataType, "error", err)
		return []T{}, false
	}
	if len(items) == 0 {
		return []T{}, false
	}
	return items, true
}

func (s *Service) save(ctx context.Context, dataType string, items any) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", dataType, err)
	}
	if err := s.db.SaveReferenceData(ctx, dataType, data); err != nil {
		return err
	}
	return nil
}
