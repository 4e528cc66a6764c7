package reference

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/devonagro/herdsync/internal/store"
	"github.com/devonagro/herdsync/internal/types"
)

// fakeAPI serves canned reference payloads and counts fetches per data-set.
type fakeAPI struct {
	farms  []types.Farm
	events []types.Event

	calls map[string]int
	fail  map[string]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls: map[string]int{},
		fail:  map[string]bool{},
		farms: []types.Farm{
			{FarmID: 7, Name: "Alta Vista", Status: "active", Pastures: []types.Pasture{
				{PastureID: 71, Description: "North paddock", FarmID: 7},
				{PastureID: 72, Description: "South paddock", FarmID: 7},
			}},
			{FarmID: 9, Name: "Boa Esperança", Status: "active", Pastures: []types.Pasture{
				{PastureID: 91, Description: "River flat", FarmID: 9},
			}},
		},
		events: []types.Event{
			{EventID: 3, Description: "Transfer", Operation: "OUT", EventDetails: []types.EventDetail{
				{EventDetailID: 31, EventID: 3, Description: "Between farms"},
			}},
		},
	}
}

func (f *fakeAPI) fetch(name string) error {
	f.calls[name]++
	if f.fail[name] {
		return errors.New(name + " unavailable")
	}
	return nil
}

func (f *fakeAPI) SearchFarms(ctx context.Context) ([]types.Farm, error) {
	if err := f.fetch("farms"); err != nil {
		return nil, err
	}
	return f.farms, nil
}

func (f *fakeAPI) SearchEvents(ctx context.Context) ([]types.Event, error) {
	if err := f.fetch("events"); err != nil {
		return nil, err
	}
	return f.events, nil
}

func (f *fakeAPI) SearchBreeds(ctx context.Context) ([]types.Breed, error) {
	if err := f.fetch("breeds"); err != nil {
		return nil, err
	}
	return []types.Breed{
		{BreedID: 4, Name: "Angus", AnimalTypeID: 1},
		{BreedID: 6, Name: "Santa Inês", AnimalTypeID: 2},
	}, nil
}

func (f *fakeAPI) SearchAnimalTypes(ctx context.Context) ([]types.AnimalType, error) {
	if err := f.fetch("animalTypes"); err != nil {
		return nil, err
	}
	return []types.AnimalType{{AnimalTypeID: 1, Name: "Cattle"}}, nil
}

func (f *fakeAPI) SearchAgeGroups(ctx context.Context) ([]types.AgeGroup, error) {
	if err := f.fetch("ageGroups"); err != nil {
		return nil, err
	}
	return []types.AgeGroup{{AgeGroupID: 2, Name: "Yearling", AnimalTypeID: 1}}, nil
}

func (f *fakeAPI) SearchUnitOfMeasures(ctx context.Context) ([]types.UnitOfMeasure, error) {
	if err := f.fetch("unitOfMeasures"); err != nil {
		return nil, err
	}
	return []types.UnitOfMeasure{{UnitOfMeasureID: 1, Name: "Hectare", Abbreviation: "ha"}}, nil
}

func newTestService(t *testing.T) (*Service, *fakeAPI, *store.Store) {
	t.Helper()
	db := store.New(filepath.Join(t.TempDir(), "herdsync.db"))
	if err := db.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	api := newFakeAPI()
	return NewService(db, api), api, db
}

func TestService_FarmsReadThrough(t *testing.T) {
	s, api, _ := newTestService(t)
	ctx := context.Background()

	farms := s.Farms(ctx)
	if len(farms) != 2 {
		t.Fatalf("got %d farms, want 2", len(farms))
	}
	if api.calls["farms"] != 1 {
		t.Errorf("farm fetches = %d, want 1", api.calls["farms"])
	}

	// Cache hit: no further network traffic.
	farms = s.Farms(ctx)
	if len(farms) != 2 {
		t.Fatalf("got %d farms on cache hit, want 2", len(farms))
	}
	if api.calls["farms"] != 1 {
		t.Errorf("farm fetches after cache hit = %d, want 1", api.calls["farms"])
	}
}

func TestService_FarmsFetchFailureDegrades(t *testing.T) {
	s, api, _ := newTestService(t)
	api.fail["farms"] = true

	farms := s.Farms(context.Background())
	if farms == nil {
		t.Fatal("Farms() = nil, want empty slice")
	}
	if len(farms) != 0 {
		t.Errorf("got %d farms, want 0", len(farms))
	}
}

func TestService_CachedEmptyTriggersRefetch(t *testing.T) {
	s, api, db := newTestService(t)
	ctx := context.Background()

	if err := db.SaveReferenceData(ctx, "farms", []byte(`[]`)); err != nil {
		t.Fatal(err)
	}

	farms := s.Farms(ctx)
	if len(farms) != 2 {
		t.Fatalf("got %d farms, want 2", len(farms))
	}
	if api.calls["farms"] != 1 {
		t.Errorf("farm fetches = %d, want 1 (cached empty counts as no cache)", api.calls["farms"])
	}
}

func TestService_FarmsBackfillPastures(t *testing.T) {
	s, api, _ := newTestService(t)
	ctx := context.Background()

	s.Farms(ctx)

	pastures := s.Pastures(ctx, 7)
	if len(pastures) != 2 {
		t.Fatalf("Pastures(7) = %d pastures, want 2", len(pastures))
	}
	for _, p := range pastures {
		if p.FarmID != 7 {
			t.Errorf("Pastures(7) returned pasture for farm %d", p.FarmID)
		}
	}

	all := s.Pastures(ctx, 0)
	if len(all) != 3 {
		t.Errorf("Pastures(0) = %d pastures, want 3", len(all))
	}

	// Pastures never fetch on their own.
	if api.calls["farms"] != 1 {
		t.Errorf("farm fetches = %d, want 1", api.calls["farms"])
	}
}

func TestService_EventsBackfillEventDetails(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	s.Events(ctx)

	details := s.EventDetails(ctx, 3)
	if len(details) != 1 {
		t.Fatalf("EventDetails(3) = %d details, want 1", len(details))
	}
	if details[0].EventDetailID != 31 {
		t.Errorf("EventDetailID = %d, want 31", details[0].EventDetailID)
	}

	if got := s.EventDetails(ctx, 99); len(got) != 0 {
		t.Errorf("EventDetails(99) = %d details, want 0", len(got))
	}
}

func TestService_BreedsFilterByAnimalType(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	breeds := s.Breeds(ctx, 1)
	if len(breeds) != 1 {
		t.Fatalf("Breeds(1) = %d breeds, want 1", len(breeds))
	}
	if breeds[0].Name != "Angus" {
		t.Errorf("Breeds(1)[0].Name = %q, want %q", breeds[0].Name, "Angus")
	}

	if got := s.Breeds(ctx, 0); len(got) != 2 {
		t.Errorf("Breeds(0) = %d breeds, want 2", len(got))
	}
}

func TestService_LoadAll(t *testing.T) {
	s, api, db := newTestService(t)
	ctx := context.Background()

	if err := s.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	for _, dataType := range []string{"farms", "events", "breeds", "animalTypes", "ageGroups", "unitOfMeasures", "pastures", "eventDetails"} {
		data, err := db.GetReferenceData(ctx, dataType)
		if err != nil {
			t.Fatalf("GetReferenceData(%s) error = %v", dataType, err)
		}
		if data == nil {
			t.Errorf("%s not cached after LoadAll", dataType)
		}
	}

	// Every independent set fetched exactly once.
	for _, name := range []string{"farms", "events", "breeds", "animalTypes", "ageGroups", "unitOfMeasures"} {
		if api.calls[name] != 1 {
			t.Errorf("%s fetches = %d, want 1", name, api.calls[name])
		}
	}
}

func TestService_LoadAllPartialFailure(t *testing.T) {
	s, _, db := newTestService(t)
	ctx := context.Background()

	api := newFakeAPI()
	api.fail["breeds"] = true
	s.api = api

	err := s.LoadAll(ctx)
	if err == nil {
		t.Error("LoadAll() error = nil, want surfaced fetch failure")
	}

	// The failed set degraded to an empty cache row; the others loaded.
	data, err2 := db.GetReferenceData(ctx, "breeds")
	if err2 != nil {
		t.Fatal(err2)
	}
	if string(data) != "[]" {
		t.Errorf("breeds cache = %s, want []", data)
	}

	farms := s.Farms(ctx)
	if len(farms) != 2 {
		t.Errorf("got %d farms after partial failure, want 2", len(farms))
	}
}

func TestService_ClearCache(t *testing.T) {
	s, api, _ := newTestService(t)
	ctx := context.Background()

	s.Farms(ctx)
	if err := s.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}

	s.Farms(ctx)
	if api.calls["farms"] != 2 {
		t.Errorf("farm fetches = %d, want 2 after cache clear", api.calls["farms"])
	}
}
