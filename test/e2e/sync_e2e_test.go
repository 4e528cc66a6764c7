package e2e

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/devonagro/herdsync/internal/api"
	"github.com/devonagro/herdsync/internal/auth"
	"github.com/devonagro/herdsync/internal/connectivity"
	"github.com/devonagro/herdsync/internal/reference"
	"github.com/devonagro/herdsync/internal/store"
	"github.com/devonagro/herdsync/internal/syncengine"
	"github.com/devonagro/herdsync/internal/types"
	"github.com/devonagro/herdsync/test/apitest"
	"github.com/oklog/ulid/v2"
)

// harness is the full component graph wired against a fake remote service.
type harness struct {
	remote  *apitest.Server
	db      *store.Store
	session *auth.Session
	client  *api.Client
	net     *switchableNet
	refs    *reference.Service
	engine  *syncengine.Engine
}

// switchableNet lets a test flip connectivity without a real probe.
type switchableNet struct {
	monitor *connectivity.Monitor
	answer  *scriptedProber
}

type scriptedProber struct{ online bool }

func (p *scriptedProber) Probe(ctx context.Context) bool { return p.online }

func (n *switchableNet) setOnline(ctx context.Context, online bool) {
	n.answer.online = online
	n.monitor.Check(ctx)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	remote := apitest.New("agent@example.com", "hunter2")
	t.Cleanup(remote.Close)

	remote.Farms = []types.Farm{
		{FarmID: 7, Name: "Alta Vista", Status: "active", Pastures: []types.Pasture{
			{PastureID: 71, Description: "North paddock", FarmID: 7},
		}},
	}
	remote.Events = []types.Event{
		{EventID: 3, Description: "Transfer", Operation: "OUT", EventDetails: []types.EventDetail{
			{EventDetailID: 31, EventID: 3, Description: "Between farms"},
		}},
	}
	remote.AnimalTypes = []types.AnimalType{{AnimalTypeID: 1, Name: "Cattle"}}
	remote.Breeds = []types.Breed{{BreedID: 4, Name: "Angus", AnimalTypeID: 1}}
	remote.AgeGroups = []types.AgeGroup{{AgeGroupID: 2, Name: "Yearling", AnimalTypeID: 1}}
	remote.UnitOfMeasures = []types.UnitOfMeasure{{UnitOfMeasureID: 1, Name: "Hectare", Abbreviation: "ha"}}

	dataDir := t.TempDir()
	db := store.New(filepath.Join(dataDir, "herdsync.db"))
	if err := db.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	session := auth.NewSession(remote.URL, 10*time.Second, filepath.Join(dataDir, "session.json"), db)
	client := api.NewClient(remote.URL, 10*time.Second, session)

	prober := &scriptedProber{online: true}
	monitor := connectivity.NewMonitor(prober)
	net := &switchableNet{monitor: monitor, answer: prober}

	return &harness{
		remote:  remote,
		db:      db,
		session: session,
		client:  client,
		net:     net,
		refs:    reference.NewService(db, client),
		engine:  syncengine.New(db, client, monitor),
	}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	resp, err := h.session.Login(context.Background(), "agent@example.com", "hunter2", nil)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.NeedsTenantSelection() {
		t.Fatal("unexpected tenant selection request")
	}
}

func (h *harness) record(t *testing.T, comment string) string {
	t.Helper()
	m := &types.Movement{
		LocalID:   ulid.Make().String(),
		Date:      time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		FarmID:    7,
		PastureID: 71,
		EventID:   3,
		Comment:   comment,
		Details: []types.MovementDetail{{
			AnimalTypeID: 1, BreedID: 4, AgeGroupID: 2, Gender: "M", Quantity: 25,
		}},
	}
	if _, err := h.db.SaveMovement(context.Background(), m); err != nil {
		t.Fatalf("SaveMovement() error = %v", err)
	}
	return m.LocalID
}

// A field agent loads the catalog while online, loses signal, and keeps
// working from the cache.
func TestOfflineReferenceReads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	if err := h.refs.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	h.net.setOnline(ctx, false)

	farms := h.refs.Farms(ctx)
	if len(farms) != 1 || farms[0].Name != "Alta Vista" {
		t.Fatalf("Farms() offline = %+v, want cached Alta Vista", farms)
	}
	pastures := h.refs.Pastures(ctx, 7)
	if len(pastures) != 1 || pastures[0].Description != "North paddock" {
		t.Fatalf("Pastures(7) offline = %+v, want cached North paddock", pastures)
	}
	if got := h.remote.SearchCalls("farms"); got != 1 {
		t.Errorf("farm fetches = %d, want 1 (all offline reads from cache)", got)
	}
}

// A movement recorded without signal is uploaded automatically when
// connectivity returns.
func TestRecordOfflineThenReconnect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	stop := h.engine.Start()
	defer stop()

	h.net.setOnline(ctx, false)
	localID := h.record(t, "moved while offline")

	if _, err := h.engine.Sync(ctx); err == nil {
		t.Fatal("Sync() while offline should fail")
	}

	done := make(chan struct{}, 2)
	unsubscribe := h.engine.Subscribe(func(st syncengine.Status) {
		if st.State == syncengine.StateIdle {
			done <- struct{}{}
		}
	})
	defer unsubscribe()

	h.net.setOnline(ctx, true)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("auto sync did not finish after reconnect")
	}

	created := h.remote.Created()
	if len(created) != 1 {
		t.Fatalf("remote received %d movements, want 1", len(created))
	}
	if created[0].Comment != "moved while offline" {
		t.Errorf("Comment = %q, want %q", created[0].Comment, "moved while offline")
	}

	m, err := h.db.GetMovementByID(ctx, created[0].MovementID)
	if err != nil {
		t.Fatalf("GetMovementByID() error = %v", err)
	}
	if m.LocalID != localID || !m.Synced {
		t.Errorf("movement %s synced = %v with server id %d", m.LocalID, m.Synced, m.MovementID)
	}

	pending, err := h.db.GetPendingMovements(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after auto sync = %d, want 0", len(pending))
	}
}

// An expired access token is refreshed once mid-sync without losing the
// upload.
func TestTokenRefreshDuringSync(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	h.record(t, "needs fresh token")
	h.remote.ExpireToken()

	res, err := h.engine.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !res.Success || res.Synced != 1 {
		t.Fatalf("Result = %+v, want 1 synced", res)
	}
	if got := len(h.remote.Created()); got != 1 {
		t.Errorf("remote received %d movements, want 1", got)
	}

	// The refreshed pair keeps working for the next call.
	dashboard, err := h.client.HomeDashboard(ctx)
	if err != nil {
		t.Fatalf("HomeDashboard() error = %v", err)
	}
	if len(dashboard) == 0 {
		t.Error("HomeDashboard() returned empty payload")
	}
}

// A mid-batch server failure skips the item and keeps the rest of the batch
// moving; the failed movement stays pending.
func TestPartialBatchAgainstRemote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	h.record(t, "first")
	h.record(t, "second")
	h.record(t, "third")
	h.remote.FailNextCreates(1)

	res, err := h.engine.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.Synced != 2 || res.Failed != 1 {
		t.Errorf("Synced/Failed = %d/%d, want 2/1", res.Synced, res.Failed)
	}

	pending, err := h.db.GetPendingMovements(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Comment != "first" {
		t.Fatalf("pending = %+v, want the first movement still queued", pending)
	}

	// The retry pass drains the leftover.
	res, err = h.engine.Sync(ctx)
	if err != nil {
		t.Fatalf("retry Sync() error = %v", err)
	}
	if !res.Success || res.Synced != 1 {
		t.Errorf("retry Result = %+v, want 1 synced", res)
	}
}
