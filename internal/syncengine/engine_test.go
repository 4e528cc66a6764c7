package syncengine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/devonagro/herdsync/internal/store"
	"github.com/devonagro/herdsync/internal/types"
)

// fakeNet is a scriptable Connectivity implementation. Flipping it online
// through setOnline mimics a reconnect transition. An optional gate blocks
// Check until released, which lets a test hold a probe open.
type fakeNet struct {
	mu           sync.Mutex
	online       bool
	listeners    []func(bool)
	checkEntered chan struct{}
	checkRelease chan struct{}
}

func (n *fakeNet) Check(ctx context.Context) bool {
	if n.checkEntered != nil {
		n.checkEntered <- struct{}{}
		<-n.checkRelease
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *fakeNet) Subscribe(fn func(bool)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
	return func() {}
}

func (n *fakeNet) setOnline(online bool) {
	n.mu.Lock()
	n.online = online
	fns := append([]func(bool){}, n.listeners...)
	n.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}

// fakeUploader assigns sequential server ids and fails the local ids it is
// told to. An optional gate blocks every upload until released, which lets a
// test hold a pass open.
type fakeUploader struct {
	mu       sync.Mutex
	calls    []string
	failFor  map[string]bool
	nextID   int64
	entered  chan struct{}
	released chan struct{}
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{failFor: map[string]bool{}, nextID: 500}
}

func (u *fakeUploader) CreateMovement(ctx context.Context, m *types.Movement) (int64, error) {
	if u.entered != nil {
		u.entered <- struct{}{}
		<-u.released
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, m.LocalID)
	if u.failFor[m.LocalID] {
		return 0, errors.New("remote rejected movement")
	}
	u.nextID++
	return u.nextID, nil
}

func (u *fakeUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string{}, u.calls...)
}

func newTestEngine(t *testing.T) (*Engine, *fakeUploader, *fakeNet, *store.Store) {
	t.Helper()
	db := store.New(filepath.Join(t.TempDir(), "herdsync.db"))
	if err := db.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	up := newFakeUploader()
	net := &fakeNet{online: true}
	return New(db, up, net), up, net, db
}

func seedPending(t *testing.T, db *store.Store, localIDs ...string) {
	t.Helper()
	for _, id := range localIDs {
		m := &types.Movement{
			LocalID:   id,
			Date:      time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			FarmID:    7,
			PastureID: 71,
			EventID:   3,
		}
		if _, err := db.SaveMovement(context.Background(), m); err != nil {
			t.Fatalf("SaveMovement(%s) error = %v", id, err)
		}
	}
}

func TestEngine_SyncUploadsOldestFirst(t *testing.T) {
	e, up, _, db := newTestEngine(t)
	ctx := context.Background()
	seedPending(t, db, "mv-a", "mv-b", "mv-c")

	res, err := e.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !res.Success {
		t.Errorf("Success = false, want true")
	}
	if res.Synced != 3 || res.Failed != 0 {
		t.Errorf("Synced/Failed = %d/%d, want 3/0", res.Synced, res.Failed)
	}
	if res.Message != "3 synced, 0 failed" {
		t.Errorf("Message = %q, want %q", res.Message, "3 synced, 0 failed")
	}

	got := up.uploaded()
	want := []string{"mv-a", "mv-b", "mv-c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("upload order = %v, want %v", got, want)
		}
	}

	pending, err := db.GetPendingMovements(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after sync = %d, want 0", len(pending))
	}
}

func TestEngine_PartialBatchContinues(t *testing.T) {
	e, up, _, db := newTestEngine(t)
	ctx := context.Background()
	seedPending(t, db, "mv-a", "mv-b", "mv-c")
	up.failFor["mv-b"] = true

	res, err := e.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Success {
		t.Error("Success = true, want false on partial batch")
	}
	if res.Synced != 2 || res.Failed != 1 {
		t.Errorf("Synced/Failed = %d/%d, want 2/1", res.Synced, res.Failed)
	}
	if res.Message != "2 synced, 1 failed" {
		t.Errorf("Message = %q, want %q", res.Message, "2 synced, 1 failed")
	}

	// The failed item stays queued for the next pass.
	pending, err := db.GetPendingMovements(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].LocalID != "mv-b" {
		t.Fatalf("pending after sync = %v, want [mv-b]", pending)
	}
}

func TestEngine_SingleFlight(t *testing.T) {
	e, up, _, db := newTestEngine(t)
	seedPending(t, db, "mv-a")

	up.entered = make(chan struct{})
	up.released = make(chan struct{})

	done := make(chan Result, 1)
	go func() {
		res, _ := e.Sync(context.Background())
		done <- res
	}()

	<-up.entered
	if !e.Syncing() {
		t.Error("Syncing() = false during a pass")
	}
	if _, err := e.Sync(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("concurrent Sync() error = %v, want ErrSyncInProgress", err)
	}
	close(up.released)

	res := <-done
	if res.Synced != 1 {
		t.Errorf("Synced = %d, want 1", res.Synced)
	}
	if e.Syncing() {
		t.Error("Syncing() = true after the pass finished")
	}
	if len(up.uploaded()) != 1 {
		t.Errorf("uploads = %d, want 1", len(up.uploaded()))
	}
}

func TestEngine_OfflineRejected(t *testing.T) {
	e, up, net, db := newTestEngine(t)
	seedPending(t, db, "mv-a")
	net.online = false

	if _, err := e.Sync(context.Background()); !errors.Is(err, ErrOffline) {
		t.Errorf("Sync() error = %v, want ErrOffline", err)
	}
	if len(up.uploaded()) != 0 {
		t.Errorf("uploads while offline = %d, want 0", len(up.uploaded()))
	}
}

func TestEngine_OfflineRaceReportsOffline(t *testing.T) {
	e, up, net, db := newTestEngine(t)
	seedPending(t, db, "mv-a")
	net.online = false
	net.checkEntered = make(chan struct{})
	net.checkRelease = make(chan struct{})

	first := make(chan error, 1)
	go func() {
		_, err := e.Sync(context.Background())
		first <- err
	}()
	<-net.checkEntered

	// A caller racing the held-open probe must also hear "offline", not
	// "already in progress".
	second := make(chan error, 1)
	go func() {
		_, err := e.Sync(context.Background())
		second <- err
	}()
	<-net.checkEntered

	close(net.checkRelease)
	for _, ch := range []chan error{first, second} {
		if err := <-ch; !errors.Is(err, ErrOffline) {
			t.Errorf("Sync() error = %v, want ErrOffline", err)
		}
	}
	if len(up.uploaded()) != 0 {
		t.Errorf("uploads while offline = %d, want 0", len(up.uploaded()))
	}
}

func TestEngine_EmptyQueueFastPath(t *testing.T) {
	e, up, _, _ := newTestEngine(t)

	res, err := e.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !res.Success {
		t.Error("Success = false, want true on empty queue")
	}
	if res.Message != "nothing to sync" {
		t.Errorf("Message = %q, want %q", res.Message, "nothing to sync")
	}
	if len(up.uploaded()) != 0 {
		t.Errorf("uploads = %d, want 0", len(up.uploaded()))
	}
}

func TestEngine_ProgressStatuses(t *testing.T) {
	e, _, _, db := newTestEngine(t)
	seedPending(t, db, "mv-a", "mv-b")

	var mu sync.Mutex
	var states []State
	unsubscribe := e.Subscribe(func(st Status) {
		mu.Lock()
		states = append(states, st.State)
		mu.Unlock()
	})
	defer unsubscribe()

	if _, err := e.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 {
		t.Fatal("no statuses published")
	}
	if states[0] != StateSyncing {
		t.Errorf("first state = %v, want %v", states[0], StateSyncing)
	}
	if states[len(states)-1] != StateIdle {
		t.Errorf("last state = %v, want %v", states[len(states)-1], StateIdle)
	}
	if states[len(states)-2] != StateSuccess {
		t.Errorf("final outcome = %v, want %v", states[len(states)-2], StateSuccess)
	}
}

func TestEngine_AutoTriggerOnReconnect(t *testing.T) {
	e, up, net, db := newTestEngine(t)
	seedPending(t, db, "mv-a")
	net.online = false

	stop := e.Start()
	defer stop()

	idle := make(chan struct{}, 4)
	unsubscribe := e.Subscribe(func(st Status) {
		if st.State == StateIdle {
			idle <- struct{}{}
		}
	})
	defer unsubscribe()

	net.setOnline(true)

	select {
	case <-idle:
	case <-time.After(5 * time.Second):
		t.Fatal("auto-triggered sync did not finish")
	}

	if len(up.uploaded()) != 1 {
		t.Errorf("uploads after reconnect = %d, want 1", len(up.uploaded()))
	}

	// Going offline and back online again drains nothing new.
	net.setOnline(false)
	net.setOnline(true)
	select {
	case <-idle:
	case <-time.After(5 * time.Second):
		t.Fatal("second auto-triggered sync did not finish")
	}
	if got := len(up.uploaded()); got != 1 {
		t.Errorf("uploads after second reconnect = %d, want 1", got)
	}
}

func TestEngine_AutoTriggerWhileSyncingIsNoOp(t *testing.T) {
	e, up, net, db := newTestEngine(t)
	seedPending(t, db, "mv-a")

	up.entered = make(chan struct{})
	up.released = make(chan struct{})

	stop := e.Start()
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := e.Sync(context.Background()); err != nil {
			t.Errorf("Sync() error = %v", err)
		}
	}()

	<-up.entered

	// A reconnect while the pass is open must not start a second one.
	net.setOnline(false)
	net.setOnline(true)
	time.Sleep(50 * time.Millisecond)

	close(up.released)
	<-done

	if got := len(up.uploaded()); got != 1 {
		t.Errorf("uploads = %d, want 1", got)
	}
}
