// Package syncengine uploads locally recorded movements to the remote API,
// one at a time in the order they were recorded. Only one sync pass runs at
// a time; a pass started while another is in flight is rejected.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/devonagro/herdsync/internal/store"
	"github.com/devonagro/herdsync/internal/types"
)

var (
	// ErrSyncInProgress is returned when a sync pass is already running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrOffline is returned when the device has no connectivity.
	ErrOffline = errors.New("device is offline")
)

// Uploader pushes a single movement to the remote API and returns the
// server-assigned movement id. *api.Client satisfies it.
type Uploader interface {
	CreateMovement(ctx context.Context, m *types.Movement) (int64, error)
}

// Connectivity reports whether the device can reach the network.
// *connectivity.Monitor satisfies it.
type Connectivity interface {
	Check(ctx context.Context) bool
	Subscribe(fn func(online bool)) func()
}

// State names a phase of the sync lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Status is a progress snapshot published to subscribers during a pass.
type Status struct {
	State   State
	Synced  int
	Failed  int
	Total   int
	Message string
}

// Result summarizes a finished sync pass.
type Result struct {
	Success bool
	Synced  int
	Failed  int
	Message string
}

// Engine drains the pending-movement backlog to the remote API.
type Engine struct {
	db  *store.Store
	api Uploader
	net Connectivity

	mu        sync.Mutex
	syncing   bool
	nextID    int
	listeners map[int]func(Status)
}

func New(db *store.Store, api Uploader, net Connectivity) *Engine {
	return &Engine{
		db:        db,
		api:       api,
		net:       net,
		listeners: make(map[int]func(Status)),
	}
}

// Start subscribes the engine to connectivity transitions so a sync pass is
// kicked off automatically when the device comes back online. The returned
// function detaches the subscription.
func (e *Engine) Start() func() {
	return e.net.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			res, err := e.Sync(context.Background())
			switch {
			case errors.Is(err, ErrSyncInProgress):
				// A pass is already draining the backlog.
			case err != nil:
				slog.Error("auto sync failed", "error", err)
			default:
				slog.Info("auto sync finished", "message", res.Message)
			}
		}()
	})
}

// Subscribe registers a progress listener. The returned function removes it.
func (e *Engine) Subscribe(fn func(Status)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Syncing reports whether a pass is currently running.
func (e *Engine) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// Sync uploads pending movements one at a time, oldest first. A failed item
// is skipped and the pass moves on; it stays queued for the next pass. The
// pass itself succeeds only when every item uploaded.
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	// Probe before taking the single-flight flag so a caller racing a slow
	// offline probe hears "offline", not "already in progress".
	if !e.net.Check(ctx) {
		e.publish(Status{State: StateError, Message: "device is offline"})
		e.publish(Status{State: StateIdle})
		return Result{}, ErrOffline
	}

	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return Result{}, ErrSyncInProgress
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	pending, err := e.db.GetPendingMovements(ctx)
	if err != nil {
		e.publish(Status{State: StateError, Message: err.Error()})
		e.publish(Status{State: StateIdle})
		return Result{}, fmt.Errorf("load pending movements: %w", err)
	}

	if len(pending) == 0 {
		e.publish(Status{State: StateSuccess, Message: "nothing to sync"})
		e.publish(Status{State: StateIdle})
		return Result{Success: true, Message: "nothing to sync"}, nil
	}

	slog.Info("sync started", "pending", len(pending))
	e.publish(Status{State: StateSyncing, Total: len(pending), Message: "sync started"})

	var synced, failed int
	for _, m := range pending {
		movementID, err := e.api.CreateMovement(ctx, &m)
		if err != nil {
			failed++
			slog.Warn("movement upload failed", "local_id", m.LocalID, "error", err)
			e.publish(Status{State: StateSyncing, Synced: synced, Failed: failed, Total: len(pending)})
			continue
		}

		if err := e.db.MarkMovementAsSynced(ctx, m.LocalID, movementID); err != nil {
			failed++
			slog.Warn("movement marking failed", "local_id", m.LocalID, "error", err)
			e.publish(Status{State: StateSyncing, Synced: synced, Failed: failed, Total: len(pending)})
			continue
		}

		synced++
		e.publish(Status{State: StateSyncing, Synced: synced, Failed: failed, Total: len(pending)})
	}

	res := Result{
		Success: failed == 0,
		Synced:  synced,
		Failed:  failed,
		Message: fmt.Sprintf("%d synced, %d failed", synced, failed),
	}

	final := StateSuccess
	if failed > 0 {
		final = StateError
	}
	slog.Info("sync finished", "synced", synced, "failed", failed)
	e.publish(Status{State: final, Synced: synced, Failed: failed, Total: len(pending), Message: res.Message})
	e.publish(Status{State: StateIdle})

	return res, nil
}

func (e *Engine) publish(st Status) {
	e.mu.Lock()
	fns := make([]func(Status), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("sync listener panicked", "panic", r)
				}
			}()
			fn(st)
		}()
	}
}
