// Package live pushes full expense-list snapshots to subscribers of a room
// whenever the room changes.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"roomsplit/internal/core"
)

// Snapshot is the complete expense list of a room at Version. Versions
// increase monotonically across the hub, so subscribers can discard a
// snapshot older than one they already rendered.
type Snapshot struct {
	RoomID   string
	Version  uint64
	Expenses []core.Expense
}

// Loader reads the current expense list of a room.
type Loader interface {
	ListExpensesByRoom(ctx context.Context, roomID string) ([]core.Expense, error)
}

type Hub struct {
	loader  Loader
	version atomic.Uint64

	mu        sync.RWMutex
	nextID    uint64
	subs      map[string]map[uint64]func(Snapshot)
	listeners []func(roomID string)
}

func NewHub(loader Loader) *Hub {
	return &Hub{
		loader: loader,
		subs:   make(map[string]map[uint64]func(Snapshot)),
	}
}

// Subscribe registers fn for roomID and returns the function that removes
// it. fn runs on the notifying goroutine and must not block.
func (h *Hub) Subscribe(roomID string, fn func(Snapshot)) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[roomID] == nil {
		h.subs[roomID] = make(map[uint64]func(Snapshot))
	}
	h.subs[roomID][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[roomID], id)
			if len(h.subs[roomID]) == 0 {
				delete(h.subs, roomID)
			}
		})
	}
}

// AddListener registers fn to be told about every room change before
// snapshots go out. The dashboard cache uses it for invalidation.
func (h *Hub) AddListener(fn func(roomID string)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Subscribers returns the number of subscriptions on roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[roomID])
}

// Current loads a fresh snapshot of roomID.
func (h *Hub) Current(ctx context.Context, roomID string) (Snapshot, error) {
	expenses, err := h.loader.ListExpensesByRoom(ctx, roomID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load room %s: %w", roomID, err)
	}
	return Snapshot{RoomID: roomID, Version: h.version.Add(1), Expenses: expenses}, nil
}

// Notify reloads roomID and delivers the snapshot to its subscribers.
func (h *Hub) Notify(ctx context.Context, roomID string) error {
	h.mu.RLock()
	listeners := append([]func(string){}, h.listeners...)
	fns := make([]func(Snapshot), 0, len(h.subs[roomID]))
	for _, fn := range h.subs[roomID] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, l := range listeners {
		l(roomID)
	}
	if len(fns) == 0 {
		return nil
	}

	snap, err := h.Current(ctx, roomID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load room snapshot", "room_id", roomID, "error", err)
		return err
	}
	for _, fn := range fns {
		fn(snap)
	}
	slog.DebugContext(ctx, "Room snapshot delivered",
		"room_id", roomID, "version", snap.Version, "subscribers", len(fns), "expenses", len(snap.Expenses))
	return nil
}
