package live

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsplit/internal/core"
)

type fakeLoader struct {
	mu    sync.Mutex
	rooms map[string][]core.Expense
	err   error
	loads int
}

func (f *fakeLoader) ListExpensesByRoom(_ context.Context, roomID string) ([]core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return append([]core.Expense(nil), f.rooms[roomID]...), nil
}

func TestNotifyDeliversFullSnapshots(t *testing.T) {
	loader := &fakeLoader{rooms: map[string][]core.Expense{
		"room-a": {{ID: 1, RoomID: "room-a"}},
	}}
	h := NewHub(loader)

	var got []Snapshot
	unsub := h.Subscribe("room-a", func(s Snapshot) { got = append(got, s) })
	var other int
	h.Subscribe("room-b", func(Snapshot) { other++ })

	require.NoError(t, h.Notify(context.Background(), "room-a"))
	loader.rooms["room-a"] = append(loader.rooms["room-a"], core.Expense{ID: 2, RoomID: "room-a"})
	require.NoError(t, h.Notify(context.Background(), "room-a"))

	require.Len(t, got, 2)
	assert.Len(t, got[0].Expenses, 1)
	assert.Len(t, got[1].Expenses, 2)
	assert.Greater(t, got[1].Version, got[0].Version)
	assert.Zero(t, other)

	unsub()
	unsub() // idempotent
	require.NoError(t, h.Notify(context.Background(), "room-a"))
	assert.Len(t, got, 2)
	assert.Zero(t, h.Subscribers("room-a"))
}

func TestNotifyWithoutSubscribersSkipsLoad(t *testing.T) {
	loader := &fakeLoader{}
	h := NewHub(loader)
	var invalidated []string
	h.AddListener(func(roomID string) { invalidated = append(invalidated, roomID) })

	require.NoError(t, h.Notify(context.Background(), "room-z"))
	assert.Equal(t, []string{"room-z"}, invalidated)
	assert.Zero(t, loader.loads)
}

func TestNotifyLoadError(t *testing.T) {
	loader := &fakeLoader{err: errors.New("db down")}
	h := NewHub(loader)
	called := false
	h.Subscribe("room-a", func(Snapshot) { called = true })

	assert.Error(t, h.Notify(context.Background(), "room-a"))
	assert.False(t, called)
}
