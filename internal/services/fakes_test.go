package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"roomsplit/internal/amqp"
	"roomsplit/internal/categorize"
	"roomsplit/internal/core"
	"roomsplit/internal/media"
)

type memStore struct {
	mu        sync.Mutex
	nextID    int64
	expenses  map[int64]core.Expense
	profiles  map[string]core.UserProfile
	failWrite error
	listCalls int
}

func newMemStore() *memStore {
	return &memStore{expenses: map[int64]core.Expense{}, profiles: map[string]core.UserProfile{}}
}

func (m *memStore) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return core.Expense{}, m.failWrite
	}
	if e.Category == "" {
		return core.Expense{}, errors.New("category must not be empty")
	}
	m.nextID++
	e.ID = m.nextID
	m.expenses[e.ID] = e
	return e, nil
}

func (m *memStore) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (m *memStore) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return core.Expense{}, m.failWrite
	}
	if _, ok := m.expenses[e.ID]; !ok {
		return core.Expense{}, core.ErrNotFound
	}
	m.expenses[e.ID] = e
	return e, nil
}

func (m *memStore) DeleteExpense(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	if _, ok := m.expenses[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.expenses, id)
	return nil
}

func (m *memStore) ListExpensesByRoom(_ context.Context, roomID string) ([]core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []core.Expense
	for _, e := range m.expenses {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetProfile(_ context.Context, userID string) (core.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return core.UserProfile{}, core.ErrNotFound
	}
	return p, nil
}

func (m *memStore) SetRoom(_ context.Context, userID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return core.ErrNotFound
	}
	p.RoomID = roomID
	m.profiles[userID] = p
	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, userID string, upd core.ProfileUpdate) (core.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return core.UserProfile{}, core.ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.AvatarURL != nil {
		p.AvatarURL = *upd.AvatarURL
	}
	if upd.MonthlyBudget != nil {
		p.MonthlyBudget = *upd.MonthlyBudget
	}
	if upd.CategoryBudgets != nil {
		p.CategoryBudgets = upd.CategoryBudgets
	}
	m.profiles[userID] = p
	return p, nil
}

func (m *memStore) ListRoster(_ context.Context, roomID string) ([]core.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.UserProfile
	for _, p := range m.profiles {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// memMedia records the order of blob operations.
type memMedia struct {
	mu        sync.Mutex
	objects   map[string]bool
	ops       []string
	seq       int
	failStore error
	failRm    error
}

func newMemMedia() *memMedia { return &memMedia{objects: map[string]bool{}} }

func (m *memMedia) put(prefix, owner string, f media.File) (media.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStore != nil {
		return media.Object{}, &core.StorageError{Op: "store", Path: f.Name, Err: m.failStore}
	}
	if f.Body != nil {
		_, _ = io.Copy(io.Discard, f.Body)
	}
	m.seq++
	p := fmt.Sprintf("%s/%s/%d_%s", prefix, owner, m.seq, f.Name)
	m.objects[p] = true
	m.ops = append(m.ops, "store:"+p)
	return media.Object{URL: "https://media.test/" + p, Path: p}, nil
}

func (m *memMedia) Store(_ context.Context, owner string, f media.File) (media.Object, error) {
	return m.put("receipts", owner, f)
}

func (m *memMedia) StoreAvatar(_ context.Context, owner string, f media.File) (media.Object, error) {
	return m.put("avatars", owner, f)
}

func (m *memMedia) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "remove:"+path)
	if m.failRm != nil {
		return &core.StorageError{Op: "remove", Path: path, Err: m.failRm}
	}
	delete(m.objects, path)
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []*amqp.ExpenseEvent
	orphans []*amqp.ReceiptOrphan
	fail    error
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, ev *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) PublishReceiptOrphan(_ context.Context, o *amqp.ReceiptOrphan) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.orphans = append(p.orphans, o)
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	rooms []string
}

func (n *recordingNotifier) Notify(_ context.Context, roomID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, roomID)
	return nil
}

func fixedCategorizer(category string, err error) (categorize.Categorizer, *int) {
	calls := 0
	return categorize.Func(func(context.Context, string, string) (categorize.Result, error) {
		calls++
		if err != nil {
			return categorize.Result{}, err
		}
		return categorize.Result{Category: category, Confidence: 0.9}, nil
	}), &calls
}
