package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roomsplit/internal/cache"
	"roomsplit/internal/core"
)

// Dashboard is the aggregated view of a room for one member.
type Dashboard struct {
	RoomID          string
	Reference       core.Date
	Total           core.Money
	ByUser          []core.UserTotal
	ByCategory      []core.CategoryTotal
	RoomMonthToDate core.Money
	MyMonthToDate   core.Money
	MonthlyBudget   core.Money
	BudgetPercent   float64
	CategoryBudgets []core.CategoryProgress
}

type roomData struct {
	expenses []core.Expense
	roster   []core.UserProfile
}

// DashboardService computes dashboards, caching each room's raw data
// until the room changes.
type DashboardService struct {
	expenses ExpenseStore
	profiles ProfileStore
	cache    *cache.LRUCache[roomData]

	// generations counts invalidations per room. A load only caches what
	// it read if no invalidation happened meanwhile.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewDashboardService caches up to cacheSize rooms for ttl each. A zero
// ttl disables caching.
func NewDashboardService(e ExpenseStore, p ProfileStore, cacheSize int, ttl time.Duration) *DashboardService {
	s := &DashboardService{expenses: e, profiles: p, generations: make(map[string]uint64)}
	if ttl > 0 {
		s.cache = cache.NewLRUCache[roomData](cacheSize, ttl)
	}
	return s
}

// Cache exposes the room cache for periodic cleanup. It is nil when
// caching is disabled.
func (s *DashboardService) Cache() cache.Cleaner {
	if s.cache == nil {
		return nil
	}
	return s.cache
}

// Invalidate drops the cached data of roomID. It is registered as a live
// hub listener.
func (s *DashboardService) Invalidate(roomID string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.generations[roomID]++
	s.cache.Delete(roomID)
	s.mu.Unlock()
}

func (s *DashboardService) generation(roomID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[roomID]
}

// store caches d unless roomID was invalidated after gen was taken.
func (s *DashboardService) store(roomID string, gen uint64, d roomData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[roomID] == gen {
		s.cache.Set(roomID, d)
	}
}

// Dashboard aggregates userID's room as of ref.
func (s *DashboardService) Dashboard(ctx context.Context, userID string, ref core.Date) (Dashboard, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load profile: %w", err)
	}
	if !p.InRoom() {
		return Dashboard{}, core.ErrNotInRoom
	}
	data, err := s.load(ctx, p.RoomID)
	if err != nil {
		return Dashboard{}, err
	}

	var mine []core.Expense
	for _, e := range data.expenses {
		if e.UserID == userID {
			mine = append(mine, e)
		}
	}
	roomMTD := core.MonthToDateSpend(data.expenses, ref)
	return Dashboard{
		RoomID:          p.RoomID,
		Reference:       ref,
		Total:           core.SumCost(data.expenses),
		ByUser:          core.TotalsByUser(data.expenses, data.roster),
		ByCategory:      core.TotalsByCategory(data.expenses),
		RoomMonthToDate: roomMTD,
		MyMonthToDate:   core.MonthToDateSpend(mine, ref),
		MonthlyBudget:   p.MonthlyBudget,
		BudgetPercent:   core.BudgetProgress(roomMTD, p.MonthlyBudget),
		CategoryBudgets: core.CategoryBudgetProgress(data.expenses, p.CategoryBudgets, ref),
	}, nil
}

func (s *DashboardService) load(ctx context.Context, roomID string) (roomData, error) {
	var gen uint64
	if s.cache != nil {
		if d, ok := s.cache.Get(roomID); ok {
			return d, nil
		}
		gen = s.generation(roomID)
	}
	expenses, err := s.expenses.ListExpensesByRoom(ctx, roomID)
	if err != nil {
		return roomData{}, fmt.Errorf("list expenses: %w", err)
	}
	roster, err := s.profiles.ListRoster(ctx, roomID)
	if err != nil {
		return roomData{}, fmt.Errorf("list roster: %w", err)
	}
	d := roomData{expenses: expenses, roster: roster}
	if s.cache != nil {
		s.store(roomID, gen, d)
	}
	return d, nil
}
