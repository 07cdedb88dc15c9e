package core

import (
	"sort"
	"strings"
)

type SortKey string

const (
	SortByDate SortKey = "date"
	SortByCost SortKey = "cost"
	SortByShop SortKey = "shop"
	SortByUser SortKey = "user"
)

// ParseSortKey maps a query value to a SortKey, defaulting to date.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortByCost, SortByShop, SortByUser:
		return k
	default:
		return SortByDate
	}
}

// SortExpenses orders expenses in place for the table view. String keys
// compare case-insensitively; user sorts by the roster display name.
// Ties fall back to id so the order is deterministic.
func SortExpenses(expenses []Expense, key SortKey, desc bool, roster []UserProfile) {
	names := make(map[string]string, len(roster))
	for _, p := range roster {
		names[p.UserID] = strings.ToLower(p.Name)
	}
	userName := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return strings.ToLower(PlaceholderName(id))
	}
	cmp := func(a, b Expense) int {
		switch key {
		case SortByCost:
			return compareInt(a.Cost.Cents, b.Cost.Cents)
		case SortByShop:
			return strings.Compare(strings.ToLower(a.Shop), strings.ToLower(b.Shop))
		case SortByUser:
			return strings.Compare(userName(a.UserID), userName(b.UserID))
		default:
			return a.Date.Compare(b.Date.Time)
		}
	}
	sort.SliceStable(expenses, func(i, j int) bool {
		c := cmp(expenses[i], expenses[j])
		if c == 0 {
			c = compareInt(expenses[i].ID, expenses[j].ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// FilterByUsers keeps expenses authored by one of userIDs. An empty
// selection keeps everything.
func FilterByUsers(expenses []Expense, userIDs []string) []Expense {
	if len(userIDs) == 0 {
		return expenses
	}
	keep := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		keep[id] = struct{}{}
	}
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if _, ok := keep[e.UserID]; ok {
			out = append(out, e)
		}
	}
	return out
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
