package core

import (
	"sort"
	"strings"
)

// UserTotal is the amount spent by one room member.
type UserTotal struct {
	UserID string
	Name   string
	Total  Money
}

// CategoryTotal is an amount aggregated by category name.
type CategoryTotal struct {
	Category string
	Total    Money
}

// CategoryProgress compares a category's month-to-date spend with its limit.
type CategoryProgress struct {
	Category string
	Spent    Money
	Budget   Money
	Percent  float64
}

// PlaceholderName is shown for authors missing from the roster.
func PlaceholderName(userID string) string {
	if len(userID) <= 4 {
		return "User..." + userID
	}
	return "User..." + userID[len(userID)-4:]
}

// TotalsByUser sums cost per author in order of first appearance. Users
// whose total is zero are left out.
func TotalsByUser(expenses []Expense, roster []UserProfile) []UserTotal {
	names := make(map[string]string, len(roster))
	for _, p := range roster {
		names[p.UserID] = p.Name
	}
	idx := make(map[string]int)
	var out []UserTotal
	for _, e := range expenses {
		i, ok := idx[e.UserID]
		if !ok {
			name, known := names[e.UserID]
			if !known || strings.TrimSpace(name) == "" {
				name = PlaceholderName(e.UserID)
			}
			i = len(out)
			idx[e.UserID] = i
			out = append(out, UserTotal{UserID: e.UserID, Name: name})
		}
		out[i].Total = out[i].Total.Add(e.Cost)
	}
	res := out[:0]
	for _, t := range out {
		if t.Total.Cents != 0 {
			res = append(res, t)
		}
	}
	return res
}

// TotalsByCategory sums cost per category, largest first. Ties keep the
// order in which the categories first appeared.
func TotalsByCategory(expenses []Expense) []CategoryTotal {
	idx := make(map[string]int)
	var out []CategoryTotal
	for _, e := range expenses {
		cat := strings.TrimSpace(e.Category)
		if cat == "" {
			cat = Uncategorized
		}
		i, ok := idx[cat]
		if !ok {
			i = len(out)
			idx[cat] = i
			out = append(out, CategoryTotal{Category: cat})
		}
		out[i].Total = out[i].Total.Add(e.Cost)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Total.Cents > out[b].Total.Cents
	})
	return out
}

// MonthToDateSpend sums expenses dated on or after the first day of ref's
// month. Callers filter by room beforehand.
func MonthToDateSpend(expenses []Expense, ref Date) Money {
	start := ref.MonthStart()
	var total Money
	for _, e := range expenses {
		if !e.Date.Before(start.Time) {
			total = total.Add(e.Cost)
		}
	}
	return total
}

// BudgetProgress returns spend as a percentage of budget. It is not
// clamped, so overspending yields values above 100.
func BudgetProgress(spend, budget Money) float64 {
	if budget.Cents <= 0 {
		return 0
	}
	return float64(spend.Cents) / float64(budget.Cents) * 100
}

// CategoryBudgetProgress reports month-to-date progress for every category
// that has a limit, ordered by category name.
func CategoryBudgetProgress(expenses []Expense, budgets map[string]Money, ref Date) []CategoryProgress {
	if len(budgets) == 0 {
		return nil
	}
	start := ref.MonthStart()
	spent := make(map[string]Money)
	for _, e := range expenses {
		if e.Date.Before(start.Time) {
			continue
		}
		cat := strings.TrimSpace(e.Category)
		if cat == "" {
			cat = Uncategorized
		}
		spent[strings.ToLower(cat)] = spent[strings.ToLower(cat)].Add(e.Cost)
	}
	out := make([]CategoryProgress, 0, len(budgets))
	for cat, limit := range budgets {
		s := spent[strings.ToLower(cat)]
		out = append(out, CategoryProgress{
			Category: cat,
			Spent:    s,
			Budget:   limit,
			Percent:  BudgetProgress(s, limit),
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Category < out[b].Category })
	return out
}

// SumCost adds up the cost of every expense.
func SumCost(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Cost)
	}
	return total
}
