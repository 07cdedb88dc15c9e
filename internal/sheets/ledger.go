package sheets

import (
	"sort"
	"strings"

	"roomsplit/internal/core"
)

// Header is the first row of every exported tab.
var Header = []string{"Date", "Shop", "Items", "Cost", "Category", "Paid by", "Receipt"}

// Rows lays out a ledger: the header, one row per expense oldest first, and
// a closing total row. The input slice is not modified.
func Rows(expenses []core.Expense, roster []core.UserProfile) [][]string {
	names := make(map[string]string, len(roster))
	for _, p := range roster {
		if n := strings.TrimSpace(p.Name); n != "" {
			names[p.UserID] = n
		}
	}

	sorted := append([]core.Expense(nil), expenses...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date.Time) {
			return sorted[i].Date.Before(sorted[j].Date.Time)
		}
		return sorted[i].ID < sorted[j].ID
	})

	rows := make([][]string, 0, len(sorted)+2)
	rows = append(rows, append([]string(nil), Header...))
	for _, e := range sorted {
		who, ok := names[e.UserID]
		if !ok {
			who = core.PlaceholderName(e.UserID)
		}
		rows = append(rows, []string{
			e.Date.String(),
			e.Shop,
			e.Items,
			e.Cost.String(),
			e.Category,
			who,
			e.ImageURL,
		})
	}
	rows = append(rows, []string{"", "", "Total", core.SumCost(expenses).String(), "", "", ""})
	return rows
}

// SheetTitle turns a room id into a valid tab title.
func SheetTitle(roomID string) string {
	t := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':':
			return '-'
		}
		return r
	}, strings.TrimSpace(roomID))
	if len(t) > 100 {
		t = t[:100]
	}
	if t == "" {
		t = "room"
	}
	return t
}
