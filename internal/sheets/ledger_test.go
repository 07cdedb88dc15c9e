package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsplit/internal/core"
)

func TestRows(t *testing.T) {
	expenses := []core.Expense{
		{ID: 2, UserID: "u-bob-1234", Date: core.NewDate(2025, 5, 3), Shop: "Hardware", Items: "nails", Cost: core.Money{Cents: 300}, Category: "Home"},
		{ID: 1, UserID: "u1", Date: core.NewDate(2025, 5, 1), Shop: "SuperMart", Items: "milk", Cost: core.Money{Cents: 1250}, Category: "Groceries", ImageURL: "https://x/r.jpg"},
	}
	roster := []core.UserProfile{{UserID: "u1", Name: "Alice"}}

	rows := Rows(expenses, roster)
	require.Len(t, rows, 4)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"2025-05-01", "SuperMart", "milk", "12.50", "Groceries", "Alice", "https://x/r.jpg"}, rows[1])
	assert.Equal(t, "User...1234", rows[2][5])
	assert.Equal(t, "15.50", rows[3][3])
	assert.Equal(t, int64(2), expenses[0].ID, "input left untouched")
}

func TestRowsEmpty(t *testing.T) {
	rows := Rows(nil, nil)
	require.Len(t, rows, 2)
	assert.Equal(t, "0.00", rows[1][3])
}

func TestSheetTitle(t *testing.T) {
	tests := map[string]string{
		"room-ab12cd34": "room-ab12cd34",
		"  a/b:c  ":     "a-b-c",
		"":              "room",
	}
	for in, want := range tests {
		assert.Equal(t, want, SheetTitle(in), in)
	}
}
