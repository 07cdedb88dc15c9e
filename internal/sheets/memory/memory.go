package memory

import (
	"context"
	"sync"

	"roomsplit/internal/core"
	"roomsplit/internal/sheets"
)

// Exporter keeps exported ledgers in memory. The worker uses it when no
// spreadsheet is configured, and tests use it to observe exports.
type Exporter struct {
	mu      sync.Mutex
	ledgers map[string][][]string
	exports int
	err     error
}

var _ sheets.LedgerExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{ledgers: map[string][][]string{}}
}

// FailWith makes subsequent exports return err. Pass nil to recover.
func (x *Exporter) FailWith(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.err = err
}

func (x *Exporter) ExportRoom(_ context.Context, roomID string, expenses []core.Expense, roster []core.UserProfile) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return x.err
	}
	x.ledgers[sheets.SheetTitle(roomID)] = sheets.Rows(expenses, roster)
	x.exports++
	return nil
}

// Ledger returns the last rows exported for roomID.
func (x *Exporter) Ledger(roomID string) ([][]string, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	rows, ok := x.ledgers[sheets.SheetTitle(roomID)]
	return rows, ok
}

// Exports counts successful exports.
func (x *Exporter) Exports() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.exports
}
