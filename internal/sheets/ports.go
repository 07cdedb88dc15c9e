package sheets

import (
	"context"

	"roomsplit/internal/core"
)

// LedgerExporter writes a room's complete expense ledger to an external
// spreadsheet, replacing whatever the room's tab held before.
type LedgerExporter interface {
	ExportRoom(ctx context.Context, roomID string, expenses []core.Expense, roster []core.UserProfile) error
}
