package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"roomsplit/internal/amqp"
	"roomsplit/internal/core"
	"roomsplit/internal/log"
	"roomsplit/internal/sheets"
)

// RoomSource reads what an export needs.
type RoomSource interface {
	ListRooms(ctx context.Context) ([]string, error)
	ListExpensesByRoom(ctx context.Context, roomID string) ([]core.Expense, error)
	ListRoster(ctx context.Context, roomID string) ([]core.UserProfile, error)
}

// Remover deletes stored receipts. Removing a missing object succeeds.
type Remover interface {
	Remove(ctx context.Context, objectPath string) error
}

// SyncWorker mirrors room ledgers to the spreadsheet and cleans up receipts
// left behind by failed writes.
type SyncWorker struct {
	source   RoomSource
	exporter sheets.LedgerExporter
	media    Remover
}

// NewSyncWorker wires a worker. exporter may be nil, in which case expense
// events are acknowledged without exporting.
func NewSyncWorker(source RoomSource, exporter sheets.LedgerExporter, media Remover) *SyncWorker {
	return &SyncWorker{source: source, exporter: exporter, media: media}
}

// Handlers returns the AMQP handlers backed by this worker.
func (w *SyncWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		ExpenseEvent:  w.HandleExpenseEvent,
		ReceiptOrphan: w.HandleReceiptOrphan,
	}
}

// HandleExpenseEvent re-exports the room the event belongs to.
func (w *SyncWorker) HandleExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	slog.InfoContext(ctx, "Processing expense event",
		log.FieldComponent, log.ComponentWorker,
		log.FieldExpenseID, ev.ExpenseID, log.FieldRoomID, ev.RoomID, "kind", ev.Kind)

	if w.exporter == nil || ev.RoomID == "" {
		return nil
	}
	return w.ExportRoom(ctx, ev.RoomID)
}

// HandleReceiptOrphan deletes a receipt no expense points to.
func (w *SyncWorker) HandleReceiptOrphan(ctx context.Context, o *amqp.ReceiptOrphan) error {
	if err := w.media.Remove(ctx, o.Path); err != nil {
		return fmt.Errorf("remove orphaned receipt: %w", err)
	}
	slog.InfoContext(ctx, "Removed orphaned receipt",
		log.FieldComponent, log.ComponentWorker,
		log.FieldImagePath, o.Path, log.FieldUserID, o.OwnerID, "reason", o.Reason)
	return nil
}

// ExportRoom writes the current ledger of roomID.
func (w *SyncWorker) ExportRoom(ctx context.Context, roomID string) error {
	if w.exporter == nil {
		return nil
	}
	expenses, err := w.source.ListExpensesByRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("list expenses of %s: %w", roomID, err)
	}
	roster, err := w.source.ListRoster(ctx, roomID)
	if err != nil {
		return fmt.Errorf("list roster of %s: %w", roomID, err)
	}
	if err := w.exporter.ExportRoom(ctx, roomID, expenses, roster); err != nil {
		return fmt.Errorf("export %s: %w", roomID, err)
	}
	return nil
}

// ExportAll re-exports every room that has expenses. It keeps going past
// failing rooms and reports them together.
func (w *SyncWorker) ExportAll(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}
	rooms, err := w.source.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}

	var errs []error
	for _, roomID := range rooms {
		if err := w.ExportRoom(ctx, roomID); err != nil {
			slog.ErrorContext(ctx, "Failed to export room",
				log.FieldComponent, log.ComponentWorker, log.FieldRoomID, roomID, log.FieldError, err)
			errs = append(errs, err)
		}
	}

	slog.InfoContext(ctx, "Periodic export completed",
		log.FieldComponent, log.ComponentWorker,
		"total", len(rooms), "exported", len(rooms)-len(errs), "errors", len(errs))
	return errors.Join(errs...)
}

// RunPeriodic calls ExportAll once at start and then every interval until
// ctx is done. Export failures are logged, never returned.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if err := w.ExportAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup export failed", log.FieldComponent, log.ComponentWorker, log.FieldError, err)
	}
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ExportAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic export failed", log.FieldComponent, log.ComponentWorker, log.FieldError, err)
			}
		}
	}
}
