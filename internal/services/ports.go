package services

import (
	"context"

	"roomsplit/internal/amqp"
	"roomsplit/internal/core"
	"roomsplit/internal/media"
)

// ExpenseStore persists expense records.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	ListExpensesByRoom(ctx context.Context, roomID string) ([]core.Expense, error)
}

// ProfileStore persists user profiles and room membership.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (core.UserProfile, error)
	SetRoom(ctx context.Context, userID, roomID string) error
	UpdateProfile(ctx context.Context, userID string, upd core.ProfileUpdate) (core.UserProfile, error)
	ListRoster(ctx context.Context, roomID string) ([]core.UserProfile, error)
}

// MediaStore keeps receipt and avatar images.
type MediaStore interface {
	Store(ctx context.Context, ownerID string, f media.File) (media.Object, error)
	StoreAvatar(ctx context.Context, ownerID string, f media.File) (media.Object, error)
	Remove(ctx context.Context, path string) error
}

// EventPublisher hands follow-up work to the background worker.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
	PublishReceiptOrphan(ctx context.Context, o *amqp.ReceiptOrphan) error
}

// Notifier tells live subscribers that a room's data changed.
type Notifier interface {
	Notify(ctx context.Context, roomID string) error
}
