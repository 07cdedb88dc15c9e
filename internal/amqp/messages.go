package amqp

import (
	"encoding/json"
	"time"
)

// Message types, carried both in the AMQP Type property and the body.
const (
	TypeExpenseEvent  = "expense.event"
	TypeReceiptOrphan = "receipt.orphan"
)

type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// ExpenseEvent announces a committed change to an expense. It only carries
// identifiers; consumers reload what they need from the database.
type ExpenseEvent struct {
	Type      string    `json:"type"`
	Kind      EventKind `json:"kind"`
	ExpenseID int64     `json:"expense_id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(kind EventKind, expenseID int64, roomID, userID string) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      TypeExpenseEvent,
		Kind:      kind,
		ExpenseID: expenseID,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ReceiptOrphan names a stored receipt that no expense references because
// the write that uploaded it failed afterwards.
type ReceiptOrphan struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	OwnerID   string    `json:"owner_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReceiptOrphan(path, ownerID, reason string) *ReceiptOrphan {
	return &ReceiptOrphan{
		Type:      TypeReceiptOrphan,
		Path:      path,
		OwnerID:   ownerID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// messageType returns the type of body, preferring the AMQP property.
func messageType(property string, body []byte) string {
	if property != "" {
		return property
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Type
}
