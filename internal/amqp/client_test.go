package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped at 30s
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial AMQP: connection refused"), true},
		{"closed", amqp091.ErrClosed, true},
		{"wrapped closed", fmt.Errorf("start consuming: %w", amqp091.ErrClosed), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"delivery channel", errors.New("message channel closed"), true},
		{"other", errors.New("invalid input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isConnectionError(tt.err))
		})
	}
}

func TestHandleDelivery(t *testing.T) {
	ctx := context.Background()
	evBody, err := json.Marshal(NewExpenseEvent(EventCreated, 42, "room-a", "u1"))
	require.NoError(t, err)
	orphanBody, err := json.Marshal(NewReceiptOrphan("receipts/u1/1_a.jpg", "u1", "persist failed"))
	require.NoError(t, err)

	var gotEvent *ExpenseEvent
	var gotOrphan *ReceiptOrphan
	ok := Handlers{
		ExpenseEvent:  func(_ context.Context, ev *ExpenseEvent) error { gotEvent = ev; return nil },
		ReceiptOrphan: func(_ context.Context, o *ReceiptOrphan) error { gotOrphan = o; return nil },
	}
	failing := Handlers{
		ExpenseEvent:  func(context.Context, *ExpenseEvent) error { return errors.New("sheets down") },
		ReceiptOrphan: func(context.Context, *ReceiptOrphan) error { return errors.New("storage down") },
	}

	assert.Equal(t, outcomeAck, handleDelivery(ctx, TypeExpenseEvent, evBody, ok))
	require.NotNil(t, gotEvent)
	assert.Equal(t, int64(42), gotEvent.ExpenseID)
	assert.Equal(t, EventCreated, gotEvent.Kind)

	// type taken from the body when the property is missing
	assert.Equal(t, outcomeAck, handleDelivery(ctx, "", orphanBody, ok))
	require.NotNil(t, gotOrphan)
	assert.Equal(t, "receipts/u1/1_a.jpg", gotOrphan.Path)

	assert.Equal(t, outcomeRequeue, handleDelivery(ctx, TypeExpenseEvent, evBody, failing))
	assert.Equal(t, outcomeRequeue, handleDelivery(ctx, TypeReceiptOrphan, orphanBody, failing))

	assert.Equal(t, outcomeReject, handleDelivery(ctx, TypeExpenseEvent, []byte("{"), ok))
	assert.Equal(t, outcomeReject, handleDelivery(ctx, TypeReceiptOrphan, []byte(`{"path":""}`), ok))
	assert.Equal(t, outcomeReject, handleDelivery(ctx, "something.else", evBody, ok))
	assert.Equal(t, outcomeReject, handleDelivery(ctx, "", []byte("garbage"), ok))

	assert.Equal(t, outcomeAck, handleDelivery(ctx, TypeExpenseEvent, evBody, Handlers{}))
}
