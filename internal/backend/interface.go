package backend

import (
	"context"

	"roomsplit/internal/amqp"
	"roomsplit/internal/categorize"
	"roomsplit/internal/media"
	"roomsplit/internal/services"
	"roomsplit/internal/sheets"
)

// CleanupFunc releases resources held by the integrations
type CleanupFunc func() error

// Result holds the external integrations shared by the binaries. AMQP and
// Exporter are nil when not configured.
type Result struct {
	Media *media.Store
	// LocalMediaRoot is set for the local backend so the server can serve it.
	LocalMediaRoot string
	Categorizer    categorize.Categorizer
	AMQP           *amqp.Client
	Exporter       sheets.LedgerExporter
	Cleanup        CleanupFunc
}

// EventPublisher returns the AMQP client as a publisher, or a nil interface
// when messaging is off.
func (r *Result) EventPublisher() services.EventPublisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Factory creates the integrations based on configuration
type Factory interface {
	Create(ctx context.Context, cfg Config) (*Result, error)
}
