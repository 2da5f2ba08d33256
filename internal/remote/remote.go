// Package remote defines the port for the optional server-side mirror of the
// transaction collection.
package remote

import (
	"context"
	"errors"

	"moneytrack/internal/core"
)

var (
	ErrNotFound       = errors.New("remote record not found")
	ErrNotConfigured  = errors.New("remote not configured")
	ErrUnexpectedCode = errors.New("unexpected response status")
)

// Client is implemented by every remote adapter.
type Client interface {
	// List returns one page of records in server order.
	List(ctx context.Context, page, limit int) ([]core.Transaction, error)
	// Create stores tx and returns the server copy.
	Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	// Delete removes the record with id. ErrNotFound if the server has none.
	Delete(ctx context.Context, id core.ID) error
	// Name identifies the adapter in logs and status output.
	Name() string
}
