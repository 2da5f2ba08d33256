// Package worker applies transaction change events published by the store
// to a replica collection and, optionally, to the remote.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"moneytrack/internal/amqp"
	"moneytrack/internal/cache"
	"moneytrack/internal/core"
	"moneytrack/internal/remote"
	"moneytrack/internal/storage"
)

// Replica is a whole-value copy of the transaction list.
type Replica interface {
	ReadAll(ctx context.Context) ([]core.Transaction, error)
	WriteAll(ctx context.Context, txs []core.Transaction) error
}

type Stats struct {
	Created   int64
	Deleted   int64
	Forwarded int64
	Skipped   int64
}

// EventWorker handles one event at a time. Handling is idempotent so
// redelivered events are harmless.
type EventWorker struct {
	replica Replica
	remote  remote.Client
	// forwarded remembers ids already pushed to the remote.
	forwarded *cache.LRUCache[struct{}]

	mu    sync.Mutex
	stats Stats
}

// NewEventWorker accepts a nil replica or a nil remote, not both.
func NewEventWorker(replica Replica, rc remote.Client) (*EventWorker, error) {
	if replica == nil && rc == nil {
		return nil, errors.New("event worker needs a replica or a remote")
	}
	return &EventWorker{
		replica:   replica,
		remote:    rc,
		forwarded: cache.NewLRUCache[struct{}](4096, 24*time.Hour),
	}, nil
}

// Cache exposes the forwarded-id cache for registration with a cleanup manager.
func (w *EventWorker) Cache() *cache.LRUCache[struct{}] {
	return w.forwarded
}

// HandleEvent applies ev. A returned error asks the broker to redeliver.
func (w *EventWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event", "type", ev.Type, "id", ev.ID, "timestamp", ev.Timestamp)

	switch ev.Type {
	case amqp.EventCreated:
		return w.handleCreated(ctx, ev)
	case amqp.EventDeleted:
		return w.handleDeleted(ctx, ev)
	default:
		atomic.AddInt64(&w.stats.Skipped, 1)
		slog.WarnContext(ctx, "Skipping unknown event type", "type", ev.Type, "id", ev.ID)
		return nil
	}
}

func (w *EventWorker) handleCreated(ctx context.Context, ev *amqp.TransactionEvent) error {
	if ev.Transaction == nil {
		return fmt.Errorf("%w: %s %s without transaction", amqp.ErrInvalidEvent, ev.Type, ev.ID)
	}
	tx := *ev.Transaction

	if w.replica != nil {
		changed, err := w.update(ctx, func(all []core.Transaction) ([]core.Transaction, bool) {
			for _, it := range all {
				if it.ID == tx.ID {
					return all, false
				}
			}
			return append(all, tx), true
		})
		if err != nil {
			return fmt.Errorf("apply created %s: %w", tx.ID, err)
		}
		if changed {
			atomic.AddInt64(&w.stats.Created, 1)
		}
	}

	// Synced records already reached the remote through the store.
	if w.remote == nil || tx.IsSynced {
		return nil
	}
	key := tx.ID.String()
	if _, done := w.forwarded.Get(key); done {
		return nil
	}
	created, err := w.remote.Create(ctx, tx)
	if err != nil {
		return fmt.Errorf("forward %s to %s: %w", tx.ID, w.remote.Name(), err)
	}
	w.forwarded.Set(key, struct{}{})
	atomic.AddInt64(&w.stats.Forwarded, 1)
	slog.InfoContext(ctx, "Forwarded unsynced transaction", "id", tx.ID, "remote_id", created.ID, "remote", w.remote.Name())
	return nil
}

func (w *EventWorker) handleDeleted(ctx context.Context, ev *amqp.TransactionEvent) error {
	if w.replica != nil {
		changed, err := w.update(ctx, func(all []core.Transaction) ([]core.Transaction, bool) {
			kept := make([]core.Transaction, 0, len(all))
			for _, it := range all {
				if it.ID != ev.ID {
					kept = append(kept, it)
				}
			}
			return kept, len(kept) != len(all)
		})
		if err != nil {
			return fmt.Errorf("apply deleted %s: %w", ev.ID, err)
		}
		if changed {
			atomic.AddInt64(&w.stats.Deleted, 1)
		}
	}

	if w.remote == nil {
		return nil
	}
	if err := w.remote.Delete(ctx, ev.ID); err != nil && !errors.Is(err, remote.ErrNotFound) {
		return fmt.Errorf("forward delete %s to %s: %w", ev.ID, w.remote.Name(), err)
	}
	w.forwarded.Delete(ev.ID.String())
	return nil
}

// update runs a read-modify-write cycle on the replica, writing only when fn
// reports a change.
func (w *EventWorker) update(ctx context.Context, fn func([]core.Transaction) ([]core.Transaction, bool)) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := w.replica.ReadAll(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		all, err = []core.Transaction{}, nil
	}
	if err != nil {
		return false, fmt.Errorf("read replica: %w", err)
	}
	next, changed := fn(all)
	if !changed {
		return false, nil
	}
	if err := w.replica.WriteAll(ctx, next); err != nil {
		return false, fmt.Errorf("write replica: %w", err)
	}
	return true, nil
}

func (w *EventWorker) Stats() Stats {
	return Stats{
		Created:   atomic.LoadInt64(&w.stats.Created),
		Deleted:   atomic.LoadInt64(&w.stats.Deleted),
		Forwarded: atomic.LoadInt64(&w.stats.Forwarded),
		Skipped:   atomic.LoadInt64(&w.stats.Skipped),
	}
}
