// Package services holds the transaction store: the single owner of the
// in-memory list, its persisted copy and the optional remote mirror.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"moneytrack/internal/amqp"
	"moneytrack/internal/cache"
	"moneytrack/internal/connectivity"
	"moneytrack/internal/core"
	applog "moneytrack/internal/log"
	"moneytrack/internal/remote"
	"moneytrack/internal/storage"
)

// User-visible messages, one per operation.
const (
	MsgLoadFailed   = "Error loading transactions"
	MsgAddFailed    = "Error adding transaction"
	MsgDeleteFailed = "Error deleting transaction"
)

// ErrDuplicateID is returned by Add when the id is already stored.
var ErrDuplicateID = errors.New("duplicate transaction id")

// Collection is the whole-value persisted copy of the transaction list.
type Collection interface {
	ReadAll(ctx context.Context) ([]core.Transaction, error)
	WriteAll(ctx context.Context, txs []core.Transaction) error
}

// Publisher receives change events after successful local mutations.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// Status summarises what a client needs to render a connectivity banner.
type Status struct {
	Online    bool   `json:"online"`
	LastError string `json:"lastError"`
	Remote    string `json:"remote"`
}

// TransactionStore owns the in-memory list and mirrors it to local storage
// and, when configured, to a remote.
type TransactionStore struct {
	repo      Collection
	remote    remote.Client
	online    connectivity.Checker
	publisher Publisher
	pages     cache.Cache[[]core.Transaction]
	ids       *core.IDGenerator
	events    *applog.StructuredLogger

	// writeMu serializes Load, Add and Delete. A Load that read the collection
	// before a mutation must not refill the page cache after that mutation.
	writeMu sync.Mutex

	mu      sync.RWMutex
	items   []core.Transaction
	lastErr string
	subs    map[int]chan []core.Transaction
	nextSub int
}

// NewTransactionStore returns a store over repo. It assumes online and has no
// remote until options say otherwise.
func NewTransactionStore(repo Collection, opts ...Option) *TransactionStore {
	s := &TransactionStore{
		repo:   repo,
		online: connectivity.Static(true),
		pages:  cache.NewLRUCache[[]core.Transaction](64, 5*time.Minute),
		ids:    core.NewIDGenerator(nil),
		items:  []core.Transaction{},
		subs:   map[int]chan []core.Transaction{},
		events: applog.NewStructuredLogger(applog.New(applog.Config{
			Handler:   slog.Default().Handler(),
			Component: applog.ComponentStore,
		})),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TransactionStore) remoteReady() bool {
	return s.remote != nil && s.online.Online()
}

func pageKey(page, limit int) string {
	return fmt.Sprintf("%d:%d", page, limit)
}

// Load replaces the in-memory list with one page. Sources are tried in
// order: page cache, local storage, remote. On total failure the list is
// emptied, the user-visible message is set and the cause returned.
func (s *TransactionStore) Load(ctx context.Context, page, limit int) ([]core.Transaction, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		s.replaceItems(nil)
		return []core.Transaction{}, nil
	}

	key := pageKey(page, limit)
	if cached, ok := s.pages.Get(key); ok {
		slog.DebugContext(ctx, "Page served from cache", "page", page, "limit", limit)
		return s.acceptPage(key, cached, false), nil
	}

	all, localErr := s.repo.ReadAll(ctx)
	if localErr == nil {
		for _, tx := range all {
			s.ids.Observe(tx.ID)
		}
		return s.acceptPage(key, core.Paginate(all, page, limit), true), nil
	}
	if !errors.Is(localErr, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Local read failed, trying remote", "error", localErr)
	} else {
		localErr = nil
	}

	if s.remoteReady() {
		remotePage, err := s.remote.List(ctx, page, limit)
		if err == nil {
			slog.InfoContext(ctx, "Page loaded from remote", "remote", s.remote.Name(), "page", page, "limit", limit, "count", len(remotePage))
			return s.acceptPage(key, remotePage, true), nil
		}
		localErr = errors.Join(localErr, fmt.Errorf("remote list: %w", err))
	}

	s.replaceItems(nil)
	if localErr != nil {
		s.fail(ctx, MsgLoadFailed, applog.OpLoad, localErr)
		return []core.Transaction{}, fmt.Errorf("load transactions: %w", localErr)
	}
	return []core.Transaction{}, nil
}

func (s *TransactionStore) acceptPage(key string, items []core.Transaction, fill bool) []core.Transaction {
	if fill {
		s.pages.Set(key, append([]core.Transaction(nil), items...))
	}
	s.replaceItems(items)
	return append([]core.Transaction{}, items...)
}

// Create builds a record from d, stamping a fresh id and the current time, and adds it.
func (s *TransactionStore) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	id, at := s.ids.Next()
	tx, err := core.NewTransaction(d, id, at)
	if err != nil {
		s.fail(ctx, MsgAddFailed, applog.OpAdd, err)
		return core.Transaction{}, fmt.Errorf("build transaction: %w", err)
	}
	return s.Add(ctx, tx)
}

// Add appends tx. When a remote is configured and the client is online the
// server copy is stored; otherwise, or if the remote create fails, tx is
// stored unsynced. The returned record is what was persisted.
func (s *TransactionStore) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if tx.ID == 0 {
		tx.ID, _ = s.ids.Next()
	}
	if tx.Date == "" {
		tx.Date = core.FormatDate(time.Now())
	}
	if err := tx.Validate(); err != nil {
		s.fail(ctx, MsgAddFailed, applog.OpAdd, err)
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	all, err := s.readForWrite(ctx)
	if err != nil {
		s.fail(ctx, MsgAddFailed, applog.OpAdd, err)
		return core.Transaction{}, err
	}
	if containsID(all, tx.ID) {
		err := fmt.Errorf("%w: %s", ErrDuplicateID, tx.ID)
		s.fail(ctx, MsgAddFailed, applog.OpAdd, err)
		return core.Transaction{}, err
	}

	stored := tx
	stored.IsSynced = false
	source := "local"
	if s.remoteReady() {
		created, err := s.remote.Create(ctx, tx)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Remote create failed, keeping local copy", "id", tx.ID, "remote", s.remote.Name(), "error", err)
		case created.ID != tx.ID && containsID(all, created.ID):
			slog.WarnContext(ctx, "Remote id collides with a local record, keeping local id", "id", tx.ID, "remote_id", created.ID)
			stored.IsSynced = true
			source = s.remote.Name()
		default:
			stored = created
			stored.IsSynced = true
			source = s.remote.Name()
		}
	}

	next := append(append(make([]core.Transaction, 0, len(all)+1), all...), stored)
	if err := s.repo.WriteAll(ctx, next); err != nil {
		s.fail(ctx, MsgAddFailed, applog.OpAdd, err)
		return core.Transaction{}, fmt.Errorf("persist transaction: %w", err)
	}
	s.ids.Observe(stored.ID)

	s.mu.Lock()
	s.items = append(append(make([]core.Transaction, 0, len(s.items)+1), s.items...), stored)
	s.mu.Unlock()

	s.pages.Purge()
	s.notify()
	s.events.LogTransactionAdded(ctx, source, stored)
	s.publish(ctx, amqp.NewCreatedEvent(stored))
	return stored, nil
}

// Delete removes id locally, then remotely when online. Both steps run even
// if the first fails and neither is rolled back. Absent ids are a no-op.
func (s *TransactionStore) Delete(ctx context.Context, id core.ID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var errs []error
	removed := false

	all, err := s.readForWrite(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		kept := without(all, id)
		if len(kept) != len(all) {
			if err := s.repo.WriteAll(ctx, kept); err != nil {
				errs = append(errs, fmt.Errorf("persist deletion: %w", err))
			} else {
				removed = true
			}
		}
		if len(errs) == 0 {
			s.mu.Lock()
			before := len(s.items)
			s.items = without(s.items, id)
			removed = removed || len(s.items) != before
			s.mu.Unlock()
		}
	}

	if s.remoteReady() {
		if err := s.remote.Delete(ctx, id); err != nil && !errors.Is(err, remote.ErrNotFound) {
			errs = append(errs, fmt.Errorf("remote delete: %w", err))
		}
	}

	if removed {
		s.pages.Purge()
		s.notify()
		s.publish(ctx, amqp.NewDeletedEvent(id))
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.fail(ctx, MsgDeleteFailed, applog.OpDelete, err)
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "removed", removed)
	return nil
}

// readForWrite treats a never-written collection as empty.
func (s *TransactionStore) readForWrite(ctx context.Context) ([]core.Transaction, error) {
	all, err := s.repo.ReadAll(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return []core.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}
	return all, nil
}

// Transactions returns a copy of the in-memory list.
func (s *TransactionStore) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction{}, s.items...)
}

// Totals aggregates the in-memory list by title.
func (s *TransactionStore) Totals() []core.CategoryTotal {
	return core.CategoryTotals(s.Transactions())
}

func (s *TransactionStore) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *TransactionStore) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *TransactionStore) Status() Status {
	st := Status{
		Online:    s.online.Online(),
		LastError: s.LastError(),
		Remote:    "none",
	}
	if s.remote != nil {
		st.Remote = s.remote.Name()
	}
	return st
}

// Subscribe returns a channel that receives a snapshot of the in-memory list
// after every change. Slow readers only ever see the latest snapshot. The
// cancel func closes the channel.
func (s *TransactionStore) Subscribe() (<-chan []core.Transaction, func()) {
	ch := make(chan []core.Transaction, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *TransactionStore) replaceItems(items []core.Transaction) {
	s.mu.Lock()
	s.items = append([]core.Transaction{}, items...)
	s.mu.Unlock()
	s.notify()
}

func (s *TransactionStore) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		snapshot := append([]core.Transaction{}, s.items...)
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (s *TransactionStore) fail(ctx context.Context, msg, op string, err error) {
	s.events.LogError(ctx, msg, err, op, nil)
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *TransactionStore) publish(ctx context.Context, ev *amqp.TransactionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event", "type", ev.Type, "id", ev.ID, "error", err)
	}
}

func containsID(txs []core.Transaction, id core.ID) bool {
	for _, tx := range txs {
		if tx.ID == id {
			return true
		}
	}
	return false
}

func without(txs []core.Transaction, id core.ID) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.ID != id {
			out = append(out, tx)
		}
	}
	return out
}
