package memory

import (
	"context"
	"fmt"
	"sync"

	"moneytrack/internal/core"
	"moneytrack/internal/remote"
)

// Store is an in-process remote used for local development and tests.
type Store struct {
	mu    sync.Mutex
	items []core.Transaction
	fail  error
	calls map[string]int
}

var _ remote.Client = (*Store)(nil)

func New(seed ...core.Transaction) *Store {
	return &Store{
		items: append([]core.Transaction(nil), seed...),
		calls: map[string]int{},
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Calls reports how many times op ("list", "create", "delete") was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Items returns a copy of everything the store holds.
func (s *Store) Items() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...)
}

func (s *Store) Name() string { return "memory" }

func (s *Store) List(_ context.Context, page, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["list"]++
	if s.fail != nil {
		return nil, s.fail
	}
	return core.Paginate(s.items, page, limit), nil
}

func (s *Store) Create(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["create"]++
	if s.fail != nil {
		return core.Transaction{}, s.fail
	}
	for _, it := range s.items {
		if it.ID == tx.ID {
			return core.Transaction{}, fmt.Errorf("create %s: id already exists", tx.ID)
		}
	}
	tx.IsSynced = true
	s.items = append(s.items, tx)
	return tx, nil
}

func (s *Store) Delete(_ context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["delete"]++
	if s.fail != nil {
		return s.fail
	}
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return remote.ErrNotFound
}
