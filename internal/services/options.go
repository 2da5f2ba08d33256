package services

import (
	"moneytrack/internal/cache"
	"moneytrack/internal/connectivity"
	"moneytrack/internal/core"
	"moneytrack/internal/remote"
)

// Option configures a TransactionStore.
type Option func(*TransactionStore)

// WithRemote mirrors mutations to c and uses it as the last load source.
func WithRemote(c remote.Client) Option {
	return func(s *TransactionStore) {
		s.remote = c
	}
}

// WithChecker sets the connectivity signal. Without one the store assumes online.
func WithChecker(c connectivity.Checker) Option {
	return func(s *TransactionStore) {
		if c != nil {
			s.online = c
		}
	}
}

// WithPublisher emits a change event after every successful mutation.
func WithPublisher(p Publisher) Option {
	return func(s *TransactionStore) {
		s.publisher = p
	}
}

// WithPageCache replaces the default response cache.
func WithPageCache(c cache.Cache[[]core.Transaction]) Option {
	return func(s *TransactionStore) {
		if c != nil {
			s.pages = c
		}
	}
}

// WithIDGenerator replaces the millisecond id source.
func WithIDGenerator(g *core.IDGenerator) Option {
	return func(s *TransactionStore) {
		if g != nil {
			s.ids = g
		}
	}
}
