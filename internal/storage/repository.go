package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"moneytrack/internal/core"
)

// TransactionsKey is the single key holding the whole collection.
const TransactionsKey = "transactions"

var ErrMalformed = errors.New("malformed stored data")

// TransactionRepository reads and writes the full transaction collection as
// one JSON array under TransactionsKey.
type TransactionRepository struct {
	kv  KV
	key string
}

func NewTransactionRepository(kv KV) *TransactionRepository {
	return &TransactionRepository{kv: kv, key: TransactionsKey}
}

// ReadAll returns the stored collection. ErrNotFound means nothing was ever
// written; a stored "null" or empty value decodes to an empty collection.
func (r *TransactionRepository) ReadAll(ctx context.Context) ([]core.Transaction, error) {
	raw, err := r.kv.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.key, err)
	}
	if len(raw) == 0 {
		return []core.Transaction{}, nil
	}
	var txs []core.Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", r.key, ErrMalformed, err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

// WriteAll replaces the stored collection.
func (r *TransactionRepository) WriteAll(ctx context.Context, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	raw, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.key, err)
	}
	if err := r.kv.Put(ctx, r.key, raw); err != nil {
		return fmt.Errorf("write %s: %w", r.key, err)
	}
	return nil
}

func (r *TransactionRepository) Close() error {
	return r.kv.Close()
}
