package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"moneytrack/internal/core"
)

type EventType string

const (
	EventCreated EventType = "transaction.created"
	EventDeleted EventType = "transaction.deleted"
)

var ErrInvalidEvent = errors.New("invalid event")

// TransactionEvent announces a local mutation of the collection. Created
// events carry the stored record; deleted events only the id.
type TransactionEvent struct {
	Type        EventType         `json:"type"`
	ID          core.ID           `json:"id"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

func NewCreatedEvent(tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Type:        EventCreated,
		ID:          tx.ID,
		Transaction: &tx,
		Timestamp:   time.Now().UTC(),
	}
}

func NewDeletedEvent(id core.ID) *TransactionEvent {
	return &TransactionEvent{
		Type:      EventDeleted,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and sanity-checks a message body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Type {
	case EventCreated:
		if ev.Transaction == nil {
			return nil, fmt.Errorf("%w: %s without transaction", ErrInvalidEvent, ev.Type)
		}
	case EventDeleted:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	if ev.ID <= 0 {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	return &ev, nil
}
