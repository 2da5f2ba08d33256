package core

import (
	"sync"
	"time"
)

// IDGenerator hands out millisecond-timestamp ids that never repeat or go
// backwards within one process, even when the clock does.
type IDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns the next id and the instant it was derived from.
func (g *IDGenerator) Next() (ID, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	at := g.now()
	v := at.UnixMilli()
	if v <= g.last {
		v = g.last + 1
	}
	g.last = v
	return ID(v), at
}

// Observe moves the generator past an id seen elsewhere (e.g. loaded from storage).
func (g *IDGenerator) Observe(id ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int64(id) > g.last {
		g.last = int64(id)
	}
}
