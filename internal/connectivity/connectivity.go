// Package connectivity answers "are we online?" for the transaction store.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Checker is consulted synchronously before remote calls.
type Checker interface {
	Online() bool
}

// Static is a fixed answer, used for "online"/"offline" modes and tests.
type Static bool

func (s Static) Online() bool { return bool(s) }

// Toggle is a Checker whose answer can be flipped at runtime.
type Toggle struct {
	online atomic.Bool
}

func NewToggle(online bool) *Toggle {
	t := &Toggle{}
	t.online.Store(online)
	return t
}

func (t *Toggle) Online() bool { return t.online.Load() }
func (t *Toggle) Set(online bool) { t.online.Store(online) }

// Prober keeps an online flag fresh by requesting target every interval.
// Any HTTP response counts as online; only transport errors mean offline.
type Prober struct {
	target   string
	interval time.Duration
	client   *http.Client

	online atomic.Bool
	group  singleflight.Group

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewProber(target string, interval, timeout time.Duration) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	p := &Prober{
		target:   target,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	// Assume online until the first probe says otherwise.
	p.online.Store(true)
	return p
}

func (p *Prober) Online() bool {
	return p.online.Load()
}

// Check probes now and updates the flag. Concurrent callers share one request.
func (p *Prober) Check(ctx context.Context) bool {
	v, _, _ := p.group.Do("probe", func() (any, error) {
		ok := p.probe(ctx)
		if prev := p.online.Swap(ok); prev != ok {
			slog.InfoContext(ctx, "Connectivity changed", "online", ok, "target", p.target)
		}
		return ok, nil
	})
	return v.(bool)
}

func (p *Prober) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.target, nil)
	if err != nil {
		slog.WarnContext(ctx, "Invalid probe request", "target", p.target, "error", err)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		slog.DebugContext(ctx, "Probe failed", "target", p.target, "error", err)
		return false
	}
	resp.Body.Close()
	return true
}

// Start probes once immediately, then every interval until Stop.
func (p *Prober) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("prober already started")
	}
	p.started = true

	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.Check(ctx)
		for {
			select {
			case <-ticker.C:
				p.Check(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	slog.InfoContext(ctx, "Connectivity prober started", "target", p.target, "interval", p.interval)
	return nil
}

// Stop ends the probe loop and waits for it. Safe to call more than once.
func (p *Prober) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	p.mu.Unlock()
	<-p.doneCh
}
