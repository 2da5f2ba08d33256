package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"moneytrack/internal/amqp"
	"moneytrack/internal/cache"
	"moneytrack/internal/connectivity"
	"moneytrack/internal/core"
	"moneytrack/internal/remote"
	remotemem "moneytrack/internal/remote/memory"
	"moneytrack/internal/remote/rest"
	"moneytrack/internal/remote/sheets"
	"moneytrack/internal/services"
	"moneytrack/internal/storage"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// Create wires storage, remote, connectivity, cache and the optional event
// publisher into one store. Everything opened so far is closed on failure.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var closers []func() error
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	kv, err := f.createStorage(config)
	if err != nil {
		return nil, err
	}
	closers = append(closers, kv.Close)

	rc, err := f.CreateRemote(ctx, config)
	if err != nil {
		cleanup()
		return nil, err
	}

	res := &Result{}
	res.Checker, res.prober = f.createChecker(config)

	pages := cache.NewLRUCache[[]core.Transaction](config.CacheSize, config.CacheTTL)
	res.caches = cache.NewManager()
	res.caches.Register(pages)

	opts := []services.Option{
		services.WithChecker(res.Checker),
		services.WithPageCache(pages),
	}
	if rc != nil {
		opts = append(opts, services.WithRemote(rc))
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			opts = append(opts, services.WithPublisher(client))
			closers = append(closers, client.Close)
		}
	}

	res.Store = services.NewTransactionStore(storage.NewTransactionRepository(kv), opts...)
	res.Cleanup = func() error {
		res.Stop()
		return cleanup()
	}

	remoteName := "none"
	if rc != nil {
		remoteName = rc.Name()
	}
	f.logger.Info("Initialized transaction store",
		"storage", config.Storage,
		"remote", remoteName,
		"connectivity", config.Connectivity)
	return res, nil
}

func (f *DefaultFactory) createStorage(config Config) (storage.KV, error) {
	switch config.Storage {
	case SQLiteStorage:
		kv, err := storage.NewSQLiteKV(config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		f.logger.Info("Initialized SQLite storage", "db_path", config.SQLitePath)
		return kv, nil
	case MemoryStorage:
		f.logger.Info("Initialized memory storage")
		return storage.NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Storage)
	}
}

// CreateRemote returns nil when no remote is configured.
func (f *DefaultFactory) CreateRemote(ctx context.Context, config Config) (remote.Client, error) {
	switch config.Remote {
	case NoRemote:
		return nil, nil
	case RESTRemote:
		c, err := rest.New(rest.Options{BaseURL: config.RESTBaseURL, Timeout: config.Timeout})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize REST remote: %w", err)
		}
		return c, nil
	case SheetsRemote:
		c, err := sheets.New(ctx, sheets.Options{
			SpreadsheetID:   config.SheetsSpreadsheetID,
			SheetName:       config.SheetsName,
			CredentialsFile: config.SheetsCredentialsFile,
			CredentialsJSON: config.SheetsCredentialsJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets remote: %w", err)
		}
		return c, nil
	case MemoryRemote:
		return remotemem.New(), nil
	default:
		return nil, fmt.Errorf("unsupported remote type: %s", config.Remote)
	}
}

func (f *DefaultFactory) createChecker(config Config) (connectivity.Checker, *connectivity.Prober) {
	switch config.Connectivity {
	case OfflineMode:
		return connectivity.Static(false), nil
	case ProbeMode:
		if config.ProbeURL != "" {
			p := connectivity.NewProber(config.ProbeURL, config.ProbeInterval, config.ProbeTimeout)
			return p, p
		}
		f.logger.Warn("No probe target configured, assuming online")
		return connectivity.Static(true), nil
	default:
		return connectivity.Static(true), nil
	}
}

// Start launches the connectivity prober and cache cleanup.
func (r *Result) Start(ctx context.Context) error {
	if r.prober != nil {
		if err := r.prober.Start(ctx); err != nil {
			return fmt.Errorf("start prober: %w", err)
		}
	}
	if r.caches != nil {
		r.caches.StartCleanup(cache.DefaultCleanupInterval)
	}
	return nil
}

// Stop halts background work. Safe to call more than once.
func (r *Result) Stop() {
	if r.prober != nil {
		r.prober.Stop()
	}
	if r.caches != nil {
		r.caches.Stop()
	}
}

// Refresh probes connectivity once and reports the result. Without a prober
// it returns the static checker's answer.
func (r *Result) Refresh(ctx context.Context) bool {
	if r.prober != nil {
		return r.prober.Check(ctx)
	}
	return r.Checker.Online()
}
