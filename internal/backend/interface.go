package backend

import (
	"context"
	"time"

	"moneytrack/internal/cache"
	"moneytrack/internal/connectivity"
	"moneytrack/internal/remote"
	"moneytrack/internal/services"
)

// CleanupFunc releases the resources behind a Result.
type CleanupFunc func() error

// Result is a fully wired transaction store plus the background pieces the
// caller must start and stop.
type Result struct {
	Store   *services.TransactionStore
	Checker connectivity.Checker
	Cleanup CleanupFunc

	prober *connectivity.Prober
	caches *cache.Manager
}

// Factory creates stores based on configuration.
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
	CreateRemote(ctx context.Context, config Config) (remote.Client, error)
}

type Config struct {
	Storage    StorageType
	SQLitePath string

	Remote      RemoteType
	RESTBaseURL string
	Timeout     time.Duration

	SheetsSpreadsheetID   string
	SheetsName            string
	SheetsCredentialsFile string
	SheetsCredentialsJSON string

	Connectivity  ConnectivityMode
	ProbeURL      string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	CacheSize int
	CacheTTL  time.Duration

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type StorageType string

const (
	SQLiteStorage StorageType = "sqlite"
	MemoryStorage StorageType = "memory"
)

func (t StorageType) String() string { return string(t) }

func (t StorageType) IsValid() bool {
	switch t {
	case SQLiteStorage, MemoryStorage:
		return true
	default:
		return false
	}
}

type RemoteType string

const (
	NoRemote     RemoteType = "none"
	RESTRemote   RemoteType = "rest"
	SheetsRemote RemoteType = "sheets"
	MemoryRemote RemoteType = "memory"
)

func (t RemoteType) String() string { return string(t) }

func (t RemoteType) IsValid() bool {
	switch t {
	case NoRemote, RESTRemote, SheetsRemote, MemoryRemote:
		return true
	default:
		return false
	}
}

type ConnectivityMode string

const (
	ProbeMode   ConnectivityMode = "probe"
	OnlineMode  ConnectivityMode = "online"
	OfflineMode ConnectivityMode = "offline"
)

func (m ConnectivityMode) IsValid() bool {
	switch m {
	case ProbeMode, OnlineMode, OfflineMode:
		return true
	default:
		return false
	}
}
