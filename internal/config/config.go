package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	applog "moneytrack/internal/log"
)

// EnvPrefix is prepended to every environment variable, e.g.
// MONEYTRACK_SERVER_PORT or MONEYTRACK_REMOTE_BASE_URL.
const EnvPrefix = "MONEYTRACK"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Cache        CacheConfig        `mapstructure:"cache"`
	AMQP         AMQPConfig         `mapstructure:"amqp"`
	Worker       WorkerConfig       `mapstructure:"worker"`

	// ConfigPath is the file that was read, empty when running on env and defaults.
	ConfigPath string `mapstructure:"-"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`

	// RateLimit is the number of mutating requests allowed per client per minute.
	RateLimit       int           `mapstructure:"rate_limit"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type RemoteConfig struct {
	Backend string        `mapstructure:"backend"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Sheets  SheetsConfig  `mapstructure:"sheets"`
}

type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	SheetName       string `mapstructure:"sheet_name"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

type ConnectivityConfig struct {
	Mode     string        `mapstructure:"mode"`
	ProbeURL string        `mapstructure:"probe_url"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// WorkerConfig drives the event consumer.
type WorkerConfig struct {
	ReplicaPath   string `mapstructure:"replica_path"`
	ForwardRemote bool   `mapstructure:"forward_remote"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

// Backend and mode names.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"

	RemoteNone   = "none"
	RemoteREST   = "rest"
	RemoteSheets = "sheets"
	RemoteMemory = "memory"

	ConnectivityProbe   = "probe"
	ConnectivityOnline  = "online"
	ConnectivityOffline = "offline"
)

var (
	validStorage      = []string{StorageMemory, StorageSQLite}
	validRemote       = []string{RemoteMemory, RemoteNone, RemoteREST, RemoteSheets}
	validConnectivity = []string{ConnectivityOffline, ConnectivityOnline, ConnectivityProbe}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.rate_limit", 30)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", applog.FormatText)

	v.SetDefault("storage.backend", StorageSQLite)
	v.SetDefault("storage.path", "./data/moneytrack.db")

	v.SetDefault("remote.backend", RemoteREST)
	v.SetDefault("remote.base_url", "https://67135de66c5f5ced66262fd3.mockapi.io/money")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("remote.sheets.spreadsheet_id", "")
	v.SetDefault("remote.sheets.sheet_name", "Transactions")
	v.SetDefault("remote.sheets.credentials_file", "")
	v.SetDefault("remote.sheets.credentials_json", "")

	v.SetDefault("connectivity.mode", ConnectivityProbe)
	v.SetDefault("connectivity.probe_url", "")
	v.SetDefault("connectivity.interval", 30*time.Second)
	v.SetDefault("connectivity.timeout", 3*time.Second)

	v.SetDefault("cache.size", 64)
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "moneytrack")
	v.SetDefault("amqp.queue", "transaction_events")

	v.SetDefault("worker.replica_path", "./data/moneytrack-replica.db")
	v.SetDefault("worker.forward_remote", false)
}

// Load reads defaults, then the optional YAML file, then MONEYTRACK_*
// environment variables. A missing configFile is an error only when it was
// named explicitly.
func Load(configFile string) (*Config, error) {
	return LoadWith(viper.New(), configFile)
}

func LoadWith(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("moneytrack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "moneytrack"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	return cfg, nil
}

// RemoteEnabled reports whether a remote mirror is configured at all.
func (c *Config) RemoteEnabled() bool {
	return c.Remote.Backend != "" && c.Remote.Backend != RemoteNone
}

// AMQPEnabled reports whether change events should be published.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQP.URL) != ""
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Server.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	if c.Server.RateLimit < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.Server.RateLimit))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.Server.ShutdownTimeout))
	}

	if !applog.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of [trace debug info warn error]", c.Log.Level))
	}
	if c.Log.Format != applog.FormatText && c.Log.Format != applog.FormatJSON {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be one of [json text]", c.Log.Format))
	}

	if !slices.Contains(validStorage, c.Storage.Backend) {
		errs = append(errs, fmt.Sprintf("invalid storage backend '%s': must be one of %v", c.Storage.Backend, validStorage))
	}
	if c.Storage.Backend == StorageSQLite && strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, "SQLite database path cannot be empty when using sqlite storage")
	}

	if !slices.Contains(validRemote, c.Remote.Backend) {
		errs = append(errs, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.Remote.Backend, validRemote))
	}
	if c.Remote.Backend == RemoteREST {
		if u, err := url.Parse(c.Remote.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid remote base URL '%s': must be an absolute http(s) URL", c.Remote.BaseURL))
		}
	}
	if c.RemoteEnabled() && c.Remote.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid remote timeout %v: must be positive", c.Remote.Timeout))
	}
	if c.Remote.Backend == RemoteSheets {
		s := c.Remote.Sheets
		if s.SpreadsheetID == "" {
			errs = append(errs, "Google Spreadsheet ID is required when using sheets remote")
		}
		if s.CredentialsFile == "" && s.CredentialsJSON == "" {
			errs = append(errs, "either credentials_file or credentials_json must be provided for sheets remote")
		}
		if s.CredentialsFile != "" {
			if _, err := os.Stat(s.CredentialsFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google credentials file does not exist: %s", s.CredentialsFile))
			}
		}
	}

	if !slices.Contains(validConnectivity, c.Connectivity.Mode) {
		errs = append(errs, fmt.Sprintf("invalid connectivity mode '%s': must be one of %v", c.Connectivity.Mode, validConnectivity))
	}
	if c.Connectivity.Mode == ConnectivityProbe {
		if c.Connectivity.Interval < time.Second {
			errs = append(errs, fmt.Sprintf("invalid probe interval %v: must be at least 1 second", c.Connectivity.Interval))
		}
		if c.Connectivity.Timeout <= 0 {
			errs = append(errs, fmt.Sprintf("invalid probe timeout %v: must be positive", c.Connectivity.Timeout))
		}
		if c.Connectivity.ProbeURL != "" {
			if u, err := url.Parse(c.Connectivity.ProbeURL); err != nil || u.Host == "" {
				errs = append(errs, fmt.Sprintf("invalid probe URL '%s'", c.Connectivity.ProbeURL))
			}
		}
	}

	if c.Cache.Size < 1 {
		errs = append(errs, fmt.Sprintf("invalid cache size %d: must be at least 1", c.Cache.Size))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must be positive", c.Cache.TTL))
	}

	if c.AMQPEnabled() {
		if parsedURL, err := url.Parse(c.AMQP.URL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQP.URL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQP.Exchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQP.Queue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings the event consumer needs on top of Validate.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var errs []string
	if !c.AMQPEnabled() {
		errs = append(errs, "AMQP URL is required to consume events")
	}
	if strings.TrimSpace(c.Worker.ReplicaPath) == "" && !c.Worker.ForwardRemote {
		errs = append(errs, "worker needs a replica path, forward_remote, or both")
	}
	if c.Worker.ForwardRemote && !c.RemoteEnabled() {
		errs = append(errs, "worker.forward_remote requires a remote backend")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// ProbeTarget returns the URL the connectivity prober should hit: the
// explicit probe URL, else the REST base URL.
func (c *Config) ProbeTarget() string {
	if c.Connectivity.ProbeURL != "" {
		return c.Connectivity.ProbeURL
	}
	if c.Remote.Backend == RemoteREST {
		return c.Remote.BaseURL
	}
	return ""
}
