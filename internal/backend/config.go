package backend

import (
	"fmt"

	"moneytrack/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	c := Config{
		Storage:    StorageType(appConfig.Storage.Backend),
		SQLitePath: appConfig.Storage.Path,

		Remote:      RemoteType(appConfig.Remote.Backend),
		RESTBaseURL: appConfig.Remote.BaseURL,
		Timeout:     appConfig.Remote.Timeout,

		SheetsSpreadsheetID:   appConfig.Remote.Sheets.SpreadsheetID,
		SheetsName:            appConfig.Remote.Sheets.SheetName,
		SheetsCredentialsFile: appConfig.Remote.Sheets.CredentialsFile,
		SheetsCredentialsJSON: appConfig.Remote.Sheets.CredentialsJSON,

		Connectivity:  ConnectivityMode(appConfig.Connectivity.Mode),
		ProbeURL:      appConfig.ProbeTarget(),
		ProbeInterval: appConfig.Connectivity.Interval,
		ProbeTimeout:  appConfig.Connectivity.Timeout,

		CacheSize: appConfig.Cache.Size,
		CacheTTL:  appConfig.Cache.TTL,

		AMQPURL:      appConfig.AMQP.URL,
		AMQPExchange: appConfig.AMQP.Exchange,
		AMQPQueue:    appConfig.AMQP.Queue,
	}
	if c.Remote == "" {
		c.Remote = NoRemote
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the combinations the factory relies on.
func (c Config) Validate() error {
	if !c.Storage.IsValid() {
		return fmt.Errorf("invalid storage type: %s", c.Storage)
	}
	if c.Storage == SQLiteStorage && c.SQLitePath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite storage")
	}
	if !c.Remote.IsValid() {
		return fmt.Errorf("invalid remote type: %s", c.Remote)
	}
	if c.Remote == SheetsRemote && c.SheetsSpreadsheetID == "" {
		return fmt.Errorf("Google Spreadsheet ID is required for sheets remote")
	}
	if !c.Connectivity.IsValid() {
		return fmt.Errorf("invalid connectivity mode: %s", c.Connectivity)
	}
	return nil
}
