package main

import (
	"context"
	"fmt"
	"unicode"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"moneytrack/internal/backend"
	"moneytrack/internal/cli"
	"moneytrack/internal/config"
	applog "moneytrack/internal/log"
)

// app holds what every subcommand needs once the root pre-run has finished.
type app struct {
	cfgFile  string
	logLevel string

	cfg     *config.Config
	logger  *applog.Logger
	backend *backend.Result
}

func execute(args []string) int {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		pterm.Error.Println(capitalize(err.Error()))
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "moneytrack",
		Short: "moneytrack records expenses locally and mirrors them to a remote",
		Long: `moneytrack records expenses with an optional receipt photo and location.

Records are always kept in local storage. When a remote is configured and
reachable they are mirrored there too; otherwise they are kept as unsynced.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "set the config file path")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newAddCmd(a))
	rootCmd.AddCommand(newListCmd(a))
	rootCmd.AddCommand(newDeleteCmd(a))
	rootCmd.AddCommand(newSummaryCmd(a))
	rootCmd.AddCommand(newStatusCmd(a))

	return rootCmd
}

// init loads configuration, sets up logging and wires the store.
func (a *app) init(ctx context.Context) error {
	cli.LoadEnvFile()

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cli.SetupLogger(cfg.Log, applog.ComponentApp)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	res, err := backend.NewFactory(a.logger.WithComponent(applog.ComponentBackend).Logger).Create(ctx, bcfg)
	if err != nil {
		return err
	}
	a.backend = res
	return nil
}

func (a *app) close() error {
	if a.backend == nil || a.backend.Cleanup == nil {
		return nil
	}
	err := a.backend.Cleanup()
	a.backend = nil
	return err
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
