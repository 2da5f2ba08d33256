package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show storage, remote and connectivity status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			online := a.backend.Refresh(cmd.Context())
			st := a.backend.Store.Status()

			connectivity := pterm.Red("offline")
			if online {
				connectivity = pterm.Green("online")
			}
			configPath := a.cfg.ConfigPath
			if configPath == "" {
				configPath = "(defaults and environment)"
			}
			storage := a.cfg.Storage.Backend
			if a.cfg.Storage.Backend == "sqlite" {
				storage += " (" + a.cfg.Storage.Path + ")"
			}

			lastError := st.LastError
			if lastError == "" {
				lastError = "-"
			}

			_ = pterm.DefaultTable.WithData(pterm.TableData{
				{"Config", configPath},
				{"Storage", storage},
				{"Remote", st.Remote},
				{"Connectivity", connectivity + " (" + a.cfg.Connectivity.Mode + ")"},
				{"Last error", lastError},
			}).Render()
			return nil
		},
	}
}
