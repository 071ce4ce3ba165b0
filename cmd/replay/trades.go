package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/structimb-edge/internal/backtest"
	"github.com/Rajchodisetti/structimb-edge/internal/journal"
)

func (a *app) tradesCmd() *cobra.Command {
	var (
		path  string
		runID string
		list  bool
	)
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Summarise trades recorded in a journal file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = a.cfg.Backtest.JournalPath
			}
			if path == "" {
				return fmt.Errorf("no journal path")
			}
			trades, err := journal.Load(path, runID)
			if err != nil {
				return fmt.Errorf("load journal: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if list {
				return enc.Encode(trades)
			}
			return enc.Encode(backtest.Summarize(trades))
		},
	}
	cmd.Flags().StringVar(&path, "journal", "", "journal path (default from config)")
	cmd.Flags().StringVar(&runID, "run-id", "", "only this run")
	cmd.Flags().BoolVar(&list, "list", false, "print every trade instead of the summary")
	return cmd
}
