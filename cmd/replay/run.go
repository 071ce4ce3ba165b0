package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/structimb-edge/internal/backtest"
	"github.com/Rajchodisetti/structimb-edge/internal/feed"
	"github.com/Rajchodisetti/structimb-edge/internal/journal"
	"github.com/Rajchodisetti/structimb-edge/internal/observ"
)

func (a *app) runCmd() *cobra.Command {
	var (
		input       string
		journalPath string
		speed       string
		metricsAddr string
		runID       string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a JSONL snapshot file and print the result summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("journal") {
				cfg.Backtest.JournalPath = journalPath
			}
			if speed != "" {
				cfg.Backtest.Speed = speed
			}
			if metricsAddr != "" {
				cfg.Backtest.MetricsAddr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			src, err := feed.OpenJSONL(input)
			if err != nil {
				return err
			}
			defer src.Close()

			if runID == "" {
				runID = uuid.NewString()
			}
			opts := []backtest.Option{backtest.WithLogger(a.log), backtest.WithRunID(runID)}
			if cfg.Backtest.JournalPath != "" {
				sink, err := journal.NewFileSink(cfg.Backtest.JournalPath, runID)
				if err != nil {
					return err
				}
				opts = append(opts, backtest.WithSink(sink))
			}
			r, err := backtest.NewRunner(cfg, src, opts...)
			if err != nil {
				return err
			}

			if cfg.Backtest.MetricsAddr != "" {
				srv := observ.Serve(cfg.Backtest.MetricsAddr)
				observ.Log("metrics_listening", map[string]any{"addr": cfg.Backtest.MetricsAddr})
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}

			observ.Log("replay_started", map[string]any{
				"run_id":      runID,
				"input":       input,
				"speed":       cfg.Backtest.Speed,
				"config_hash": cfg.Hash(),
			})
			res, runErr := r.Run(cmd.Context())
			observ.Log("replay_finished", map[string]any{
				"run_id":    runID,
				"snapshots": res.Snapshots,
				"trades":    res.TotalTrades,
				"net_pnl":   res.NetPnL.String(),
				"ok":        runErr == nil,
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "snapshot file, one JSON object per line")
	cmd.Flags().StringVar(&journalPath, "journal", "", "trade journal path (empty disables)")
	cmd.Flags().StringVar(&speed, "speed", "", "max | fast | realtime")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&runID, "run-id", "", "fixed run ID (default random)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
