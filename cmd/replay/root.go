package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/structimb-edge/internal/config"
	"github.com/Rajchodisetti/structimb-edge/internal/observ"
)

const (
	envConfig   = "STRUCTIMB_CONFIG"
	envLogLevel = "STRUCTIMB_LOG_LEVEL"
)

type app struct {
	configPath string
	logLevel   string

	cfg config.Root
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "replay",
		Short:         "Replay recorded top-of-book snapshots through the structural-imbalance strategy",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (env "+envConfig+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (env "+envLogLevel+")")

	root.AddCommand(a.runCmd(), a.configCmd(), a.tradesCmd())
	return root
}

// init loads .env, the config file and the logger. Flags win over the
// environment, which wins over the config file.
func (a *app) init(cmd *cobra.Command) error {
	_ = godotenv.Load() // optional

	path := a.configPath
	if path == "" {
		path = os.Getenv(envConfig)
	}
	a.cfg = config.Default()
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	level := a.logLevel
	if level == "" {
		level = os.Getenv(envLogLevel)
	}
	if level == "" {
		level = a.cfg.Log.Level
	}
	a.cfg.Log.Level = level
	a.log = observ.NewLogger(level, cmd.ErrOrStderr())
	observ.SetLogger(a.log)
	return nil
}
