package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mesplan/app"
	"github.com/kilianp07/mesplan/config"
	"github.com/kilianp07/mesplan/infra/logger"
)

var (
	cfgPath  string
	dataPath string
)

var rootCmd = &cobra.Command{
	Use:           "mesplan",
	Short:         "Multi-energy hub capacity and dispatch planner",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "annual data CSV, overrides data.path")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(cfgPath); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dataPath != "" {
		cfg.Data.Path = dataPath
	}
	return cfg, nil
}

// withService loads the configuration, builds the service and runs fn with
// a context canceled on SIGINT or SIGTERM.
func withService(fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return fn(ctx, svc)
}
