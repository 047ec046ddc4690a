package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"rosterd/internal/config"
	"rosterd/internal/domain"
	"rosterd/internal/sim"

	"github.com/spf13/cobra"
)

var (
	watchScenario string
	watchViewer   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tick in real time and apply config edits as they are saved",
	Long: `Runs the engine at the configured tick rate. Every write to --config is
reloaded and applied to the running engine; the resulting board is printed.`,
	Args: cobra.NoArgs,
	RunE: watchConfig,
}

func init() {
	watchCmd.Flags().StringVar(&watchScenario, "scenario", "", "scenario whose entities join at start (steps are ignored)")
	watchCmd.Flags().StringVar(&watchViewer, "viewer", "", "entity whose board is printed")
}

func watchConfig(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		return errors.New("watch requires --config")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var entities []sim.EntitySpec
	viewer := watchViewer
	if watchScenario != "" {
		sc, err := sim.LoadScenario(watchScenario)
		if err != nil {
			return err
		}
		entities = sc.Entities
		if viewer == "" {
			viewer = sc.Viewer
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cw, err := sim.NewConfigWatcher(configPath)
	if err != nil {
		return err
	}
	go cw.Run(ctx)

	out := cmd.OutOrStdout()
	runner := sim.NewRunner(ctx, cfg, logger)
	runner.Join(ctx, entities...)
	fmt.Fprintln(out, runner.Render(viewer))

	ticker := time.NewTicker(domain.TickDuration(cfg.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			runner.Stack.Stop(cmd.Context())
			return nil
		case next := <-cw.Changes:
			runner.Stack.ApplyConfig(ctx, next)
			ticker.Reset(domain.TickDuration(next.TickRate))
			logger.Info("reloaded %s", configPath)
			fmt.Fprintln(out, runner.Render(viewer))
		case err := <-cw.Errors:
			logger.Warn("config not reloaded: %v", err)
		case <-ticker.C:
			for _, ev := range runner.Advance(ctx) {
				logEvent(runner.Tick(), ev)
			}
		}
	}
}
