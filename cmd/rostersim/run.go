package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"rosterd/internal/app"
	"rosterd/internal/config"
	"rosterd/internal/sim"

	"github.com/spf13/cobra"
)

var (
	runViewer string
	runEvery  int64
)

var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Play a scenario and print the boards it produces",
	Long: `Plays a scripted scenario on a simulated clock. The board of the viewer is
printed after every step marked render, every --every ticks, and at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func init() {
	runCmd.Flags().StringVar(&runViewer, "viewer", "", "entity whose board is printed (defaults to the scenario viewer)")
	runCmd.Flags().Int64Var(&runEvery, "every", 0, "also print the board every N ticks")
}

// scenarioConfig resolves the config file: the flag wins, then the scenario's
// own config relative to the scenario file.
func scenarioConfig(scenarioPath string, sc *sim.Scenario) (*config.Config, error) {
	path := configPath
	if path == "" && sc.Config != "" {
		path = sc.Config
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(scenarioPath), path)
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := sim.LoadScenario(args[0])
	if err != nil {
		return err
	}
	cfg, err := scenarioConfig(args[0], sc)
	if err != nil {
		return err
	}
	viewer := runViewer
	if viewer == "" {
		viewer = sc.Viewer
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	runner := sim.NewRunner(ctx, cfg, logger)
	runner.Run(ctx, sc, func(f sim.Frame) {
		for _, ev := range f.Events {
			logEvent(f.Tick, ev)
		}
		if f.Render || (runEvery > 0 && f.Tick%runEvery == 0) {
			fmt.Fprintln(out, runner.Render(viewer))
		}
	})
	fmt.Fprintln(out, runner.Render(viewer))

	runner.Stack.Stop(context.Background())
	return nil
}

func logEvent(tick int64, ev app.Event) {
	l := logger.WithField("tick", tick)
	switch p := ev.Payload.(type) {
	case app.PassAppliedPayload:
		l.Debug("pass: %d ranked, %d excluded, %d moves, forced=%v", p.Population, p.Excluded, p.Moves, p.Forced)
	case app.WatchdogRepairedPayload:
		l.Info("watchdog repaired boards %v", p.Boards)
	case app.EntityRemovedPayload:
		l.Info("removed %s, pruned %d groups", p.EntityID, p.Pruned)
	default:
		l.Info("%s", ev.Kind)
	}
}
