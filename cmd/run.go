package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mesplan/app"
	"github.com/kilianp07/mesplan/core/hub"
	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/planner"
	"github.com/kilianp07/mesplan/scenario"
)

var (
	scenarioPaths []string
	scenarioDir   string
	lpOut         string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan one or more scenarios",
	Long: "Plan every scenario given with -s or found in --dir. Failures are " +
		"reported per scenario; an unbounded model halts the batch.",
	RunE: runScenarios,
}

var lpCmd = &cobra.Command{
	Use:   "lp",
	Short: "Write the linear program of a scenario in LP format",
	RunE:  dumpLP,
}

func init() {
	runCmd.Flags().StringArrayVarP(&scenarioPaths, "scenario", "s", nil, "scenario file (repeatable)")
	runCmd.Flags().StringVar(&scenarioDir, "dir", "", "directory of scenario files")
	lpCmd.Flags().StringArrayVarP(&scenarioPaths, "scenario", "s", nil, "scenario file")
	lpCmd.Flags().StringVarP(&lpOut, "out", "o", "", "output file (stdout when empty)")
	rootCmd.AddCommand(runCmd, lpCmd)
}

func loadScenarios(svc *app.Service) ([]model.ScenarioConfig, error) {
	data, err := svc.Data()
	if err != nil {
		return nil, err
	}
	var cfgs []model.ScenarioConfig
	if scenarioDir != "" {
		if cfgs, err = scenario.LoadDir(scenarioDir, data); err != nil {
			return nil, err
		}
	}
	for _, p := range scenarioPaths {
		c, err := scenario.LoadConfig(p, data)
		if err != nil {
			return nil, err
		}
		cfgs = append(cfgs, c)
	}
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no scenario given: use -s or --dir")
	}
	return cfgs, nil
}

func runScenarios(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *app.Service) error {
		cfgs, err := loadScenarios(svc)
		if err != nil {
			return err
		}
		rep, err := svc.Run(ctx, cfgs)
		if err != nil {
			return err
		}
		if ok, failed, skipped := rep.Counts(); failed+skipped > 0 {
			return fmt.Errorf("%d of %d scenarios did not solve", failed+skipped, ok+failed+skipped)
		}
		return nil
	})
}

func dumpLP(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *app.Service) error {
		cfgs, err := loadScenarios(svc)
		if err != nil {
			return err
		}
		sc, err := planner.Sample(cfgs[0])
		if err != nil {
			return err
		}
		m, err := hub.Build(sc)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if lpOut != "" {
			f, err := os.Create(lpOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return m.Program.WriteLP(w)
	})
}
