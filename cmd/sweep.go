package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mesplan/app"
	"github.com/kilianp07/mesplan/core/sweep"
	"github.com/kilianp07/mesplan/scenario"
)

var (
	sweepBase   string
	sweepDays   []int
	sweepValues []float64
	sweepInvest []float64
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Solve variants of a base scenario along one or two parameters",
}

func init() {
	sweepCmd.PersistentFlags().StringVarP(&sweepBase, "scenario", "s", "", "base scenario file")
	_ = sweepCmd.MarkPersistentFlagRequired("scenario")

	days := &cobra.Command{
		Use:   "days",
		Short: "Vary the number of representative days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep("days", sweep.DaysAxis(orInts(sweepDays, sweep.DefaultDays)))
		},
	}
	days.Flags().IntSliceVar(&sweepDays, "values", nil, "day counts")

	gas := &cobra.Command{
		Use:   "gas",
		Short: "Vary the gas price multiplier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep("gas_price", sweep.GasPriceAxis(orFloats(sweepValues, sweep.DefaultMultipliers)))
		},
	}
	gas.Flags().Float64SliceVar(&sweepValues, "values", nil, "price multipliers")

	penalty := &cobra.Command{
		Use:   "penalty",
		Short: "Vary the shed penalty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep("penalty", sweep.PenaltyAxis(orFloats(sweepValues, sweep.DefaultPenalties)))
		},
	}
	penalty.Flags().Float64SliceVar(&sweepValues, "values", nil, "penalties per MWh")

	viability := &cobra.Command{
		Use:   "gas-viability",
		Short: "Vary gas price and gas converter investment together",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep("gas_viability",
				sweep.GasPriceAxis(orFloats(sweepValues, sweep.DefaultMultipliers)),
				sweep.GasInvestmentAxis(orFloats(sweepInvest, sweep.DefaultMultipliers)),
			)
		},
	}
	viability.Flags().Float64SliceVar(&sweepValues, "price", nil, "price multipliers")
	viability.Flags().Float64SliceVar(&sweepInvest, "invest", nil, "investment multipliers")

	sweepCmd.AddCommand(days, gas, penalty, viability)
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(name string, axes ...sweep.Axis) error {
	return withService(func(ctx context.Context, svc *app.Service) error {
		data, err := svc.Data()
		if err != nil {
			return err
		}
		base, err := scenario.LoadConfig(sweepBase, data)
		if err != nil {
			return err
		}
		rows, err := svc.Sweep(ctx, name, base, axes...)
		if err != nil {
			return err
		}
		var failed int
		for _, r := range rows {
			if r.Error != "" {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d variants did not solve", failed, len(rows))
		}
		return nil
	})
}

func orInts(v, def []int) []int {
	if len(v) == 0 {
		return def
	}
	return v
}

func orFloats(v, def []float64) []float64 {
	if len(v) == 0 {
		return def
	}
	return v
}
