// Package sweep derives scenario variants from a base configuration along
// one or more parameter axes and tabulates their outcomes.
package sweep

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kilianp07/mesplan/core/model"
)

// DefaultDays are the representative-day counts of the days sweep.
var DefaultDays = []int{2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 30, 50}

// DefaultMultipliers are the price and investment multipliers of the gas
// sweeps, from the base value down to free.
var DefaultMultipliers = []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1, 0}

// DefaultPenalties are the shed penalties of the penalty sweep.
var DefaultPenalties = []float64{20000, 10000, 5000, 2000, 1000, 500, 200}

// Axis is one swept parameter.
type Axis struct {
	// Name is the column name of the parameter in sweep rows.
	Name   string
	Values []float64
	// Prefix starts the scenario id fragment of every value.
	Prefix string
	// Percent renders values as integer percentages in scenario ids.
	Percent bool
	Apply   func(cfg *model.ScenarioConfig, v float64)
}

func (a Axis) label(v float64) string {
	if a.Percent {
		return a.Prefix + strconv.Itoa(int(math.Round(v*100)))
	}
	return a.Prefix + strconv.FormatFloat(v, 'f', -1, 64)
}

func (a Axis) validate() error {
	if a.Name == "" || a.Apply == nil {
		return fmt.Errorf("sweep: axis needs a name and an apply function")
	}
	if len(a.Values) == 0 {
		return fmt.Errorf("sweep: axis %s has no values", a.Name)
	}
	for _, v := range a.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("sweep: axis %s: invalid value %v", a.Name, v)
		}
	}
	return nil
}

// DaysAxis varies the number of representative days.
func DaysAxis(days []int) Axis {
	vals := make([]float64, len(days))
	for i, d := range days {
		vals[i] = float64(d)
	}
	return Axis{
		Name:   "num_days",
		Values: vals,
		Prefix: "days",
		Apply: func(cfg *model.ScenarioConfig, v float64) {
			cfg.Knobs.NumRepresentativeDays = int(v)
		},
	}
}

// GasPriceAxis scales the gas import price. A multiplier of 0 makes gas
// free.
func GasPriceAxis(mults []float64) Axis {
	return Axis{
		Name:    "gas_price_multiplier",
		Values:  mults,
		Prefix:  "p",
		Percent: true,
		Apply: func(cfg *model.ScenarioConfig, v float64) {
			if cfg.Knobs.PriceMultipliers == nil {
				cfg.Knobs.PriceMultipliers = map[model.Carrier]float64{}
			}
			cfg.Knobs.PriceMultipliers[model.Gas] = v
		},
	}
}

// GasInvestmentAxis scales the investment cost of every converter fed by
// gas.
func GasInvestmentAxis(mults []float64) Axis {
	return Axis{
		Name:    "gas_invest_multiplier",
		Values:  mults,
		Prefix:  "i",
		Percent: true,
		Apply: func(cfg *model.ScenarioConfig, v float64) {
			if cfg.Knobs.InvestmentMultipliers == nil {
				cfg.Knobs.InvestmentMultipliers = map[string]float64{}
			}
			for _, id := range GasDevices(cfg.Devices) {
				cfg.Knobs.InvestmentMultipliers[id] = v
			}
		},
	}
}

// PenaltyAxis sets a uniform shed penalty, dropping the per-carrier
// overrides of both the knobs and the carrier specs.
func PenaltyAxis(penalties []float64) Axis {
	return Axis{
		Name:   "shed_penalty",
		Values: penalties,
		Prefix: "pen",
		Apply: func(cfg *model.ScenarioConfig, v float64) {
			cfg.Knobs.ShedPenalty = v
			cfg.Knobs.ShedPenaltyByCarrier = nil
			for i := range cfg.Carriers {
				cfg.Carriers[i].ShedPenalty = nil
			}
		},
	}
}

// GasDevices returns the ids of the converters whose input carrier is gas.
func GasDevices(devs []model.Device) []string {
	var ids []string
	for _, d := range devs {
		if d.IsStorage() {
			continue
		}
		if in, _ := d.Ports(); in == model.Gas {
			ids = append(ids, d.ID)
		}
	}
	return ids
}
