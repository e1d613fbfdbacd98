package sweep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/mesplan/core/batch"
	"github.com/kilianp07/mesplan/core/model"
)

// Param is the value of one axis for a variant.
type Param struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Variant is one derived scenario.
type Variant struct {
	Params []Param
	Config model.ScenarioConfig
}

// Grid returns the cartesian product of the axes applied to base, with the
// first axis varying slowest. Every variant is an independent clone of base.
func Grid(base model.ScenarioConfig, axes ...Axis) ([]Variant, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("sweep: no axes")
	}
	for _, a := range axes {
		if err := a.validate(); err != nil {
			return nil, err
		}
	}
	n := 1
	for _, a := range axes {
		n *= len(a.Values)
	}
	out := make([]Variant, 0, n)
	idx := make([]int, len(axes))
	for k := 0; k < n; k++ {
		cfg := base.Clone()
		params := make([]Param, len(axes))
		labels := make([]string, len(axes))
		for j, a := range axes {
			v := a.Values[idx[j]]
			a.Apply(&cfg, v)
			params[j] = Param{Name: a.Name, Value: v}
			labels[j] = a.label(v)
		}
		cfg.ID = base.ID + "_" + strings.Join(labels, "_")
		out = append(out, Variant{Params: params, Config: cfg})
		for j := len(axes) - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < len(axes[j].Values) {
				break
			}
			idx[j] = 0
		}
	}
	return out, nil
}

// Row is one line of a sweep table.
type Row struct {
	Scenario        string                    `json:"scenario"`
	Params          []Param                   `json:"params"`
	Status          batch.Status              `json:"status"`
	Error           string                    `json:"error,omitempty"`
	TotalCost       float64                   `json:"total_annual_cost"`
	InvestmentCost  float64                   `json:"investment_cost"`
	OperationalCost float64                   `json:"operational_cost"`
	Import          map[model.Carrier]float64 `json:"import_mwh"`
	Shed            float64                   `json:"shed_mwh"`
	SolveTime       time.Duration             `json:"solve_time"`
	// GasInvestedCapacity sums the installed capacity of gas-fed
	// converters.
	GasInvestedCapacity float64 `json:"gas_invested_capacity"`
}

// Rows pairs every variant with its outcome. Variants and report outcomes
// must be in the same order.
func Rows(variants []Variant, rep *batch.Report) []Row {
	rows := make([]Row, len(variants))
	for i, v := range variants {
		row := Row{Scenario: v.Config.ID, Params: v.Params, Status: batch.StatusSkipped}
		if rep != nil && i < len(rep.Outcomes) {
			o := rep.Outcomes[i]
			row.Status = o.Status
			if o.Err != nil {
				row.Error = o.Err.Error()
			}
			if s := o.Summary(); s != nil {
				row.TotalCost = s.TotalCost
				row.InvestmentCost = s.InvestmentCost
				row.OperationalCost = s.OperationalCost
				row.Import = s.Import
				row.Shed = s.TotalShed()
				row.SolveTime = s.SolveTime
				for _, id := range GasDevices(v.Config.Devices) {
					row.GasInvestedCapacity += s.Capacity[id]
				}
			}
		}
		rows[i] = row
	}
	return rows
}

// Run derives the variants, solves them with runner and tabulates the
// outcomes. A halted batch still returns the rows gathered so far.
func Run(ctx context.Context, runner *batch.Runner, base model.ScenarioConfig, axes ...Axis) ([]Row, *batch.Report, error) {
	variants, err := Grid(base, axes...)
	if err != nil {
		return nil, nil, err
	}
	cfgs := make([]model.ScenarioConfig, len(variants))
	for i, v := range variants {
		cfgs[i] = v.Config
	}
	rep, err := runner.Run(ctx, cfgs)
	return Rows(variants, rep), rep, err
}
