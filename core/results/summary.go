package results

import (
	"math"
	"time"

	"github.com/kilianp07/mesplan/core/hub"
	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/solver"
)

// capacityEpsilon hides round-off capacities in InstalledDevices.
const capacityEpsilon = 1e-6

// Summary is the structured record handed to reporting. Energy figures are
// annual MWh, costs are annual currency units.
type Summary struct {
	Scenario  string        `json:"scenario"`
	Status    solver.Status `json:"status"`
	SolveTime time.Duration `json:"solve_time"`
	Objective float64       `json:"objective"`

	TotalCost       float64 `json:"total_cost"`
	InvestmentCost  float64 `json:"investment_cost"`
	OperationalCost float64 `json:"operational_cost"`
	ImportCost      float64 `json:"import_cost"`
	ExportRevenue   float64 `json:"export_revenue"`
	ShedCost        float64 `json:"shed_cost"`

	Capacity           map[string]float64 `json:"capacity"`
	InvestmentByDevice map[string]float64 `json:"investment_by_device"`

	Import         map[model.Carrier]float64 `json:"import"`
	Export         map[model.Carrier]float64 `json:"export"`
	Shed           map[model.Carrier]float64 `json:"shed"`
	ImportCostBy   map[model.Carrier]float64 `json:"import_cost_by_carrier"`
	AvgImportPrice map[model.Carrier]float64 `json:"avg_import_price,omitempty"`

	RepresentativeDays int `json:"representative_days"`
}

// TotalShed sums shed energy over all carriers.
func (s Summary) TotalShed() float64 {
	var sum float64
	for _, v := range s.Shed {
		sum += v
	}
	return sum
}

// InstalledDevices returns the devices with a non-negligible capacity.
func (s Summary) InstalledDevices() map[string]float64 {
	out := map[string]float64{}
	for id, c := range s.Capacity {
		if c > capacityEpsilon {
			out[id] = c
		}
	}
	return out
}

// Extract projects an optimal result onto the named annual quantities of
// m's scenario. Every hourly value is scaled by its day weight. Neither m
// nor res is modified, so repeated calls return identical summaries.
func Extract(m *hub.Model, res solver.Result) (Summary, error) {
	sum := Summary{
		Scenario:           m.Scenario.ID,
		Status:             res.Status,
		SolveTime:          res.SolveTime,
		RepresentativeDays: len(m.Scenario.Days),
	}
	if !res.HasSolution() {
		return sum, solver.ErrNoSolution
	}
	x := res.Values
	sum.Objective = res.Objective
	sum.Capacity = map[string]float64{}
	sum.InvestmentByDevice = map[string]float64{}
	sum.Import = map[model.Carrier]float64{}
	sum.Export = map[model.Carrier]float64{}
	sum.Shed = map[model.Carrier]float64{}
	sum.ImportCostBy = map[model.Carrier]float64{}
	sum.AvgImportPrice = map[model.Carrier]float64{}

	for _, dev := range m.Scenario.Devices {
		c := x[m.Capacity[dev.ID]]
		inv := c * m.UnitInvestment(dev)
		sum.Capacity[dev.ID] = c
		sum.InvestmentByDevice[dev.ID] = inv
		sum.InvestmentCost += inv
	}

	for _, c := range m.Carriers {
		var imp, impCost, exp, expRev, shed float64
		penalty := m.Scenario.Penalty(c)
		for d, day := range m.Scenario.Days {
			w := day.Weight
			for t := 0; t < m.Hours(); t++ {
				iv := x[m.Import[c][d][t]]
				imp += w * iv
				impCost += w * iv * m.ImportPrice(c, d, t)
				shed += w * x[m.Shed[c][d][t]]
				if g, ok := m.Export[c]; ok {
					ev := x[g[d][t]]
					exp += w * ev
					expRev += w * ev * m.ExportPrice(c, d, t)
				}
			}
		}
		sum.Import[c] = imp
		sum.ImportCostBy[c] = impCost
		sum.Export[c] = exp
		sum.Shed[c] = shed
		if imp > 0 {
			sum.AvgImportPrice[c] = impCost / imp
		}
		sum.ImportCost += impCost
		sum.ExportRevenue += expRev
		sum.ShedCost += shed * penalty
	}
	sum.OperationalCost = sum.ImportCost - sum.ExportRevenue + sum.ShedCost
	sum.TotalCost = sum.InvestmentCost + sum.OperationalCost
	return sum, nil
}

// CostGap returns |objective − total cost| relative to max(1, |total|). It
// is zero up to solver round-off for a consistent extraction.
func (s Summary) CostGap() float64 {
	return math.Abs(s.Objective-s.TotalCost) / math.Max(1, math.Abs(s.TotalCost))
}
