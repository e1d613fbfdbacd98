package results

import (
	"github.com/kilianp07/mesplan/core/hub"
	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/solver"
)

// CarrierHour is the dispatch of one carrier in one representative hour.
// Supply is everything delivered into the balance apart from import and
// shed: converter outputs and storage discharge.
type CarrierHour struct {
	Demand      float64 `json:"demand"`
	Import      float64 `json:"import"`
	ImportPrice float64 `json:"import_price"`
	Export      float64 `json:"export"`
	Supply      float64 `json:"supply"`
	Consumption float64 `json:"consumption"`
	Shed        float64 `json:"shed"`
}

// HourProfile is one row of the hourly dispatch report.
type HourProfile struct {
	Day      int                           `json:"day"`
	Calendar int                           `json:"calendar_day"`
	Hour     int                           `json:"hour"`
	Weight   float64                       `json:"weight"`
	Carriers map[model.Carrier]CarrierHour `json:"carriers"`
	// SOC is the state of charge of every storage device at the end of the
	// hour.
	SOC map[string]float64 `json:"soc,omitempty"`
	// Flow is the input flow of every converter.
	Flow map[string]float64 `json:"flow,omitempty"`
}

// Profiles returns one row per representative day and hour, in day then
// hour order.
func Profiles(m *hub.Model, res solver.Result) ([]HourProfile, error) {
	if !res.HasSolution() {
		return nil, solver.ErrNoSolution
	}
	x := res.Values
	out := make([]HourProfile, 0, len(m.Scenario.Days)*m.Hours())
	for d, day := range m.Scenario.Days {
		for t := 0; t < m.Hours(); t++ {
			row := HourProfile{
				Day:      d,
				Calendar: day.Index,
				Hour:     t,
				Weight:   day.Weight,
				Carriers: map[model.Carrier]CarrierHour{},
			}
			for _, c := range m.Carriers {
				h := CarrierHour{
					Demand:      m.Demand(c, d, t),
					Import:      x[m.Import[c][d][t]],
					ImportPrice: m.ImportPrice(c, d, t),
					Shed:        x[m.Shed[c][d][t]],
				}
				if g, ok := m.Export[c]; ok {
					h.Export = x[g[d][t]]
				}
				row.Carriers[c] = h
			}
			for _, dev := range m.Scenario.Devices {
				switch {
				case dev.IsStorage():
					if row.SOC == nil {
						row.SOC = map[string]float64{}
					}
					row.SOC[dev.ID] = x[m.SOC[dev.ID][d][t]]
					h := row.Carriers[dev.Storage.Carrier]
					h.Supply += x[m.Discharge[dev.ID][d][t]]
					h.Consumption += x[m.Charge[dev.ID][d][t]]
					row.Carriers[dev.Storage.Carrier] = h
				default:
					if row.Flow == nil {
						row.Flow = map[string]float64{}
					}
					f := x[m.Flow[dev.ID][d][t]]
					row.Flow[dev.ID] = f
					in, outs := dev.Ports()
					h := row.Carriers[in]
					h.Consumption += f
					row.Carriers[in] = h
					for _, o := range outs {
						h := row.Carriers[o.Carrier]
						h.Supply += o.Factor * f
						row.Carriers[o.Carrier] = h
					}
				}
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// Residual is the violation of one balance row.
type Residual struct {
	Carrier model.Carrier
	Day     int
	Hour    int
	Value   float64
}

// BalanceResiduals returns activity minus demand for every balance row of m
// evaluated at values, in carrier, day and hour order.
func BalanceResiduals(m *hub.Model, values []float64) []Residual {
	var out []Residual
	for _, c := range m.Carriers {
		for d, hours := range m.Balance[c] {
			for t, row := range hours {
				out = append(out, Residual{Carrier: c, Day: d, Hour: t, Value: m.Program.Residual(row, values)})
			}
		}
	}
	return out
}

// MaxResidual returns the largest absolute balance residual.
func MaxResidual(rs []Residual) float64 {
	var max float64
	for _, r := range rs {
		v := r.Value
		if v < 0 {
			v = -v
		}
		if v > max {
			max = v
		}
	}
	return max
}
