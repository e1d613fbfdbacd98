package hub

import (
	"fmt"
	"math"

	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/solver"
)

// Grid indexes variables or constraints by [day][hour].
type Grid [][]solver.VarID

// Model is the linear program built for one Scenario together with the
// tables mapping scenario entities to program variables.
type Model struct {
	Scenario *model.Scenario
	Program  *solver.Program
	Carriers []model.Carrier

	// Capacity holds the installed-capacity variable of every device.
	Capacity map[string]solver.VarID
	// Units holds the integer unit count of devices with a base capacity.
	Units map[string]solver.VarID
	// Flow is the input flow of every converter.
	Flow      map[string]Grid
	Charge    map[string]Grid
	Discharge map[string]Grid
	SOC       map[string]Grid

	Import map[model.Carrier]Grid
	// Export only has entries for exportable carriers.
	Export map[model.Carrier]Grid
	Shed   map[model.Carrier]Grid

	// Balance holds the energy-balance constraint index per carrier, day
	// and hour.
	Balance map[model.Carrier][][]int
}

// Build translates sc into a linear program. sc is referenced, never
// modified. Input errors are returned before any variable is created.
func Build(sc *model.Scenario) (*Model, error) {
	if err := Validate(sc); err != nil {
		return nil, err
	}
	b := &builder{
		sc: sc,
		m: &Model{
			Scenario:  sc,
			Program:   &solver.Program{},
			Carriers:  sc.CarrierIDs(),
			Capacity:  map[string]solver.VarID{},
			Units:     map[string]solver.VarID{},
			Flow:      map[string]Grid{},
			Charge:    map[string]Grid{},
			Discharge: map[string]Grid{},
			SOC:       map[string]Grid{},
			Import:    map[model.Carrier]Grid{},
			Export:    map[model.Carrier]Grid{},
			Shed:      map[model.Carrier]Grid{},
			Balance:   map[model.Carrier][][]int{},
		},
		hours: sc.HoursPerDay,
	}
	b.balance = map[model.Carrier][][][]solver.Term{}
	for _, c := range b.m.Carriers {
		g := make([][][]solver.Term, len(sc.Days))
		for d := range g {
			g[d] = make([][]solver.Term, b.hours)
		}
		b.balance[c] = g
	}

	for _, c := range b.m.Carriers {
		b.boundary(c)
	}
	for _, dev := range sc.Devices {
		switch dev.Kind {
		case model.KindStorage:
			b.storage(dev)
		case model.KindHeatPump, model.KindElectricChiller, model.KindAbsorptionChiller,
			model.KindCHP, model.KindGasBoiler, model.KindElectricBoiler:
			b.converter(dev)
		default:
			return nil, &model.ValidationError{Scenario: sc.ID, Param: "devices." + dev.ID + ".kind", Msg: fmt.Sprintf("unsupported kind %v", dev.Kind)}
		}
	}
	b.balances()
	return b.m, nil
}

// Validate checks that sc is complete and consistent before building.
func Validate(sc *model.Scenario) error {
	if sc == nil {
		return &model.ValidationError{Param: "scenario", Msg: "nil scenario"}
	}
	if len(sc.Days) == 0 {
		return &model.DataShapeError{Scenario: sc.ID, Param: "num_days", Msg: "no representative days"}
	}
	if sc.HoursPerDay <= 0 {
		return &model.DataShapeError{Scenario: sc.ID, Param: "hours_per_day", Msg: fmt.Sprintf("must be >= 1, got %d", sc.HoursPerDay)}
	}
	for i, day := range sc.Days {
		if day.Weight <= 0 || math.IsNaN(day.Weight) || math.IsInf(day.Weight, 0) {
			return &model.DataShapeError{Scenario: sc.ID, Param: fmt.Sprintf("days[%d].weight", i), Msg: fmt.Sprintf("must be > 0, got %v", day.Weight)}
		}
		for _, set := range []struct {
			name   string
			series map[model.Carrier][]float64
		}{{"demand", day.Demand}, {"price", day.Price}, {"export_price", day.ExportPrice}} {
			for c, s := range set.series {
				param := fmt.Sprintf("days[%d].%s.%s", i, set.name, c)
				if len(s) != sc.HoursPerDay {
					return &model.DataShapeError{Scenario: sc.ID, Param: param, Msg: fmt.Sprintf("has %d values, want %d", len(s), sc.HoursPerDay)}
				}
				for t, v := range s {
					if math.IsNaN(v) || math.IsInf(v, 0) {
						return &model.DataShapeError{Scenario: sc.ID, Param: param, Msg: fmt.Sprintf("non-finite value at hour %d", t)}
					}
					if set.name == "demand" && v < 0 {
						return &model.DataShapeError{Scenario: sc.ID, Param: param, Msg: fmt.Sprintf("negative demand %v at hour %d", v, t)}
					}
				}
			}
		}
	}
	if sc.AnnualHours > 0 && sc.WeightedHours() != float64(sc.AnnualHours) {
		return &model.DataShapeError{Scenario: sc.ID, Param: "days.weight", Msg: fmt.Sprintf("weighted hours %v differ from annual hours %d", sc.WeightedHours(), sc.AnnualHours)}
	}
	cfg := model.ScenarioConfig{ID: sc.ID, Devices: sc.Devices, Carriers: sc.Carriers, Knobs: sc.Knobs}
	return cfg.Validate()
}

type builder struct {
	sc      *model.Scenario
	m       *Model
	hours   int
	balance map[model.Carrier][][][]solver.Term
}

func (b *builder) grid(name string, upper func(d, t int) float64, cost func(d, t int) float64) Grid {
	g := make(Grid, len(b.sc.Days))
	for d := range g {
		g[d] = make([]solver.VarID, b.hours)
		for t := range g[d] {
			g[d][t] = b.m.Program.AddVar(fmt.Sprintf("%s[d%d,t%d]", name, d, t), 0, upper(d, t), cost(d, t))
		}
	}
	return g
}

func (b *builder) add(c model.Carrier, d, t int, v solver.VarID, coef float64) {
	b.balance[c][d][t] = append(b.balance[c][d][t], solver.Term{Var: v, Coef: coef})
}

func (b *builder) weight(d int) float64 { return b.sc.Days[d].Weight }

// boundary creates the import, export and shed variables of carrier c.
func (b *builder) boundary(c model.Carrier) {
	spec := b.sc.CarrierSpec(c)
	mult := b.sc.Knobs.PriceMultiplier(c)
	penalty := b.sc.Penalty(c)

	imp := b.grid("import_"+c.String(), func(d, _ int) float64 {
		if !spec.Importable || b.sc.Days[d].Price[c] == nil {
			return 0
		}
		return limit(spec.ImportLimit)
	}, func(d, t int) float64 {
		return b.weight(d) * seriesAt(b.sc.Days[d].Price[c], t) * mult
	})
	b.m.Import[c] = imp

	shed := b.grid("shed_"+c.String(), func(d, t int) float64 {
		return seriesAt(b.sc.Days[d].Demand[c], t)
	}, func(d, _ int) float64 {
		return b.weight(d) * penalty
	})
	b.m.Shed[c] = shed

	var exp Grid
	if spec.Exportable {
		exp = b.grid("export_"+c.String(), func(int, int) float64 {
			return limit(spec.ExportLimit)
		}, func(d, t int) float64 {
			return -b.weight(d) * seriesAt(b.sc.Days[d].ExportPrice[c], t)
		})
		b.m.Export[c] = exp
	}

	for d := range b.sc.Days {
		for t := 0; t < b.hours; t++ {
			b.add(c, d, t, imp[d][t], 1)
			b.add(c, d, t, shed[d][t], 1)
			if exp != nil {
				b.add(c, d, t, exp[d][t], -1)
			}
		}
	}
}

func (b *builder) capacity(dev model.Device) solver.VarID {
	upper := dev.MaxCapacity
	lower := dev.MinCapacity
	if dev.Excluded() {
		upper, lower = 0, 0
	}
	p := b.m.Program
	v := p.AddVar("cap_"+dev.ID, lower, upper, b.m.UnitInvestment(dev))
	b.m.Capacity[dev.ID] = v
	if base := dev.BaseCapacity; base > 0 && !dev.Excluded() {
		n := p.AddIntVar("units_"+dev.ID, math.Ceil(lower/base-1e-9), math.Floor(upper/base+1e-9), 0)
		b.m.Units[dev.ID] = n
		p.AddConstraint("units_"+dev.ID, []solver.Term{{Var: v, Coef: 1}, {Var: n, Coef: -base}}, solver.Equal, 0)
	}
	return v
}

func (b *builder) dispatchUpper(dev model.Device) func(int, int) float64 {
	return func(int, int) float64 {
		if dev.Excluded() {
			return 0
		}
		return math.Inf(1)
	}
}

func zeroCost(int, int) float64 { return 0 }

func (b *builder) converter(dev model.Device) {
	capVar := b.capacity(dev)
	flow := b.grid("flow_"+dev.ID, b.dispatchUpper(dev), zeroCost)
	b.m.Flow[dev.ID] = flow
	in, outs := dev.Ports()
	derate := dev.Derate()
	p := b.m.Program
	for d := range b.sc.Days {
		for t := 0; t < b.hours; t++ {
			f := flow[d][t]
			b.add(in, d, t, f, -1)
			for _, o := range outs {
				b.add(o.Carrier, d, t, f, o.Factor)
			}
			p.AddConstraint(fmt.Sprintf("link_%s[d%d,t%d]", dev.ID, d, t),
				[]solver.Term{{Var: f, Coef: 1}, {Var: capVar, Coef: -derate}}, solver.LessEq, 0)
		}
	}
}

// storage adds the energy capacity, power limits and state-of-charge
// recursion of a storage device. Every representative day is closed on
// itself: no energy is carried from one day to the next.
func (b *builder) storage(dev model.Device) {
	capVar := b.capacity(dev)
	st := dev.Storage
	up := b.dispatchUpper(dev)
	ch := b.grid("charge_"+dev.ID, up, zeroCost)
	dis := b.grid("discharge_"+dev.ID, up, zeroCost)
	soc := b.grid("soc_"+dev.ID, up, zeroCost)
	b.m.Charge[dev.ID], b.m.Discharge[dev.ID], b.m.SOC[dev.ID] = ch, dis, soc

	etaC, etaD := st.Efficiencies()
	ratio := st.Ratio() * dev.Derate()
	cyclic := b.sc.Knobs.Policy() == model.StorageCyclic
	p := b.m.Program
	for d := range b.sc.Days {
		for t := 0; t < b.hours; t++ {
			b.add(st.Carrier, d, t, ch[d][t], -1)
			b.add(st.Carrier, d, t, dis[d][t], 1)
			if b.sc.Knobs.StorageExclusive {
				p.AddExclusive(ch[d][t], dis[d][t])
			}
			tag := fmt.Sprintf("%s[d%d,t%d]", dev.ID, d, t)
			p.AddConstraint("charge_limit_"+tag, []solver.Term{{Var: ch[d][t], Coef: 1}, {Var: capVar, Coef: -ratio}}, solver.LessEq, 0)
			p.AddConstraint("discharge_limit_"+tag, []solver.Term{{Var: dis[d][t], Coef: 1}, {Var: capVar, Coef: -ratio}}, solver.LessEq, 0)
			p.AddConstraint("soc_limit_"+tag, []solver.Term{{Var: soc[d][t], Coef: 1}, {Var: capVar, Coef: -1}}, solver.LessEq, 0)

			terms := []solver.Term{
				{Var: soc[d][t], Coef: 1},
				{Var: ch[d][t], Coef: -etaC},
				{Var: dis[d][t], Coef: 1 / etaD},
			}
			switch {
			case t > 0:
				terms = append(terms, solver.Term{Var: soc[d][t-1], Coef: -1})
			case cyclic && b.hours > 1:
				terms = append(terms, solver.Term{Var: soc[d][b.hours-1], Coef: -1})
			case cyclic:
				// a single-hour day cycles onto itself: soc cancels out
				terms[0].Coef = 0
			}
			p.AddConstraint("soc_"+tag, terms, solver.Equal, 0)
		}
	}
}

func (b *builder) balances() {
	p := b.m.Program
	for _, c := range b.m.Carriers {
		rows := make([][]int, len(b.sc.Days))
		for d, day := range b.sc.Days {
			rows[d] = make([]int, b.hours)
			for t := 0; t < b.hours; t++ {
				rows[d][t] = p.AddConstraint(fmt.Sprintf("balance_%s[d%d,t%d]", c, d, t),
					b.balance[c][d][t], solver.Equal, seriesAt(day.Demand[c], t))
			}
		}
		b.m.Balance[c] = rows
	}
}

func limit(l float64) float64 {
	if l <= 0 {
		return math.Inf(1)
	}
	return l
}

func seriesAt(s []float64, t int) float64 {
	if s == nil {
		return 0
	}
	return s[t]
}
