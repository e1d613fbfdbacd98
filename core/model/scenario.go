package model

import (
	"fmt"
	"sort"
)

// DefaultHoursPerDay is the number of timesteps in a representative day.
const DefaultHoursPerDay = 24

// StoragePolicy selects the state-of-charge boundary condition applied to
// every representative day.
type StoragePolicy string

const (
	// StorageCyclic forces the state of charge at the end of each day to
	// equal the state before its first hour.
	StorageCyclic StoragePolicy = "cyclic"
	// StorageReset starts every day with an empty store.
	StorageReset StoragePolicy = "reset"
)

// AnnualData is a full year of hourly series keyed by carrier. Every series
// has the same length.
type AnnualData struct {
	Demand      map[Carrier][]float64
	Price       map[Carrier][]float64
	ExportPrice map[Carrier][]float64
}

// Len returns the common series length, or -1 when series lengths differ.
func (a *AnnualData) Len() int {
	n := -2
	for _, set := range []map[Carrier][]float64{a.Demand, a.Price, a.ExportPrice} {
		for _, s := range set {
			if n == -2 {
				n = len(s)
			} else if n != len(s) {
				return -1
			}
		}
	}
	if n == -2 {
		return 0
	}
	return n
}

// Carriers returns every carrier that has at least one series, sorted.
func (a *AnnualData) Carriers() []Carrier {
	seen := map[Carrier]bool{}
	for _, set := range []map[Carrier][]float64{a.Demand, a.Price, a.ExportPrice} {
		for c := range set {
			seen[c] = true
		}
	}
	return sortedCarriers(seen)
}

// RepresentativeDay is a compressed day standing in for Weight real days.
type RepresentativeDay struct {
	// Index is the calendar day (0-based) the profile was taken from.
	Index       int
	Weight      float64
	Demand      map[Carrier][]float64
	Price       map[Carrier][]float64
	ExportPrice map[Carrier][]float64
}

// Knobs are the scalar policy parameters varied across scenarios.
type Knobs struct {
	// ShedPenalty is the default cost per MWh of unmet demand.
	ShedPenalty          float64
	ShedPenaltyByCarrier map[Carrier]float64
	// GasPriceMultiplier scales the gas import price. Nil means 1.
	GasPriceMultiplier *float64
	PriceMultipliers   map[Carrier]float64
	// InvestmentMultipliers scales the investment cost per device id.
	InvestmentMultipliers map[string]float64

	NumRepresentativeDays int
	HoursPerDay           int
	InterestRate          float64
	StoragePolicy         StoragePolicy
	Sampler               string
	// StorageExclusive forbids charging and discharging a storage unit in
	// the same hour. It turns the program into a MILP.
	StorageExclusive bool
}

// Hours returns HoursPerDay with its default applied.
func (k Knobs) Hours() int {
	if k.HoursPerDay <= 0 {
		return DefaultHoursPerDay
	}
	return k.HoursPerDay
}

// Policy returns StoragePolicy with its default applied.
func (k Knobs) Policy() StoragePolicy {
	if k.StoragePolicy == "" {
		return StorageCyclic
	}
	return k.StoragePolicy
}

// Penalty returns the shed penalty for carrier c.
func (k Knobs) Penalty(c Carrier) float64 {
	if p, ok := k.ShedPenaltyByCarrier[c]; ok {
		return p
	}
	return k.ShedPenalty
}

// PriceMultiplier returns the import price multiplier for carrier c.
func (k Knobs) PriceMultiplier(c Carrier) float64 {
	if m, ok := k.PriceMultipliers[c]; ok {
		return m
	}
	if c == Gas && k.GasPriceMultiplier != nil {
		return *k.GasPriceMultiplier
	}
	return 1
}

// InvestmentMultiplier returns the investment cost multiplier for device id.
func (k Knobs) InvestmentMultiplier(id string) float64 {
	if m, ok := k.InvestmentMultipliers[id]; ok {
		return m
	}
	return 1
}

// ScenarioConfig is the unsampled parameter set of a scenario. Data is
// shared read-only between scenario variants.
type ScenarioConfig struct {
	ID       string
	Devices  []Device
	Carriers []CarrierSpec
	Knobs    Knobs
	Data     *AnnualData
}

// Clone returns a copy whose maps and slices may be modified without
// affecting c. Data is shared.
func (c ScenarioConfig) Clone() ScenarioConfig {
	out := c
	out.Devices = make([]Device, len(c.Devices))
	for i, d := range c.Devices {
		if d.Storage != nil {
			s := *d.Storage
			d.Storage = &s
		}
		out.Devices[i] = d
	}
	out.Carriers = make([]CarrierSpec, len(c.Carriers))
	for i, cs := range c.Carriers {
		cs.ShedPenalty = cloneFloat(cs.ShedPenalty)
		out.Carriers[i] = cs
	}
	out.Knobs.GasPriceMultiplier = cloneFloat(c.Knobs.GasPriceMultiplier)
	out.Knobs.ShedPenaltyByCarrier = cloneMap(c.Knobs.ShedPenaltyByCarrier)
	out.Knobs.PriceMultipliers = cloneMap(c.Knobs.PriceMultipliers)
	out.Knobs.InvestmentMultipliers = cloneMap(c.Knobs.InvestmentMultipliers)
	return out
}

// Validate checks devices, carriers and knobs.
func (c ScenarioConfig) Validate() error {
	ids := map[string]bool{}
	for _, d := range c.Devices {
		if ids[d.ID] {
			return &ValidationError{Scenario: c.ID, Param: "devices." + d.ID, Msg: "duplicate device id"}
		}
		ids[d.ID] = true
		if err := d.Validate(); err != nil {
			return WithScenario(err, c.ID)
		}
	}
	seen := map[Carrier]bool{}
	for _, cs := range c.Carriers {
		if cs.ID == "" {
			return &ValidationError{Scenario: c.ID, Param: "carriers", Msg: "carrier id is required"}
		}
		if seen[cs.ID] {
			return &ValidationError{Scenario: c.ID, Param: "carriers." + cs.ID.String(), Msg: "duplicate carrier"}
		}
		seen[cs.ID] = true
		if cs.ImportLimit < 0 || cs.ExportLimit < 0 {
			return &ValidationError{Scenario: c.ID, Param: "carriers." + cs.ID.String(), Msg: "limits must be >= 0"}
		}
		if cs.ShedPenalty != nil && *cs.ShedPenalty < 0 {
			return &ValidationError{Scenario: c.ID, Param: "carriers." + cs.ID.String() + ".shed_penalty", Msg: "must be >= 0"}
		}
	}
	k := c.Knobs
	if k.ShedPenalty < 0 {
		return &ValidationError{Scenario: c.ID, Param: "shed_penalty", Msg: fmt.Sprintf("must be >= 0, got %v", k.ShedPenalty)}
	}
	for car, p := range k.ShedPenaltyByCarrier {
		if p < 0 {
			return &ValidationError{Scenario: c.ID, Param: "shed_cost_per_mwh." + car.String(), Msg: "must be >= 0"}
		}
	}
	if k.GasPriceMultiplier != nil && *k.GasPriceMultiplier < 0 {
		return &ValidationError{Scenario: c.ID, Param: "gas_price_multiplier", Msg: "must be >= 0"}
	}
	if k.InterestRate < 0 {
		return &ValidationError{Scenario: c.ID, Param: "interest_rate", Msg: "must be >= 0"}
	}
	switch k.Policy() {
	case StorageCyclic, StorageReset:
	default:
		return &ValidationError{Scenario: c.ID, Param: "storage_policy", Msg: fmt.Sprintf("unknown policy %q", k.StoragePolicy)}
	}
	return nil
}

// Scenario is the sampled, immutable input of the model builder.
type Scenario struct {
	ID          string
	Devices     []Device
	Carriers    []CarrierSpec
	Knobs       Knobs
	Days        []RepresentativeDay
	HoursPerDay int
	// AnnualHours is the length of the source year in hours.
	AnnualHours int
}

// WeightedHours returns Σ weight × HoursPerDay.
func (s *Scenario) WeightedHours() float64 {
	var sum float64
	for _, d := range s.Days {
		sum += d.Weight
	}
	return sum * float64(s.HoursPerDay)
}

// CarrierIDs returns the carriers that need an energy balance: every
// configured carrier plus the ports of every device and every demand series.
func (s *Scenario) CarrierIDs() []Carrier {
	seen := map[Carrier]bool{}
	for _, c := range s.Carriers {
		seen[c.ID] = true
	}
	for _, d := range s.Devices {
		in, outs := d.Ports()
		if in != "" {
			seen[in] = true
		}
		for _, o := range outs {
			seen[o.Carrier] = true
		}
	}
	for _, day := range s.Days {
		for c := range day.Demand {
			seen[c] = true
		}
	}
	return sortedCarriers(seen)
}

// CarrierSpec returns the boundary description of c. Unknown carriers are
// neither importable nor exportable.
func (s *Scenario) CarrierSpec(c Carrier) CarrierSpec {
	for _, cs := range s.Carriers {
		if cs.ID == c {
			return cs
		}
	}
	return CarrierSpec{ID: c}
}

// Penalty returns the shed penalty for c, honouring carrier overrides.
func (s *Scenario) Penalty(c Carrier) float64 {
	if cs := s.CarrierSpec(c); cs.ShedPenalty != nil {
		return *cs.ShedPenalty
	}
	return s.Knobs.Penalty(c)
}

// Float returns a pointer to v, for the optional knobs.
func Float(v float64) *float64 { return &v }

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortedCarriers(set map[Carrier]bool) []Carrier {
	out := make([]Carrier, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
