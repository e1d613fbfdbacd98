package model

import (
	"fmt"
	"math"
	"strings"
)

// DeviceKind is the closed set of technologies the hub can invest in.
type DeviceKind int

const (
	KindHeatPump DeviceKind = iota
	KindElectricChiller
	KindAbsorptionChiller
	KindCHP
	KindGasBoiler
	KindElectricBoiler
	KindStorage
)

var kindNames = map[DeviceKind]string{
	KindHeatPump:          "heat_pump",
	KindElectricChiller:   "electric_chiller",
	KindAbsorptionChiller: "absorption_chiller",
	KindCHP:               "chp",
	KindGasBoiler:         "gas_boiler",
	KindElectricBoiler:    "electric_boiler",
	KindStorage:           "storage",
}

func (k DeviceKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("DeviceKind(%d)", int(k))
}

// ParseDeviceKind maps a configuration name to a DeviceKind.
func ParseDeviceKind(s string) (DeviceKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	// legacy component library names
	switch s {
	case "heatpump":
		return KindHeatPump, nil
	case "electricchiller", "cerg":
		return KindElectricChiller, nil
	case "absorptionchiller", "warp":
		return KindAbsorptionChiller, nil
	case "chpbackpressure", "ice":
		return KindCHP, nil
	case "boiler":
		return KindGasBoiler, nil
	case "electricboiler":
		return KindElectricBoiler, nil
	}
	return 0, fmt.Errorf("unknown device kind %q", s)
}

// Output is one conversion port of a device: Factor units of Carrier per
// unit of input.
type Output struct {
	Carrier Carrier
	Factor  float64
}

// StorageParams holds the storage-only fields of a Device.
type StorageParams struct {
	Carrier Carrier
	// ChargeEfficiency and DischargeEfficiency are in (0,1]. When both are
	// zero, RoundTripEfficiency is split evenly between them.
	ChargeEfficiency    float64
	DischargeEfficiency float64
	RoundTripEfficiency float64
	// PowerRatio is the charge and discharge power per unit of energy
	// capacity (1/h). Zero means 1.
	PowerRatio float64
}

// Efficiencies returns the effective charge and discharge efficiencies.
func (s StorageParams) Efficiencies() (float64, float64) {
	if s.ChargeEfficiency == 0 && s.DischargeEfficiency == 0 && s.RoundTripEfficiency > 0 {
		e := math.Sqrt(s.RoundTripEfficiency)
		return e, e
	}
	return s.ChargeEfficiency, s.DischargeEfficiency
}

// Ratio returns the power-to-energy ratio, defaulting to 1.
func (s StorageParams) Ratio() float64 {
	if s.PowerRatio <= 0 {
		return 1
	}
	return s.PowerRatio
}

// Device is a technology option. Kind selects which of the parameter fields
// are meaningful.
type Device struct {
	ID   string
	Kind DeviceKind

	// InvestmentCost is the overnight cost per unit of capacity (MW of
	// input for converters, MWh for storage).
	InvestmentCost float64
	LifetimeYears  int
	MinCapacity    float64
	// MaxCapacity of 0 excludes the device; +Inf leaves it unbounded.
	MaxCapacity float64
	// Availability derates installed capacity for dispatch. Zero means 1.
	Availability float64
	// BaseCapacity, when set, restricts capacity to whole multiples of a
	// unit size.
	BaseCapacity float64

	// Efficiency is used by gas and electric boilers.
	Efficiency float64
	// COP is used by heat pumps and chillers.
	COP float64
	// ElecEfficiency and HeatEfficiency are used by CHP units.
	ElecEfficiency float64
	HeatEfficiency float64

	Storage *StorageParams
}

// Derate returns the availability factor, defaulting to 1.
func (d Device) Derate() float64 {
	if d.Availability <= 0 {
		return 1
	}
	return d.Availability
}

// Excluded reports whether no capacity may be installed.
func (d Device) Excluded() bool { return d.MaxCapacity <= 0 }

// IsStorage reports whether the device is a storage unit.
func (d Device) IsStorage() bool { return d.Kind == KindStorage }

// Ports returns the input carrier and the outputs of a converter. Storage
// returns its carrier as input and no outputs.
func (d Device) Ports() (Carrier, []Output) {
	switch d.Kind {
	case KindHeatPump:
		return Elec, []Output{{Heat, d.COP}}
	case KindElectricChiller:
		return Elec, []Output{{Cool, d.COP}}
	case KindAbsorptionChiller:
		return Heat, []Output{{Cool, d.COP}}
	case KindCHP:
		return Gas, []Output{{Elec, d.ElecEfficiency}, {Heat, d.HeatEfficiency}}
	case KindGasBoiler:
		return Gas, []Output{{Heat, d.Efficiency}}
	case KindElectricBoiler:
		return Elec, []Output{{Heat, d.Efficiency}}
	case KindStorage:
		if d.Storage == nil {
			return "", nil
		}
		return d.Storage.Carrier, nil
	}
	return "", nil
}

// Validate checks the kind-specific invariants.
func (d Device) Validate() error {
	fail := func(param, format string, args ...any) error {
		return &ValidationError{Param: "devices." + d.ID + "." + param, Msg: fmt.Sprintf(format, args...)}
	}
	if d.ID == "" {
		return &ValidationError{Param: "devices", Msg: "device id is required"}
	}
	if d.InvestmentCost < 0 {
		return fail("investment_cost", "must be >= 0, got %v", d.InvestmentCost)
	}
	if d.LifetimeYears < 0 {
		return fail("lifetime", "must be >= 0, got %d", d.LifetimeYears)
	}
	if d.MaxCapacity < 0 || math.IsNaN(d.MaxCapacity) {
		return fail("max_capacity", "must be >= 0, got %v", d.MaxCapacity)
	}
	if d.MinCapacity < 0 || d.MinCapacity > d.MaxCapacity {
		return fail("min_capacity", "must be in [0, max_capacity], got %v", d.MinCapacity)
	}
	if d.Availability < 0 || d.Availability > 1 {
		return fail("availability", "must be in [0,1], got %v", d.Availability)
	}
	if d.BaseCapacity < 0 || math.IsInf(d.BaseCapacity, 0) || math.IsNaN(d.BaseCapacity) {
		return fail("base_capacity", "must be a finite value >= 0, got %v", d.BaseCapacity)
	}
	unit := func(param string, v float64) error {
		if v <= 0 || v > 1 {
			return fail(param, "efficiency must be in (0,1], got %v", v)
		}
		return nil
	}
	switch d.Kind {
	case KindHeatPump, KindElectricChiller, KindAbsorptionChiller:
		if d.COP <= 0 {
			return fail("cop", "must be > 0, got %v", d.COP)
		}
	case KindCHP:
		if err := unit("eta_w", d.ElecEfficiency); err != nil {
			return err
		}
		return unit("eta_q", d.HeatEfficiency)
	case KindGasBoiler, KindElectricBoiler:
		return unit("eta", d.Efficiency)
	case KindStorage:
		if d.Storage == nil {
			return fail("storage", "storage parameters are required")
		}
		if d.Storage.Carrier == "" {
			return fail("carrier", "storage carrier is required")
		}
		ec, ed := d.Storage.Efficiencies()
		if err := unit("eta_c", ec); err != nil {
			return err
		}
		if err := unit("eta_d", ed); err != nil {
			return err
		}
		if d.Storage.PowerRatio < 0 {
			return fail("power_ratio", "must be >= 0, got %v", d.Storage.PowerRatio)
		}
	default:
		return fail("kind", "unsupported kind %v", d.Kind)
	}
	return nil
}
