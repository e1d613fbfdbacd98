// Package scenario reads scenario files and turns them into model
// configurations. The same document shape is accepted as YAML from disk and
// as JSON by the HTTP API.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/mesplan/core/model"
)

// Defaults applied when a file leaves a field out.
const (
	DefaultNumDays      = 8
	DefaultInterestRate = 0.08
)

// File is the on-disk scenario document.
type File struct {
	ID         string     `yaml:"id" json:"id"`
	Simulation Simulation `yaml:"simulation_control" json:"simulation_control"`
	Economic   Economic   `yaml:"economic_parameters" json:"economic_parameters"`
	Cost       Cost       `yaml:"cost_parameters" json:"cost_parameters"`
	Carriers   []Carrier  `yaml:"carriers" json:"carriers"`
	Devices    []Device   `yaml:"devices" json:"devices"`
}

type Simulation struct {
	NumDays       int    `yaml:"num_days" json:"num_days"`
	HoursPerDay   int    `yaml:"hours_per_day" json:"hours_per_day"`
	Sampler       string `yaml:"sampler" json:"sampler"`
	StoragePolicy string `yaml:"storage_policy" json:"storage_policy"`
	// StorageExclusive forbids simultaneous charge and discharge.
	StorageExclusive bool `yaml:"storage_exclusive" json:"storage_exclusive"`
}

type Economic struct {
	// InterestRate is a pointer so an explicit 0 survives defaulting.
	InterestRate          *float64           `yaml:"interest_rate" json:"interest_rate"`
	GasPriceMultiplier    *float64           `yaml:"gas_price_multiplier" json:"gas_price_multiplier"`
	PriceMultipliers      map[string]float64 `yaml:"price_multipliers" json:"price_multipliers"`
	InvestmentMultipliers map[string]float64 `yaml:"investment_multipliers" json:"investment_multipliers"`
}

type Cost struct {
	ShedPenalty    float64            `yaml:"shed_penalty" json:"shed_penalty"`
	ShedCostPerMWh map[string]float64 `yaml:"shed_cost_per_mwh" json:"shed_cost_per_mwh"`
}

type Carrier struct {
	ID          string   `yaml:"id" json:"id"`
	Importable  bool     `yaml:"importable" json:"importable"`
	ImportLimit float64  `yaml:"import_limit" json:"import_limit"`
	Exportable  bool     `yaml:"exportable" json:"exportable"`
	ExportLimit float64  `yaml:"export_limit" json:"export_limit"`
	ShedPenalty *float64 `yaml:"shed_penalty" json:"shed_penalty"`
}

type Device struct {
	ID             string  `yaml:"id" json:"id"`
	Kind           string  `yaml:"kind" json:"kind"`
	InvestmentCost float64 `yaml:"investment_cost" json:"investment_cost"`
	LifetimeYears  int     `yaml:"lifetime_years" json:"lifetime_years"`
	MinCapacity    float64 `yaml:"min_capacity" json:"min_capacity"`
	// MaxCapacity left out means unbounded.
	MaxCapacity    *float64 `yaml:"max_capacity" json:"max_capacity"`
	Availability   float64  `yaml:"availability" json:"availability"`
	BaseCapacity   float64  `yaml:"base_capacity" json:"base_capacity"`
	Efficiency     float64  `yaml:"efficiency" json:"efficiency"`
	COP            float64  `yaml:"cop" json:"cop"`
	ElecEfficiency float64  `yaml:"elec_efficiency" json:"elec_efficiency"`
	HeatEfficiency float64  `yaml:"heat_efficiency" json:"heat_efficiency"`
	Storage        *Storage `yaml:"storage" json:"storage"`
}

type Storage struct {
	Carrier             string  `yaml:"carrier" json:"carrier"`
	ChargeEfficiency    float64 `yaml:"charge_efficiency" json:"charge_efficiency"`
	DischargeEfficiency float64 `yaml:"discharge_efficiency" json:"discharge_efficiency"`
	RoundTripEfficiency float64 `yaml:"round_trip_efficiency" json:"round_trip_efficiency"`
	PowerRatio          float64 `yaml:"power_ratio" json:"power_ratio"`
}

// Load reads a YAML scenario file. A file without an id is named after its
// base name.
func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read scenario: %w", err)
	}
	f, err := Parse(raw)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	if f.ID == "" {
		f.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

// Parse decodes a YAML document, rejecting unknown fields.
func Parse(raw []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode scenario: %w", err)
	}
	return f, nil
}

// Config converts the document into a validated model configuration bound
// to data.
func (f File) Config(data *model.AnnualData) (model.ScenarioConfig, error) {
	if f.ID == "" {
		return model.ScenarioConfig{}, &model.ValidationError{Param: "id", Msg: "scenario id is required"}
	}
	k := model.Knobs{
		ShedPenalty:           f.Cost.ShedPenalty,
		GasPriceMultiplier:    f.Economic.GasPriceMultiplier,
		InvestmentMultipliers: f.Economic.InvestmentMultipliers,
		NumRepresentativeDays: f.Simulation.NumDays,
		HoursPerDay:           f.Simulation.HoursPerDay,
		InterestRate:          DefaultInterestRate,
		StoragePolicy:         model.StoragePolicy(f.Simulation.StoragePolicy),
		Sampler:               f.Simulation.Sampler,
		StorageExclusive:      f.Simulation.StorageExclusive,
	}
	if k.NumRepresentativeDays == 0 {
		k.NumRepresentativeDays = DefaultNumDays
	}
	if f.Economic.InterestRate != nil {
		k.InterestRate = *f.Economic.InterestRate
	}
	if len(f.Cost.ShedCostPerMWh) > 0 {
		k.ShedPenaltyByCarrier = carrierMap(f.Cost.ShedCostPerMWh)
	}
	if len(f.Economic.PriceMultipliers) > 0 {
		k.PriceMultipliers = carrierMap(f.Economic.PriceMultipliers)
	}

	cfg := model.ScenarioConfig{ID: f.ID, Knobs: k, Data: data}
	for _, c := range f.Carriers {
		cfg.Carriers = append(cfg.Carriers, model.CarrierSpec{
			ID:          model.Carrier(c.ID),
			Importable:  c.Importable,
			ImportLimit: c.ImportLimit,
			Exportable:  c.Exportable,
			ExportLimit: c.ExportLimit,
			ShedPenalty: c.ShedPenalty,
		})
	}
	for _, d := range f.Devices {
		dev, err := d.device()
		if err != nil {
			return model.ScenarioConfig{}, model.WithScenario(err, f.ID)
		}
		cfg.Devices = append(cfg.Devices, dev)
	}
	for id := range k.InvestmentMultipliers {
		if !hasDevice(cfg.Devices, id) {
			return model.ScenarioConfig{}, &model.ValidationError{Scenario: f.ID, Param: "investment_multipliers." + id, Msg: "unknown device"}
		}
	}
	if err := cfg.Validate(); err != nil {
		return model.ScenarioConfig{}, err
	}
	return cfg, nil
}

func (d Device) device() (model.Device, error) {
	if d.ID == "" {
		return model.Device{}, &model.ValidationError{Param: "devices", Msg: "device id is required"}
	}
	kind, err := model.ParseDeviceKind(d.Kind)
	if err != nil {
		return model.Device{}, &model.ValidationError{Param: "devices." + d.ID + ".kind", Msg: err.Error()}
	}
	dev := model.Device{
		ID:             d.ID,
		Kind:           kind,
		InvestmentCost: d.InvestmentCost,
		LifetimeYears:  d.LifetimeYears,
		MinCapacity:    d.MinCapacity,
		MaxCapacity:    math.Inf(1),
		Availability:   d.Availability,
		BaseCapacity:   d.BaseCapacity,
		Efficiency:     d.Efficiency,
		COP:            d.COP,
		ElecEfficiency: d.ElecEfficiency,
		HeatEfficiency: d.HeatEfficiency,
	}
	if d.MaxCapacity != nil {
		dev.MaxCapacity = *d.MaxCapacity
	}
	switch {
	case d.Storage != nil && kind != model.KindStorage:
		return model.Device{}, &model.ValidationError{Param: "devices." + d.ID + ".storage", Msg: "only storage devices take storage parameters"}
	case d.Storage != nil:
		dev.Storage = &model.StorageParams{
			Carrier:             model.Carrier(d.Storage.Carrier),
			ChargeEfficiency:    d.Storage.ChargeEfficiency,
			DischargeEfficiency: d.Storage.DischargeEfficiency,
			RoundTripEfficiency: d.Storage.RoundTripEfficiency,
			PowerRatio:          d.Storage.PowerRatio,
		}
	}
	return dev, nil
}

func carrierMap(m map[string]float64) map[model.Carrier]float64 {
	out := make(map[model.Carrier]float64, len(m))
	for k, v := range m {
		out[model.Carrier(k)] = v
	}
	return out
}

func hasDevice(devs []model.Device, id string) bool {
	for _, d := range devs {
		if d.ID == id {
			return true
		}
	}
	return false
}

// LoadConfig reads path and converts it against data.
func LoadConfig(path string, data *model.AnnualData) (model.ScenarioConfig, error) {
	f, err := Load(path)
	if err != nil {
		return model.ScenarioConfig{}, err
	}
	return f.Config(data)
}

// ErrNoScenarios is returned by LoadDir for a directory without scenario
// files.
var ErrNoScenarios = errors.New("no scenario files found")

// LoadDir reads every .yaml and .yml file of dir in name order.
func LoadDir(dir string, data *model.AnnualData) ([]model.ScenarioConfig, error) {
	var paths []string
	for _, pat := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return nil, err
		}
		paths = append(paths, m...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoScenarios)
	}
	sort.Strings(paths)
	out := make([]model.ScenarioConfig, 0, len(paths))
	for _, p := range paths {
		cfg, err := LoadConfig(p, data)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}
