package scenario

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mesplan/core/model"
)

func TestLoadConfig_Small(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "small.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "small", cfg.ID)
	assert.Equal(t, 2, cfg.Knobs.NumRepresentativeDays)
	assert.Equal(t, 4, cfg.Knobs.HoursPerDay)
	assert.Equal(t, 0.0, cfg.Knobs.InterestRate)
	assert.Equal(t, 0.5, cfg.Knobs.PriceMultiplier(model.Gas))
	assert.Equal(t, 0.8, cfg.Knobs.InvestmentMultiplier("boiler"))
	assert.Equal(t, 9000.0, cfg.Knobs.Penalty(model.Heat))
	assert.Equal(t, 5000.0, cfg.Knobs.Penalty(model.Elec))

	require.Len(t, cfg.Carriers, 1)
	assert.Equal(t, model.CarrierSpec{ID: model.Gas, Importable: true, ImportLimit: 50}, cfg.Carriers[0])

	require.Len(t, cfg.Devices, 2)
	boiler, tank := cfg.Devices[0], cfg.Devices[1]
	assert.Equal(t, model.KindGasBoiler, boiler.Kind)
	assert.True(t, math.IsInf(boiler.MaxCapacity, 1))
	assert.True(t, tank.Excluded())
	require.NotNil(t, tank.Storage)
	assert.Equal(t, model.Heat, tank.Storage.Carrier)
}

func TestLoadConfig_Baseline(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "configs", "baseline.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "baseline", cfg.ID)
	assert.Equal(t, DefaultInterestRate, cfg.Knobs.InterestRate)
	assert.Len(t, cfg.Devices, 9)
}

func TestConfig_Defaults(t *testing.T) {
	f := File{ID: "d", Devices: []Device{{ID: "gb", Kind: "gas_boiler", Efficiency: 0.9}}}
	cfg, err := f.Config(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultNumDays, cfg.Knobs.NumRepresentativeDays)
	assert.Equal(t, DefaultInterestRate, cfg.Knobs.InterestRate)
	assert.Nil(t, cfg.Knobs.PriceMultipliers)
}

func TestConfig_Errors(t *testing.T) {
	cap0 := 0.0
	tests := []struct {
		name  string
		file  File
		param string
	}{
		{"no id", File{}, "id"},
		{"unknown kind", File{ID: "x", Devices: []Device{{ID: "a", Kind: "reactor"}}}, "devices.a.kind"},
		{"storage on converter", File{ID: "x", Devices: []Device{{ID: "a", Kind: "gas_boiler", Efficiency: 0.9, Storage: &Storage{Carrier: "heat"}}}}, "devices.a.storage"},
		{"missing storage", File{ID: "x", Devices: []Device{{ID: "s", Kind: "storage", MaxCapacity: &cap0}}}, "devices.s.storage"},
		{"bad efficiency", File{ID: "x", Devices: []Device{{ID: "a", Kind: "gas_boiler", Efficiency: 1.5}}}, "devices.a.eta"},
		{"unknown multiplier", File{ID: "x", Economic: Economic{InvestmentMultipliers: map[string]float64{"ghost": 1}}}, "investment_multipliers.ghost"},
		{"negative penalty", File{ID: "x", Cost: Cost{ShedPenalty: -1}}, "shed_penalty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.file.Config(nil)
			var ve *model.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.Param)
		})
	}
}

func TestConfig_ExplicitZeros(t *testing.T) {
	f, err := Parse([]byte(`id: z
economic_parameters:
  gas_price_multiplier: 0
carriers:
  - id: heat
    shed_penalty: 0
simulation_control:
  storage_exclusive: true
devices:
  - id: gb
    kind: gas_boiler
    efficiency: 0.9
    base_capacity: 2.5
`))
	require.NoError(t, err)
	cfg, err := f.Config(nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Knobs.PriceMultiplier(model.Gas))
	require.NotNil(t, cfg.Carriers[0].ShedPenalty)
	assert.Equal(t, 0.0, *cfg.Carriers[0].ShedPenalty)
	assert.True(t, cfg.Knobs.StorageExclusive)
	assert.Equal(t, 2.5, cfg.Devices[0].BaseCapacity)

	f, err = Parse([]byte("id: z\n"))
	require.NoError(t, err)
	cfg, err = f.Config(nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Knobs.PriceMultiplier(model.Gas))
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("id: x\nnum_days: 4\n"))
	assert.Error(t, err)
}

func TestFile_JSON(t *testing.T) {
	raw := `{"id":"api","simulation_control":{"num_days":3},"devices":[{"id":"gb","kind":"gas_boiler","efficiency":0.9,"max_capacity":10}]}`
	var f File
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	cfg, err := f.Config(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Knobs.NumRepresentativeDays)
	assert.Equal(t, 10.0, cfg.Devices[0].MaxCapacity)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadDir(dir, nil)
	assert.ErrorIs(t, err, ErrNoScenarios)

	small, err := os.ReadFile(filepath.Join("testdata", "small.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), small, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), small, 0o600))

	cfgs, err := LoadDir(dir, nil)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, "a", cfgs[0].ID)
	assert.Equal(t, "b", cfgs[1].ID)
}
