package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnualDataLen(t *testing.T) {
	a := &AnnualData{}
	assert.Equal(t, 0, a.Len())

	a.Demand = map[Carrier][]float64{Heat: make([]float64, 48)}
	a.Price = map[Carrier][]float64{Gas: make([]float64, 48)}
	assert.Equal(t, 48, a.Len())
	assert.Equal(t, []Carrier{Gas, Heat}, a.Carriers())

	a.ExportPrice = map[Carrier][]float64{Elec: make([]float64, 24)}
	assert.Equal(t, -1, a.Len())
}

func TestKnobsDefaults(t *testing.T) {
	var k Knobs
	assert.Equal(t, DefaultHoursPerDay, k.Hours())
	assert.Equal(t, StorageCyclic, k.Policy())
	assert.Equal(t, 1.0, k.PriceMultiplier(Gas))
	assert.Equal(t, 1.0, k.InvestmentMultiplier("chp"))

	k = Knobs{
		ShedPenalty:          200,
		ShedPenaltyByCarrier: map[Carrier]float64{Cool: 5000},
		GasPriceMultiplier:   Float(2),
		PriceMultipliers:     map[Carrier]float64{Elec: 1.5},
	}
	assert.Equal(t, 200.0, k.Penalty(Heat))
	assert.Equal(t, 5000.0, k.Penalty(Cool))
	assert.Equal(t, 2.0, k.PriceMultiplier(Gas))
	assert.Equal(t, 1.5, k.PriceMultiplier(Elec))

	k.PriceMultipliers[Gas] = 0
	assert.Equal(t, 0.0, k.PriceMultiplier(Gas), "explicit carrier multiplier wins")

	k = Knobs{GasPriceMultiplier: Float(0)}
	assert.Equal(t, 0.0, k.PriceMultiplier(Gas), "zero gas multiplier means free gas")
}

func TestScenarioConfigClone(t *testing.T) {
	base := ScenarioConfig{
		ID: "base",
		Devices: []Device{
			{ID: "tes", Kind: KindStorage, MaxCapacity: 10, Storage: &StorageParams{Carrier: Heat, RoundTripEfficiency: 0.9}},
		},
		Carriers: []CarrierSpec{{ID: Gas, Importable: true, ShedPenalty: Float(3)}},
		Knobs:    Knobs{ShedPenaltyByCarrier: map[Carrier]float64{Heat: 1}, GasPriceMultiplier: Float(2)},
		Data:     &AnnualData{},
	}
	cp := base.Clone()
	*cp.Carriers[0].ShedPenalty = 0
	*cp.Knobs.GasPriceMultiplier = 0
	cp.Devices[0].Storage.PowerRatio = 4
	cp.Devices[0].MaxCapacity = 0
	cp.Carriers[0].Importable = false
	cp.Knobs.ShedPenaltyByCarrier[Heat] = 99

	assert.Equal(t, 0.0, base.Devices[0].Storage.PowerRatio)
	assert.Equal(t, 10.0, base.Devices[0].MaxCapacity)
	assert.True(t, base.Carriers[0].Importable)
	assert.Equal(t, 1.0, base.Knobs.ShedPenaltyByCarrier[Heat])
	assert.Equal(t, 3.0, *base.Carriers[0].ShedPenalty)
	assert.Equal(t, 2.0, *base.Knobs.GasPriceMultiplier)
	assert.Same(t, base.Data, cp.Data)
}

func TestScenarioConfigValidate(t *testing.T) {
	cfg := ScenarioConfig{
		ID: "s1",
		Devices: []Device{
			{ID: "hp", Kind: KindHeatPump, COP: 3, MaxCapacity: math.Inf(1)},
			{ID: "hp", Kind: KindHeatPump, COP: 3, MaxCapacity: 1},
		},
	}
	err := cfg.Validate()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "s1", ve.Scenario)
	assert.Equal(t, "devices.hp", ve.Param)

	cfg.Devices = cfg.Devices[:1]
	cfg.Devices[0].COP = -1
	err = cfg.Validate()
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "s1", ve.Scenario, "scenario id is stamped on device errors")

	cfg.Devices[0].COP = 3
	cfg.Knobs.StoragePolicy = "carry"
	err = cfg.Validate()
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "storage_policy", ve.Param)

	cfg.Knobs.StoragePolicy = StorageReset
	cfg.Knobs.ShedPenalty = -1
	require.Error(t, cfg.Validate())

	cfg.Knobs.ShedPenalty = 100
	assert.NoError(t, cfg.Validate())

	cfg.Knobs.GasPriceMultiplier = Float(-1)
	err = cfg.Validate()
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "gas_price_multiplier", ve.Param)

	cfg.Knobs.GasPriceMultiplier = Float(0)
	cfg.Carriers = []CarrierSpec{{ID: Heat, ShedPenalty: Float(-5)}}
	err = cfg.Validate()
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "carriers.heat.shed_penalty", ve.Param)

	cfg.Carriers[0].ShedPenalty = Float(0)
	cfg.Devices[0].BaseCapacity = -2
	err = cfg.Validate()
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "devices.hp.base_capacity", ve.Param)
}

func TestScenarioCarriersAndPenalty(t *testing.T) {
	sc := &Scenario{
		Carriers: []CarrierSpec{{ID: Elec, Importable: true}, {ID: Heat, ShedPenalty: Float(7000)}, {ID: Cool, ShedPenalty: Float(0)}},
		Devices:  []Device{{ID: "gb", Kind: KindGasBoiler, Efficiency: 0.9}},
		Knobs:    Knobs{ShedPenalty: 200},
		Days: []RepresentativeDay{
			{Weight: 2, Demand: map[Carrier][]float64{Cool: {1, 1}}},
			{Weight: 3},
		},
		HoursPerDay: 2,
	}
	assert.Equal(t, []Carrier{Cool, Elec, Gas, Heat}, sc.CarrierIDs())
	assert.Equal(t, 10.0, sc.WeightedHours())
	assert.Equal(t, 7000.0, sc.Penalty(Heat))
	assert.Equal(t, 200.0, sc.Penalty(Gas))
	assert.Equal(t, 0.0, sc.Penalty(Cool), "explicit zero carrier penalty")
	assert.False(t, sc.CarrierSpec(Gas).Importable)
}
