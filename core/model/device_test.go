package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceKind(t *testing.T) {
	cases := map[string]DeviceKind{
		"heat_pump":       KindHeatPump,
		"HeatPump":        KindHeatPump,
		"cerg":            KindElectricChiller,
		"warp":            KindAbsorptionChiller,
		"ice":             KindCHP,
		"chp":             KindCHP,
		" boiler ":        KindGasBoiler,
		"electric_boiler": KindElectricBoiler,
		"storage":         KindStorage,
	}
	for in, want := range cases {
		got, err := ParseDeviceKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDeviceKind("fusion")
	assert.Error(t, err)
	assert.Equal(t, "absorption_chiller", KindAbsorptionChiller.String())
}

func TestDeviceValidate(t *testing.T) {
	ok := []Device{
		{ID: "hp", Kind: KindHeatPump, COP: 3, MaxCapacity: 10},
		{ID: "chp", Kind: KindCHP, ElecEfficiency: 0.35, HeatEfficiency: 0.45, MaxCapacity: math.Inf(1)},
		{ID: "gb", Kind: KindGasBoiler, Efficiency: 0.9, MaxCapacity: 0},
		{ID: "tes", Kind: KindStorage, MaxCapacity: 50, Storage: &StorageParams{Carrier: Heat, RoundTripEfficiency: 0.81}},
	}
	for _, d := range ok {
		assert.NoError(t, d.Validate(), d.ID)
	}

	bad := []struct {
		dev   Device
		param string
	}{
		{Device{ID: "hp", Kind: KindHeatPump, COP: 0, MaxCapacity: 1}, "devices.hp.cop"},
		{Device{ID: "gb", Kind: KindGasBoiler, Efficiency: 1.2, MaxCapacity: 1}, "devices.gb.eta"},
		{Device{ID: "chp", Kind: KindCHP, ElecEfficiency: 0.3, MaxCapacity: 1}, "devices.chp.eta_q"},
		{Device{ID: "x", Kind: KindHeatPump, COP: 3, MinCapacity: 5, MaxCapacity: 1}, "devices.x.min_capacity"},
		{Device{ID: "x", Kind: KindHeatPump, COP: 3, MaxCapacity: -1}, "devices.x.max_capacity"},
		{Device{ID: "x", Kind: KindHeatPump, COP: 3, MaxCapacity: 1, Availability: 1.5}, "devices.x.availability"},
		{Device{ID: "s", Kind: KindStorage, MaxCapacity: 1}, "devices.s.storage"},
		{Device{ID: "s", Kind: KindStorage, MaxCapacity: 1, Storage: &StorageParams{Carrier: Heat}}, "devices.s.eta_c"},
		{Device{ID: "k", Kind: DeviceKind(42), MaxCapacity: 1}, "devices.k.kind"},
	}
	for _, tc := range bad {
		err := tc.dev.Validate()
		var ve *ValidationError
		require.True(t, errors.As(err, &ve), "%s: got %v", tc.param, err)
		assert.Equal(t, tc.param, ve.Param)
	}
}

func TestDevicePorts(t *testing.T) {
	chp := Device{Kind: KindCHP, ElecEfficiency: 0.35, HeatEfficiency: 0.45}
	in, outs := chp.Ports()
	assert.Equal(t, Gas, in)
	assert.Equal(t, []Output{{Elec, 0.35}, {Heat, 0.45}}, outs)

	abs := Device{Kind: KindAbsorptionChiller, COP: 0.7}
	in, outs = abs.Ports()
	assert.Equal(t, Heat, in)
	assert.Equal(t, []Output{{Cool, 0.7}}, outs)

	st := Device{Kind: KindStorage, Storage: &StorageParams{Carrier: Cool}}
	in, outs = st.Ports()
	assert.Equal(t, Cool, in)
	assert.Empty(t, outs)
}

func TestStorageDefaults(t *testing.T) {
	s := StorageParams{RoundTripEfficiency: 0.81}
	c, d := s.Efficiencies()
	assert.InDelta(t, 0.9, c, 1e-12)
	assert.InDelta(t, 0.9, d, 1e-12)
	assert.Equal(t, 1.0, s.Ratio())

	s = StorageParams{ChargeEfficiency: 0.95, DischargeEfficiency: 0.9, RoundTripEfficiency: 0.5, PowerRatio: 0.25}
	c, d = s.Efficiencies()
	assert.Equal(t, 0.95, c)
	assert.Equal(t, 0.9, d)
	assert.Equal(t, 0.25, s.Ratio())

	assert.Equal(t, 1.0, Device{}.Derate())
	assert.True(t, Device{MaxCapacity: 0}.Excluded())
}
