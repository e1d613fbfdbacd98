package timeseries

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mesplan/core/model"
)

const sample = `timestamp,elec_load(MW),heating_load(MW),cooling_load(MW),elec_price(HKD/MWh),gas_price(HKD/m^3),note
2023-01-01 00:00:00,10,5,2,800,3.1,a
2023-01-01 01:00:00,11,6,2.5,820,3.2,b
2023-01-01 02:00:00, 12 ,7,3,810,3.0,c
`

func TestRead_DefaultColumns(t *testing.T) {
	data, err := Read(strings.NewReader(sample), DefaultColumns())
	require.NoError(t, err)

	assert.Equal(t, 3, data.Len())
	assert.Equal(t, []float64{10, 11, 12}, data.Demand[model.Elec])
	assert.Equal(t, []float64{2, 2.5, 3}, data.Demand[model.Cool])
	assert.InDeltaSlice(t, []float64{310, 320, 300}, data.Price[model.Gas], 1e-9)
	assert.Equal(t, []model.Carrier{model.Cool, model.Elec, model.Gas, model.Heat}, data.Carriers())
}

func TestRead_ExportPrice(t *testing.T) {
	cols := []Column{
		{Name: "elec_price(HKD/MWh)", Carrier: model.Elec, Role: RoleExportPrice, Scale: 0.5},
	}
	data, err := Read(strings.NewReader(sample), cols)
	require.NoError(t, err)
	assert.Equal(t, []float64{400, 410, 405}, data.ExportPrice[model.Elec])
	assert.Empty(t, data.Demand)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		param string
	}{
		{"missing column", "timestamp,x\n0,1\n", "data.columns.elec_load(MW)"},
		{"bad number", "elec_load(MW)\nabc\n", "data.columns.elec_load(MW)"},
		{"nan", "elec_load(MW)\nNaN\n", "data.columns.elec_load(MW)"},
		{"no rows", "elec_load(MW)\n", "data"},
		{"empty", "", "data"},
		{"ragged", "elec_load(MW),b\n1,2\n3\n", "data"},
	}
	cols := []Column{{Name: "elec_load(MW)", Carrier: model.Elec, Role: RoleDemand}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), cols)
			var shape *model.DataShapeError
			require.True(t, errors.As(err, &shape), "got %v", err)
			assert.Equal(t, tt.param, shape.Param)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	c := Config{Path: "x.csv"}
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.Len(t, c.Columns, 5)

	assert.Error(t, (&Config{}).Validate())

	dup := Config{Path: "x", Columns: []Column{
		{Name: "a", Carrier: model.Heat, Role: RoleDemand},
		{Name: "b", Carrier: model.Heat, Role: RoleDemand},
	}}
	assert.Error(t, dup.Validate())

	role := Config{Path: "x", Columns: []Column{{Name: "a", Carrier: model.Heat, Role: "load"}}}
	assert.Error(t, role.Validate())

	scale := Config{Path: "x", Columns: []Column{{Name: "a", Carrier: model.Heat, Role: RoleDemand, Scale: -1}}}
	assert.Error(t, scale.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	data, err := Load(Config{Path: path})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6, 7}, data.Demand[model.Heat])

	_, err = Load(Config{Path: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}
