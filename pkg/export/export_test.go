package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mesplan/core/batch"
	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/results"
	"github.com/kilianp07/mesplan/core/solver"
	"github.com/kilianp07/mesplan/core/sweep"
)

func readCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	recs, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return recs
}

func summaries() []results.Summary {
	return []results.Summary{
		{
			Scenario:           "a",
			Status:             solver.StatusOptimal,
			SolveTime:          1500 * time.Millisecond,
			RepresentativeDays: 8,
			Objective:          1234.567,
			TotalCost:          1234.567,
			InvestmentCost:     1000.1,
			OperationalCost:    234.467,
			ImportCost:         234.467,
			Capacity:           map[string]float64{"gb": 11.11111},
			Import:             map[model.Carrier]float64{model.Gas: 0.1 + 0.2},
			Shed:               map[model.Carrier]float64{model.Heat: 0},
		},
		{
			Scenario:  "b",
			Status:    solver.StatusOptimal,
			Capacity:  map[string]float64{"hp": 2},
			Import:    map[model.Carrier]float64{model.Elec: 5},
			TotalCost: 10,
			Objective: 10,
		},
	}
}

func TestWriteSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, summaries()))
	recs := readCSV(t, buf.Bytes())
	require.Len(t, recs, 3)

	header := recs[0]
	assert.Equal(t, []string{
		"scenario", "status", "representative_days", "solve_time_s",
		"total_cost", "investment_cost", "operational_cost",
		"import_cost", "export_revenue", "shed_cost", "cost_gap",
		"elec_import_mwh", "elec_shed_mwh", "gas_import_mwh", "gas_shed_mwh",
		"heat_import_mwh", "heat_shed_mwh", "cap_gb", "cap_hp",
	}, header)

	a := recs[1]
	assert.Equal(t, "a", a[0])
	assert.Equal(t, "optimal", a[1])
	assert.Equal(t, "8", a[2])
	assert.Equal(t, "1.500", a[3])
	assert.Equal(t, "1234.57", a[4])
	assert.Equal(t, "1000.10", a[5])
	assert.Equal(t, "0.0000", a[10])
	assert.Equal(t, "0.300", a[13])
	assert.Equal(t, "11.111", a[17])
	assert.Equal(t, "0.000", a[18])

	b := recs[2]
	assert.Equal(t, "5.000", b[11])
	assert.Equal(t, "2.000", b[18])
}

func TestWriteSweepCSV(t *testing.T) {
	rows := []sweep.Row{
		{
			Scenario:            "base_p50_i0",
			Params:              []sweep.Param{{Name: "gas_price_multiplier", Value: 0.5}, {Name: "gas_invest_multiplier", Value: 0}},
			Status:              batch.StatusOptimal,
			TotalCost:           100.005,
			Import:              map[model.Carrier]float64{model.Gas: 12},
			GasInvestedCapacity: 3.5,
			SolveTime:           250 * time.Millisecond,
		},
		{
			Scenario: "base_p50_i10",
			Params:   []sweep.Param{{Name: "gas_price_multiplier", Value: 0.5}, {Name: "gas_invest_multiplier", Value: 0.1}},
			Status:   batch.StatusInfeasible,
			Error:    "model infeasible",
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSweepCSV(&buf, rows))
	recs := readCSV(t, buf.Bytes())
	require.Len(t, recs, 3)
	assert.Equal(t, []string{
		"scenario", "gas_price_multiplier", "gas_invest_multiplier", "status", "error",
		"total_annual_cost", "investment_cost", "operational_cost", "gas_import_mwh",
		"shed_mwh", "solve_time", "gas_invested_capacity_mw",
	}, recs[0])
	assert.Equal(t, []string{"base_p50_i0", "0.5", "0", "optimal", "", "100.01", "0.00", "0.00", "12.000", "0.000", "0.250", "3.500"}, recs[1])
	assert.Equal(t, "infeasible", recs[2][3])
	assert.Equal(t, "model infeasible", recs[2][4])
}

func profiles() []results.HourProfile {
	return []results.HourProfile{
		{
			Day: 0, Calendar: 10, Hour: 0, Weight: 182.5,
			Carriers: map[model.Carrier]results.CarrierHour{
				model.Gas:  {Import: 2, ImportPrice: 300},
				model.Heat: {Demand: 1.8, Supply: 1.8},
			},
			SOC: map[string]float64{"tank": 0.25},
		},
		{
			Day: 0, Calendar: 10, Hour: 1, Weight: 182.5,
			Carriers: map[model.Carrier]results.CarrierHour{
				model.Gas:  {Import: 1, ImportPrice: 310.5},
				model.Heat: {Demand: 1, Supply: 0.9, Shed: 0.1},
			},
			SOC: map[string]float64{"tank": 0},
		},
	}
}

func TestWriteEnergyBalanceCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEnergyBalanceCSV(&buf, profiles()))
	recs := readCSV(t, buf.Bytes())
	require.Len(t, recs, 3)
	assert.Equal(t, "gas_demand", recs[0][4])
	assert.Equal(t, "heat_shed", recs[0][len(recs[0])-1])
	assert.Equal(t, []string{"0", "10", "1", "182.5"}, recs[2][:4])
	assert.Equal(t, "0.100", recs[2][len(recs[2])-1])
}

func TestWriteSOCCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSOCCSV(&buf, profiles()))
	recs := readCSV(t, buf.Bytes())
	assert.Equal(t, []string{"day", "calendar_day", "hour", "weight", "tank"}, recs[0])
	assert.Equal(t, "0.250", recs[1][4])
}

func TestWriteGridImportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGridImportCSV(&buf, profiles()))
	recs := readCSV(t, buf.Bytes())
	assert.Equal(t, []string{"gas_import_mwh", "gas_price_per_mwh", "gas_cost"}, recs[0][4:7])
	assert.Equal(t, []string{"2.000", "300.00", "600.00"}, recs[1][4:7])
	assert.Equal(t, []string{"1.000", "310.50", "310.50"}, recs[2][4:7])
}

func TestScenarioFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sum := summaries()[0]

	paths, err := ScenarioFiles(dir, sum, nil)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	raw, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	var back results.Summary
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "a", back.Scenario)
	assert.Equal(t, solver.StatusOptimal, back.Status)

	paths, err = ScenarioFiles(dir, sum, profiles())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_summary.json"),
		filepath.Join(dir, "a_energy_balance.csv"),
		filepath.Join(dir, "a_storage_soc.csv"),
		filepath.Join(dir, "a_grid_import.csv"),
	}, paths)
}

func TestSweepFile(t *testing.T) {
	dir := t.TempDir()
	p, err := SweepFile(dir, "days", []sweep.Row{{Scenario: "x_days2", Params: []sweep.Param{{Name: "num_days", Value: 2}}, Status: batch.StatusOptimal}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "days_sweep_results.csv"), p)
	_, err = os.Stat(p)
	assert.NoError(t, err)
}
