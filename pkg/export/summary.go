package export

import (
	"io"
	"strconv"

	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/results"
	"github.com/kilianp07/mesplan/core/sweep"
)

// WriteSummaryCSV writes one row per summary. Carrier and device columns
// are the union over all summaries, sorted.
func WriteSummaryCSV(w io.Writer, sums []results.Summary) error {
	var imports, sheds []map[model.Carrier]float64
	var caps []map[string]float64
	for _, s := range sums {
		imports = append(imports, s.Import)
		sheds = append(sheds, s.Shed)
		caps = append(caps, s.Capacity)
	}
	carriers := carrierKeys(append(imports, sheds...)...)
	devices := stringKeys(caps...)

	header := []string{
		"scenario", "status", "representative_days", "solve_time_s",
		"total_cost", "investment_cost", "operational_cost",
		"import_cost", "export_revenue", "shed_cost", "cost_gap",
	}
	for _, c := range carriers {
		header = append(header, c.String()+"_import_mwh", c.String()+"_shed_mwh")
	}
	for _, d := range devices {
		header = append(header, "cap_"+d)
	}

	rows := make([][]string, 0, len(sums))
	for _, s := range sums {
		r := []string{
			s.Scenario,
			s.Status.String(),
			strconv.Itoa(s.RepresentativeDays),
			seconds(s.SolveTime),
			money(s.TotalCost),
			money(s.InvestmentCost),
			money(s.OperationalCost),
			money(s.ImportCost),
			money(s.ExportRevenue),
			money(s.ShedCost),
			ratio(s.CostGap()),
		}
		for _, c := range carriers {
			r = append(r, energy(s.Import[c]), energy(s.Shed[c]))
		}
		for _, d := range devices {
			r = append(r, energy(s.Capacity[d]))
		}
		rows = append(rows, r)
	}
	return table(w, header, rows)
}

// WriteSweepCSV writes a sweep table. Parameter columns follow the axes of
// the first row.
func WriteSweepCSV(w io.Writer, rows []sweep.Row) error {
	var params []string
	if len(rows) > 0 {
		for _, p := range rows[0].Params {
			params = append(params, p.Name)
		}
	}
	var imports []map[model.Carrier]float64
	for _, r := range rows {
		imports = append(imports, r.Import)
	}
	carriers := carrierKeys(imports...)

	header := []string{"scenario"}
	header = append(header, params...)
	header = append(header, "status", "error", "total_annual_cost", "investment_cost", "operational_cost")
	for _, c := range carriers {
		header = append(header, c.String()+"_import_mwh")
	}
	header = append(header, "shed_mwh", "solve_time", "gas_invested_capacity_mw")

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := []string{r.Scenario}
		for i := range params {
			v := ""
			if i < len(r.Params) {
				v = strconv.FormatFloat(r.Params[i].Value, 'f', -1, 64)
			}
			rec = append(rec, v)
		}
		rec = append(rec, string(r.Status), r.Error,
			money(r.TotalCost), money(r.InvestmentCost), money(r.OperationalCost))
		for _, c := range carriers {
			rec = append(rec, energy(r.Import[c]))
		}
		rec = append(rec, energy(r.Shed), seconds(r.SolveTime), energy(r.GasInvestedCapacity))
		out = append(out, rec)
	}
	return table(w, header, out)
}
