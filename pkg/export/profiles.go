package export

import (
	"io"
	"strconv"

	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/results"
)

func profileCarriers(ps []results.HourProfile) []model.Carrier {
	var ms []map[model.Carrier]results.CarrierHour
	for _, p := range ps {
		ms = append(ms, p.Carriers)
	}
	return carrierKeys(ms...)
}

func hourCols(p results.HourProfile) []string {
	return []string{
		strconv.Itoa(p.Day),
		strconv.Itoa(p.Calendar),
		strconv.Itoa(p.Hour),
		strconv.FormatFloat(p.Weight, 'f', -1, 64),
	}
}

var hourHeader = []string{"day", "calendar_day", "hour", "weight"}

// WriteEnergyBalanceCSV writes demand, import, export, supply, consumption
// and shed of every carrier per representative hour.
func WriteEnergyBalanceCSV(w io.Writer, ps []results.HourProfile) error {
	carriers := profileCarriers(ps)
	header := append([]string(nil), hourHeader...)
	for _, c := range carriers {
		n := c.String()
		header = append(header, n+"_demand", n+"_import", n+"_export", n+"_supply", n+"_consumption", n+"_shed")
	}
	rows := make([][]string, 0, len(ps))
	for _, p := range ps {
		r := hourCols(p)
		for _, c := range carriers {
			h := p.Carriers[c]
			r = append(r, energy(h.Demand), energy(h.Import), energy(h.Export),
				energy(h.Supply), energy(h.Consumption), energy(h.Shed))
		}
		rows = append(rows, r)
	}
	return table(w, header, rows)
}

// WriteSOCCSV writes the end-of-hour state of charge of every storage
// device.
func WriteSOCCSV(w io.Writer, ps []results.HourProfile) error {
	var socs []map[string]float64
	for _, p := range ps {
		socs = append(socs, p.SOC)
	}
	devices := stringKeys(socs...)
	header := append(append([]string(nil), hourHeader...), devices...)
	rows := make([][]string, 0, len(ps))
	for _, p := range ps {
		r := hourCols(p)
		for _, d := range devices {
			r = append(r, energy(p.SOC[d]))
		}
		rows = append(rows, r)
	}
	return table(w, header, rows)
}

// WriteGridImportCSV writes the import power, price and hourly cost of every
// carrier.
func WriteGridImportCSV(w io.Writer, ps []results.HourProfile) error {
	carriers := profileCarriers(ps)
	header := append([]string(nil), hourHeader...)
	for _, c := range carriers {
		n := c.String()
		header = append(header, n+"_import_mwh", n+"_price_per_mwh", n+"_cost")
	}
	rows := make([][]string, 0, len(ps))
	for _, p := range ps {
		r := hourCols(p)
		for _, c := range carriers {
			h := p.Carriers[c]
			r = append(r, energy(h.Import), money(h.ImportPrice), money(h.Import*h.ImportPrice))
		}
		rows = append(rows, r)
	}
	return table(w, header, rows)
}
