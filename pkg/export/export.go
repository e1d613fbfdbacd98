// Package export writes planning results as JSON and CSV. Costs are rounded
// to cents and energies to kWh with shopspring/decimal so exported figures
// do not carry binary round-off.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/mesplan/core/model"
)

const (
	moneyPlaces  = 2
	energyPlaces = 3
	ratioPlaces  = 4
)

func money(v float64) string  { return fixed(v, moneyPlaces) }
func energy(v float64) string { return fixed(v, energyPlaces) }
func ratio(v float64) string  { return fixed(v, ratioPlaces) }

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// WriteJSON encodes v indented.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes a header and rows, flushing at the end.
func table(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func carrierKeys[V any](maps ...map[model.Carrier]V) []model.Carrier {
	seen := map[model.Carrier]bool{}
	for _, m := range maps {
		for c := range m {
			seen[c] = true
		}
	}
	out := make([]model.Carrier, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func stringKeys[V any](maps ...map[string]V) []string {
	seen := map[string]bool{}
	for _, m := range maps {
		for k := range m {
			seen[k] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
