// Package timeseries loads the hourly annual data of a hub from CSV.
package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/kilianp07/mesplan/core/model"
)

// Role says which annual series a column feeds.
type Role string

const (
	RoleDemand      Role = "demand"
	RolePrice       Role = "price"
	RoleExportPrice Role = "export_price"
)

// Column maps one CSV column onto a carrier series.
type Column struct {
	Name    string        `json:"name"`
	Carrier model.Carrier `json:"carrier"`
	Role    Role          `json:"role"`
	// Scale multiplies every value. Zero means 1.
	Scale float64 `json:"scale"`
}

func (c Column) factor() float64 {
	if c.Scale == 0 {
		return 1
	}
	return c.Scale
}

// Config locates the annual data file and its columns.
type Config struct {
	Path    string   `json:"path"`
	Columns []Column `json:"columns"`
}

// DefaultColumns is the layout of the reference data set. Gas is quoted per
// cubic metre and scaled to currency per MWh.
func DefaultColumns() []Column {
	return []Column{
		{Name: "elec_load(MW)", Carrier: model.Elec, Role: RoleDemand},
		{Name: "heating_load(MW)", Carrier: model.Heat, Role: RoleDemand},
		{Name: "cooling_load(MW)", Carrier: model.Cool, Role: RoleDemand},
		{Name: "elec_price(HKD/MWh)", Carrier: model.Elec, Role: RolePrice},
		{Name: "gas_price(HKD/m^3)", Carrier: model.Gas, Role: RolePrice, Scale: 100},
	}
}

// SetDefaults fills the column mapping when none is configured.
func (c *Config) SetDefaults() {
	if len(c.Columns) == 0 {
		c.Columns = DefaultColumns()
	}
}

// Validate checks the mapping.
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("data.path is required")
	}
	seen := map[string]bool{}
	for _, col := range c.Columns {
		if col.Name == "" || col.Carrier == "" {
			return fmt.Errorf("data.columns: name and carrier are required")
		}
		switch col.Role {
		case RoleDemand, RolePrice, RoleExportPrice:
		default:
			return fmt.Errorf("data.columns.%s: unknown role %q", col.Name, col.Role)
		}
		if col.Scale < 0 || math.IsNaN(col.Scale) {
			return fmt.Errorf("data.columns.%s: scale must be >= 0", col.Name)
		}
		key := string(col.Role) + "/" + string(col.Carrier)
		if seen[key] {
			return fmt.Errorf("data.columns.%s: duplicate %s series for %s", col.Name, col.Role, col.Carrier)
		}
		seen[key] = true
	}
	return nil
}

// Load reads the file named by c.
func Load(c Config) (*model.AnnualData, error) {
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()
	return Read(f, c.Columns)
}

// Read parses CSV with a header row. Columns not named in cols are ignored,
// including the leading timestamp column. Every mapped cell must be a finite
// number.
func Read(r io.Reader, cols []Column) (*model.AnnualData, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, &model.DataShapeError{Param: "data", Msg: fmt.Sprintf("read header: %v", err)}
	}
	idx := make([]int, len(cols))
	for i, col := range cols {
		idx[i] = -1
		for j, h := range header {
			if strings.TrimSpace(h) == col.Name {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, &model.DataShapeError{Param: "data.columns." + col.Name, Msg: "column not found"}
		}
	}

	series := make([][]float64, len(cols))
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &model.DataShapeError{Param: "data", Msg: fmt.Sprintf("line %d: %v", line, err)}
		}
		for i, col := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[i]]), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &model.DataShapeError{
					Param: "data.columns." + col.Name,
					Msg:   fmt.Sprintf("line %d: invalid value %q", line, rec[idx[i]]),
				}
			}
			series[i] = append(series[i], v*col.factor())
		}
	}
	if line == 1 {
		return nil, &model.DataShapeError{Param: "data", Msg: "no rows"}
	}

	out := &model.AnnualData{
		Demand:      map[model.Carrier][]float64{},
		Price:       map[model.Carrier][]float64{},
		ExportPrice: map[model.Carrier][]float64{},
	}
	for i, col := range cols {
		switch col.Role {
		case RoleDemand:
			out.Demand[col.Carrier] = series[i]
		case RolePrice:
			out.Price[col.Carrier] = series[i]
		case RoleExportPrice:
			out.ExportPrice[col.Carrier] = series[i]
		default:
			return nil, fmt.Errorf("data.columns.%s: unknown role %q", col.Name, col.Role)
		}
	}
	return out, nil
}
