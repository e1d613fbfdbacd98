package sampler

import (
	"fmt"

	"github.com/kilianp07/mesplan/core/factory"
	"github.com/kilianp07/mesplan/core/model"
)

// Sampler reduces a year of hourly data to k weighted representative days.
// Implementations must be deterministic: identical inputs yield identical
// days and weights.
type Sampler interface {
	Sample(data *model.AnnualData, k, hoursPerDay int) ([]model.RepresentativeDay, error)
}

var registry = factory.NewRegistry[Sampler]()

func init() {
	_ = Register("uniform", func(map[string]any) (Sampler, error) { return Uniform{}, nil })
	_ = Register("kmedoids", func(conf map[string]any) (Sampler, error) {
		var c struct {
			MaxIterations int `json:"max_iterations"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return KMedoids{MaxIterations: c.MaxIterations}, nil
	})
}

// Register adds a sampler factory identified by name.
func Register(name string, f factory.Factory[Sampler]) error {
	return registry.Register(name, f)
}

// New returns the sampler registered under name. An empty name selects the
// uniform sampler.
func New(name string) (Sampler, error) {
	if name == "" {
		name = "uniform"
	}
	return registry.Create(factory.ModuleConfig{Type: name})
}

// numDays validates the series shape and returns the number of calendar
// days in data.
func numDays(data *model.AnnualData, k, hoursPerDay int) (int, error) {
	if data == nil {
		return 0, &model.DataShapeError{Param: "data", Msg: "no annual data"}
	}
	if hoursPerDay <= 0 {
		return 0, &model.DataShapeError{Param: "hours_per_day", Msg: fmt.Sprintf("must be >= 1, got %d", hoursPerDay)}
	}
	if k < 1 {
		return 0, &model.DataShapeError{Param: "num_days", Msg: fmt.Sprintf("must be >= 1, got %d", k)}
	}
	n := data.Len()
	if n < 0 {
		return 0, &model.DataShapeError{Param: "data", Msg: "series lengths differ"}
	}
	if n == 0 {
		return 0, &model.DataShapeError{Param: "data", Msg: "series are empty"}
	}
	if n%hoursPerDay != 0 {
		return 0, &model.DataShapeError{Param: "data", Msg: fmt.Sprintf("series length %d is not a multiple of %d", n, hoursPerDay)}
	}
	days := n / hoursPerDay
	if k > days {
		return 0, &model.DataShapeError{Param: "num_days", Msg: fmt.Sprintf("%d representative days requested but only %d days available", k, days)}
	}
	return days, nil
}

// slice copies calendar day idx out of data.
func slice(data *model.AnnualData, idx, hoursPerDay int, weight float64) model.RepresentativeDay {
	lo, hi := idx*hoursPerDay, (idx+1)*hoursPerDay
	cut := func(set map[model.Carrier][]float64) map[model.Carrier][]float64 {
		if len(set) == 0 {
			return nil
		}
		out := make(map[model.Carrier][]float64, len(set))
		for c, s := range set {
			out[c] = append([]float64(nil), s[lo:hi]...)
		}
		return out
	}
	return model.RepresentativeDay{
		Index:       idx,
		Weight:      weight,
		Demand:      cut(data.Demand),
		Price:       cut(data.Price),
		ExportPrice: cut(data.ExportPrice),
	}
}

// spread returns k evenly spaced calendar indices in [0, days-1].
func spread(days, k int) []int {
	idx := make([]int, k)
	if k == 1 {
		return idx
	}
	for i := range idx {
		idx[i] = i * (days - 1) / (k - 1)
	}
	return idx
}
