package sampler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mesplan/core/model"
)

// year builds days×hours of data where every day has its own level.
func year(days, hours int) *model.AnnualData {
	demand := make([]float64, days*hours)
	price := make([]float64, days*hours)
	for d := 0; d < days; d++ {
		for h := 0; h < hours; h++ {
			demand[d*hours+h] = float64(d%7) + float64(h)/10
			price[d*hours+h] = 30 + float64(d%5)
		}
	}
	return &model.AnnualData{
		Demand: map[model.Carrier][]float64{model.Heat: demand},
		Price:  map[model.Carrier][]float64{model.Gas: price},
	}
}

func weightSum(days []model.RepresentativeDay) float64 {
	var s float64
	for _, d := range days {
		s += d.Weight
	}
	return s
}

func TestUniform_WeightsCoverYear(t *testing.T) {
	data := year(365, 4)
	for _, k := range []int{1, 2, 4, 12, 50, 365} {
		days, err := Uniform{}.Sample(data, k, 4)
		require.NoError(t, err, "k=%d", k)
		require.Len(t, days, k)
		if got := weightSum(days) * 4; got != 365*4 {
			t.Fatalf("k=%d: weighted hours %v, want %d", k, got, 365*4)
		}
		for i := 1; i < len(days); i++ {
			if days[i].Index <= days[i-1].Index {
				t.Fatalf("k=%d: days not in calendar order", k)
			}
		}
	}
}

func TestUniform_Picks(t *testing.T) {
	days, err := Uniform{}.Sample(year(10, 2), 4, 2)
	require.NoError(t, err)
	idx := make([]int, len(days))
	w := make([]float64, len(days))
	for i, d := range days {
		idx[i], w[i] = d.Index, d.Weight
	}
	assert.Equal(t, []int{0, 3, 6, 9}, idx)
	// day 1 -> 0, 2 -> 3, 4 -> 3, 5 -> 6, 7 -> 6, 8 -> 9
	assert.Equal(t, []float64{2, 3, 3, 2}, w)

	d := days[1]
	assert.Equal(t, []float64{3, 3.1}, d.Demand[model.Heat])
	assert.Equal(t, []float64{33, 33}, d.Price[model.Gas])
	assert.Nil(t, d.ExportPrice)
}

func TestSample_DataShapeErrors(t *testing.T) {
	cases := []struct {
		name  string
		data  *model.AnnualData
		k     int
		hours int
		param string
	}{
		{"nil data", nil, 1, 24, "data"},
		{"not divisible", year(3, 5), 1, 4, "data"},
		{"zero k", year(3, 4), 0, 4, "num_days"},
		{"k above days", year(3, 4), 4, 4, "num_days"},
		{"bad hours", year(3, 4), 1, 0, "hours_per_day"},
		{"empty", &model.AnnualData{}, 1, 4, "data"},
		{"mismatch", &model.AnnualData{
			Demand: map[model.Carrier][]float64{model.Heat: make([]float64, 8)},
			Price:  map[model.Carrier][]float64{model.Gas: make([]float64, 4)},
		}, 1, 4, "data"},
	}
	for _, s := range []Sampler{Uniform{}, KMedoids{}} {
		for _, tc := range cases {
			_, err := s.Sample(tc.data, tc.k, tc.hours)
			var ds *model.DataShapeError
			if !errors.As(err, &ds) {
				t.Fatalf("%T %s: expected DataShapeError, got %v", s, tc.name, err)
			}
			assert.Equal(t, tc.param, ds.Param, "%T %s", s, tc.name)
		}
	}
}

func TestKMedoids_Deterministic(t *testing.T) {
	data := year(60, 3)
	a, err := KMedoids{}.Sample(data, 5, 3)
	require.NoError(t, err)
	b, err := KMedoids{}.Sample(data, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 60.0, weightSum(a))
	for i := 1; i < len(a); i++ {
		assert.Less(t, a[i-1].Index, a[i].Index)
	}
}

func TestKMedoids_SeparatesProfiles(t *testing.T) {
	// 6 flat days followed by 4 peaky days
	hours := 2
	demand := make([]float64, 0, 10*hours)
	for d := 0; d < 10; d++ {
		if d < 6 {
			demand = append(demand, 1, 1)
		} else {
			demand = append(demand, 1, 9)
		}
	}
	data := &model.AnnualData{Demand: map[model.Carrier][]float64{model.Heat: demand}}
	days, err := KMedoids{}.Sample(data, 2, hours)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, 0, days[0].Index)
	assert.Equal(t, 6.0, days[0].Weight)
	assert.Equal(t, 6, days[1].Index)
	assert.Equal(t, 4.0, days[1].Weight)
}

func TestKMedoids_TooFewDistinctDays(t *testing.T) {
	data := &model.AnnualData{Demand: map[model.Carrier][]float64{model.Heat: {1, 1, 1, 1, 1, 1}}}
	_, err := KMedoids{}.Sample(data, 2, 2)
	var ds *model.DataShapeError
	require.True(t, errors.As(err, &ds))
	assert.Equal(t, "num_days", ds.Param)
}

func TestNew(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	assert.IsType(t, Uniform{}, s)
	s, err = New("kmedoids")
	require.NoError(t, err)
	assert.IsType(t, KMedoids{}, s)
	_, err = New("random")
	assert.Error(t, err)
}
