package sampler

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/mesplan/core/model"
)

const defaultMaxIterations = 100

// KMedoids clusters calendar days on their normalised demand and price
// shape and returns the medoid of each cluster weighted by the cluster size.
// Initial medoids are the uniform picks; every tie is broken by the lowest
// calendar index.
type KMedoids struct {
	MaxIterations int
}

// Sample implements Sampler.
func (s KMedoids) Sample(data *model.AnnualData, k, hoursPerDay int) ([]model.RepresentativeDay, error) {
	days, err := numDays(data, k, hoursPerDay)
	if err != nil {
		return nil, err
	}
	feats := features(data, days, hoursPerDay)
	if distinct := countDistinct(feats); k > distinct {
		return nil, &model.DataShapeError{Param: "num_days", Msg: fmt.Sprintf("%d representative days requested but only %d distinct days available", k, distinct)}
	}

	dist := make([][]float64, days)
	for i := range dist {
		dist[i] = make([]float64, days)
		for j := 0; j < i; j++ {
			d := floats.Distance(feats[i], feats[j], 2)
			dist[i][j], dist[j][i] = d, d
		}
	}

	medoids := initialMedoids(feats, days, k)
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	assign := make([]int, days)
	for iter := 0; iter < maxIter; iter++ {
		assignDays(dist, medoids, assign)
		changed := false
		for c := range medoids {
			best, bestCost := medoids[c], math.Inf(1)
			for cand := 0; cand < days; cand++ {
				if assign[cand] != c {
					continue
				}
				var cost float64
				for m := 0; m < days; m++ {
					if assign[m] == c {
						cost += dist[cand][m]
					}
				}
				if cost < bestCost {
					best, bestCost = cand, cost
				}
			}
			if best != medoids[c] {
				medoids[c] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	assignDays(dist, medoids, assign)

	sizes := make([]int, k)
	for _, c := range assign {
		sizes[c]++
	}
	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return medoids[order[a]] < medoids[order[b]] })
	out := make([]model.RepresentativeDay, 0, k)
	for _, c := range order {
		out = append(out, slice(data, medoids[c], hoursPerDay, float64(sizes[c])))
	}
	return out, nil
}

// assignDays attaches every day to its nearest medoid. Medoids always
// belong to their own cluster.
func assignDays(dist [][]float64, medoids []int, assign []int) {
	for day := range assign {
		best, bestD := -1, math.Inf(1)
		for c, m := range medoids {
			d := dist[day][m]
			if best < 0 || d < bestD || (d == bestD && m < medoids[best]) {
				best, bestD = c, d
			}
		}
		assign[day] = best
	}
	for c, m := range medoids {
		assign[m] = c
	}
}

// initialMedoids starts from the uniform picks, replacing picks that
// duplicate an earlier profile with the next unused distinct day.
func initialMedoids(feats [][]float64, days, k int) []int {
	picks := spread(days, k)
	used := make([]bool, days)
	var chosen [][]float64
	dup := func(day int) bool {
		for _, f := range chosen {
			if floats.Equal(f, feats[day]) {
				return true
			}
		}
		return false
	}
	for i, p := range picks {
		day := p
		for used[day] || dup(day) {
			day = (day + 1) % days
		}
		used[day] = true
		chosen = append(chosen, feats[day])
		picks[i] = day
	}
	return picks
}

// features builds one vector per day from every series, each min-max
// normalised over the year. Series are visited in sorted carrier order.
func features(data *model.AnnualData, days, hoursPerDay int) [][]float64 {
	var series [][]float64
	for _, set := range []map[model.Carrier][]float64{data.Demand, data.Price, data.ExportPrice} {
		keys := make([]model.Carrier, 0, len(set))
		for c := range set {
			keys = append(keys, c)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, c := range keys {
			series = append(series, normalise(set[c]))
		}
	}
	out := make([][]float64, days)
	for d := range out {
		v := make([]float64, 0, len(series)*hoursPerDay)
		for _, s := range series {
			v = append(v, s[d*hoursPerDay:(d+1)*hoursPerDay]...)
		}
		out[d] = v
	}
	return out
}

func normalise(s []float64) []float64 {
	out := make([]float64, len(s))
	lo, hi := floats.Min(s), floats.Max(s)
	if hi == lo {
		return out
	}
	copy(out, s)
	floats.AddConst(-lo, out)
	floats.Scale(1/(hi-lo), out)
	return out
}

func countDistinct(feats [][]float64) int {
	n := 0
	for i := range feats {
		unique := true
		for j := 0; j < i; j++ {
			if floats.Equal(feats[i], feats[j]) {
				unique = false
				break
			}
		}
		if unique {
			n++
		}
	}
	return n
}
