package sampler

import "github.com/kilianp07/mesplan/core/model"

// Uniform picks k days evenly spaced over the calendar. Each calendar day is
// attributed to the nearest selected day (ties go to the earlier one), so
// weights are whole days and sum exactly to the number of days.
type Uniform struct{}

// Sample implements Sampler.
func (Uniform) Sample(data *model.AnnualData, k, hoursPerDay int) ([]model.RepresentativeDay, error) {
	days, err := numDays(data, k, hoursPerDay)
	if err != nil {
		return nil, err
	}
	picks := spread(days, k)
	weights := make([]int, k)
	j := 0
	for day := 0; day < days; day++ {
		for j+1 < k && picks[j+1]-day < day-picks[j] {
			j++
		}
		weights[j]++
	}
	out := make([]model.RepresentativeDay, k)
	for i, idx := range picks {
		out[i] = slice(data, idx, hoursPerDay, float64(weights[i]))
	}
	return out, nil
}
