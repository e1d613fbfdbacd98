package hub

import "math"

// AnnuityFactor is the capital recovery factor turning an overnight
// investment into equal yearly payments over lifetime years at rate.
// A zero lifetime charges the full cost in one year.
func AnnuityFactor(rate float64, lifetime int) float64 {
	if lifetime <= 0 {
		return 1
	}
	if rate == 0 {
		return 1 / float64(lifetime)
	}
	g := math.Pow(1+rate, float64(lifetime))
	return rate * g / (g - 1)
}
