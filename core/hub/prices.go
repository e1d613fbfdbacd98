package hub

import "github.com/kilianp07/mesplan/core/model"

// ImportPrice is the effective import price of c in day d, hour t, with the
// scenario's price multiplier applied.
func (m *Model) ImportPrice(c model.Carrier, d, t int) float64 {
	return seriesAt(m.Scenario.Days[d].Price[c], t) * m.Scenario.Knobs.PriceMultiplier(c)
}

// ExportPrice is the export revenue per MWh of c in day d, hour t.
func (m *Model) ExportPrice(c model.Carrier, d, t int) float64 {
	return seriesAt(m.Scenario.Days[d].ExportPrice[c], t)
}

// Demand is the load of c in day d, hour t.
func (m *Model) Demand(c model.Carrier, d, t int) float64 {
	return seriesAt(m.Scenario.Days[d].Demand[c], t)
}

// UnitInvestment is the annualised investment cost per unit of capacity of
// dev.
func (m *Model) UnitInvestment(dev model.Device) float64 {
	k := m.Scenario.Knobs
	return dev.InvestmentCost * k.InvestmentMultiplier(dev.ID) * AnnuityFactor(k.InterestRate, dev.LifetimeYears)
}

// Hours returns the number of timesteps per representative day.
func (m *Model) Hours() int { return m.Scenario.HoursPerDay }
