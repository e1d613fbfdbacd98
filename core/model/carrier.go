package model

// Carrier identifies an energy form exchanged inside the hub.
type Carrier string

// Carriers handled by the built-in device kinds.
const (
	Elec Carrier = "elec"
	Gas  Carrier = "gas"
	Heat Carrier = "heat"
	Cool Carrier = "cool"
)

func (c Carrier) String() string { return string(c) }

// CarrierSpec describes how a carrier can cross the hub boundary.
type CarrierSpec struct {
	ID Carrier
	// Importable allows purchasing the carrier at its import price series.
	// When false, or when no price series exists, the import variable is
	// fixed to zero.
	Importable bool
	// ImportLimit caps the import power in MW. Zero means unlimited.
	ImportLimit float64
	// Exportable allows selling surplus at the export price series.
	Exportable bool
	// ExportLimit caps the export power in MW. Zero means unlimited.
	ExportLimit float64
	// ShedPenalty overrides the knob penalties when non-nil. Zero is allowed.
	ShedPenalty *float64
}
