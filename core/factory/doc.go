// Package factory provides a small generic registry used to instantiate
// pluggable modules (solver engines, samplers, metrics sinks, result stores)
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[solver.Engine]()
//	reg.Register("simplex", func(conf map[string]any) (solver.Engine, error) {
//	    var c struct{ Tolerance float64 `json:"tolerance"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return &Simplex{Tolerance: c.Tolerance}, nil
//	})
//	eng, err := reg.Create(factory.ModuleConfig{Type: "simplex", Conf: map[string]any{"tolerance": 1e-9}})
package factory
