package factory

import "testing"

type engine struct{ Tol float64 }

type engineConf struct {
	Tol float64 `json:"tolerance"`
}

// Test registry registration and instantiation using Decode.
func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*engine]()
	if err := reg.Register("simplex", func(conf map[string]any) (*engine, error) {
		var c engineConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &engine{Tol: c.Tol}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	inst, err := reg.Create(ModuleConfig{Type: "simplex", Conf: map[string]any{"tolerance": 1e-9}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.Tol != 1e-9 {
		t.Fatalf("expected 1e-9 got %v", inst.Tol)
	}
}

// Test duplicate registration and unknown type errors.
func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	f := func(map[string]any) (int, error) { return 1, nil }
	if err := reg.Register("one", f); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("one", f); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if _, err := reg.Create(ModuleConfig{Type: "two"}); err == nil {
		t.Fatal("expected unknown type error")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "one" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestDecode_WeakTypes(t *testing.T) {
	var c struct {
		Workers int     `json:"workers"`
		Tol     float64 `json:"tol"`
	}
	if err := Decode(map[string]any{"workers": "4", "tol": "1e-9"}, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Workers != 4 || c.Tol != 1e-9 {
		t.Fatalf("unexpected %+v", c)
	}
}
