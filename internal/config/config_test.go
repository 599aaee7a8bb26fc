package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/seisfd/internal/fdtd"
)

func TestDefaultRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	cfg := DefaultConfig()
	cfg.Sources = []Point{{Z: 500, X: 500}}
	cfg.Receivers = []Point{{Z: 100, X: 100}, {Z: 100, X: 900}}
	cfg.Medium.Layers = []Layer{{Z0: 800, Z1: 2000, Vp: 3000, Rho: 2200}}
	cfg.Snaps = []float64{0.2}

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if got.Mesh != cfg.Mesh || got.Time != cfg.Time {
		t.Errorf("mesh/time changed in roundtrip: %+v vs %+v", got.Mesh, cfg.Mesh)
	}
	if len(got.Sources) != 1 || got.Sources[0] != cfg.Sources[0] {
		t.Errorf("sources changed: %+v", got.Sources)
	}
	if len(got.Medium.Layers) != 1 || got.Medium.Layers[0] != cfg.Medium.Layers[0] {
		t.Errorf("layers changed: %+v", got.Medium.Layers)
	}
	if len(got.Snaps) != 1 || got.Snaps[0] != 0.2 {
		t.Errorf("snaps changed: %v", got.Snaps)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	min := "sources:\n  - {z: 100, x: 100}\nreceivers:\n  - {z: 50, x: 50}\n"
	if err := os.WriteFile(path, []byte(min), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mesh.Nz != DefaultNz || cfg.Medium.Vp != DefaultVp || cfg.Wavelet.Freq != DefaultFreq {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].X != 100 {
		t.Errorf("explicit sources lost: %+v", cfg.Sources)
	}
}

func TestBuildMediumLayers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Medium.Layers = []Layer{{Z0: 500, Z1: 1000, Vp: 3500, Rho: 2400}}
	m := cfg.BuildMedium()

	if got := m.Vp[m.Idx(0, 0)]; got != DefaultVp {
		t.Errorf("background vp = %g", got)
	}
	iz := 60 // z = 600 with the default 10 m step
	if got := m.Vp[m.Idx(iz, 5)]; got != 3500 {
		t.Errorf("layer vp = %g, want 3500", got)
	}
	if got := m.Rho[m.Idx(iz, 5)]; got != 2400 {
		t.Errorf("layer rho = %g, want 2400", got)
	}
}

func TestParamsAssembly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []Point{{Z: 500, X: 400}, {Z: 500, X: 600}}
	cfg.Receivers = []Point{{Z: 100, X: 100}, {Z: 100, X: 500}, {Z: 100, X: 900}}
	cfg.Fields = []string{"p", "vz"}
	cfg.Absorb = []string{"zmax", "xmin", "xmax"}

	par, err := cfg.Params()
	if err != nil {
		t.Fatal(err)
	}
	if par.NPW != 1 || len(par.Geom) != 1 {
		t.Fatalf("npw = %d, geoms = %d", par.NPW, len(par.Geom))
	}
	if len(par.Geom[0]) != 2 {
		t.Fatalf("%d supersources, want one per source", len(par.Geom[0]))
	}
	ss := par.Geom[0][1]
	if ss.NS() != 1 || ss.Sx[0] != 600 {
		t.Errorf("supersource 1 sources: %+v", ss)
	}
	if ss.NR() != 3 {
		t.Errorf("supersource 1 has %d receivers, want 3", ss.NR())
	}
	if len(par.SrcWav[0]) != 2 || len(par.SrcWav[0][0][0]) != cfg.Time.Nt {
		t.Error("wavelet shape wrong")
	}
	if len(par.RecFields) != 2 || par.RecFields[1] != fdtd.FieldVz {
		t.Errorf("rec fields = %v", par.RecFields)
	}
	if par.AbsFaces.Zmin || !par.AbsFaces.Zmax || !par.AbsFaces.Xmin || !par.AbsFaces.Xmax {
		t.Errorf("faces = %+v", par.AbsFaces)
	}
	if par.SrcFlags[0] != fdtd.SrcPressure {
		t.Errorf("source flag = %d", par.SrcFlags[0])
	}
}

func TestParamsErrors(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"no sources", func(c *Config) { c.Sources = nil }},
		{"no receivers", func(c *Config) { c.Receivers = nil }},
		{"bad field", func(c *Config) { c.Fields = []string{"pressure"} }},
		{"bad face", func(c *Config) { c.Absorb = []string{"top"} }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		cfg.Sources = []Point{{Z: 500, X: 500}}
		cfg.Receivers = []Point{{Z: 100, X: 100}}
		tc.mod(cfg)
		if _, err := cfg.Params(); err == nil {
			t.Errorf("%s: accepted", tc.name)
		}
	}
}
