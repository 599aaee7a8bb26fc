package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/seisfd/internal/acq"
	"github.com/san-kum/seisfd/internal/fdtd"
	"github.com/san-kum/seisfd/internal/grid"
	"github.com/san-kum/seisfd/internal/medium"
)

const (
	DefaultNz   = 200
	DefaultNx   = 200
	DefaultStep = 10.0
	DefaultNt   = 1000
	DefaultDt   = 0.001
	DefaultVp   = 2000.0
	DefaultRho  = 1000.0
	DefaultFreq = 15.0
)

// Config is the YAML description of a forward-modeling experiment.
type Config struct {
	Mesh      MeshConfig    `yaml:"mesh"`
	Time      TimeConfig    `yaml:"time"`
	Medium    MediumConfig  `yaml:"medium"`
	Wavelet   WaveletConfig `yaml:"wavelet"`
	Sources   []Point       `yaml:"sources"`
	Receivers []Point       `yaml:"receivers"`
	NPML      int           `yaml:"npml"`
	Absorb    []string      `yaml:"absorb"`
	Fields    []string      `yaml:"fields"`
	Illum     bool          `yaml:"illum"`
	Snaps     []float64     `yaml:"snaps"`
	Workers   int           `yaml:"workers"`
}

type MeshConfig struct {
	Nz int     `yaml:"nz"`
	Nx int     `yaml:"nx"`
	Dz float64 `yaml:"dz"`
	Dx float64 `yaml:"dx"`
}

type TimeConfig struct {
	Nt int     `yaml:"nt"`
	Dt float64 `yaml:"dt"`
}

type MediumConfig struct {
	Vp     float64 `yaml:"vp"`
	Rho    float64 `yaml:"rho"`
	Layers []Layer `yaml:"layers"`
}

type Layer struct {
	Z0  float64 `yaml:"z0"`
	Z1  float64 `yaml:"z1"`
	Vp  float64 `yaml:"vp"`
	Rho float64 `yaml:"rho"`
}

type WaveletConfig struct {
	Freq  float64 `yaml:"freq"`
	Delay float64 `yaml:"delay"`
}

type Point struct {
	Z float64 `yaml:"z"`
	X float64 `yaml:"x"`
}

func DefaultConfig() *Config {
	return &Config{
		Mesh:    MeshConfig{Nz: DefaultNz, Nx: DefaultNx, Dz: DefaultStep, Dx: DefaultStep},
		Time:    TimeConfig{Nt: DefaultNt, Dt: DefaultDt},
		Medium:  MediumConfig{Vp: DefaultVp, Rho: DefaultRho},
		Wavelet: WaveletConfig{Freq: DefaultFreq},
		Absorb:  []string{"zmin", "zmax", "xmin", "xmax"},
		Fields:  []string{"p"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BuildMedium constructs the medium described by the config.
func (c *Config) BuildMedium() *medium.Medium {
	z := grid.NewAxis(0, c.Mesh.Dz, c.Mesh.Nz)
	x := grid.NewAxis(0, c.Mesh.Dx, c.Mesh.Nx)
	m := medium.NewConstant(z, x, c.Medium.Vp, c.Medium.Rho)
	for _, l := range c.Medium.Layers {
		m.SetLayer(l.Z0, l.Z1, l.Vp, l.Rho)
	}
	return m
}

// Params assembles the forward-modeling experiment: each configured source
// becomes its own supersource, all sharing the receiver spread.
func (c *Config) Params() (fdtd.Params, error) {
	if len(c.Sources) == 0 {
		return fdtd.Params{}, fmt.Errorf("config: no sources")
	}
	if len(c.Receivers) == 0 {
		return fdtd.Params{}, fmt.Errorf("config: no receivers")
	}
	m := c.BuildMedium()
	tg := grid.NewTime(0, c.Time.Dt, c.Time.Nt)

	geom := make(acq.Geom, len(c.Sources))
	wavs := make([]acq.SrcWav, len(c.Sources))
	rz, rx := splitPoints(c.Receivers)
	wavelet := acq.Ricker(c.Wavelet.Freq, tg.Dt, tg.N, c.Wavelet.Delay)
	for i, s := range c.Sources {
		geom[i] = acq.SuperSource{
			Sz: []float64{s.Z},
			Sx: []float64{s.X},
			Rz: rz,
			Rx: rx,
		}
		wavs[i] = acq.SrcWav{wavelet}
	}

	fields, err := parseFields(c.Fields)
	if err != nil {
		return fdtd.Params{}, err
	}
	faces, err := parseFaces(c.Absorb)
	if err != nil {
		return fdtd.Params{}, err
	}

	return fdtd.Params{
		Medium:      m,
		TGrid:       tg,
		Geom:        []acq.Geom{geom},
		SrcWav:      [][]acq.SrcWav{wavs},
		Mode:        fdtd.Acoustic,
		NPW:         1,
		SrcFlags:    []int{fdtd.SrcPressure},
		RecFlags:    []int{1},
		RecFields:   fields,
		AbsFaces:    faces,
		NPML:        c.NPML,
		SrcFreqPeak: c.Wavelet.Freq,
		IllumFlag:   c.Illum,
		SnapsFlag:   len(c.Snaps) > 0,
		TSnaps:      c.Snaps,
		NWorker:     c.Workers,
	}, nil
}

func splitPoints(pts []Point) (z, x []float64) {
	z = make([]float64, len(pts))
	x = make([]float64, len(pts))
	for i, p := range pts {
		z[i] = p.Z
		x[i] = p.X
	}
	return z, x
}

func parseFields(names []string) ([]fdtd.Field, error) {
	if len(names) == 0 {
		return []fdtd.Field{fdtd.FieldP}, nil
	}
	out := make([]fdtd.Field, 0, len(names))
	for _, n := range names {
		switch n {
		case "p":
			out = append(out, fdtd.FieldP)
		case "vx":
			out = append(out, fdtd.FieldVx)
		case "vz":
			out = append(out, fdtd.FieldVz)
		default:
			return nil, fmt.Errorf("config: unknown receiver field %q", n)
		}
	}
	return out, nil
}

func parseFaces(names []string) (grid.Faces, error) {
	var f grid.Faces
	for _, n := range names {
		switch n {
		case "zmin":
			f.Zmin = true
		case "zmax":
			f.Zmax = true
		case "xmin":
			f.Xmin = true
		case "xmax":
			f.Xmax = true
		default:
			return f, fmt.Errorf("config: unknown face %q", n)
		}
	}
	return f, nil
}
