// Package fdtd is the computational core: staggered-grid acoustic
// finite-difference time-domain propagation on a C-PML-padded mesh, with
// boundary save/replay for adjoint reconstruction, gradient and Born
// engines, and parallel dispatch over independent supersources.
package fdtd

import (
	"sync"

	"github.com/san-kum/seisfd/internal/acq"
	"github.com/san-kum/seisfd/internal/grid"
	"github.com/san-kum/seisfd/internal/medium"
)

// Mode selects the modeling variant.
type Mode int

const (
	Acoustic Mode = iota
	AcousticBorn
	AcousticVisco
)

func (m Mode) String() string {
	switch m {
	case Acoustic:
		return "acoustic"
	case AcousticBorn:
		return "acoustic-born"
	case AcousticVisco:
		return "acoustic-visco"
	}
	return "unknown"
}

// Field names a recordable wavefield component.
type Field int

const (
	FieldP Field = iota
	FieldVx
	FieldVz
)

func (f Field) String() string {
	switch f {
	case FieldP:
		return "p"
	case FieldVx:
		return "vx"
	case FieldVz:
		return "vz"
	}
	return "unknown"
}

// Source flags, one per propagating wavefield.
const (
	SrcOff      = 0 // disabled
	SrcRate     = 1 // injection rate: wavelet integrated in time
	SrcPressure = 2 // pressure source
	SrcReversed = 3 // time-reversed injection (adjoint runs)
)

// Backprop flags.
const (
	BackpropSave   = 1
	BackpropOff    = 0
	BackpropReplay = -1
)

// Params describes one experiment. Medium, geometry and wavelets are
// treated as immutable once the experiment is built.
type Params struct {
	Medium *medium.Medium
	TGrid  grid.Time

	// Per propagating wavefield: acquisition and source time functions.
	Geom   []acq.Geom
	SrcWav [][]acq.SrcWav // [wavefield][supersource]

	Mode      Mode
	NPW       int
	SrcFlags  []int
	RecFlags  []int
	RecFields []Field

	AbsFaces    grid.Faces
	NPML        int
	SrcFreqPeak float64

	// Born perturbations on the physical mesh.
	PertKI   []float64
	PertRhoI []float64

	BackpropFlag int
	GradFlag     bool
	IllumFlag    bool
	SnapsFlag    bool
	TSnaps       []float64

	NWorker int
	Verbose bool

	// Probe, when set, is called during the forward time loop with the
	// physical-domain pressure field, every ProbeEvery steps. It runs on a
	// worker goroutine; intended for live views of single-supersource runs.
	Probe      func(it int, t float64, p []float64)
	ProbeEvery int
}

// Expt is an opaque experiment handle produced by New and consumed by Run.
type Expt struct {
	par  Params
	mesh grid.Mesh
	pml  *grid.PML
	maps *medium.Maps

	nss int
	rpw int // recording wavefield, -1 when none

	src [][]acq.Coupling // [wavefield][supersource]
	rec []acq.Coupling   // [supersource], recording wavefield geometry
	wav [][]acq.SrcWav   // injection-ready wavelets

	// Born perturbations on the extended mesh, zero outside the physical
	// domain.
	dKI, dRhoVxI, dRhoVzI []float64

	isnaps []int

	mu       sync.Mutex
	records  [][][][]float64 // [supersource][field][time][receiver]
	snaps    [][][]float64   // [supersource][snap][physical cell]
	illum    []float64       // physical mesh
	gradKI   []float64       // physical mesh
	gradRhoI []float64       // physical mesh
	ran      bool
}

// New validates the experiment description, builds the mesh, PML profiles,
// material maps and couplings, and returns the handle. All configuration
// and stability failures surface here; Run is not expected to fail on
// valid inputs.
func New(p Params) (*Expt, error) {
	if p.Medium == nil {
		return nil, configf("nil medium")
	}
	if err := p.Medium.Validate(); err != nil {
		return nil, ConfigError{Msg: err.Error()}
	}
	if p.TGrid.N < 2 || p.TGrid.Dt <= 0 {
		return nil, configf("time grid needs at least 2 samples and positive dt")
	}
	if p.SrcFreqPeak <= 0 {
		return nil, configf("source peak frequency must be positive")
	}
	if p.NPW != 1 && p.NPW != 2 {
		return nil, configf("npw must be 1 or 2, got %d", p.NPW)
	}
	switch p.Mode {
	case Acoustic:
	case AcousticBorn:
		if p.NPW != 2 {
			return nil, configf("born modeling requires npw=2")
		}
		if p.GradFlag {
			return nil, configf("born modeling and gradient mode are exclusive")
		}
		if p.PertKI == nil && p.PertRhoI == nil {
			return nil, configf("born modeling requires a perturbation model")
		}
	case AcousticVisco:
		return nil, configf("viscoacoustic update equations not implemented")
	default:
		return nil, configf("unknown mode %d", p.Mode)
	}
	if p.GradFlag && p.NPW != 2 {
		return nil, configf("gradient mode requires npw=2")
	}
	if p.GradFlag && len(p.SrcFlags) == 2 && p.SrcFlags[1] != SrcReversed {
		return nil, configf("gradient mode expects time-reversed adjoint sources (sflags[1]=3)")
	}
	if len(p.Geom) != p.NPW || len(p.SrcFlags) != p.NPW || len(p.RecFlags) != p.NPW {
		return nil, configf("geom, sflags and rflags must all have length npw=%d", p.NPW)
	}
	if len(p.SrcWav) != p.NPW {
		return nil, configf("srcwav must have length npw=%d", p.NPW)
	}
	if p.BackpropFlag < BackpropReplay || p.BackpropFlag > BackpropSave {
		return nil, configf("backprop flag must be -1, 0 or +1")
	}
	if p.BackpropFlag == BackpropSave && !p.GradFlag {
		return nil, configf("backprop save has no consumer outside gradient mode; use backprop=-1 for a standalone reconstruction")
	}
	if p.BackpropFlag == BackpropReplay && p.Mode != Acoustic {
		return nil, configf("backprop replay requires plain acoustic modeling")
	}
	if len(p.RecFields) == 0 {
		p.RecFields = []Field{FieldP}
	}
	for _, f := range p.RecFields {
		if f != FieldP && f != FieldVx && f != FieldVz {
			return nil, configf("unknown receiver field %d", f)
		}
	}
	if p.NPML <= 0 {
		p.NPML = grid.DefaultNPML
	}
	if p.NPML < haloWidth+4 {
		return nil, configf("npml=%d too thin for the boundary halo", p.NPML)
	}
	nz, nx := p.Medium.Z.N, p.Medium.X.N
	if pk := p.PertKI; pk != nil && len(pk) != nz*nx {
		return nil, configf("perturbation KI has %d cells, mesh has %d", len(pk), nz*nx)
	}
	if pr := p.PertRhoI; pr != nil && len(pr) != nz*nx {
		return nil, configf("perturbation rhoI has %d cells, mesh has %d", len(pr), nz*nx)
	}

	nss := len(p.Geom[0])
	for ipw, g := range p.Geom {
		if err := g.Validate(p.Medium.Z, p.Medium.X); err != nil {
			return nil, ConfigError{Msg: err.Error()}
		}
		if len(g) != nss {
			return nil, configf("wavefield %d has %d supersources, wavefield 0 has %d", ipw, len(g), nss)
		}
	}

	vpmin, vpmax := p.Medium.Bounds()
	_, fmax := acq.FreqBounds(p.SrcFreqPeak)
	if err := CheckStability(vpmin, vpmax, p.Medium.Z.Dx, p.Medium.X.Dx, p.TGrid.Dt, fmax); err != nil {
		return nil, err
	}

	mesh := grid.NewMesh(p.Medium.Z, p.Medium.X, p.NPML)
	e := &Expt{
		par:  p,
		mesh: mesh,
		pml:  grid.NewPML(mesh, p.AbsFaces, p.TGrid.Dt, vpmax, p.SrcFreqPeak),
		maps: p.Medium.Expand(mesh),
		nss:  nss,
		rpw:  -1,
	}

	if err := e.buildCouplings(); err != nil {
		return nil, err
	}
	if p.Mode == AcousticBorn {
		e.buildPerturbations()
	}
	e.buildSnapIndices()
	e.allocOutputs()
	return e, nil
}

func (e *Expt) buildCouplings() error {
	p := &e.par
	nt := p.TGrid.N
	e.src = make([][]acq.Coupling, p.NPW)
	e.wav = make([][]acq.SrcWav, p.NPW)
	for ipw := 0; ipw < p.NPW; ipw++ {
		// The recording wavefield may have its sources disabled (Born
		// scattered field), so this cannot live behind the SrcOff skip.
		if p.RecFlags[ipw] == 0 {
			continue
		}
		if e.rpw >= 0 {
			return configf("wavefields %d and %d both set rflags; only one wavefield can record", e.rpw, ipw)
		}
		e.rpw = ipw
	}
	for ipw := 0; ipw < p.NPW; ipw++ {
		e.src[ipw] = make([]acq.Coupling, e.nss)
		e.wav[ipw] = make([]acq.SrcWav, e.nss)
		if p.SrcFlags[ipw] == SrcOff {
			continue
		}
		if len(p.SrcWav[ipw]) != e.nss {
			return configf("wavefield %d: %d wavelet sets for %d supersources", ipw, len(p.SrcWav[ipw]), e.nss)
		}
		for iss := 0; iss < e.nss; iss++ {
			ss := p.Geom[ipw][iss]
			w := p.SrcWav[ipw][iss]
			if len(w) != ss.NS() {
				return configf("wavefield %d supersource %d: %d wavelets for %d sources", ipw, iss, len(w), ss.NS())
			}
			for is := range w {
				if len(w[is]) != nt {
					return configf("wavefield %d supersource %d: wavelet %d has %d samples, time grid has %d", ipw, iss, is, len(w[is]), nt)
				}
			}
			e.src[ipw][iss] = acq.NewCoupling(ss.Sz, ss.Sx, e.mesh)
			if p.SrcFlags[ipw] == SrcRate {
				iw := make(acq.SrcWav, len(w))
				for is := range w {
					iw[is] = acq.Integrate(w[is], p.TGrid.Dt)
				}
				e.wav[ipw][iss] = iw
			} else {
				e.wav[ipw][iss] = w
			}
		}
	}
	if e.rpw >= 0 {
		e.rec = make([]acq.Coupling, e.nss)
		for iss := 0; iss < e.nss; iss++ {
			ss := p.Geom[e.rpw][iss]
			e.rec[iss] = acq.NewCoupling(ss.Rz, ss.Rx, e.mesh)
		}
	}
	return nil
}

// buildPerturbations pads the Born perturbation onto the extended mesh and
// pushes the density part onto the staggered positions through the
// linearized harmonic average.
func (e *Expt) buildPerturbations() {
	n := e.mesh.Size()
	e.dKI = make([]float64, n)
	dRhoI := make([]float64, n)
	e.dRhoVxI = make([]float64, n)
	e.dRhoVzI = make([]float64, n)
	m := e.par.Medium
	for iz := 0; iz < m.Z.N; iz++ {
		for ix := 0; ix < m.X.N; ix++ {
			i := e.mesh.Idx(iz+e.mesh.NPML, ix+e.mesh.NPML)
			j := m.Idx(iz, ix)
			if e.par.PertKI != nil {
				e.dKI[i] = e.par.PertKI[j]
			}
			if e.par.PertRhoI != nil {
				dRhoI[i] = e.par.PertRhoI[j]
			}
		}
	}
	rI := e.maps.RhoI
	for iz := 0; iz < e.mesh.Nz-1; iz++ {
		for ix := 0; ix < e.mesh.Nx-1; ix++ {
			i := e.mesh.Idx(iz, ix)
			wa, wb := medium.HarmonicWeights(rI[i], rI[i+1])
			e.dRhoVxI[i] = wa*dRhoI[i] + wb*dRhoI[i+1]
			iv := e.mesh.Idx(iz+1, ix)
			wa, wb = medium.HarmonicWeights(rI[i], rI[iv])
			e.dRhoVzI[i] = wa*dRhoI[i] + wb*dRhoI[iv]
		}
	}
}

func (e *Expt) buildSnapIndices() {
	if !e.par.SnapsFlag {
		return
	}
	e.isnaps = make([]int, len(e.par.TSnaps))
	for i, tv := range e.par.TSnaps {
		e.isnaps[i] = e.par.TGrid.Index(tv)
	}
}

func (e *Expt) allocOutputs() {
	p := &e.par
	nd := p.Medium.Z.N * p.Medium.X.N
	if e.rpw >= 0 {
		e.records = make([][][][]float64, e.nss)
		for iss := range e.records {
			nr := e.rec[iss].N()
			e.records[iss] = make([][][]float64, len(p.RecFields))
			for fi := range p.RecFields {
				m := make([][]float64, p.TGrid.N)
				for it := range m {
					m[it] = make([]float64, nr)
				}
				e.records[iss][fi] = m
			}
		}
	}
	if p.SnapsFlag {
		e.snaps = make([][][]float64, e.nss)
		for iss := range e.snaps {
			e.snaps[iss] = make([][]float64, len(e.isnaps))
			for k := range e.snaps[iss] {
				e.snaps[iss][k] = make([]float64, nd)
			}
		}
	}
	if p.IllumFlag {
		e.illum = make([]float64, nd)
	}
	if p.GradFlag {
		e.gradKI = make([]float64, nd)
		e.gradRhoI = make([]float64, nd)
	}
}

// Mesh exposes the extended mesh, mainly for rendering and tests.
func (e *Expt) Mesh() grid.Mesh { return e.mesh }

// NSS reports the number of supersources.
func (e *Expt) NSS() int { return e.nss }
