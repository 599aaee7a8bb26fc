package fdtd

import "math"

// wavefield holds the state of one propagating wavefield on the extended
// mesh: pressure and staggered particle velocities, derivative scratch and
// the recursive C-PML memory variables. All slices have mesh.Size cells.
type wavefield struct {
	p, vx, vz []float64

	// Corrected spatial derivatives of the current step.
	dPdx, dPdz []float64
	dVdx, dVdz []float64

	// C-PML memory variables.
	mPdx, mPdz []float64
	mVdx, mVdz []float64
}

func newWavefield(n int) *wavefield {
	return &wavefield{
		p:    make([]float64, n),
		vx:   make([]float64, n),
		vz:   make([]float64, n),
		dPdx: make([]float64, n),
		dPdz: make([]float64, n),
		dVdx: make([]float64, n),
		dVdz: make([]float64, n),
		mPdx: make([]float64, n),
		mPdz: make([]float64, n),
		mVdx: make([]float64, n),
		mVdz: make([]float64, n),
	}
}

// reset zeroes the state between supersources; the slabs themselves are
// reused for every supersource assigned to the owning worker.
func (w *wavefield) reset() {
	zero(w.p)
	zero(w.vx)
	zero(w.vz)
	zero(w.dPdx)
	zero(w.dPdz)
	zero(w.dVdx)
	zero(w.dVdz)
	zero(w.mPdx)
	zero(w.mPdz)
	zero(w.mVdx)
	zero(w.mVdz)
}

// finite scans the pressure slab for NaN or Inf.
func (w *wavefield) finite() bool {
	for _, v := range w.p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// physFinite scans only the physical-domain pressure, for states whose pad
// holds discarded values, like a wavefield being stepped back under halo
// forcing.
func (e *Expt) physFinite(w *wavefield) bool {
	nx := e.mesh.Nx
	for iz := e.mesh.Iz0(); iz < e.mesh.Iz1(); iz++ {
		row := iz * nx
		for ix := e.mesh.Ix0(); ix < e.mesh.Ix1(); ix++ {
			v := w.p[row+ix]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func zero(s []float64) {
	for i := range s {
		s[i] = 0
	}
}
