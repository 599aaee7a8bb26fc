package medium

import "github.com/san-kum/seisfd/internal/grid"

// Maps are the on-grid material fields on the extended mesh. K and KI are
// colocated with pressure; RhoVxI and RhoVzI are the inverse densities
// harmonically averaged onto the staggered velocity positions.
type Maps struct {
	K      []float64
	KI     []float64
	RhoI   []float64
	RhoVxI []float64
	RhoVzI []float64
}

// Expand pads the medium onto the extended mesh by edge replication and
// derives the staggered fields.
func (m *Medium) Expand(mesh grid.Mesh) *Maps {
	n := mesh.Size()
	mp := &Maps{
		K:      make([]float64, n),
		KI:     make([]float64, n),
		RhoI:   make([]float64, n),
		RhoVxI: make([]float64, n),
		RhoVzI: make([]float64, n),
	}
	for iz := 0; iz < mesh.Nz; iz++ {
		pz := clamp(iz-mesh.NPML, 0, m.Z.N-1)
		for ix := 0; ix < mesh.Nx; ix++ {
			px := clamp(ix-mesh.NPML, 0, m.X.N-1)
			i := mesh.Idx(iz, ix)
			j := m.Idx(pz, px)
			k := m.Rho[j] * m.Vp[j] * m.Vp[j]
			mp.K[i] = k
			mp.KI[i] = 1 / k
			mp.RhoI[i] = 1 / m.Rho[j]
		}
	}
	mp.stagger(mesh)
	return mp
}

// stagger fills RhoVxI and RhoVzI with the harmonic mean of the two
// pressure-node neighbors straddling each velocity position.
func (mp *Maps) stagger(mesh grid.Mesh) {
	for iz := 0; iz < mesh.Nz; iz++ {
		for ix := 0; ix < mesh.Nx; ix++ {
			i := mesh.Idx(iz, ix)
			if ix < mesh.Nx-1 {
				mp.RhoVxI[i] = harmonic(mp.RhoI[i], mp.RhoI[mesh.Idx(iz, ix+1)])
			} else {
				mp.RhoVxI[i] = mp.RhoI[i]
			}
			if iz < mesh.Nz-1 {
				mp.RhoVzI[i] = harmonic(mp.RhoI[i], mp.RhoI[mesh.Idx(iz+1, ix)])
			} else {
				mp.RhoVzI[i] = mp.RhoI[i]
			}
		}
	}
}

func harmonic(a, b float64) float64 {
	if a+b == 0 {
		return 0
	}
	return 2 * a * b / (a + b)
}

// HarmonicWeights returns the partial derivatives of harmonic(a, b) with
// respect to a and b. The gradient engine uses them to push staggered
// sensitivities back onto the pressure nodes.
func HarmonicWeights(a, b float64) (wa, wb float64) {
	s := a + b
	if s == 0 {
		return 0, 0
	}
	wa = 2 * b * b / (s * s)
	wb = 2 * a * a / (s * s)
	return wa, wb
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
