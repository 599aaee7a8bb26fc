package medium

import (
	"fmt"

	"github.com/san-kum/seisfd/internal/grid"
)

// Medium holds P-wave velocity and density on the physical mesh, stored as
// flat row-major slices (rows along z).
type Medium struct {
	Z, X grid.Axis
	Vp   []float64
	Rho  []float64
}

func New(z, x grid.Axis) *Medium {
	n := z.N * x.N
	return &Medium{
		Z:   z,
		X:   x,
		Vp:  make([]float64, n),
		Rho: make([]float64, n),
	}
}

// NewConstant fills a homogeneous medium.
func NewConstant(z, x grid.Axis, vp, rho float64) *Medium {
	m := New(z, x)
	for i := range m.Vp {
		m.Vp[i] = vp
		m.Rho[i] = rho
	}
	return m
}

func (m *Medium) Idx(iz, ix int) int { return iz*m.X.N + ix }

// SetLayer overwrites all cells at depths z in [z0, z1).
func (m *Medium) SetLayer(z0, z1, vp, rho float64) {
	for iz := 0; iz < m.Z.N; iz++ {
		z := m.Z.At(iz)
		if z < z0 || z >= z1 {
			continue
		}
		for ix := 0; ix < m.X.N; ix++ {
			i := m.Idx(iz, ix)
			m.Vp[i] = vp
			m.Rho[i] = rho
		}
	}
}

// SetBox overwrites the cell-index box [iz0,iz1) x [ix0,ix1).
func (m *Medium) SetBox(iz0, iz1, ix0, ix1 int, vp, rho float64) {
	for iz := max(iz0, 0); iz < min(iz1, m.Z.N); iz++ {
		for ix := max(ix0, 0); ix < min(ix1, m.X.N); ix++ {
			i := m.Idx(iz, ix)
			m.Vp[i] = vp
			m.Rho[i] = rho
		}
	}
}

// Bounds returns the velocity extremes, used by the stability check and the
// PML tuning.
func (m *Medium) Bounds() (vpmin, vpmax float64) {
	vpmin, vpmax = m.Vp[0], m.Vp[0]
	for _, v := range m.Vp {
		if v < vpmin {
			vpmin = v
		}
		if v > vpmax {
			vpmax = v
		}
	}
	return vpmin, vpmax
}

// Validate rejects non-physical property values.
func (m *Medium) Validate() error {
	if len(m.Vp) != m.Z.N*m.X.N || len(m.Rho) != m.Z.N*m.X.N {
		return fmt.Errorf("medium: field size mismatch for %dx%d mesh", m.Z.N, m.X.N)
	}
	for i := range m.Vp {
		if m.Vp[i] <= 0 || m.Rho[i] <= 0 {
			return fmt.Errorf("medium: non-positive vp or rho at cell %d", i)
		}
	}
	return nil
}
