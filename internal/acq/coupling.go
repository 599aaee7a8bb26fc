package acq

import "github.com/san-kum/seisfd/internal/grid"

// Coupling maps a set of point positions onto the extended mesh: for each
// point, the extended index of the enclosing cell corner and the four
// bilinear weights over the corner, its x neighbor, its z neighbor and the
// diagonal. The weights sum to one.
type Coupling struct {
	Iz, Ix []int
	W      [][4]float64
}

// NewCoupling sprays the points (zc, xc) onto mesh. Points are assumed to
// be validated against the physical axes already; the enclosing corner is
// clamped so the 2x2 patch stays on the mesh.
func NewCoupling(zc, xc []float64, mesh grid.Mesh) Coupling {
	c := Coupling{
		Iz: make([]int, len(zc)),
		Ix: make([]int, len(zc)),
		W:  make([][4]float64, len(zc)),
	}
	for k := range zc {
		fz := (zc[k] - mesh.Z.X0) / mesh.Z.Dx
		fx := (xc[k] - mesh.X.X0) / mesh.X.Dx
		iz := int(fz)
		ix := int(fx)
		if iz > mesh.Z.N-2 {
			iz = mesh.Z.N - 2
		}
		if ix > mesh.X.N-2 {
			ix = mesh.X.N - 2
		}
		if iz < 0 {
			iz = 0
		}
		if ix < 0 {
			ix = 0
		}
		az := fz - float64(iz)
		ax := fx - float64(ix)
		c.Iz[k] = iz + mesh.NPML
		c.Ix[k] = ix + mesh.NPML
		c.W[k] = [4]float64{
			(1 - az) * (1 - ax), // (iz, ix)
			(1 - az) * ax,       // (iz, ix+1)
			az * (1 - ax),       // (iz+1, ix)
			az * ax,             // (iz+1, ix+1)
		}
	}
	return c
}

// N reports the number of coupled points.
func (c Coupling) N() int { return len(c.Iz) }
