package fdtd

import "github.com/san-kum/seisfd/internal/grid"

// haloWidth is the boundary-halo thickness: the 4th-order stencil radius
// plus two guard cells, so that during replay the one-sided velocity
// updates of the first cells past the halo read forced pressure only.
// That keeps not just the replayed field but also its divergence scratch
// exact on the outermost physical ring, which the gradient kernels read.
const haloWidth = 4

// haloPad is how far the long side of each strip extends past the physical
// domain, covering the corners.
const haloPad = 3

// boundary records, for every time step of a forward run, a haloWidth-thick
// ring of pressure just inside the absorbing layer, plus one full-mesh
// snapshot of p, vx, vz at the final step. Replaying the ring while
// stepping the scheme backwards from the snapshot reconstructs the whole
// interior history, which is what makes adjoint backpropagation equivalent
// to a forward pass run in reverse.
type boundary struct {
	mesh grid.Mesh

	// Extended-mesh index of the first halo row/column on each side. The
	// halo reaches 3 cells into the PML: hz0 = npml-3.
	hz0, hz1, hx0, hx1 int
	// Strip spans along the boundary.
	cz0, cx0, czn, cxn int

	top, bot, left, right [][]float64 // [step][strip cell]

	snapP, snapVx, snapVz []float64
}

func newBoundary(mesh grid.Mesh, nt int) *boundary {
	b := &boundary{
		mesh: mesh,
		hz0:  mesh.NPML - 3,
		hz1:  mesh.Nz - mesh.NPML - 1,
		hx0:  mesh.NPML - 3,
		hx1:  mesh.Nx - mesh.NPML - 1,
		cz0:  mesh.NPML - haloPad,
		cx0:  mesh.NPML - haloPad,
		czn:  mesh.Z.N + 2*haloPad,
		cxn:  mesh.X.N + 2*haloPad,
	}
	b.top = allocStrips(nt, haloWidth*b.cxn)
	b.bot = allocStrips(nt, haloWidth*b.cxn)
	b.left = allocStrips(nt, b.czn*haloWidth)
	b.right = allocStrips(nt, b.czn*haloWidth)
	b.snapP = make([]float64, mesh.Size())
	b.snapVx = make([]float64, mesh.Size())
	b.snapVz = make([]float64, mesh.Size())
	return b
}

func allocStrips(nt, n int) [][]float64 {
	s := make([][]float64, nt)
	for i := range s {
		s[i] = make([]float64, n)
	}
	return s
}

// save copies the pressure halo of step it into the store.
func (b *boundary) save(w *wavefield, it int) {
	b.copyHalo(w.p, it, false)
}

// force overwrites the pressure halo of the state with the recorded values
// of step it.
func (b *boundary) force(w *wavefield, it int) {
	b.copyHalo(w.p, it, true)
}

func (b *boundary) copyHalo(p []float64, it int, toField bool) {
	nx := b.mesh.Nx
	for k := 0; k < haloWidth; k++ {
		// Horizontal strips: rows hz0+k and hz1+k.
		for _, strip := range []struct {
			row  int
			buf  []float64
			base int
		}{
			{b.hz0 + k, b.top[it], k * b.cxn},
			{b.hz1 + k, b.bot[it], k * b.cxn},
		} {
			off := strip.row * nx
			for j := 0; j < b.cxn; j++ {
				fi := off + b.cx0 + j
				si := strip.base + j
				if toField {
					p[fi] = strip.buf[si]
				} else {
					strip.buf[si] = p[fi]
				}
			}
		}
		// Vertical strips: columns hx0+k and hx1+k.
		for _, strip := range []struct {
			col  int
			buf  []float64
			base int
		}{
			{b.hx0 + k, b.left[it], k},
			{b.hx1 + k, b.right[it], k},
		} {
			for j := 0; j < b.czn; j++ {
				fi := (b.cz0+j)*nx + strip.col
				si := j*haloWidth + strip.base
				if toField {
					p[fi] = strip.buf[si]
				} else {
					strip.buf[si] = p[fi]
				}
			}
		}
	}
}

// snap stores the full final state of a forward run.
func (b *boundary) snap(w *wavefield) {
	copy(b.snapP, w.p)
	copy(b.snapVx, w.vx)
	copy(b.snapVz, w.vz)
}

// loadSnap restores the final state into a wavefield before replay.
func (b *boundary) loadSnap(w *wavefield) {
	copy(w.p, b.snapP)
	copy(w.vx, b.snapVx)
	copy(w.vz, b.snapVz)
}
