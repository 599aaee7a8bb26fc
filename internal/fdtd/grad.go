package fdtd

import "github.com/san-kum/seisfd/internal/medium"

// The gradient engine is the transpose of the scattering operator in
// born.go, term for term. In energy variables (pressure scaled by K,
// velocities by the staggered densities) the transposed time recursion is
// again a velocity-then-pressure leapfrog, but with the C-PML profile
// weights moved inside the stencils and the memory recursions accumulating
// the fields instead of their derivatives. adjVelUpdate and adjPrUpdate
// implement those transposed half-steps; inside the physical domain and
// the inert PML ring they reduce exactly to velUpdate and prUpdate. The
// model kernels then pair the adjoint state with the same derivative
// scratch the scattering injections read, at the same step.

// adjState holds the adjoint propagation's C-PML memory and its
// profile-weighted stencil inputs. The memory sits at the transposed
// positions: psi on pressure nodes, phi on staggered velocity nodes.
type adjState struct {
	psiX, psiZ []float64
	phiX, phiZ []float64
	sX, sZ     []float64
}

func newAdjState(n int) *adjState {
	return &adjState{
		psiX: make([]float64, n),
		psiZ: make([]float64, n),
		phiX: make([]float64, n),
		phiZ: make([]float64, n),
		sX:   make([]float64, n),
		sZ:   make([]float64, n),
	}
}

func (as *adjState) reset() {
	zero(as.psiX)
	zero(as.psiZ)
	zero(as.phiX)
	zero(as.phiZ)
	zero(as.sX)
	zero(as.sZ)
}

// adjVelUpdate transposes the pressure half-step: the adjoint velocities
// are driven by the gradient of the profile-weighted adjoint pressure,
// with the integer-node profiles of prUpdate applied at the source node.
func (e *Expt) adjVelUpdate(w *wavefield, as *adjState) {
	nx := e.mesh.Nx
	nz := e.mesh.Nz
	dt := e.par.TGrid.Dt
	xp, zp := &e.pml.X, &e.pml.Z

	for iz := 2; iz < nz-2; iz++ {
		row := iz * nx
		az, bz, kz := zp.A[iz], zp.B[iz], zp.KI[iz]
		for ix := 2; ix < nx-2; ix++ {
			i := row + ix
			q := w.p[i]
			as.sX[i] = xp.A[ix]*as.psiX[i] + dt*(xp.KI[ix]+xp.A[ix])*q
			as.psiX[i] = xp.B[ix] * (as.psiX[i] + dt*q)
			as.sZ[i] = az*as.psiZ[i] + dt*(kz+az)*q
			as.psiZ[i] = bz * (as.psiZ[i] + dt*q)
		}
	}

	c1x := stencil1 / e.mesh.X.Dx
	c2x := stencil2 / e.mesh.X.Dx
	c1z := stencil1 / e.mesh.Z.Dx
	c2z := stencil2 / e.mesh.Z.Dx
	sx, sz := as.sX, as.sZ
	rvx, rvz := e.maps.RhoVxI, e.maps.RhoVzI
	for iz := 2; iz < nz-2; iz++ {
		row := iz * nx
		for ix := 2; ix < nx-2; ix++ {
			i := row + ix
			w.vx[i] -= rvx[i] * (c1x*(sx[i+1]-sx[i]) - c2x*(sx[i+2]-sx[i-1]))
			w.vz[i] -= rvz[i] * (c1z*(sz[i+nx]-sz[i]) - c2z*(sz[i+2*nx]-sz[i-nx]))
		}
	}
}

// adjPrUpdate transposes the velocity half-step: the adjoint pressure is
// driven by the divergence of the half-node-weighted adjoint velocities.
func (e *Expt) adjPrUpdate(w *wavefield, as *adjState) {
	nx := e.mesh.Nx
	nz := e.mesh.Nz
	dt := e.par.TGrid.Dt
	xh, zh := &e.pml.XH, &e.pml.ZH

	for iz := 2; iz < nz-2; iz++ {
		row := iz * nx
		az, bz, kz := zh.A[iz], zh.B[iz], zh.KI[iz]
		for ix := 2; ix < nx-2; ix++ {
			i := row + ix
			u := w.vx[i]
			as.sX[i] = xh.A[ix]*as.phiX[i] + dt*(xh.KI[ix]+xh.A[ix])*u
			as.phiX[i] = xh.B[ix] * (as.phiX[i] + dt*u)
			v := w.vz[i]
			as.sZ[i] = az*as.phiZ[i] + dt*(kz+az)*v
			as.phiZ[i] = bz * (as.phiZ[i] + dt*v)
		}
	}

	c1x := stencil1 / e.mesh.X.Dx
	c2x := stencil2 / e.mesh.X.Dx
	c1z := stencil1 / e.mesh.Z.Dx
	c2z := stencil2 / e.mesh.Z.Dx
	sx, sz := as.sX, as.sZ
	k := e.maps.K
	for iz := 2; iz < nz-2; iz++ {
		row := iz * nx
		for ix := 2; ix < nx-2; ix++ {
			i := row + ix
			dx := c1x*(sx[i]-sx[i-1]) - c2x*(sx[i+1]-sx[i-2])
			dz := c1z*(sz[i]-sz[i-nx]) - c2z*(sz[i+nx]-sz[i-2*nx])
			w.p[i] -= k[i] * (dx + dz)
		}
	}
}

// gradVelStep accumulates the staggered density kernels: the adjoint
// velocities right after their update against the forward pressure-gradient
// scratch of the matching step, still current from the previous reverse
// step. Dividing by the staggered density inverts the energy scaling of
// the adjoint velocities.
func (wk *worker) gradVelStep(w0, w1 *wavefield) {
	e := wk.e
	nx := e.mesh.Nx
	nxd := e.mesh.X.N
	dt := e.par.TGrid.Dt
	rvx, rvz := e.maps.RhoVxI, e.maps.RhoVzI
	for iz := e.mesh.Iz0(); iz < e.mesh.Iz1(); iz++ {
		row := iz * nx
		prow := (iz - e.mesh.NPML) * nxd
		for ix := e.mesh.Ix0(); ix < e.mesh.Ix1(); ix++ {
			i := row + ix
			j := prow + ix - e.mesh.NPML
			wk.gRhoVx[j] += dt * w0.dPdx[i] * w1.vx[i] / rvx[i]
			wk.gRhoVz[j] += dt * w0.dPdz[i] * w1.vz[i] / rvz[i]
		}
	}
}

// gradPrStep accumulates the bulk kernel: the adjoint pressure against the
// forward divergence scratch, weighted with dt*K the way the scattering
// injection weights it.
func (wk *worker) gradPrStep(w0, w1 *wavefield) {
	e := wk.e
	nx := e.mesh.Nx
	nxd := e.mesh.X.N
	dt := e.par.TGrid.Dt
	k := e.maps.K
	for iz := e.mesh.Iz0(); iz < e.mesh.Iz1(); iz++ {
		row := iz * nx
		prow := (iz - e.mesh.NPML) * nxd
		for ix := e.mesh.Ix0(); ix < e.mesh.Ix1(); ix++ {
			i := row + ix
			j := prow + ix - e.mesh.NPML
			wk.gKI[j] += dt * k[i] * (w0.dVdx[i] + w0.dVdz[i]) * w1.p[i]
		}
	}
}

// gradFinalize scales the accumulated kernels by the cell area and pushes
// the staggered density sensitivities back onto the pressure nodes through
// the adjoint of the linearized harmonic average, the transpose of how the
// perturbations were spread. The result lands in gKI and gRhoI, still
// worker-local.
func (wk *worker) gradFinalize() {
	e := wk.e
	nzd, nxd := e.mesh.Z.N, e.mesh.X.N
	area := e.mesh.Z.Dx * e.mesh.X.Dx
	rI := e.maps.RhoI
	npml := e.mesh.NPML

	for j := range wk.gKI {
		wk.gKI[j] *= area
		wk.gRhoVx[j] *= area
		wk.gRhoVz[j] *= area
	}

	for iz := 0; iz < nzd; iz++ {
		for ix := 0; ix < nxd; ix++ {
			j := iz*nxd + ix
			i := e.mesh.Idx(iz+npml, ix+npml)

			// Sensitivity of the vx cell at (iz, ix) w.r.t. its two
			// pressure-node neighbors, and of the cell at (iz, ix-1)
			// w.r.t. this node.
			wa, _ := medium.HarmonicWeights(rI[i], rI[i+1])
			g := wk.gRhoVx[j] * wa
			if ix > 0 {
				_, wb := medium.HarmonicWeights(rI[i-1], rI[i])
				g += wk.gRhoVx[j-1] * wb
			}
			wa, _ = medium.HarmonicWeights(rI[i], rI[i+e.mesh.Nx])
			g += wk.gRhoVz[j] * wa
			if iz > 0 {
				_, wb := medium.HarmonicWeights(rI[i-e.mesh.Nx], rI[i])
				g += wk.gRhoVz[j-nxd] * wb
			}
			wk.gRhoI[j] += g
		}
	}
}
