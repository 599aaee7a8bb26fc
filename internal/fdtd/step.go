package fdtd

import "gonum.org/v1/gonum/floats"

// 4th-order staggered-grid stencil coefficients.
const (
	stencil1 = 27.0 / 24.0
	stencil2 = 1.0 / 24.0
)

// velUpdate advances vx, vz by one (half) time step from the pressure
// gradient, applying the recursive C-PML memory update. sgn = +1 steps
// forward in time, -1 undoes a forward step during replay (the memory
// variables are inert everywhere the replay needs to be exact). The
// corrected derivatives remain in dPdx/dPdz for the Born coupling.
// The outermost 2 cells on each axis are read-only padding.
func (e *Expt) velUpdate(w *wavefield, sgn float64) {
	nx := e.mesh.Nx
	nz := e.mesh.Nz
	dt := sgn * e.par.TGrid.Dt
	c1x := stencil1 / e.mesh.X.Dx
	c2x := stencil2 / e.mesh.X.Dx
	c1z := stencil1 / e.mesh.Z.Dx
	c2z := stencil2 / e.mesh.Z.Dx
	p := w.p
	xh, zh := &e.pml.XH, &e.pml.ZH
	rvx, rvz := e.maps.RhoVxI, e.maps.RhoVzI

	for iz := 2; iz < nz-2; iz++ {
		row := iz * nx
		bz, az, kz := zh.B[iz], zh.A[iz], zh.KI[iz]
		for ix := 2; ix < nx-2; ix++ {
			i := row + ix

			dpdx := c1x*(p[i+1]-p[i]) - c2x*(p[i+2]-p[i-1])
			m := xh.B[ix]*w.mPdx[i] + xh.A[ix]*dpdx
			w.mPdx[i] = m
			d := xh.KI[ix]*dpdx + m
			w.dPdx[i] = d
			w.vx[i] -= dt * rvx[i] * d

			dpdz := c1z*(p[i+nx]-p[i]) - c2z*(p[i+2*nx]-p[i-nx])
			m = bz*w.mPdz[i] + az*dpdz
			w.mPdz[i] = m
			d = kz*dpdz + m
			w.dPdz[i] = d
			w.vz[i] -= dt * rvz[i] * d
		}
	}
}

// prUpdate advances p by one time step from the velocity divergence. The
// corrected divergence terms remain in dVdx/dVdz for the Born coupling.
func (e *Expt) prUpdate(w *wavefield, sgn float64) {
	nx := e.mesh.Nx
	nz := e.mesh.Nz
	dt := sgn * e.par.TGrid.Dt
	c1x := stencil1 / e.mesh.X.Dx
	c2x := stencil2 / e.mesh.X.Dx
	c1z := stencil1 / e.mesh.Z.Dx
	c2z := stencil2 / e.mesh.Z.Dx
	vx, vz := w.vx, w.vz
	xp, zp := &e.pml.X, &e.pml.Z
	k := e.maps.K

	for iz := 2; iz < nz-2; iz++ {
		row := iz * nx
		bz, az, kz := zp.B[iz], zp.A[iz], zp.KI[iz]
		for ix := 2; ix < nx-2; ix++ {
			i := row + ix

			dvdx := c1x*(vx[i]-vx[i-1]) - c2x*(vx[i+1]-vx[i-2])
			m := xp.B[ix]*w.mVdx[i] + xp.A[ix]*dvdx
			w.mVdx[i] = m
			dx := xp.KI[ix]*dvdx + m
			w.dVdx[i] = dx

			dvdz := c1z*(vz[i]-vz[i-nx]) - c2z*(vz[i+nx]-vz[i-2*nx])
			m = bz*w.mVdz[i] + az*dvdz
			w.mVdz[i] = m
			dz := kz*dvdz + m
			w.dVdz[i] = dz

			w.p[i] -= dt * k[i] * (dx + dz)
		}
	}
}

// srcInject sprays the wavelet sample for step it onto the four pressure
// nodes around each source. sgn = -1 un-injects during replay.
func (e *Expt) srcInject(w *wavefield, ipw, iss, it int, sgn float64) {
	flag := e.par.SrcFlags[ipw]
	if flag == SrcOff {
		return
	}
	cpl := &e.src[ipw][iss]
	wav := e.wav[ipw][iss]
	nx := e.mesh.Nx
	nt := e.par.TGrid.N
	dt := sgn * e.par.TGrid.Dt
	k := e.maps.K
	for s := 0; s < cpl.N(); s++ {
		idx := it
		if flag == SrcReversed {
			idx = nt - 1 - it
		}
		amp := wav[s][idx]
		if amp == 0 {
			continue
		}
		i00 := cpl.Iz[s]*nx + cpl.Ix[s]
		i10 := i00 + nx
		ws := &cpl.W[s]
		w.p[i00] += dt * k[i00] * ws[0] * amp
		w.p[i00+1] += dt * k[i00+1] * ws[1] * amp
		w.p[i10] += dt * k[i10] * ws[2] * amp
		w.p[i10+1] += dt * k[i10+1] * ws[3] * amp
	}
}

// record interpolates the requested fields at the receivers of supersource
// iss and writes them into the experiment records for step it. Records are
// owned by exactly one worker per supersource, so no locking is needed.
func (e *Expt) record(w *wavefield, iss, it int) {
	if e.rpw < 0 {
		return
	}
	cpl := &e.rec[iss]
	nx := e.mesh.Nx
	for fi, f := range e.par.RecFields {
		var slab []float64
		switch f {
		case FieldVx:
			slab = w.vx
		case FieldVz:
			slab = w.vz
		default:
			slab = w.p
		}
		out := e.records[iss][fi][it]
		for r := 0; r < cpl.N(); r++ {
			i00 := cpl.Iz[r]*nx + cpl.Ix[r]
			i10 := i00 + nx
			ws := &cpl.W[r]
			out[r] = ws[0]*slab[i00] + ws[1]*slab[i00+1] + ws[2]*slab[i10] + ws[3]*slab[i10+1]
		}
	}
}

// Energy integrates a squared field sampled on cells of area dz*dx. It is
// shared by the attenuation checks and the live view's energy history.
func Energy(p []float64, dz, dx float64) float64 {
	return floats.Dot(p, p) * dz * dx
}

// fieldEnergy integrates p^2 over the physical domain.
func (e *Expt) fieldEnergy(w *wavefield) float64 {
	sum := 0.0
	nx := e.mesh.Nx
	for iz := e.mesh.Iz0(); iz < e.mesh.Iz1(); iz++ {
		row := w.p[iz*nx+e.mesh.Ix0() : iz*nx+e.mesh.Ix1()]
		sum += floats.Dot(row, row)
	}
	return sum * e.mesh.Z.Dx * e.mesh.X.Dx
}
