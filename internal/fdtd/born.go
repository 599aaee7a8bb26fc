package fdtd

// Born coupling: wavefield 1 propagates in the background medium and drives
// wavefield 2 through secondary sources weighted by the perturbation. Both
// injections read the corrected-derivative scratch that the background
// wavefield's own update just produced, so they linearize exactly the
// update equations and the scattered output is exactly linear in the
// perturbation.

// bornVelInject perturbs the scattered velocity update:
// delta(v-update) = -dt * dRhoI * grad(p1).
func (e *Expt) bornVelInject(w2, w1 *wavefield) {
	nx := e.mesh.Nx
	dt := e.par.TGrid.Dt
	for iz := e.mesh.Iz0(); iz < e.mesh.Iz1(); iz++ {
		row := iz * nx
		for ix := e.mesh.Ix0(); ix < e.mesh.Ix1(); ix++ {
			i := row + ix
			w2.vx[i] -= dt * e.dRhoVxI[i] * w1.dPdx[i]
			w2.vz[i] -= dt * e.dRhoVzI[i] * w1.dPdz[i]
		}
	}
}

// bornPrInject perturbs the scattered pressure update. With K = 1/KI,
// delta K = -K^2 * dKI, so delta(p-update) = +dt * K^2 * dKI * div(v1).
func (e *Expt) bornPrInject(w2, w1 *wavefield) {
	nx := e.mesh.Nx
	dt := e.par.TGrid.Dt
	k := e.maps.K
	for iz := e.mesh.Iz0(); iz < e.mesh.Iz1(); iz++ {
		row := iz * nx
		for ix := e.mesh.Ix0(); ix < e.mesh.Ix1(); ix++ {
			i := row + ix
			d := e.dKI[i]
			if d == 0 {
				continue
			}
			w2.p[i] += dt * k[i] * k[i] * d * (w1.dVdx[i] + w1.dVdz[i])
		}
	}
}
