package fdtd

// physicalCopy extracts the physical-domain pressure field as a fresh
// nzd*nxd slice.
func (e *Expt) physicalCopy(w *wavefield) []float64 {
	nxd := e.mesh.X.N
	out := make([]float64, e.mesh.Z.N*nxd)
	nx := e.mesh.Nx
	for iz := e.mesh.Iz0(); iz < e.mesh.Iz1(); iz++ {
		row := iz * nx
		prow := (iz - e.mesh.NPML) * nxd
		for ix := e.mesh.Ix0(); ix < e.mesh.Ix1(); ix++ {
			out[prow+ix-e.mesh.NPML] = w.p[row+ix]
		}
	}
	return out
}

// Records returns the (nt x nr) record matrix of field f for supersource
// iss, indexed [time][receiver], or nil when the field was not recorded.
func (e *Expt) Records(iss int, f Field) [][]float64 {
	if e.records == nil || iss < 0 || iss >= e.nss {
		return nil
	}
	for fi, rf := range e.par.RecFields {
		if rf == f {
			return e.records[iss][fi]
		}
	}
	return nil
}

// Snaps returns the physical-domain pressure snapshots of supersource iss,
// one per requested snapshot time.
func (e *Expt) Snaps(iss int) [][]float64 {
	if e.snaps == nil || iss < 0 || iss >= e.nss {
		return nil
	}
	return e.snaps[iss]
}

// Illum returns the illumination map, the time-integrated squared pressure
// summed over supersources, on the physical mesh.
func (e *Expt) Illum() []float64 { return e.illum }

// Gradient returns the sensitivity vector of length 2*nzd*nxd: the first
// half is dJ/dKI, the second dJ/dRhoI.
func (e *Expt) Gradient() []float64 {
	if e.gradKI == nil {
		return nil
	}
	out := make([]float64, 2*len(e.gradKI))
	copy(out, e.gradKI)
	copy(out[len(e.gradKI):], e.gradRhoI)
	return out
}
