package grid

import "math"

// C-PML defaults. The damping ramp occupies the outer NPML-3 cells of each
// absorbing layer; the innermost 3 cells stay inert so the boundary halo
// used for wavefield reconstruction sits outside the damped region.
const (
	DefaultNPML   = 50
	pmlOrder      = 2
	pmlReflection = 1e-6
	pmlKMax       = 1.0
)

// Profile holds the recursive C-PML coefficients along one axis: damping a,
// stretch b and inverse stretch KI, sampled at every extended-mesh node.
// Inside the physical domain a = 0, b = 1, KI = 1.
type Profile struct {
	A, B, KI []float64
}

// PML bundles the per-axis profiles at integer nodes (pressure positions)
// and half nodes (staggered velocity positions).
type PML struct {
	Z, ZH, X, XH Profile
}

// NewPML builds polynomial C-PML profiles for the mesh. Faces not selected
// in faces receive inert profiles. vpmax and fpeak tune the damping for a
// theoretical reflection of pmlReflection at the peak frequency.
func NewPML(m Mesh, faces Faces, dt, vpmax, fpeak float64) *PML {
	return &PML{
		Z:  newProfile(m.Nz, m.NPML, m.Z.Dx, dt, vpmax, fpeak, faces.Zmin, faces.Zmax, 0),
		ZH: newProfile(m.Nz, m.NPML, m.Z.Dx, dt, vpmax, fpeak, faces.Zmin, faces.Zmax, 0.5),
		X:  newProfile(m.Nx, m.NPML, m.X.Dx, dt, vpmax, fpeak, faces.Xmin, faces.Xmax, 0),
		XH: newProfile(m.Nx, m.NPML, m.X.Dx, dt, vpmax, fpeak, faces.Xmin, faces.Xmax, 0.5),
	}
}

func newProfile(n, npml int, dcell, dt, vpmax, fpeak float64, lo, hi bool, shift float64) Profile {
	p := Profile{
		A:  make([]float64, n),
		B:  make([]float64, n),
		KI: make([]float64, n),
	}
	for i := range p.B {
		p.B[i] = 1
		p.KI[i] = 1
	}

	ramp := float64(npml - 3) // cells
	if ramp < 1 {
		ramp = 1
	}
	// Damping amplitude for reflection coefficient pmlReflection over the
	// ramp length.
	dmax := -float64(pmlOrder+1) * vpmax * math.Log(pmlReflection) / (2 * ramp * dcell)

	for i := 0; i < n; i++ {
		xi := float64(i) + shift
		var d float64
		switch {
		case lo && xi < ramp:
			d = (ramp - xi) / ramp
		case hi && xi > float64(n-1)-ramp:
			d = (xi - (float64(n-1) - ramp)) / ramp
		default:
			continue
		}
		if d > 1 {
			d = 1
		}
		dd := math.Pow(d, pmlOrder) * dmax
		k := 1 + (pmlKMax-1)*math.Pow(d, pmlOrder)
		alpha := math.Pi * fpeak * (1 - d)
		b := math.Exp(-(dd/k + alpha) * dt)
		var a float64
		if dd+k*alpha != 0 {
			a = dd * (b - 1) / (k * (dd + k*alpha))
		}
		p.A[i] = a
		p.B[i] = b
		p.KI[i] = 1 / k
	}
	return p
}
