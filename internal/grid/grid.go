package grid

// Axis is a uniformly sampled spatial axis.
type Axis struct {
	X0 float64
	Dx float64
	N  int
}

func NewAxis(x0, dx float64, n int) Axis {
	if n < 1 {
		n = 1
	}
	return Axis{X0: x0, Dx: dx, N: n}
}

func (a Axis) At(i int) float64 { return a.X0 + float64(i)*a.Dx }

func (a Axis) Last() float64 { return a.At(a.N - 1) }

// Contains reports whether x lies on the sampled interval.
func (a Axis) Contains(x float64) bool {
	return x >= a.X0 && x <= a.Last()
}

// Time is a uniformly sampled time axis.
type Time struct {
	T0 float64
	Dt float64
	N  int
}

func NewTime(t0, dt float64, n int) Time {
	if n < 1 {
		n = 1
	}
	return Time{T0: t0, Dt: dt, N: n}
}

func (t Time) At(i int) float64 { return t.T0 + float64(i)*t.Dt }

// Index returns the sample nearest to time tv, clamped to the axis.
func (t Time) Index(tv float64) int {
	i := int((tv-t.T0)/t.Dt + 0.5)
	if i < 0 {
		i = 0
	}
	if i >= t.N {
		i = t.N - 1
	}
	return i
}

// Faces selects which sides of the domain absorb outgoing waves.
// A disabled face keeps an inert profile and reflects.
type Faces struct {
	Zmin, Zmax, Xmin, Xmax bool
}

func AllFaces() Faces { return Faces{Zmin: true, Zmax: true, Xmin: true, Xmax: true} }

// Mesh is the extended computational mesh: the physical domain padded by
// NPML absorbing cells on every side. Fields on the mesh are stored as flat
// slices in row-major order, rows along z.
type Mesh struct {
	Z, X Axis // physical axes
	NPML int
	Nz   int // extended
	Nx   int
}

func NewMesh(z, x Axis, npml int) Mesh {
	if npml < 4 {
		npml = 4
	}
	return Mesh{
		Z:    z,
		X:    x,
		NPML: npml,
		Nz:   z.N + 2*npml,
		Nx:   x.N + 2*npml,
	}
}

func (m Mesh) Idx(iz, ix int) int { return iz*m.Nx + ix }

func (m Mesh) Size() int { return m.Nz * m.Nx }

// Iz0 and Ix0 are the extended-mesh indices of the first physical node.
func (m Mesh) Iz0() int { return m.NPML }
func (m Mesh) Ix0() int { return m.NPML }

// Iz1 and Ix1 are the extended-mesh indices one past the last physical node.
func (m Mesh) Iz1() int { return m.NPML + m.Z.N }
func (m Mesh) Ix1() int { return m.NPML + m.X.N }
