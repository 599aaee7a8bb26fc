package fdtd

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/seisfd/internal/acq"
)

func maxAbs(s []float64) float64 {
	m := 0.0
	for _, v := range s {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

func maxAbsDiff(a, b []float64) float64 {
	m := 0.0
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > m {
			m = d
		}
	}
	return m
}

func flatten(rec [][]float64) []float64 {
	out := make([]float64, 0, len(rec)*len(rec[0]))
	for _, row := range rec {
		out = append(out, row...)
	}
	return out
}

func TestForwardRecords(t *testing.T) {
	p := singleShot(testMedium(50, 50), 300, 125, 125, []float64{125, 125}, []float64{200, 50})
	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec := e.Records(0, FieldP)
	if rec == nil {
		t.Fatal("no pressure records")
	}
	if len(rec) != 300 || len(rec[0]) != 2 {
		t.Fatalf("record shape %dx%d, want 300x2", len(rec), len(rec[0]))
	}
	all := flatten(rec)
	if maxAbs(all) == 0 {
		t.Fatal("records all zero")
	}
	for i, v := range all {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite record sample %d", i)
		}
	}
	if e.Records(0, FieldVx) != nil {
		t.Error("got vx records without requesting them")
	}
	if e.Records(5, FieldP) != nil {
		t.Error("out-of-range supersource returned records")
	}

	// Both receivers are 75 m from the source in a homogeneous medium, so
	// their traces coincide up to mesh symmetry.
	var d, m float64
	for it := range rec {
		d = math.Max(d, math.Abs(rec[it][0]-rec[it][1]))
		m = math.Max(m, math.Abs(rec[it][0]))
	}
	if d > 1e-5*m {
		t.Errorf("symmetric receivers differ by %g of peak %g", d, m)
	}
}

func TestEnergyDecays(t *testing.T) {
	p := singleShot(testMedium(50, 50), 600, 125, 125, []float64{125}, []float64{200})
	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}

	w := newWavefield(e.mesh.Size())
	peak := 0.0
	for it := 0; it < p.TGrid.N; it++ {
		e.velUpdate(w, 1)
		e.prUpdate(w, 1)
		e.srcInject(w, 0, 0, it, 1)
		if en := e.fieldEnergy(w); en > peak {
			peak = en
		}
	}
	final := e.fieldEnergy(w)
	if peak == 0 {
		t.Fatal("no energy entered the domain")
	}
	// 0.3 s is ample for the wavefront to leave a 250 m box at 2 km/s; the
	// absorbing layer should have swallowed nearly everything.
	if final > 1e-2*peak {
		t.Errorf("final energy %g is %.2g of peak %g; boundary not absorbing", final, final/peak, peak)
	}
}

func TestMultiWorkerDeterminism(t *testing.T) {
	build := func(nworker int) *Expt {
		p := singleShot(testMedium(40, 40), 200, 100, 60, []float64{100}, []float64{150})
		// Second supersource at a different position.
		p.Geom[0] = append(p.Geom[0], acq.SuperSource{
			Sz: []float64{60}, Sx: []float64{120},
			Rz: []float64{100}, Rx: []float64{150},
		})
		p.SrcWav[0] = append(p.SrcWav[0], p.SrcWav[0][0])
		p.NWorker = nworker
		e, err := New(p)
		if err != nil {
			t.Fatal(err)
		}
		if err := e.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		return e
	}

	e1 := build(1)
	e2 := build(2)
	for iss := 0; iss < 2; iss++ {
		a := flatten(e1.Records(iss, FieldP))
		b := flatten(e2.Records(iss, FieldP))
		if maxAbsDiff(a, b) != 0 {
			t.Errorf("supersource %d: records differ between 1 and 2 workers", iss)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	p := singleShot(testMedium(40, 40), 200, 100, 100, []float64{100}, []float64{150})
	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); err != context.Canceled {
		t.Errorf("Run on cancelled context = %v, want context.Canceled", err)
	}
}

func TestSnapshotsAndIllumination(t *testing.T) {
	p := singleShot(testMedium(50, 50), 300, 125, 125, []float64{125}, []float64{200})
	p.SnapsFlag = true
	p.TSnaps = []float64{0.075, 0.1}
	p.IllumFlag = true
	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	snaps := e.Snaps(0)
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}
	for k, s := range snaps {
		if len(s) != 50*50 {
			t.Fatalf("snapshot %d has %d cells, want %d", k, len(s), 50*50)
		}
		if maxAbs(s) == 0 {
			t.Errorf("snapshot %d all zero", k)
		}
	}

	illum := e.Illum()
	if illum == nil || maxAbs(illum) == 0 {
		t.Fatal("illumination map empty")
	}
	for i, v := range illum {
		if v < 0 {
			t.Fatalf("negative illumination at cell %d", i)
		}
	}
	// The source cell is lit more than a far corner.
	if illum[25*50+25] <= illum[0] {
		t.Error("source cell not brighter than the corner")
	}
}

func TestProbeCallback(t *testing.T) {
	p := singleShot(testMedium(40, 40), 100, 100, 100, []float64{100}, []float64{150})
	var calls int
	var badLen int
	p.Probe = func(it int, tv float64, pf []float64) {
		calls++
		if len(pf) != 40*40 {
			badLen = len(pf)
		}
	}
	p.ProbeEvery = 10
	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 10 {
		t.Errorf("probe called %d times, want 10", calls)
	}
	if badLen != 0 {
		t.Errorf("probe slab had %d cells, want %d", badLen, 40*40)
	}
}

// TestReplayReconstruction steps a forward run, then inverts it step by step
// under boundary-halo forcing and checks the interior history is recovered
// to roundoff. This is the property the gradient engine stands on.
func TestReplayReconstruction(t *testing.T) {
	nt := 250
	p := singleShot(testMedium(40, 40), nt, 100, 100, []float64{100}, []float64{150})
	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}

	w := newWavefield(e.mesh.Size())
	bnd := newBoundary(e.mesh, nt)
	hist := make([][]float64, nt)
	peak := 0.0
	for it := 0; it < nt; it++ {
		e.velUpdate(w, 1)
		e.prUpdate(w, 1)
		e.srcInject(w, 0, 0, it, 1)
		bnd.save(w, it)
		hist[it] = e.physicalCopy(w)
		if m := maxAbs(hist[it]); m > peak {
			peak = m
		}
	}
	if peak == 0 {
		t.Fatal("forward run produced no signal")
	}

	for it := nt - 1; it >= 1; it-- {
		e.srcInject(w, 0, 0, it, -1)
		e.prUpdate(w, -1)
		bnd.force(w, it-1)
		e.velUpdate(w, -1)

		if d := maxAbsDiff(e.physicalCopy(w), hist[it-1]); d > 1e-10*peak {
			t.Fatalf("step %d: replay error %g (peak %g)", it-1, d, peak)
		}
	}
}

// TestBornLinearity doubles the model perturbation and expects the scattered
// records to double: the Born approximation is linear by construction.
func TestBornLinearity(t *testing.T) {
	run := func(scale float64) [][]float64 {
		p := singleShot(testMedium(50, 50), 300, 125, 125, []float64{125}, []float64{200})
		ss := p.Geom[0][0]
		p.NPW = 2
		p.Mode = AcousticBorn
		p.Geom = []acq.Geom{p.Geom[0], {ss}}
		p.SrcWav = [][]acq.SrcWav{p.SrcWav[0], nil}
		p.SrcFlags = []int{SrcPressure, SrcOff}
		p.RecFlags = []int{0, 1}

		pert := make([]float64, 50*50)
		ki := 1.0 / (1000 * 2000 * 2000)
		for iz := 14; iz < 19; iz++ {
			for ix := 22; ix < 28; ix++ {
				pert[iz*50+ix] = scale * 0.05 * ki
			}
		}
		p.PertKI = pert

		e, err := New(p)
		if err != nil {
			t.Fatal(err)
		}
		if err := e.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		rec := e.Records(0, FieldP)
		if rec == nil {
			t.Fatal("no scattered records")
		}
		return rec
	}

	r1 := flatten(run(1))
	r2 := flatten(run(2))
	m := maxAbs(r1)
	if m == 0 {
		t.Fatal("scattered field is zero; perturbation never illuminated")
	}
	for i := range r1 {
		if math.Abs(r2[i]-2*r1[i]) > 1e-10*m {
			t.Fatalf("sample %d: doubled perturbation gives %g, want %g", i, r2[i], 2*r1[i])
		}
	}
}

func TestBornDensityPerturbation(t *testing.T) {
	p := singleShot(testMedium(50, 50), 300, 125, 125, []float64{125}, []float64{200})
	ss := p.Geom[0][0]
	p.NPW = 2
	p.Mode = AcousticBorn
	p.Geom = []acq.Geom{p.Geom[0], {ss}}
	p.SrcWav = [][]acq.SrcWav{p.SrcWav[0], nil}
	p.SrcFlags = []int{SrcPressure, SrcOff}
	p.RecFlags = []int{0, 1}

	pert := make([]float64, 50*50)
	for iz := 14; iz < 19; iz++ {
		for ix := 22; ix < 28; ix++ {
			pert[iz*50+ix] = 0.05 / 1000
		}
	}
	p.PertRhoI = pert

	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if maxAbs(flatten(e.Records(0, FieldP))) == 0 {
		t.Fatal("density perturbation produced no scattered field")
	}
}

func TestGradientRun(t *testing.T) {
	p := singleShot(testMedium(40, 40), 250, 60, 100, []float64{100, 100}, []float64{60, 140})
	p = withAdjoint(p)
	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	g := e.Gradient()
	nd := 40 * 40
	if len(g) != 2*nd {
		t.Fatalf("gradient length %d, want %d", len(g), 2*nd)
	}
	gKI, gRho := g[:nd], g[nd:]
	if maxAbs(gKI) == 0 {
		t.Error("KI gradient identically zero")
	}
	if maxAbs(gRho) == 0 {
		t.Error("density gradient identically zero")
	}
	for i, v := range g {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite gradient at %d", i)
		}
	}
	// Forward records still come out of the modeling sweep.
	if maxAbs(flatten(e.Records(0, FieldP))) == 0 {
		t.Error("gradient run produced no forward records")
	}
}

// TestAdjointInnerProduct checks that the gradient engine is the transpose
// of the scattering operator: for a random model perturbation dm and
// random residual traces d, the inner products <F dm, d> in data space and
// <dm, F* d> in model space must agree. KI-only and density-only
// perturbations exercise the bulk and the staggered kernels separately.
func TestAdjointInnerProduct(t *testing.T) {
	const (
		nz, nx = 40, 40
		nt     = 200
		nd     = nz * nx
	)
	rng := rand.New(rand.NewSource(7))

	rz := make([]float64, 8)
	rx := make([]float64, 8)
	for i := range rz {
		rz[i] = 50
		rx[i] = 40 + 15*float64(i)
	}
	base := func() Params {
		return singleShot(testMedium(nz, nx), nt, 150, 100, rz, rx)
	}

	forward := func(pKI, pRho []float64) [][]float64 {
		p := base()
		ss := p.Geom[0][0]
		p.NPW = 2
		p.Mode = AcousticBorn
		p.Geom = []acq.Geom{p.Geom[0], {ss}}
		p.SrcWav = [][]acq.SrcWav{p.SrcWav[0], nil}
		p.SrcFlags = []int{SrcPressure, SrcOff}
		p.RecFlags = []int{0, 1}
		p.PertKI = pKI
		p.PertRhoI = pRho
		e, err := New(p)
		if err != nil {
			t.Fatal(err)
		}
		if err := e.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		return e.Records(0, FieldP)
	}

	res := make(acq.SrcWav, len(rz))
	for r := range res {
		tr := make([]float64, nt)
		for it := range tr {
			tr[it] = rng.Float64() - 0.5
		}
		res[r] = tr
	}

	adjoint := func() []float64 {
		p := base()
		p.NPW = 2
		p.Geom = []acq.Geom{p.Geom[0], {acq.SuperSource{Sz: rz, Sx: rx}}}
		p.SrcWav = [][]acq.SrcWav{p.SrcWav[0], {res}}
		p.SrcFlags = []int{SrcPressure, SrcReversed}
		p.RecFlags = []int{1, 0}
		p.GradFlag = true
		e, err := New(p)
		if err != nil {
			t.Fatal(err)
		}
		if err := e.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		return e.Gradient()
	}
	g := adjoint()

	randomPert := func(scale float64) []float64 {
		dm := make([]float64, nd)
		for j := range dm {
			dm[j] = (rng.Float64() - 0.5) * scale
		}
		return dm
	}
	ki := 1.0 / (1000 * 2000 * 2000)
	cases := []struct {
		name string
		dm   []float64
		kiP  bool
	}{
		{"bulk modulus", randomPert(0.1 * ki), true},
		{"density", randomPert(0.1 / 1000), false},
	}

	dt, area := testDt, 5.0*5.0
	for _, c := range cases {
		var rec [][]float64
		var grad []float64
		if c.kiP {
			rec = forward(c.dm, nil)
			grad = g[:nd]
		} else {
			rec = forward(nil, c.dm)
			grad = g[nd:]
		}
		lhs := 0.0
		for it := range rec {
			for r := range rec[it] {
				lhs += rec[it][r] * res[r][nt-1-it]
			}
		}
		lhs *= dt * area
		rhs := floats.Dot(c.dm, grad)
		if rhs == 0 || lhs == 0 {
			t.Fatalf("%s: degenerate inner products (%g, %g)", c.name, lhs, rhs)
		}
		if rel := math.Abs(lhs-rhs) / math.Abs(rhs); rel > 1e-6 {
			t.Errorf("%s: <F dm, d> = %g, <dm, F* d> = %g, relative gap %.3g", c.name, lhs, rhs, rel)
		}
	}
}

// TestBackpropReplaySnapshots runs the same experiment with and without
// backprop replay; in replay mode the snapshots come from the backward
// reconstruction and must reproduce the forward history.
func TestBackpropReplaySnapshots(t *testing.T) {
	run := func(flag int) [][]float64 {
		p := singleShot(testMedium(40, 40), 250, 100, 100, []float64{100}, []float64{150})
		p.SnapsFlag = true
		p.TSnaps = []float64{0.04, 0.08}
		p.BackpropFlag = flag
		e, err := New(p)
		if err != nil {
			t.Fatal(err)
		}
		if err := e.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		return e.Snaps(0)
	}

	fwd := run(BackpropOff)
	rep := run(BackpropReplay)
	peak := 0.0
	for _, s := range fwd {
		if m := maxAbs(s); m > peak {
			peak = m
		}
	}
	if peak == 0 {
		t.Fatal("forward snapshots are empty")
	}
	for k := range fwd {
		if d := maxAbsDiff(fwd[k], rep[k]); d > 1e-10*peak {
			t.Errorf("snapshot %d: reconstruction deviates by %g (peak %g)", k, d, peak)
		}
	}
}

// TestNonFiniteSecondWavefield poisons only the scattered wavefield; the
// finite scan must catch it even though the background field stays clean.
func TestNonFiniteSecondWavefield(t *testing.T) {
	p := singleShot(testMedium(40, 40), 200, 100, 100, []float64{100}, []float64{150})
	ss := p.Geom[0][0]
	p.NPW = 2
	p.Mode = AcousticBorn
	p.Geom = []acq.Geom{p.Geom[0], {ss}}
	bad := make([]float64, 200)
	bad[0] = math.NaN()
	p.SrcWav = [][]acq.SrcWav{p.SrcWav[0], {acq.SrcWav{bad}}}
	p.SrcFlags = []int{SrcPressure, SrcPressure}
	p.RecFlags = []int{0, 1}
	p.PertKI = make([]float64, 40*40)

	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	err = e.Run(context.Background())
	var ne NumericError
	if !errors.As(err, &ne) {
		t.Fatalf("poisoned scattered field: got %v, want NumericError", err)
	}
}

// TestNonFiniteAdjointField poisons the adjoint source; the backward sweep
// must abort with NumericError instead of folding NaN into the gradient.
func TestNonFiniteAdjointField(t *testing.T) {
	p := singleShot(testMedium(40, 40), 200, 100, 100, []float64{100}, []float64{150})
	p = withAdjoint(p)
	bad := make([]float64, 200)
	bad[50] = math.NaN()
	p.SrcWav[1] = []acq.SrcWav{{bad}}

	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	err = e.Run(context.Background())
	var ne NumericError
	if !errors.As(err, &ne) {
		t.Fatalf("poisoned adjoint field: got %v, want NumericError", err)
	}
}

func TestEnergyMatchesPointwiseSum(t *testing.T) {
	p := []float64{0.5, -2, 3}
	want := (0.25 + 4 + 9) * 2.5 * 4.0
	if got := Energy(p, 2.5, 4.0); math.Abs(got-want) > 1e-12*want {
		t.Errorf("Energy = %g, want %g", got, want)
	}
}

// TestReciprocity swaps a pressure source and receiver in a homogeneous
// medium; the recorded traces must agree.
func TestReciprocity(t *testing.T) {
	run := func(sz, sx, rz, rx float64) []float64 {
		p := singleShot(testMedium(60, 60), 400, sz, sx, []float64{rz}, []float64{rx})
		e, err := New(p)
		if err != nil {
			t.Fatal(err)
		}
		if err := e.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		rec := e.Records(0, FieldP)
		out := make([]float64, len(rec))
		for it := range rec {
			out[it] = rec[it][0]
		}
		return out
	}

	ab := run(100, 100, 200, 175)
	ba := run(200, 175, 100, 100)

	var num, den float64
	for i := range ab {
		d := ab[i] - ba[i]
		num += d * d
		den += ab[i] * ab[i]
	}
	if den == 0 {
		t.Fatal("no signal at the receiver")
	}
	if rel := math.Sqrt(num / den); rel > 5e-2 {
		t.Errorf("reciprocity violated: relative trace mismatch %.3g", rel)
	}
}
