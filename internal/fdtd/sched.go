package fdtd

import (
	"context"
	"log"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// finiteCheckEvery is how often the pressure slab is scanned for NaN/Inf.
const finiteCheckEvery = 128

// worker owns the simulation state for a contiguous share of the
// supersources. Its slabs and accumulators are allocated once and reused;
// cross-worker state is touched only in merge.
type worker struct {
	e   *Expt
	wf  []*wavefield
	bnd *boundary
	adj *adjState

	gKI, gRhoVx, gRhoVz, gRhoI []float64
	illum                      []float64
}

func newWorker(e *Expt) *worker {
	wk := &worker{e: e}
	n := e.mesh.Size()
	wk.wf = make([]*wavefield, e.par.NPW)
	for i := range wk.wf {
		wk.wf[i] = newWavefield(n)
	}
	if e.par.GradFlag || e.par.BackpropFlag != BackpropOff {
		wk.bnd = newBoundary(e.mesh, e.par.TGrid.N)
	}
	nd := e.mesh.Z.N * e.mesh.X.N
	if e.par.GradFlag {
		wk.adj = newAdjState(n)
		wk.gKI = make([]float64, nd)
		wk.gRhoVx = make([]float64, nd)
		wk.gRhoVz = make([]float64, nd)
		wk.gRhoI = make([]float64, nd)
	}
	if e.par.IllumFlag {
		wk.illum = make([]float64, nd)
	}
	return wk
}

// Run performs all supersources, partitioned contiguously over a pool of
// min(nss, nworker) workers, and reduces the shared accumulators at the
// join. It returns the first error encountered; outstanding supersources
// are not started after a failure in their worker.
func (e *Expt) Run(ctx context.Context) error {
	nw := e.par.NWorker
	if nw <= 0 {
		nw = runtime.GOMAXPROCS(0)
	}
	if nw > e.nss {
		nw = e.nss
	}
	if nw < 1 {
		return ResourceError{Msg: "no workers available"}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, nw)
	for wi := 0; wi < nw; wi++ {
		lo := wi * e.nss / nw
		hi := (wi + 1) * e.nss / nw
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			wk := newWorker(e)
			for iss := lo; iss < hi; iss++ {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				default:
				}
				if err := wk.run(iss); err != nil {
					errCh <- err
					return
				}
				if e.par.Verbose {
					log.Printf("fdtd: supersource %d/%d done", iss+1, e.nss)
				}
			}
			wk.merge()
		}(lo, hi)
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	e.ran = true
	return nil
}

func (wk *worker) run(iss int) error {
	for _, w := range wk.wf {
		w.reset()
	}
	switch {
	case wk.e.par.GradFlag:
		return wk.runGradient(iss)
	case wk.e.par.Mode == AcousticBorn:
		return wk.runBorn(iss)
	default:
		return wk.runForward(iss)
	}
}

// runForward advances all propagating wavefields through the time loop.
// When backprop replay is requested, the first wavefield's boundary
// history is saved and the pressure history is then rebuilt backward from
// it, so snapshots and the probe observe the reconstruction.
func (wk *worker) runForward(iss int) error {
	e := wk.e
	nt := e.par.TGrid.N
	replay := e.par.BackpropFlag == BackpropReplay
	for it := 0; it < nt; it++ {
		for ipw, w := range wk.wf {
			e.velUpdate(w, 1)
			e.prUpdate(w, 1)
			e.srcInject(w, ipw, iss, it, 1)
		}
		wk.observe(iss, it)
		if replay {
			wk.bnd.save(wk.wf[0], it)
		}
		if err := wk.checkFinite(iss, it); err != nil {
			return err
		}
	}
	if !replay {
		return nil
	}
	wk.bnd.snap(wk.wf[0])
	return wk.runReplay(iss)
}

// runReplay rebuilds the interior pressure history backward from the
// stored halos and the final snapshot. The wavefield is cleared first:
// the store alone determines the reconstruction.
func (wk *worker) runReplay(iss int) error {
	e := wk.e
	w := wk.wf[0]
	nt := e.par.TGrid.N
	w.reset()
	wk.bnd.loadSnap(w)
	for it := nt - 1; it >= 1; it-- {
		e.srcInject(w, 0, iss, it, -1)
		e.prUpdate(w, -1)
		wk.bnd.force(w, it-1)
		e.velUpdate(w, -1)
		if e.par.SnapsFlag {
			e.snapSave(w, iss, it-1)
		}
		if e.par.Probe != nil && (e.par.ProbeEvery <= 1 || (it-1)%e.par.ProbeEvery == 0) {
			e.par.Probe(it-1, e.par.TGrid.At(it-1), e.physicalCopy(w))
		}
		if it%finiteCheckEvery == 0 || it == 1 {
			if !e.physFinite(w) {
				return NumericError{SuperSource: iss, Step: it - 1}
			}
		}
	}
	return nil
}

// runBorn advances the background wavefield and, within the same step,
// injects the perturbation-weighted secondary sources into the scattered
// wavefield.
func (wk *worker) runBorn(iss int) error {
	e := wk.e
	w0, w1 := wk.wf[0], wk.wf[1]
	nt := e.par.TGrid.N
	for it := 0; it < nt; it++ {
		e.velUpdate(w0, 1)
		e.velUpdate(w1, 1)
		e.bornVelInject(w1, w0)
		e.prUpdate(w0, 1)
		e.prUpdate(w1, 1)
		e.bornPrInject(w1, w0)
		e.srcInject(w0, 0, iss, it, 1)
		e.srcInject(w1, 1, iss, it, 1)
		wk.observe(iss, it)
		if err := wk.checkFinite(iss, it); err != nil {
			return err
		}
	}
	return nil
}

// runGradient runs the forward sweep with boundary save, then steps the
// forward field backwards under halo forcing while propagating the adjoint
// field with the transposed recursions. The kernels pair each adjoint
// state with the forward derivative scratch of the same step: the density
// kernel right after the adjoint velocity update, while the scratch of the
// previous reverse step is still current, and the bulk kernel after the
// forward field has been stepped back.
func (wk *worker) runGradient(iss int) error {
	e := wk.e
	w0, w1 := wk.wf[0], wk.wf[1]
	nt := e.par.TGrid.N

	for it := 0; it < nt; it++ {
		e.velUpdate(w0, 1)
		e.prUpdate(w0, 1)
		e.srcInject(w0, 0, iss, it, 1)
		wk.observe(iss, it)
		wk.bnd.save(w0, it)
		if err := wk.checkFinite(iss, it); err != nil {
			return err
		}
	}

	w1.reset()
	wk.adj.reset()
	for it := nt - 1; it >= 1; it-- {
		// Adjoint step: the time-reversed source flag maps loop step it to
		// adjoint time nt-1-it.
		e.adjVelUpdate(w1, wk.adj)
		wk.gradVelStep(w0, w1)
		e.adjPrUpdate(w1, wk.adj)
		e.srcInject(w1, 1, iss, it, 1)

		// Reverse step of the forward field: un-inject, un-update p, force
		// the recorded halo, un-update v. Inside the halo the derivative
		// scratch this leaves behind matches the forward step bit for bit.
		e.srcInject(w0, 0, iss, it, -1)
		e.prUpdate(w0, -1)
		wk.bnd.force(w0, it-1)
		e.velUpdate(w0, -1)

		wk.gradPrStep(w0, w1)
		if err := wk.checkFiniteRev(iss, it); err != nil {
			return err
		}
	}
	// The step-1 density term pairs the scratch of the last reverse step
	// with one more adjoint velocity update.
	e.adjVelUpdate(w1, wk.adj)
	wk.gradVelStep(w0, w1)
	wk.gradFinalize()
	return nil
}

// observe handles the per-step outputs owned exclusively by this worker:
// receiver records, illumination and snapshots.
func (wk *worker) observe(iss, it int) {
	e := wk.e
	if e.rpw >= 0 {
		e.record(wk.wf[e.rpw], iss, it)
	}
	if wk.illum != nil {
		wk.illumStep(wk.wf[0])
	}
	if e.par.SnapsFlag {
		e.snapSave(wk.wf[0], iss, it)
	}
	if e.par.Probe != nil && (e.par.ProbeEvery <= 1 || it%e.par.ProbeEvery == 0) {
		e.par.Probe(it, e.par.TGrid.At(it), e.physicalCopy(wk.wf[0]))
	}
}

func (wk *worker) illumStep(w *wavefield) {
	e := wk.e
	nx := e.mesh.Nx
	nxd := e.mesh.X.N
	for iz := e.mesh.Iz0(); iz < e.mesh.Iz1(); iz++ {
		row := iz * nx
		prow := (iz - e.mesh.NPML) * nxd
		for ix := e.mesh.Ix0(); ix < e.mesh.Ix1(); ix++ {
			v := w.p[row+ix]
			wk.illum[prow+ix-e.mesh.NPML] += v * v
		}
	}
}

func (e *Expt) snapSave(w *wavefield, iss, it int) {
	for k, is := range e.isnaps {
		if is != it {
			continue
		}
		out := e.snaps[iss][k]
		nx := e.mesh.Nx
		nxd := e.mesh.X.N
		for iz := e.mesh.Iz0(); iz < e.mesh.Iz1(); iz++ {
			row := iz * nx
			prow := (iz - e.mesh.NPML) * nxd
			for ix := e.mesh.Ix0(); ix < e.mesh.Ix1(); ix++ {
				out[prow+ix-e.mesh.NPML] = w.p[row+ix]
			}
		}
	}
}

func (wk *worker) checkFinite(iss, it int) error {
	if it%finiteCheckEvery != 0 && it != wk.e.par.TGrid.N-1 {
		return nil
	}
	for _, w := range wk.wf {
		if !w.finite() {
			return NumericError{SuperSource: iss, Step: it}
		}
	}
	return nil
}

// checkFiniteRev guards the backward sweep: the adjoint field everywhere,
// the reconstruction only inside the halo, where it is defined.
func (wk *worker) checkFiniteRev(iss, it int) error {
	if it%finiteCheckEvery != 0 && it != 1 {
		return nil
	}
	if !wk.wf[1].finite() {
		return NumericError{SuperSource: iss, Step: it}
	}
	if !wk.e.physFinite(wk.wf[0]) {
		return NumericError{SuperSource: iss, Step: it}
	}
	return nil
}

// merge folds the worker-local accumulators into the shared stacks. Sums
// are commutative, so no ordering between workers is required.
func (wk *worker) merge() {
	e := wk.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if wk.illum != nil {
		floats.Add(e.illum, wk.illum)
	}
	if wk.gKI != nil {
		floats.Add(e.gradKI, wk.gKI)
		floats.Add(e.gradRhoI, wk.gRhoI)
	}
}
