package acq

import "math"

// SrcWav is the source time function for one supersource: one trace per
// physical source, sampled on the experiment time grid.
type SrcWav [][]float64

// Ricker returns a Ricker wavelet with peak frequency fpeak on an nt-sample
// grid with step dt. tdelay shifts the peak; a non-positive delay defaults
// to 1.5/fpeak so the wavelet starts near zero.
func Ricker(fpeak, dt float64, nt int, tdelay float64) []float64 {
	if tdelay <= 0 {
		tdelay = 1.5 / fpeak
	}
	w := make([]float64, nt)
	for i := range w {
		a := math.Pi * fpeak * (float64(i)*dt - tdelay)
		a2 := a * a
		w[i] = (1 - 2*a2) * math.Exp(-a2)
	}
	return w
}

// Integrate returns the running time integral of w, used for injection-rate
// sources.
func Integrate(w []float64, dt float64) []float64 {
	out := make([]float64, len(w))
	sum := 0.0
	for i, v := range w {
		sum += v * dt
		out[i] = sum
	}
	return out
}

// FreqBounds estimates the band of a wavelet as the peak-amplitude
// frequency scaled down and up; for a Ricker with peak f this brackets the
// energy well enough for the dispersion check.
func FreqBounds(fpeak float64) (fmin, fmax float64) {
	return fpeak / 3, 2.5 * fpeak
}
