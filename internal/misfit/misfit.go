// Package misfit provides least-squares scaling and residuals between
// observed and modeled signals.
package misfit

import (
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// Scale returns the scalar alpha minimizing ||alpha*x - y||^2 together with
// the residual at the minimum. A zero x yields alpha = 0 and J = ||y||^2.
func Scale(x, y []float64) (alpha, j float64) {
	xx := floats.Dot(x, x)
	if xx != 0 {
		alpha = floats.Dot(x, y) / xx
	}
	for i := range x {
		r := alpha*x[i] - y[i]
		j += r * r
	}
	return alpha, j
}

// ScaleComplex is Scale for complex signals, with the conjugated inner
// product <x, y> = sum conj(x_i) y_i.
func ScaleComplex(x, y []complex128) (alpha complex128, j float64) {
	var xx float64
	var xy complex128
	for i := range x {
		xx += real(x[i])*real(x[i]) + imag(x[i])*imag(x[i])
		xy += cmplx.Conj(x[i]) * y[i]
	}
	if xx != 0 {
		alpha = xy / complex(xx, 0)
	}
	for i := range x {
		r := alpha*x[i] - y[i]
		j += real(r)*real(r) + imag(r)*imag(r)
	}
	return alpha, j
}
