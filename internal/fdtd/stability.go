package fdtd

import (
	"fmt"
	"math"
)

const (
	// CourantMax is the stability bound for the 4th-order staggered scheme.
	CourantMax = 0.5
	// PointsPerWavelength is the minimum sampling of the slowest wave at
	// the highest source frequency before numerical dispersion dominates.
	PointsPerWavelength = 5.0
)

// CheckStability verifies the Courant condition and the grid-dispersion
// condition for the given medium velocity bounds, grid steps, time step and
// source band. It returns a StabilityError describing the first violation.
func CheckStability(vpmin, vpmax, dz, dx, dt, fmax float64) error {
	courant := dt * vpmax * math.Sqrt(1/(dx*dx)+1/(dz*dz))
	if courant > CourantMax {
		return StabilityError{Msg: fmt.Sprintf(
			"Courant number %.3f exceeds %.2f; reduce dt below %.3e",
			courant, CourantMax, CourantMax/(vpmax*math.Sqrt(1/(dx*dx)+1/(dz*dz))))}
	}
	h := math.Min(dx, dz)
	hmax := vpmin / (PointsPerWavelength * fmax)
	if h > hmax {
		return StabilityError{Msg: fmt.Sprintf(
			"grid step %.3e undersamples fmax=%.3g Hz at vpmin=%.3g (needs <= %.3e)",
			h, fmax, vpmin, hmax)}
	}
	return nil
}
