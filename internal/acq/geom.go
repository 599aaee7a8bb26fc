// Package acq describes acquisition geometry: grouped sources, receivers
// and their coupling onto the finite-difference mesh.
package acq

import (
	"fmt"

	"github.com/san-kum/seisfd/internal/grid"
)

// SuperSource is a group of physical sources fired simultaneously in one
// simulation, together with the receivers listening to it.
type SuperSource struct {
	Sz, Sx []float64
	Rz, Rx []float64
}

func (s SuperSource) NS() int { return len(s.Sz) }
func (s SuperSource) NR() int { return len(s.Rz) }

// Geom is the acquisition for one propagating wavefield.
type Geom []SuperSource

// Validate checks coordinate array shapes and that every point lies inside
// the physical mesh.
func (g Geom) Validate(z, x grid.Axis) error {
	if len(g) == 0 {
		return fmt.Errorf("acq: no supersources")
	}
	for iss, ss := range g {
		if len(ss.Sz) != len(ss.Sx) {
			return fmt.Errorf("acq: supersource %d: source coordinate lengths differ", iss)
		}
		if len(ss.Rz) != len(ss.Rx) {
			return fmt.Errorf("acq: supersource %d: receiver coordinate lengths differ", iss)
		}
		if len(ss.Sz) == 0 {
			return fmt.Errorf("acq: supersource %d has no sources", iss)
		}
		for i := range ss.Sz {
			if !z.Contains(ss.Sz[i]) || !x.Contains(ss.Sx[i]) {
				return fmt.Errorf("acq: supersource %d: source %d at (%g, %g) outside physical mesh", iss, i, ss.Sz[i], ss.Sx[i])
			}
		}
		for i := range ss.Rz {
			if !z.Contains(ss.Rz[i]) || !x.Contains(ss.Rx[i]) {
				return fmt.Errorf("acq: supersource %d: receiver %d at (%g, %g) outside physical mesh", iss, i, ss.Rz[i], ss.Rx[i])
			}
		}
	}
	return nil
}
