package fdtd

import "fmt"

// ConfigError reports an invalid experiment description detected at build
// time: shape mismatches, points outside the mesh, incompatible flags.
type ConfigError struct {
	Msg string
}

func (e ConfigError) Error() string { return "fdtd: config: " + e.Msg }

func configf(format string, args ...any) error {
	return ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// StabilityError reports a failed Courant or dispersion check.
type StabilityError struct {
	Msg string
}

func (e StabilityError) Error() string { return "fdtd: stability: " + e.Msg }

// NumericError reports a non-finite value in the wavefield state. It is
// fatal for the owning supersource and indicates instability or bad input.
type NumericError struct {
	SuperSource int
	Step        int
}

func (e NumericError) Error() string {
	return fmt.Sprintf("fdtd: non-finite wavefield state in supersource %d at step %d", e.SuperSource, e.Step)
}

// ResourceError reports a scheduling or allocation failure.
type ResourceError struct {
	Msg string
}

func (e ResourceError) Error() string { return "fdtd: resource: " + e.Msg }
