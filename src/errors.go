package jt9decode

import "errors"

// Failure classes.  Callers wrap these with fmt.Errorf("%w: ...") so the
// class survives alongside the underlying cause and can be tested with
// errors.Is.
//
// ErrIO, ErrFormat, ErrProtocol and ErrEngineLaunch end the run.
// ErrEngineTimeout is only ever reported as a diagnostic.
// ErrEngineCrashed abandons the current cycle and stops scheduling.
var (
	ErrIO            = errors.New("i/o error")
	ErrFormat        = errors.New("format error")
	ErrProtocol      = errors.New("shared memory protocol error")
	ErrEngineLaunch  = errors.New("engine launch failed")
	ErrEngineTimeout = errors.New("engine did not complete in time")
	ErrEngineCrashed = errors.New("engine exited unexpectedly")
)

// isFatal reports whether err should end the run rather than just the
// current cycle.
func isFatal(err error) bool {
	return errors.Is(err, ErrIO) ||
		errors.Is(err, ErrFormat) ||
		errors.Is(err, ErrProtocol) ||
		errors.Is(err, ErrEngineLaunch)
}
