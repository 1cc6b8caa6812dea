// Package watchdog supervises the sampling loop. The loop holds a Watchdog
// as a capability: arming happens when the device is opened, and every loop
// iteration must Feed before the timeout elapses or the hardware resets the
// board with no chance for cleanup.
package watchdog

// Watchdog is fed once per loop iteration. Close disarms where the
// implementation supports it (orderly shutdown, not a crash path).
type Watchdog interface {
	Feed() error
	Close() error
}

var _ Watchdog = (*Device)(nil)
var _ Watchdog = (*Mock)(nil)
var _ Watchdog = Noop{}

// Noop satisfies Watchdog for bench runs without supervision hardware.
type Noop struct{}

func (Noop) Feed() error  { return nil }
func (Noop) Close() error { return nil }
