package sensors

// DistanceSample is a single ultrasonic range measurement. Valid is false
// when the echo pulse timed out (disconnected or out-of-range sensor).
type DistanceSample struct {
	Centimeters float64
	Valid       bool
}

// Ranger measures distance once per call. A timed-out echo yields an
// invalid sample, not an error; errors are reserved for pin failures.
type Ranger interface {
	MeasureOnce() (DistanceSample, error)
}

// GasReader reads the analog gas sensor once, in ADC-native units.
type GasReader interface {
	ReadOnce() (int, error)
}

// Ensure the real and mock devices satisfy the interfaces.
var _ Ranger = (*Ultrasonic)(nil)
var _ Ranger = (*ScriptedRanger)(nil)
var _ Ranger = (*SimRanger)(nil)
var _ GasReader = (*ADS1115Gas)(nil)
var _ GasReader = (*ScriptedGas)(nil)
var _ GasReader = (*SimGas)(nil)
