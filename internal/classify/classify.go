package classify

import (
	"github.com/relabs-tech/drainguard_node/internal/sensors"
)

// Status is the anomaly classification of one reading.
type Status string

const (
	StatusNormal    Status = "NORMAL"
	StatusBlockage  Status = "BLOCKAGE"
	StatusLeakage   Status = "LEAKAGE"
	StatusGasHazard Status = "GAS_HAZARD"
)

// Anomalous reports whether the status should raise an alert downstream.
func (s Status) Anomalous() bool {
	return s != StatusNormal && s != ""
}

// Thresholds are the fixed classification bounds, set at boot from config
// and never mutated afterwards.
type Thresholds struct {
	BlockageCm float64 // distance below this: blockage
	LeakageCm  float64 // distance above this: leakage
	GasHigh    float64 // smoothed gas above this: gas hazard
}

// Classify derives a status from one filtered distance and the smoothed gas
// value. Pure function: no state, no hysteresis, recomputed fresh each
// iteration.
//
// The gas check runs last and overwrites a distance-derived status. An
// invalid distance (whole batch timed out) is compared against neither
// bound; only the gas check can then raise an alarm.
func Classify(distance sensors.DistanceSample, gas float64, th Thresholds) Status {
	status := StatusNormal
	if distance.Valid {
		if distance.Centimeters < th.BlockageCm {
			status = StatusBlockage
		} else if distance.Centimeters > th.LeakageCm {
			status = StatusLeakage
		}
	}
	if gas > th.GasHigh {
		status = StatusGasHazard
	}
	return status
}
