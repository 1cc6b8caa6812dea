package telemetry

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/relabs-tech/drainguard_node/internal/classify"
	"github.com/relabs-tech/drainguard_node/internal/sensors"
)

// InvalidWaterLevel is the wire sentinel for "whole ranging batch timed
// out". Consumers must not treat it as a physical distance.
const InvalidWaterLevel = -1.0

// Reading is one telemetry record, serialized as a single JSON line on the
// serial channel. Timestamp is stamped by the host-side reader, never by
// the node.
type Reading struct {
	WaterLevel float64         `json:"water_level"` // cm, 2 decimals, -1 when invalid
	GasLevel   int             `json:"gas_level"`   // smoothed, ADC-native units
	Index      uint64          `json:"reading"`     // iteration counter since boot
	Uptime     int64           `json:"uptime"`      // seconds since boot
	Status     classify.Status `json:"status"`
	Anomaly    bool            `json:"anomaly"`
	Timestamp  string          `json:"timestamp,omitempty"`
}

// NewReading packs one completed iteration into a record. The water level
// is rounded to 2 decimals; the smoothed gas value to the nearest integer.
func NewReading(distance sensors.DistanceSample, gas float64, status classify.Status, index uint64, uptime time.Duration) Reading {
	water := InvalidWaterLevel
	if distance.Valid {
		water = math.Round(distance.Centimeters*100) / 100
	}
	return Reading{
		WaterLevel: water,
		GasLevel:   int(math.Round(gas)),
		Index:      index,
		Uptime:     int64(uptime.Seconds()),
		Status:     status,
		Anomaly:    status.Anomalous(),
	}
}

// InRange reports whether the record's values are physically plausible.
// Bounds match what the backend accepts: water in [-1, 500] cm, gas within
// a 12-bit ADC range.
func (r Reading) InRange() bool {
	return r.WaterLevel >= InvalidWaterLevel && r.WaterLevel <= 500 &&
		r.GasLevel >= 0 && r.GasLevel <= 4095
}

// Boot is the one-off record emitted when the node starts. Consumers key on
// the event field to tell it apart from regular telemetry.
type Boot struct {
	Event      string `json:"event"`
	Firmware   string `json:"firmware"`
	IntervalMS int    `json:"interval_ms"`
}

// ErrMissingFields marks a JSON line that parsed but lacks the mandatory
// telemetry fields.
var ErrMissingFields = errors.New("telemetry: record missing water_level or gas_level")

// wire mirrors Reading with pointer fields so absence is distinguishable
// from zero values, plus the boot marker.
type wire struct {
	Event      *string          `json:"event"`
	WaterLevel *float64         `json:"water_level"`
	GasLevel   *int             `json:"gas_level"`
	Index      uint64           `json:"reading"`
	Uptime     int64            `json:"uptime"`
	Status     *classify.Status `json:"status"`
	Anomaly    bool             `json:"anomaly"`
}

// ParseLine decodes one serial line. isEvent is true for boot (and any
// future) event records, which carry no telemetry fields.
func ParseLine(line []byte) (r Reading, isEvent bool, err error) {
	var w wire
	if err := json.Unmarshal(line, &w); err != nil {
		return Reading{}, false, err
	}
	if w.Event != nil {
		return Reading{}, true, nil
	}
	if w.WaterLevel == nil || w.GasLevel == nil {
		return Reading{}, false, ErrMissingFields
	}
	r = Reading{
		WaterLevel: *w.WaterLevel,
		GasLevel:   *w.GasLevel,
		Index:      w.Index,
		Uptime:     w.Uptime,
		Anomaly:    w.Anomaly,
	}
	if w.Status != nil {
		r.Status = *w.Status
	}
	return r, false, nil
}
