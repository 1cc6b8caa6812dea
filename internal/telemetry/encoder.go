package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Encoder writes newline-delimited JSON records to the serial channel. It
// does not buffer or retry; a full channel is the transport's problem.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteReading emits one telemetry line.
func (e *Encoder) WriteReading(r Reading) error {
	return e.writeLine(r)
}

// WriteBoot emits the startup marker with the firmware identifier and the
// configured reading cadence.
func (e *Encoder) WriteBoot(firmware string, interval time.Duration) error {
	return e.writeLine(Boot{
		Event:      "boot",
		Firmware:   firmware,
		IntervalMS: int(interval.Milliseconds()),
	})
}

func (e *Encoder) writeLine(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("telemetry: marshal: %w", err)
	}
	payload = append(payload, '\n')
	if _, err := e.w.Write(payload); err != nil {
		return fmt.Errorf("telemetry: write: %w", err)
	}
	return nil
}
