// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Speed of sound at ~20°C, expressed as centimeters of round trip per
// microsecond of echo pulse. Distance is half the round trip.
const cmPerMicrosecond = 0.0343

// Ultrasonic drives an HC-SR04 style ranging module: a short trigger pulse,
// then the width of the high pulse on the echo line is the time of flight.
//
// Datasheet: https://cdn.sparkfun.com/datasheets/Sensors/Proximity/HCSR04.pdf
type Ultrasonic struct {
	trigger gpio.PinIO
	echo    gpio.PinIO
	timeout time.Duration
}

// NewUltrasonic initializes the trigger and echo pins. Pin names are in the
// format expected by gpioreg.ByName (BCM numbers on a Raspberry Pi).
// timeout bounds each edge wait; 30ms corresponds to roughly 5m of range.
func NewUltrasonic(triggerPin, echoPin string, timeout time.Duration) (*Ultrasonic, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("ultrasonic: periph host init: %w", err)
	}

	trigger := gpioreg.ByName(triggerPin)
	if trigger == nil {
		return nil, fmt.Errorf("ultrasonic: trigger pin %q not found", triggerPin)
	}
	echo := gpioreg.ByName(echoPin)
	if echo == nil {
		return nil, fmt.Errorf("ultrasonic: echo pin %q not found", echoPin)
	}

	if err := trigger.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("ultrasonic: trigger pin setup: %w", err)
	}
	if err := echo.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("ultrasonic: echo pin setup: %w", err)
	}

	return &Ultrasonic{trigger: trigger, echo: echo, timeout: timeout}, nil
}

// MeasureOnce emits one trigger pulse and times the echo. A missing or
// overlong echo returns an invalid sample within 2x the configured timeout;
// it never blocks indefinitely. No retries here: the median filter batches
// multiple pings instead.
func (u *Ultrasonic) MeasureOnce() (DistanceSample, error) {
	// Re-arm for the rising edge before triggering so the edge is not missed.
	if err := u.echo.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return DistanceSample{}, fmt.Errorf("ultrasonic: arm rising edge: %w", err)
	}

	if err := u.trigger.Out(gpio.Low); err != nil {
		return DistanceSample{}, fmt.Errorf("ultrasonic: trigger low: %w", err)
	}
	time.Sleep(2 * time.Microsecond)
	if err := u.trigger.Out(gpio.High); err != nil {
		return DistanceSample{}, fmt.Errorf("ultrasonic: trigger high: %w", err)
	}
	time.Sleep(10 * time.Microsecond)
	if err := u.trigger.Out(gpio.Low); err != nil {
		return DistanceSample{}, fmt.Errorf("ultrasonic: trigger low: %w", err)
	}

	if !u.echo.WaitForEdge(u.timeout) {
		// No echo started within the bound: invalid, not an error.
		return DistanceSample{}, nil
	}
	start := time.Now()

	if err := u.echo.In(gpio.PullDown, gpio.FallingEdge); err != nil {
		return DistanceSample{}, fmt.Errorf("ultrasonic: arm falling edge: %w", err)
	}
	if !u.echo.WaitForEdge(u.timeout) {
		// Echo never ended within the bound: invalid.
		return DistanceSample{}, nil
	}
	flight := time.Since(start)

	cm := float64(flight.Microseconds()) * cmPerMicrosecond / 2
	return DistanceSample{Centimeters: cm, Valid: true}, nil
}
