// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/drainguard_node/internal/classify"
	"github.com/relabs-tech/drainguard_node/internal/config"
	"github.com/relabs-tech/drainguard_node/internal/filter"
	"github.com/relabs-tech/drainguard_node/internal/sensors"
	"github.com/relabs-tech/drainguard_node/internal/telemetry"
	"github.com/relabs-tech/drainguard_node/internal/watchdog"
)

// Node runs the sampling loop: feed watchdog, acquire, filter, classify,
// encode, sleep. Single-threaded; the smoother and counters are touched by
// the loop only.
type Node struct {
	cfg      *config.Config
	ranger   sensors.Ranger
	gas      sensors.GasReader
	wdt      watchdog.Watchdog
	enc      *telemetry.Encoder
	smoother *filter.Smoother

	index    uint64
	bootTime time.Time
}

// NewNode wires a sampling loop from its collaborators. Sensors and the
// watchdog are interfaces so tests can script them.
func NewNode(cfg *config.Config, ranger sensors.Ranger, gas sensors.GasReader, wdt watchdog.Watchdog, out io.Writer) *Node {
	return &Node{
		cfg:      cfg,
		ranger:   ranger,
		gas:      gas,
		wdt:      wdt,
		enc:      telemetry.NewEncoder(out),
		smoother: filter.NewSmoother(cfg.GasAlpha),
	}
}

// RunNode builds the node from global config and real hardware (or the
// simulated sensors when mock is set) and runs it until the process dies.
func RunNode(mock bool) error {
	cfg := config.Get()

	var out io.Writer = os.Stdout
	if cfg.SerialPort != "" {
		port, err := serial.Open(serial.OpenOptions{
			PortName:        cfg.SerialPort,
			BaudRate:        uint(cfg.SerialBaud),
			DataBits:        8,
			StopBits:        1,
			ParityMode:      serial.PARITY_NONE,
			MinimumReadSize: 1,
		})
		if err != nil {
			return fmt.Errorf("node: serial open %s: %w", cfg.SerialPort, err)
		}
		defer port.Close()
		log.Printf("node: serial port opened on %s at %d baud", cfg.SerialPort, cfg.SerialBaud)
		out = port
	} else {
		log.Println("node: no SERIAL_PORT configured, writing telemetry to stdout")
	}

	var ranger sensors.Ranger
	var gas sensors.GasReader
	if mock {
		log.Println("node: using simulated sensors")
		ranger = sensors.NewSimRanger()
		gas = sensors.NewSimGas()
	} else {
		u, err := sensors.NewUltrasonic(cfg.TriggerPin, cfg.EchoPin,
			time.Duration(cfg.EchoTimeoutMS)*time.Millisecond)
		if err != nil {
			return err
		}
		ranger = u

		g, err := sensors.NewADS1115Gas(cfg.GasI2CBus, cfg.GasADCChannel)
		if err != nil {
			return err
		}
		defer g.Close()
		gas = g
	}

	// Arm the watchdog before anything that can stall. From here on every
	// iteration must feed it or the board reboots.
	var wdt watchdog.Watchdog = watchdog.Noop{}
	if cfg.WatchdogDevice != "" {
		d, err := watchdog.Open(cfg.WatchdogDevice, time.Duration(cfg.WatchdogTimeoutS)*time.Second)
		if err != nil {
			return err
		}
		wdt = d
		log.Printf("node: watchdog armed on %s (timeout %ds)", cfg.WatchdogDevice, cfg.WatchdogTimeoutS)
	} else {
		log.Println("node: WARNING: watchdog disabled, loop stalls will not recover")
	}

	node := NewNode(cfg, ranger, gas, wdt, out)
	return node.Run(context.Background())
}

// Run emits the boot record, waits out the stabilization delay, then
// samples forever. The only exits are context cancellation and an external
// reset (including the watchdog's).
func (n *Node) Run(ctx context.Context) error {
	if err := n.boot(); err != nil {
		n.wdt.Close()
		return err
	}

	interval := time.Duration(n.cfg.ReadIntervalMS) * time.Millisecond
	for {
		start := time.Now()
		if err := n.runOnce(); err != nil {
			log.Printf("node: iteration error: %v", err)
		}

		// Sleep only the residue of the interval so the cadence does not
		// drift with sampling latency.
		rest := interval - time.Since(start)
		if rest < 0 {
			rest = 0
		}
		select {
		case <-ctx.Done():
			n.wdt.Close()
			return ctx.Err()
		case <-time.After(rest):
		}
	}
}

// boot is the one-shot startup state: mark the boot instant, announce it on
// the wire, and give the sensors a moment to settle.
func (n *Node) boot() error {
	n.bootTime = time.Now()

	if err := n.wdt.Feed(); err != nil {
		log.Printf("node: watchdog feed error: %v", err)
	}
	if err := n.enc.WriteBoot(n.cfg.FirmwareID, time.Duration(n.cfg.ReadIntervalMS)*time.Millisecond); err != nil {
		return fmt.Errorf("node: boot record: %w", err)
	}

	if delay := time.Duration(n.cfg.BootDelayMS) * time.Millisecond; delay > 0 {
		time.Sleep(delay)
	}
	return nil
}

// runOnce is one pass of the Sampling state. The watchdog is fed first so a
// hang anywhere below still triggers a timely reset.
func (n *Node) runOnce() error {
	if err := n.wdt.Feed(); err != nil {
		log.Printf("node: watchdog feed error: %v", err)
	}

	distance := filter.MedianDistance(n.ranger, n.cfg.MedianSamples,
		time.Duration(n.cfg.SampleGapMS)*time.Millisecond)

	raw, err := n.gas.ReadOnce()
	if err != nil {
		// Keep the previous smoothed value; a failed ADC read must not
		// drag the average toward zero.
		log.Printf("node: gas read error: %v", err)
	} else {
		n.smoother.Update(raw)
	}
	smoothed, _ := n.smoother.Value()

	n.index++

	status := classify.Classify(distance, smoothed, classify.Thresholds{
		BlockageCm: n.cfg.BlockageThresholdCm,
		LeakageCm:  n.cfg.LeakageThresholdCm,
		GasHigh:    n.cfg.GasThreshold,
	})

	reading := telemetry.NewReading(distance, smoothed, status, n.index, time.Since(n.bootTime))
	return n.enc.WriteReading(reading)
}
