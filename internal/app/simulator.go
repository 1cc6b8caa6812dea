package app

import (
	"encoding/json"
	"log"
	"math"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/drainguard_node/internal/classify"
	"github.com/relabs-tech/drainguard_node/internal/config"
	"github.com/relabs-tech/drainguard_node/internal/sensors"
	"github.com/relabs-tech/drainguard_node/internal/telemetry"
)

// Share of iterations that start an anomaly burst, and how long a burst
// runs, in readings.
const (
	simAnomalyRate   = 0.008
	simBurstReadings = 10
)

var simAnomalyKinds = []classify.Status{
	classify.StatusBlockage,
	classify.StatusLeakage,
	classify.StatusGasHazard,
}

// simulator generates plausible drain readings with occasional anomaly
// bursts, for demos and dashboard work without hardware.
type simulator struct {
	cfg   *config.Config
	rng   *rand.Rand
	phase float64

	burstLeft int
	burstKind classify.Status

	index uint64
	start time.Time
}

// RunSimulator publishes fake telemetry straight to the MQTT topic the
// reader would use, at the configured reading cadence.
func RunSimulator() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDSimulator)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("simulator: connected to MQTT broker at %s", cfg.MQTTBroker)

	sim := &simulator{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		start: time.Now(),
	}

	ticker := time.NewTicker(time.Duration(cfg.ReadIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		reading := sim.next()

		payload, err := json.Marshal(reading)
		if err != nil {
			log.Printf("simulator: json marshal error: %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicTelemetry, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("simulator: MQTT publish error: %v", token.Error())
			continue
		}

		if reading.Anomaly {
			log.Printf("simulator: anomaly reading published: %s water=%.2f gas=%d",
				reading.Status, reading.WaterLevel, reading.GasLevel)
		}
	}
	return nil
}

// next produces one reading, running it through the real classifier so the
// status always matches the configured thresholds.
func (s *simulator) next() telemetry.Reading {
	s.phase += 0.05

	var water, gas float64
	switch {
	case s.burstLeft > 0:
		s.burstLeft--
		water, gas = s.anomalyValues()
	case s.rng.Float64() < simAnomalyRate:
		s.burstKind = simAnomalyKinds[s.rng.Intn(len(simAnomalyKinds))]
		s.burstLeft = simBurstReadings/2 + s.rng.Intn(simBurstReadings/2+1)
		water, gas = s.anomalyValues()
	default:
		water, gas = s.normalValues()
	}

	s.index++
	status := classify.Classify(
		sensors.DistanceSample{Centimeters: water, Valid: true},
		gas,
		classify.Thresholds{
			BlockageCm: s.cfg.BlockageThresholdCm,
			LeakageCm:  s.cfg.LeakageThresholdCm,
			GasHigh:    s.cfg.GasThreshold,
		},
	)
	reading := telemetry.NewReading(
		sensors.DistanceSample{Centimeters: water, Valid: true},
		gas, status, s.index, time.Since(s.start),
	)
	reading.Timestamp = time.Now().Format(time.RFC3339)
	return reading
}

// normalValues drifts inside the normal band with some measurement noise.
func (s *simulator) normalValues() (water, gas float64) {
	mid := (s.cfg.BlockageThresholdCm + s.cfg.LeakageThresholdCm) / 2
	swing := (s.cfg.LeakageThresholdCm - s.cfg.BlockageThresholdCm) / 4
	water = mid + swing*math.Sin(s.phase) + s.rng.NormFloat64()*2
	gas = s.cfg.GasThreshold*0.4 + 80*math.Sin(s.phase*0.7) + s.rng.NormFloat64()*40
	if gas < 0 {
		gas = 0
	}
	return water, gas
}

// anomalyValues pushes one channel past its threshold per the burst kind.
func (s *simulator) anomalyValues() (water, gas float64) {
	switch s.burstKind {
	case classify.StatusBlockage:
		water = s.cfg.BlockageThresholdCm * s.rng.Float64()
		gas = s.cfg.GasThreshold * 0.5
	case classify.StatusLeakage:
		water = s.cfg.LeakageThresholdCm * (1.1 + 0.5*s.rng.Float64())
		gas = s.cfg.GasThreshold * 0.3
	default:
		water = (s.cfg.BlockageThresholdCm + s.cfg.LeakageThresholdCm) / 2
		gas = s.cfg.GasThreshold * (1.2 + s.rng.Float64())
	}
	return water, gas
}
