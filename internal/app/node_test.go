package app

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/drainguard_node/internal/classify"
	"github.com/relabs-tech/drainguard_node/internal/config"
	"github.com/relabs-tech/drainguard_node/internal/sensors"
	"github.com/relabs-tech/drainguard_node/internal/telemetry"
	"github.com/relabs-tech/drainguard_node/internal/watchdog"
)

// testConfig returns a loop configuration with no real delays so tests run
// many iterations inside a tight watchdog window.
func testConfig() *config.Config {
	return &config.Config{
		MedianSamples:       5,
		SampleGapMS:         0,
		GasAlpha:            0.2,
		BlockageThresholdCm: 10,
		LeakageThresholdCm:  100,
		GasThreshold:        1500,
		ReadIntervalMS:      10,
		BootDelayMS:         0,
		FirmwareID:          "drainguard-node/test",
	}
}

func scanLines(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestNodeBootEmitsSingleBootRecord(t *testing.T) {
	var buf bytes.Buffer
	node := NewNode(testConfig(),
		sensors.NewScriptedRanger(sensors.DistanceSample{Centimeters: 50, Valid: true}),
		sensors.NewScriptedGas(300),
		watchdog.NewMock(time.Second), &buf)

	require.NoError(t, node.boot())

	lines := scanLines(t, &buf)
	require.Len(t, lines, 1)

	_, isEvent, err := telemetry.ParseLine([]byte(lines[0]))
	require.NoError(t, err)
	assert.True(t, isEvent, "the first line on the wire is the boot marker")
	assert.Contains(t, lines[0], `"event":"boot"`)
	assert.Contains(t, lines[0], "drainguard-node/test")
}

func TestNodeIterationProducesOneReading(t *testing.T) {
	var buf bytes.Buffer
	wdt := watchdog.NewMock(time.Second)
	node := NewNode(testConfig(),
		sensors.NewScriptedRanger(sensors.DistanceSample{Centimeters: 50, Valid: true}),
		sensors.NewScriptedGas(300),
		wdt, &buf)
	require.NoError(t, node.boot())
	buf.Reset()

	const iterations = 5
	for i := 0; i < iterations; i++ {
		require.NoError(t, node.runOnce())
	}

	lines := scanLines(t, &buf)
	require.Len(t, lines, iterations, "exactly one record per completed iteration")

	for i, line := range lines {
		r, isEvent, err := telemetry.ParseLine([]byte(line))
		require.NoError(t, err)
		assert.False(t, isEvent)
		assert.Equal(t, uint64(i+1), r.Index, "reading index is monotonic from 1")
		assert.InDelta(t, 50, r.WaterLevel, 1e-9)
		assert.Equal(t, 300, r.GasLevel)
		assert.Equal(t, classify.StatusNormal, r.Status)
		assert.False(t, r.Anomaly)
	}

	// One feed at boot plus one at the top of every iteration.
	assert.Equal(t, iterations+1, wdt.Feeds())
	assert.False(t, wdt.Expired())
}

func TestNodeAllPingsTimedOut(t *testing.T) {
	var buf bytes.Buffer
	wdt := watchdog.NewMock(time.Second)
	node := NewNode(testConfig(),
		sensors.NewScriptedRanger(sensors.DistanceSample{}), // every echo times out
		sensors.NewScriptedGas(300),
		wdt, &buf)
	require.NoError(t, node.boot())
	buf.Reset()

	require.NoError(t, node.runOnce())

	lines := scanLines(t, &buf)
	require.Len(t, lines, 1, "the iteration still completes and emits telemetry")

	r, _, err := telemetry.ParseLine([]byte(lines[0]))
	require.NoError(t, err)
	assert.InDelta(t, telemetry.InvalidWaterLevel, r.WaterLevel, 1e-9)
	assert.Equal(t, classify.StatusNormal, r.Status, "a dead ranging sensor is not an anomaly")
	assert.False(t, wdt.Expired(), "a fully timed-out batch fits inside the watchdog window")
}

func TestNodeClassifiesAgainstConfiguredThresholds(t *testing.T) {
	tests := []struct {
		name  string
		water float64
		gas   int
		want  classify.Status
	}{
		{name: "blockage", water: 8, gas: 300, want: classify.StatusBlockage},
		{name: "leakage", water: 150, gas: 300, want: classify.StatusLeakage},
		{name: "gas hazard wins", water: 8, gas: 2500, want: classify.StatusGasHazard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			node := NewNode(testConfig(),
				sensors.NewScriptedRanger(sensors.DistanceSample{Centimeters: tt.water, Valid: true}),
				sensors.NewScriptedGas(tt.gas),
				watchdog.NewMock(time.Second), &buf)
			require.NoError(t, node.boot())
			buf.Reset()

			require.NoError(t, node.runOnce())

			r, _, err := telemetry.ParseLine([]byte(strings.TrimSpace(buf.String())))
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Status)
			assert.True(t, r.Anomaly)
		})
	}
}

func TestNodeSmoothsGasAcrossIterations(t *testing.T) {
	var buf bytes.Buffer
	node := NewNode(testConfig(),
		sensors.NewScriptedRanger(sensors.DistanceSample{Centimeters: 50, Valid: true}),
		sensors.NewScriptedGas(300, 800), // seed, then an outlier
		watchdog.NewMock(time.Second), &buf)
	require.NoError(t, node.boot())
	buf.Reset()

	require.NoError(t, node.runOnce())
	require.NoError(t, node.runOnce())

	lines := scanLines(t, &buf)
	require.Len(t, lines, 2)

	first, _, err := telemetry.ParseLine([]byte(lines[0]))
	require.NoError(t, err)
	assert.Equal(t, 300, first.GasLevel, "first reading seeds the average")

	second, _, err := telemetry.ParseLine([]byte(lines[1]))
	require.NoError(t, err)
	assert.Equal(t, 400, second.GasLevel, "outlier damped to alpha of the step")
}

func TestWatchdogExpiryAndRebootEmitsFreshBootRecord(t *testing.T) {
	var buf bytes.Buffer
	wdt := watchdog.NewMock(40 * time.Millisecond)
	node := NewNode(testConfig(),
		sensors.NewScriptedRanger(sensors.DistanceSample{Centimeters: 50, Valid: true}),
		sensors.NewScriptedGas(300),
		wdt, &buf)
	require.NoError(t, node.boot())

	// Simulate a stalled loop: nothing feeds the watchdog past its timeout.
	time.Sleep(80 * time.Millisecond)
	require.True(t, wdt.Expired(), "the hardware would have reset the board")

	// The reset restarts the Booting state from scratch: fresh process-wide
	// state, exactly one new boot record before telemetry resumes.
	buf.Reset()
	rebooted := NewNode(testConfig(),
		sensors.NewScriptedRanger(sensors.DistanceSample{Centimeters: 50, Valid: true}),
		sensors.NewScriptedGas(300),
		watchdog.NewMock(time.Second), &buf)
	require.NoError(t, rebooted.boot())
	require.NoError(t, rebooted.runOnce())

	lines := scanLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"event":"boot"`)

	r, isEvent, err := telemetry.ParseLine([]byte(lines[1]))
	require.NoError(t, err)
	assert.False(t, isEvent)
	assert.Equal(t, uint64(1), r.Index, "counters restart after a watchdog reset")
}
