package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/drainguard_node/internal/classify"
	"github.com/relabs-tech/drainguard_node/internal/sensors"
)

func TestNewReading(t *testing.T) {
	tests := []struct {
		name      string
		distance  sensors.DistanceSample
		gas       float64
		status    classify.Status
		wantWater float64
		wantGas   int
		wantAnom  bool
	}{
		{
			name:      "valid distance rounded to two decimals",
			distance:  sensors.DistanceSample{Centimeters: 52.3456, Valid: true},
			gas:       300.4,
			status:    classify.StatusNormal,
			wantWater: 52.35,
			wantGas:   300,
			wantAnom:  false,
		},
		{
			name:      "invalid distance becomes sentinel",
			distance:  sensors.DistanceSample{},
			gas:       300.6,
			status:    classify.StatusNormal,
			wantWater: InvalidWaterLevel,
			wantGas:   301,
			wantAnom:  false,
		},
		{
			name:      "anomalous status sets flag",
			distance:  sensors.DistanceSample{Centimeters: 8, Valid: true},
			gas:       100,
			status:    classify.StatusBlockage,
			wantWater: 8,
			wantGas:   100,
			wantAnom:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReading(tt.distance, tt.gas, tt.status, 7, 95*time.Second)

			assert.InDelta(t, tt.wantWater, r.WaterLevel, 1e-9)
			assert.Equal(t, tt.wantGas, r.GasLevel)
			assert.Equal(t, uint64(7), r.Index)
			assert.Equal(t, int64(95), r.Uptime)
			assert.Equal(t, tt.status, r.Status)
			assert.Equal(t, tt.wantAnom, r.Anomaly)
		})
	}
}

func TestReadingInRange(t *testing.T) {
	tests := []struct {
		name    string
		reading Reading
		want    bool
	}{
		{name: "plausible", reading: Reading{WaterLevel: 50, GasLevel: 300}, want: true},
		{name: "sentinel water", reading: Reading{WaterLevel: InvalidWaterLevel, GasLevel: 0}, want: true},
		{name: "water below sentinel", reading: Reading{WaterLevel: -3, GasLevel: 300}, want: false},
		{name: "water too deep", reading: Reading{WaterLevel: 600, GasLevel: 300}, want: false},
		{name: "negative gas", reading: Reading{WaterLevel: 50, GasLevel: -1}, want: false},
		{name: "gas beyond 12 bits", reading: Reading{WaterLevel: 50, GasLevel: 5000}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reading.InRange())
		})
	}
}

func TestEncoderWriteReading(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	r := NewReading(sensors.DistanceSample{Centimeters: 42.5, Valid: true}, 310.2,
		classify.StatusNormal, 3, 6*time.Second)
	require.NoError(t, enc.WriteReading(r))

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"), "records are newline-terminated")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.InDelta(t, 42.5, decoded["water_level"].(float64), 1e-9)
	assert.InDelta(t, 310, decoded["gas_level"].(float64), 1e-9)
	assert.InDelta(t, 3, decoded["reading"].(float64), 1e-9)
	assert.InDelta(t, 6, decoded["uptime"].(float64), 1e-9)
	assert.Equal(t, "NORMAL", decoded["status"])
	assert.Equal(t, false, decoded["anomaly"])
	assert.NotContains(t, decoded, "timestamp", "nodes never stamp time")
	assert.NotContains(t, decoded, "event")
}

func TestEncoderWriteBoot(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.WriteBoot("drainguard-node/1.0", 2*time.Second))

	var decoded Boot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "boot", decoded.Event)
	assert.Equal(t, "drainguard-node/1.0", decoded.Firmware)
	assert.Equal(t, 2000, decoded.IntervalMS)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantEvent bool
		wantErr   bool
	}{
		{
			name: "telemetry record",
			line: `{"water_level":42.50,"gas_level":310,"reading":3,"uptime":6,"status":"NORMAL","anomaly":false}`,
		},
		{
			name:      "boot record",
			line:      `{"event":"boot","firmware":"drainguard-node/1.0","interval_ms":2000}`,
			wantEvent: true,
		},
		{
			name:    "missing gas field",
			line:    `{"water_level":42.50}`,
			wantErr: true,
		},
		{
			name:    "missing water field",
			line:    `{"gas_level":310}`,
			wantErr: true,
		},
		{
			name:    "not JSON",
			line:    `node: watchdog armed`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, isEvent, err := ParseLine([]byte(tt.line))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEvent, isEvent)
			if !tt.wantEvent {
				assert.InDelta(t, 42.5, r.WaterLevel, 1e-9)
				assert.Equal(t, 310, r.GasLevel)
				assert.Equal(t, classify.StatusNormal, r.Status)
			}
		})
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	orig := NewReading(sensors.DistanceSample{}, 1800, classify.StatusGasHazard, 12, time.Minute)
	require.NoError(t, enc.WriteReading(orig))

	parsed, isEvent, err := ParseLine(bytes.TrimSpace(buf.Bytes()))
	require.NoError(t, err)
	assert.False(t, isEvent)
	assert.InDelta(t, InvalidWaterLevel, parsed.WaterLevel, 1e-9)
	assert.Equal(t, orig.GasLevel, parsed.GasLevel)
	assert.Equal(t, orig.Status, parsed.Status)
	assert.True(t, parsed.Anomaly)
}
