package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/drainguard_node/internal/sensors"
)

func valid(cm float64) sensors.DistanceSample {
	return sensors.DistanceSample{Centimeters: cm, Valid: true}
}

func invalid() sensors.DistanceSample {
	return sensors.DistanceSample{}
}

func TestMedianDistance(t *testing.T) {
	tests := []struct {
		name    string
		samples []sensors.DistanceSample
		want    sensors.DistanceSample
	}{
		{
			name:    "all valid odd count returns true median",
			samples: []sensors.DistanceSample{valid(52), valid(48), valid(50), valid(51), valid(49)},
			want:    valid(50),
		},
		{
			name:    "single outlier rejected",
			samples: []sensors.DistanceSample{valid(50), valid(49), valid(400), valid(51), valid(50)},
			want:    valid(50),
		},
		{
			name:    "one invalid leaves even count, takes upper middle",
			samples: []sensors.DistanceSample{valid(10), invalid(), valid(20), valid(30), valid(40)},
			want:    valid(30),
		},
		{
			name:    "three invalid leaves two valid, takes upper middle",
			samples: []sensors.DistanceSample{invalid(), valid(10), invalid(), valid(20), invalid()},
			want:    valid(20),
		},
		{
			name:    "four invalid leaves single valid sample",
			samples: []sensors.DistanceSample{invalid(), invalid(), valid(77.5), invalid(), invalid()},
			want:    valid(77.5),
		},
		{
			name:    "all invalid",
			samples: []sensors.DistanceSample{invalid(), invalid(), invalid(), invalid(), invalid()},
			want:    invalid(),
		},
		{
			name:    "duplicate values",
			samples: []sensors.DistanceSample{valid(50), valid(50), valid(50), valid(50), valid(50)},
			want:    valid(50),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sensors.NewScriptedRanger(tt.samples...)
			got := MedianDistance(src, len(tt.samples), 0)

			assert.Equal(t, tt.want.Valid, got.Valid)
			if tt.want.Valid {
				assert.InDelta(t, tt.want.Centimeters, got.Centimeters, 1e-9)
			}
			assert.Equal(t, len(tt.samples), src.Calls(), "one measurement per batch slot")
		})
	}
}

func TestMedianDistanceOrderIndependent(t *testing.T) {
	// Same multiset in different acquisition orders must give the same median.
	orders := [][]sensors.DistanceSample{
		{valid(10), valid(20), valid(30), invalid(), valid(40)},
		{valid(40), invalid(), valid(30), valid(20), valid(10)},
		{invalid(), valid(30), valid(10), valid(40), valid(20)},
	}

	for _, order := range orders {
		got := MedianDistance(sensors.NewScriptedRanger(order...), 5, 0)
		assert.True(t, got.Valid)
		assert.InDelta(t, 30, got.Centimeters, 1e-9)
	}
}

func TestMedianDistanceDefaultBatchSize(t *testing.T) {
	src := sensors.NewScriptedRanger(valid(42))
	got := MedianDistance(src, 0, 0)

	assert.True(t, got.Valid)
	assert.Equal(t, DefaultBatchSize, src.Calls())
}

func TestInsertKeepsInvalidFirst(t *testing.T) {
	var batch []sensors.DistanceSample
	for _, s := range []sensors.DistanceSample{valid(5), invalid(), valid(1), invalid(), valid(3)} {
		batch = insert(batch, s)
	}

	assert.False(t, batch[0].Valid)
	assert.False(t, batch[1].Valid)
	assert.InDelta(t, 1, batch[2].Centimeters, 1e-9)
	assert.InDelta(t, 3, batch[3].Centimeters, 1e-9)
	assert.InDelta(t, 5, batch[4].Centimeters, 1e-9)
}
