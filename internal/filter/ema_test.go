package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmootherSeedsWithFirstSample(t *testing.T) {
	s := NewSmoother(0.2)

	_, seeded := s.Value()
	assert.False(t, seeded, "fresh smoother must report unseeded")

	got := s.Update(300)
	assert.InDelta(t, 300.0, got, 1e-9, "first update returns the raw value exactly")

	v, seeded := s.Value()
	assert.True(t, seeded)
	assert.InDelta(t, 300.0, v, 1e-9)
}

func TestSmootherFixedPoint(t *testing.T) {
	s := NewSmoother(0.2)
	s.Update(300)
	got := s.Update(300)
	assert.InDelta(t, 300.0, got, 1e-9, "repeated identical input is a fixed point")
}

func TestSmootherDampsOutlier(t *testing.T) {
	const alpha = 0.2
	s := NewSmoother(alpha)
	s.Update(300)

	// A +500 step moves the average by at most alpha of the deviation.
	got := s.Update(800)
	assert.InDelta(t, 300+alpha*500, got, 1e-9)
}

func TestSmootherConverges(t *testing.T) {
	const alpha = 0.2
	s := NewSmoother(alpha)
	s.Update(300)

	// Sustained change is fully absorbed once (1-alpha)^n * deviation < 1.
	n := int(math.Ceil(math.Log(1.0/500.0)/math.Log(1-alpha))) + 1
	var got float64
	for i := 0; i < n; i++ {
		got = s.Update(800)
	}
	assert.InDelta(t, 800.0, got, 1.0)
}

func TestSmootherAlphaFallback(t *testing.T) {
	tests := []struct {
		name  string
		alpha float64
	}{
		{name: "zero", alpha: 0},
		{name: "negative", alpha: -0.5},
		{name: "above one", alpha: 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSmoother(tt.alpha)
			s.Update(100)
			got := s.Update(200)
			assert.InDelta(t, 100+DefaultAlpha*100, got, 1e-9)
		})
	}
}
