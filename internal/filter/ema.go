package filter

// DefaultAlpha is the stock EMA smoothing factor for the gas channel.
const DefaultAlpha = 0.2

// Smoother keeps an exponential moving average over raw gas readings. The
// state lives for the whole process and is reset only by a reboot.
//
// The first update seeds the average with the raw value itself, so there is
// no cold-start bias toward zero. The unseeded state is explicit; the zero
// value of the average is never used as a sentinel.
type Smoother struct {
	alpha  float64
	value  float64
	seeded bool
}

// NewSmoother returns a Smoother with the given factor. Out-of-range
// factors fall back to DefaultAlpha.
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Smoother{alpha: alpha}
}

// Update folds one raw reading into the average and returns the new value.
func (s *Smoother) Update(raw int) float64 {
	if !s.seeded {
		s.value = float64(raw)
		s.seeded = true
		return s.value
	}
	s.value = s.alpha*float64(raw) + (1-s.alpha)*s.value
	return s.value
}

// Value returns the current average and whether it has been seeded yet.
func (s *Smoother) Value() (float64, bool) {
	return s.value, s.seeded
}
