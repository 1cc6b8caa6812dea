package filter

import (
	"log"
	"time"

	"github.com/relabs-tech/drainguard_node/internal/sensors"
)

// DefaultBatchSize is the number of pings per median batch.
const DefaultBatchSize = 5

// MedianDistance takes n range measurements with a gap between pings (to
// let acoustic echoes from the previous ping die out) and returns the
// median of the valid ones. If every sample in the batch is invalid, the
// result is an invalid sample.
//
// Pin errors are logged and counted as invalid; retry policy lives in the
// batch itself, not in the sensor.
func MedianDistance(src sensors.Ranger, n int, gap time.Duration) sensors.DistanceSample {
	if n <= 0 {
		n = DefaultBatchSize
	}

	batch := make([]sensors.DistanceSample, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 && gap > 0 {
			time.Sleep(gap)
		}
		s, err := src.MeasureOnce()
		if err != nil {
			log.Printf("filter: range measurement error: %v", err)
			s = sensors.DistanceSample{}
		}
		batch = insert(batch, s)
	}
	return medianOf(batch)
}

// insert places s into an already-sorted batch, keeping it sorted.
// Insertion sort is adequate and intentional at batch sizes around 5.
// Invalid samples sort below every valid one.
func insert(batch []sensors.DistanceSample, s sensors.DistanceSample) []sensors.DistanceSample {
	batch = append(batch, s)
	for i := len(batch) - 1; i > 0 && less(batch[i], batch[i-1]); i-- {
		batch[i], batch[i-1] = batch[i-1], batch[i]
	}
	return batch
}

func less(a, b sensors.DistanceSample) bool {
	if a.Valid != b.Valid {
		return !a.Valid
	}
	return a.Valid && a.Centimeters < b.Centimeters
}

// medianOf returns the median of the valid run of a sorted batch. For an
// even valid count the upper-middle element (index valid/2) is returned;
// this exact tie-break is part of the wire-visible behavior and must not
// change.
func medianOf(sorted []sensors.DistanceSample) sensors.DistanceSample {
	first := 0
	for first < len(sorted) && !sorted[first].Valid {
		first++
	}
	valid := sorted[first:]
	if len(valid) == 0 {
		return sensors.DistanceSample{}
	}
	return valid[len(valid)/2]
}
