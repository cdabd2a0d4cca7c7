// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package percentile implements a bucketed histogram used to approximate a
// tail percentile of a live population distribution, as required by the
// spammer-detection queries (C9).
package percentile

// Estimator is a bucketed histogram over [lowerBound, upperBound] split into
// equal-width buckets. It tracks enough state to recompute an approximate
// percentile cut-point after every add/remove.
type Estimator struct {
	buckets    []uint64
	total      uint64
	lowerBound float64
	upperBound float64
	width      float64
	percentile float64 // target percentile, e.g. 5 for the 5th percentile
	threshold  float64 // last computed threshold, returned unchanged if total < 10
	clampLower float64 // configured safety band, independent of the histogram's own span
	clampUpper float64
}

// New returns an Estimator with the given number of buckets spanning
// [lowerBound, upperBound] (the histogram's own domain), targeting the given
// percentile (0-100). initial seeds the threshold returned before the
// population reaches 10 samples, so callers can pick a conservative starting
// cut-point rather than the band's lower edge. clampLower/clampUpper are the
// separately configured safety band every computed threshold is clamped
// into (spec.md §4.8): a population that drifts to one extreme of the
// histogram's own span still can't push the threshold past this band.
func New(buckets int, lowerBound, upperBound, pct, initial, clampLower, clampUpper float64) *Estimator {
	if buckets < 1 {
		buckets = 1
	}
	return &Estimator{
		buckets:    make([]uint64, buckets),
		lowerBound: lowerBound,
		upperBound: upperBound,
		width:      (upperBound - lowerBound) / float64(buckets),
		percentile: pct,
		threshold:  initial,
		clampLower: clampLower,
		clampUpper: clampUpper,
	}
}

func (e *Estimator) bucketOf(x float64) int {
	if x <= e.lowerBound {
		return 0
	}
	if x >= e.upperBound {
		return len(e.buckets) - 1
	}
	idx := int((x - e.lowerBound) / e.width)
	if idx >= len(e.buckets) {
		idx = len(e.buckets) - 1
	}
	return idx
}

// Add records a new sample.
func (e *Estimator) Add(x float64) {
	e.buckets[e.bucketOf(x)]++
	e.total++
}

// Remove retracts a previously-added sample. Bucket counts and total remain
// non-negative as long as add/remove calls are balanced per sample.
func (e *Estimator) Remove(x float64) {
	idx := e.bucketOf(x)
	if e.buckets[idx] > 0 {
		e.buckets[idx]--
	}
	if e.total > 0 {
		e.total--
	}
}

// Total returns the current sample count.
func (e *Estimator) Total() uint64 {
	return e.total
}

// Threshold recomputes and returns the percentile cut-point. If the total
// sample count is below 10, the previously-computed threshold is returned
// unchanged (a population this small cannot support a meaningful estimate).
func (e *Estimator) Threshold() float64 {
	if e.total < 10 {
		return e.threshold
	}
	e.updateThreshold()
	return e.threshold
}

func (e *Estimator) updateThreshold() {
	target := e.percentile * float64(e.total) / 100.0
	var cum uint64
	for i, count := range e.buckets {
		cum += count
		if float64(cum) >= target {
			right := e.lowerBound + float64(i+1)*e.width
			e.threshold = clamp(right, e.clampLower, e.clampUpper)
			return
		}
	}
	e.threshold = clamp(e.upperBound, e.clampLower, e.clampUpper)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
