// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package percentile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBelowTenReturnsPreviousThreshold(t *testing.T) {
	e := New(10, 0, 1, 5, 0, 0, 1)
	for i := 0; i < 9; i++ {
		e.Add(0.5)
	}
	assert.Equal(t, 0.0, e.Threshold())
}

// The clamp band (0.2, 0.8) is narrower than the histogram's own domain
// (0, 1): a population sitting entirely at the histogram's lower edge must
// still have its threshold clamped into the configured band, not the
// histogram's own span.
func TestThresholdClampedToConfiguredBandNotHistogramSpan(t *testing.T) {
	e := New(10, 0, 1, 5, 0.2, 0.2, 0.8)
	for i := 0; i < 20; i++ {
		e.Add(0.0) // below the clamp band's lower edge
	}
	th := e.Threshold()
	assert.GreaterOrEqual(t, th, 0.2)
	assert.LessOrEqual(t, th, 0.8)
}

func TestAddRemoveBalancedNonNegative(t *testing.T) {
	e := New(10, 0, 100, 5, 0, 0, 100)
	for i := 0; i < 20; i++ {
		e.Add(float64(i))
	}
	for i := 0; i < 20; i++ {
		e.Remove(float64(i))
	}
	assert.Equal(t, uint64(0), e.Total())
	for _, b := range e.buckets {
		assert.Equal(t, uint64(0), b)
	}
}

func TestNoOpWhenEmptyRemove(t *testing.T) {
	e := New(4, 0, 1, 5, 0, 0, 1)
	e.Remove(0.5)
	assert.Equal(t, uint64(0), e.Total())
}
