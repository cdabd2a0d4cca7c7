// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package spam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dspa-project/engine/config"
	"github.com/dspa-project/engine/event"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxFreq:              100,
		BurstWindow:          60 * time.Second,
		BurstBucket:          10 * time.Second,
		PercentileBuckets:    100,
		PercentileTarget:     5,
		PercentileLowerBound: 0,
		PercentileUpperBound: 100,
	}
}

// S5 — a user posting well above the background rate is eventually flagged
// exactly once, even across repeated bursts.
func TestFrequencyDetectorFlagsBurstOnceS5(t *testing.T) {
	cfg := testConfig()
	var flagged []uint64
	d := NewFrequencyDetector(cfg, func(p uint64) { flagged = append(flagged, p) })

	base := time.Unix(1_000_000, 0)
	// Background population: 50 distinct low-rate posters.
	for i := uint64(0); i < 50; i++ {
		d.Process(event.Event{Kind: event.KindPost, PersonId: 100 + i, PostTime: base})
	}

	// Bursty user posts 120 times within 60s.
	for i := 0; i < 120; i++ {
		ts := base.Add(time.Duration(i) * 400 * time.Millisecond)
		d.Process(event.Event{Kind: event.KindPost, PersonId: 1, PostTime: ts})
	}

	assert.Contains(t, flagged, uint64(1))
	firstCount := len(flagged)

	// A second burst from the same user must not re-emit them.
	for i := 0; i < 50; i++ {
		ts := base.Add(time.Hour).Add(time.Duration(i) * 200 * time.Millisecond)
		d.Process(event.Event{Kind: event.KindPost, PersonId: 1, PostTime: ts})
	}
	assert.Equal(t, firstCount, len(flagged))
}

func TestFrequencyDetectorIgnoresLikes(t *testing.T) {
	cfg := testConfig()
	var flagged []uint64
	d := NewFrequencyDetector(cfg, func(p uint64) { flagged = append(flagged, p) })

	base := time.Unix(0, 0)
	for i := 0; i < 200; i++ {
		d.Process(event.Event{Kind: event.KindLike, PersonId: 1, LikeTime: base.Add(time.Duration(i) * time.Millisecond)})
	}
	assert.Empty(t, flagged)
}

// S6 — low lexical-uniqueness content is flagged.
func TestUniquenessDetectorFlagsRepetitiveContentS6(t *testing.T) {
	cfg := testConfig()
	var flagged []uint64
	d := NewUniquenessDetector(cfg, func(p uint64) { flagged = append(flagged, p) })

	// Background population of varied, high-uniqueness content.
	for i := uint64(0); i < 20; i++ {
		d.Process(event.Event{Kind: event.KindPost, PersonId: 100 + i, Content: "a unique sentence about something different every time"})
	}

	d.Process(event.Event{Kind: event.KindPost, PersonId: 1, Content: "hello hello hello hello"})

	assert.Contains(t, flagged, uint64(1))
}

func TestUniquenessDetectorFlagsOncePerPerson(t *testing.T) {
	cfg := testConfig()
	var flagged []uint64
	d := NewUniquenessDetector(cfg, func(p uint64) { flagged = append(flagged, p) })

	for i := 0; i < 20; i++ {
		d.Process(event.Event{Kind: event.KindPost, PersonId: 1, Content: "same same same same"})
	}

	count := 0
	for _, p := range flagged {
		if p == 1 {
			count++
		}
	}
	assert.LessOrEqual(t, count, 1)
}
