// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package spam implements the frequency and uniqueness spam detectors (C9):
// two independent operators, each driven by its own percentile.Estimator,
// flagging a person at most once.
package spam

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/dspa-project/engine/clog"
	"github.com/dspa-project/engine/config"
	"github.com/dspa-project/engine/event"
	"github.com/dspa-project/engine/percentile"
)

// freqBucket counts events from one person within one BurstBucket-wide span
// of event time, identified by its start. Buckets for a person are kept
// sorted ascending by start.
type freqBucket struct {
	start time.Time
	count uint64
}

type freqState struct {
	buckets []freqBucket
	total   uint64
}

// FrequencyDetector flags a person once their posting/commenting rate over
// the trailing BurstWindow falls into the tail percentile of the live
// population. Likes are ignored (Glossary: they carry no content and the
// original never scored them as posting activity).
type FrequencyDetector struct {
	*clog.CLogger

	cfg     *config.Config
	persons map[uint64]*freqState
	pct     *percentile.Estimator
	flagged map[uint64]struct{}
	onSpam  func(personId uint64)
}

// NewFrequencyDetector returns a detector seeded with MaxFreq-10 as its
// initial (pre-warmup) threshold, matching the conservative starting
// cut-point of a freshly-idle population.
func NewFrequencyDetector(cfg *config.Config, onSpam func(personId uint64)) *FrequencyDetector {
	initial := float64(cfg.MaxFreq) - 10
	return &FrequencyDetector{
		CLogger: clog.New("spam.freq "),
		cfg:     cfg,
		persons: make(map[uint64]*freqState),
		pct: percentile.New(cfg.PercentileBuckets, 0, float64(cfg.MaxFreq),
			cfg.PercentileTarget, initial, cfg.PercentileLowerBound, cfg.PercentileUpperBound),
		flagged: make(map[uint64]struct{}),
		onSpam:  onSpam,
	}
}

// Process feeds one event into the detector. Non-Like events update the
// acting person's bucketed event count; a person already flagged is still
// tracked (so their rate can be inspected) but never re-reported.
func (d *FrequencyDetector) Process(e event.Event) {
	if e.Kind == event.KindLike {
		return
	}
	d.update(e.PersonId, e.Timestamp())
}

func (d *FrequencyDetector) update(pid uint64, ts time.Time) {
	st, ok := d.persons[pid]
	if !ok {
		st = &freqState{}
		d.persons[pid] = st
	}

	// Reuse the latest bucket starting at or before ts if ts is within
	// BurstBucket of its start, else open a new one at ts, inserted in start
	// order so out-of-order events keep the buckets sorted ascending.
	pos := sort.Search(len(st.buckets), func(i int) bool { return st.buckets[i].start.After(ts) })
	if pos > 0 && ts.Sub(st.buckets[pos-1].start) < d.cfg.BurstBucket {
		st.buckets[pos-1].count++
	} else {
		st.buckets = append(st.buckets, freqBucket{})
		copy(st.buckets[pos+1:], st.buckets[pos:])
		st.buckets[pos] = freqBucket{start: ts, count: 1}
	}
	st.total++

	cutoff := ts.Add(-d.cfg.BurstWindow)
	i := 0
	for i < len(st.buckets) && st.buckets[i].start.Before(cutoff) {
		st.total -= st.buckets[i].count
		i++
	}
	st.buckets = st.buckets[i:]

	newEntry := freqStat(st.total, d.cfg.MaxFreq)
	d.pct.Add(newEntry)
	if st.total > 1 {
		d.pct.Remove(freqStat(st.total-1, d.cfg.MaxFreq) + 1)
	}

	if _, already := d.flagged[pid]; already {
		return
	}
	if newEntry <= d.pct.Threshold() {
		d.flagged[pid] = struct{}{}
		d.onSpam(pid)
	}
}

// freqStat normalises a bucketed event total into a statistic where a low
// value means a high posting rate (so the estimator's tail percentile finds
// the bursty end of the population).
func freqStat(total, maxFreq uint64) float64 {
	if total > maxFreq {
		return 0
	}
	return float64(maxFreq - total)
}

// UniquenessDetector flags a person once a post or comment's unique-word
// ratio falls into the tail percentile of the live population. Likes are
// ignored (no content field).
type UniquenessDetector struct {
	*clog.CLogger

	pct     *percentile.Estimator
	flagged map[uint64]struct{}
	onSpam  func(personId uint64)
}

// NewUniquenessDetector returns a detector seeded with an initial threshold
// of 0.5.
func NewUniquenessDetector(cfg *config.Config, onSpam func(personId uint64)) *UniquenessDetector {
	return &UniquenessDetector{
		CLogger: clog.New("spam.unique "),
		pct: percentile.New(cfg.PercentileBuckets, 0, 1, cfg.PercentileTarget, 0.5,
			cfg.PercentileLowerBound, cfg.PercentileUpperBound),
		flagged: make(map[uint64]struct{}),
		onSpam:  onSpam,
	}
}

// Process feeds one event into the detector.
func (d *UniquenessDetector) Process(e event.Event) {
	var content string
	switch e.Kind {
	case event.KindPost, event.KindComment:
		content = e.Content
	default:
		return
	}

	tokens := tokenize(content)
	ratio := 1.0
	if len(tokens) > 0 {
		unique := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			unique[t] = struct{}{}
		}
		ratio = float64(len(unique)) / float64(len(tokens))
	}

	d.pct.Add(ratio)

	if _, already := d.flagged[e.PersonId]; already {
		return
	}
	if ratio <= d.pct.Threshold() {
		d.flagged[e.PersonId] = struct{}{}
		d.onSpam(e.PersonId)
	}
}

// tokenize splits content into lowercased words by grapheme-aware boundary
// detection, dropping anything made up solely of punctuation, space, or
// control characters.
func tokenize(content string) []string {
	var tokens []string
	state := -1
	remaining := []byte(content)
	for len(remaining) > 0 {
		var word []byte
		word, remaining, state = uniseg.FirstWord(remaining, state)
		if isIgnorable(word) {
			continue
		}
		tokens = append(tokens, strings.ToLower(string(word)))
	}
	return tokens
}

func isIgnorable(word []byte) bool {
	for len(word) > 0 {
		r, size := utf8.DecodeRune(word)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsControl(r) {
			word = word[size:]
			continue
		}
		return false
	}
	return true
}
