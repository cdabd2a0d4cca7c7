// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package recommend implements the friend-recommendation engine (C7): a
// static similarity score bootstrapped once from the relational store,
// combined with a dynamic bucketed, decaying behavioural score, ranked by a
// top-K extraction at each notification.
package recommend

import (
	"container/heap"
	"context"
	"time"

	"github.com/dspa-project/engine/clog"
	"github.com/dspa-project/engine/config"
	"github.com/dspa-project/engine/db"
	"github.com/dspa-project/engine/operators/posttree"
)

// Score pairs a candidate with their combined score. Ordered descending by
// Score, ties broken by ascending PersonId (Glossary: Top-K).
type Score struct {
	PersonId uint64
	Value    uint64
}

// Snapshot is the output emitted at each notification for one target.
type Snapshot struct {
	Target uint64
	At     time.Time
	TopK   []Score
}

type bucket = map[uint64]uint64

// TargetEngine holds the static and dynamic recommendation state for one
// target person.
type TargetEngine struct {
	*clog.CLogger

	target uint64
	cfg    *config.Config

	friends  map[uint64]struct{}
	forums   map[uint64]struct{}
	tagsSeen map[uint64]struct{}
	static   map[uint64]uint64

	// buckets[0] is the RecWindowSize-wide window ending at (and including)
	// lastNotificationTime; increasing index moves backward in time. Buckets
	// beyond cfg.RecWindowCount are cut off whenever a newer window is
	// opened and at each notification.
	buckets              []bucket
	anchored             bool
	lastNotificationTime time.Time
	nextNotificationTime time.Time
}

// NewTargetEngine returns an engine for the given target person, with empty
// static state — call Bootstrap before processing any updates.
func NewTargetEngine(target uint64, cfg *config.Config) *TargetEngine {
	return &TargetEngine{
		CLogger:  clog.New("recommend[%d] ", target),
		target:   target,
		cfg:      cfg,
		friends:  make(map[uint64]struct{}),
		forums:   make(map[uint64]struct{}),
		tagsSeen: make(map[uint64]struct{}),
		static:   make(map[uint64]uint64),
	}
}

// Bootstrap populates the static score from the relational store: common
// friends, shared employers, and shared schools, each weighted, with the
// target's own direct friends excluded from the resulting candidate set.
func (e *TargetEngine) Bootstrap(ctx context.Context, store *db.Store) error {
	friends, err := store.Friends(ctx, e.target)
	if err != nil {
		return err
	}
	for _, f := range friends {
		e.friends[f] = struct{}{}
	}

	forums, err := store.Forums(ctx, e.target)
	if err != nil {
		return err
	}
	for _, f := range forums {
		e.forums[f] = struct{}{}
	}

	common, err := store.CommonFriends(ctx, e.target)
	if err != nil {
		return err
	}
	work, err := store.WorkAt(ctx, e.target)
	if err != nil {
		return err
	}
	study, err := store.StudyAt(ctx, e.target)
	if err != nil {
		return err
	}

	for c, n := range common {
		e.static[c] += n * e.cfg.WeightCommonFriends
	}
	for c, n := range work {
		e.static[c] += n * e.cfg.WeightWork
	}
	for c, n := range study {
		e.static[c] += n * e.cfg.WeightStudy
	}
	for f := range e.friends {
		delete(e.static, f)
	}
	return nil
}

// Process applies one RecommendationUpdate from the local event stream. The
// first update anchors lastNotificationTime at the first scheduled
// notification instant, one RecWindowSize after the event's own timestamp.
// Bucket 0 then holds samples less than one RecWindowSize before that
// instant, up to and including it; the first update itself lies exactly one
// RecWindowSize before it and so lands in bucket 1.
func (e *TargetEngine) Process(u posttree.RecommendationUpdate) {
	if !e.anchored {
		e.lastNotificationTime = u.Timestamp.Add(e.cfg.RecWindowSize)
		e.nextNotificationTime = e.lastNotificationTime
		e.buckets = []bucket{make(bucket)}
		e.anchored = true
	}

	if u.Kind == posttree.RecPost && u.FromPerson == e.target {
		for _, tag := range u.Tags {
			e.tagsSeen[tag] = struct{}{}
		}
	}

	delta := e.deltaFor(u)
	if len(delta) == 0 {
		return
	}

	idx := e.bucketIndexFor(u.Timestamp)
	for candidate, d := range delta {
		e.buckets[idx][candidate] += d
	}
}

// deltaFor computes the per-candidate score contribution of one update,
// combining the type-specific interaction weight with the flat liveness
// credit (Design Notes §9: all weights are configuration inputs).
func (e *TargetEngine) deltaFor(u posttree.RecommendationUpdate) map[uint64]uint64 {
	delta := make(map[uint64]uint64)

	if u.FromPerson == e.target {
		switch u.Kind {
		case posttree.RecLike:
			delta[u.ToPerson] += e.cfg.WeightLike
		case posttree.RecComment:
			delta[u.ToPerson] += e.cfg.WeightComment
		case posttree.RecReply:
			delta[u.ToPerson] += e.cfg.WeightReply
		}
	}

	if u.Kind == posttree.RecPost {
		var d uint64
		overlap := 0
		for _, tag := range u.Tags {
			if _, ok := e.tagsSeen[tag]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			d += e.cfg.WeightTag * uint64(overlap)
		}
		if _, ok := e.forums[u.ForumId]; ok {
			d += e.cfg.WeightForum
		}
		if d > 0 {
			delta[u.ToPerson] += d
		}
	}

	if u.FromPerson != e.target {
		delta[u.FromPerson] += e.cfg.WeightActive
	}

	// The target is never a candidate for their own recommendations.
	delete(delta, e.target)

	return delta
}

// bucketIndexFor locates (extending the bucket slice as needed) the index a
// sample with the given timestamp belongs in. A timestamp running ahead of
// lastNotificationTime advances it forward in whole RecWindowSize steps, one
// fresh bucket per step, so a later sample's offset is always computed
// against an anchor that already accounts for every earlier one.
func (e *TargetEngine) bucketIndexFor(ts time.Time) int {
	if !ts.After(e.lastNotificationTime) {
		offset := int(e.lastNotificationTime.Sub(ts) / e.cfg.RecWindowSize)
		for len(e.buckets) <= offset {
			e.buckets = append(e.buckets, make(bucket))
		}
		return offset
	}

	for ts.After(e.lastNotificationTime) {
		e.buckets = append([]bucket{make(bucket)}, e.buckets...)
		e.lastNotificationTime = e.lastNotificationTime.Add(e.cfg.RecWindowSize)
	}
	if len(e.buckets) > e.cfg.RecWindowCount {
		e.buckets = e.buckets[:e.cfg.RecWindowCount]
	}
	return 0
}

// MaybeNotify fires every scheduled notification whose instant has passed
// under the given frontier, returning their outputs in order.
func (e *TargetEngine) MaybeNotify(frontier time.Time) []Snapshot {
	if !e.anchored {
		return nil
	}

	var outs []Snapshot
	for !e.nextNotificationTime.After(frontier) {
		outs = append(outs, e.notify(e.nextNotificationTime))
	}
	return outs
}

// notify sums the static score with every retained bucket's delta, after
// dropping however many windows have aged out since the last notification.
// The retained-length cap is computed from scratch each time (emptyWindows
// windows have elapsed since lastNotificationTime, leaving at most
// RecWindowCount-emptyWindows of the RecWindowCount-sized trailing range
// still inside it) rather than by subtracting from the slice's current
// length, so a target with sparse activity still ages out correctly.
func (e *TargetEngine) notify(t time.Time) Snapshot {
	// bucketIndexFor may have already advanced lastNotificationTime past t
	// (an event arrived ahead of this scheduled instant); emptyWindows only
	// ever ages buckets out, so a non-positive gap means none have.
	emptyWindows := int(t.Sub(e.lastNotificationTime) / e.cfg.RecWindowSize)
	keep := e.cfg.RecWindowCount - emptyWindows
	if keep < 0 {
		keep = 0
	}
	if keep > e.cfg.RecWindowCount {
		keep = e.cfg.RecWindowCount
	}
	if len(e.buckets) > keep {
		e.buckets = e.buckets[:keep]
	}

	totals := make(map[uint64]uint64, len(e.static))
	for c, s := range e.static {
		totals[c] = s
	}
	for _, b := range e.buckets {
		for c, d := range b {
			totals[c] += d
		}
	}

	topK := extractTopK(totals, e.cfg.TopK)

	// Re-anchor at t, opening one empty bucket per elapsed window so that
	// bucket i keeps covering the i-th window before the anchor.
	for t.After(e.lastNotificationTime) {
		e.buckets = append([]bucket{make(bucket)}, e.buckets...)
		e.lastNotificationTime = e.lastNotificationTime.Add(e.cfg.RecWindowSize)
	}
	if len(e.buckets) > e.cfg.RecWindowCount {
		e.buckets = e.buckets[:e.cfg.RecWindowCount]
	}
	e.nextNotificationTime = t.Add(e.cfg.RecWindowSize)

	return Snapshot{Target: e.target, At: t, TopK: topK}
}

// scoreHeap is a min-heap ordered so the smallest element (by descending
// Value, then ascending PersonId) sits at the root, letting extractTopK
// evict it first once the heap exceeds k elements.
type scoreHeap []Score

func (h scoreHeap) Len() int { return len(h) }
func (h scoreHeap) Less(i, j int) bool {
	if h[i].Value != h[j].Value {
		return h[i].Value < h[j].Value
	}
	return h[i].PersonId > h[j].PersonId
}
func (h scoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x any)        { *h = append(*h, x.(Score)) }
func (h *scoreHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// extractTopK returns the k highest-scoring candidates, descending by score
// with ties broken by ascending person id.
func extractTopK(totals map[uint64]uint64, k int) []Score {
	h := &scoreHeap{}
	heap.Init(h)
	for c, v := range totals {
		heap.Push(h, Score{PersonId: c, Value: v})
		if h.Len() > k {
			heap.Pop(h)
		}
	}

	out := make([]Score, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Score)
	}
	return out
}
