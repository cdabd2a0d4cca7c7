// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package activeposts implements the active-posts accumulator (C6): per-post
// engagement statistics, filtered to posts touched within the last active
// window at each notification.
package activeposts

import (
	"time"

	"github.com/dspa-project/engine/operators/posttree"
	"github.com/dspa-project/engine/operators/windownotify"
)

// Stats holds one post's engagement counters.
type Stats struct {
	NumComments  int
	NumReplies   int
	UniquePeople map[uint64]struct{}
}

func newStats() *Stats {
	return &Stats{UniquePeople: make(map[uint64]struct{})}
}

func cloneStats(s *Stats) *Stats {
	c := &Stats{NumComments: s.NumComments, NumReplies: s.NumReplies, UniquePeople: make(map[uint64]struct{}, len(s.UniquePeople))}
	for p := range s.UniquePeople {
		c.UniquePeople[p] = struct{}{}
	}
	return c
}

// state is the double-buffered accumulator driven by windownotify.
type state struct {
	lastSeen map[uint64]time.Time
	stats    map[uint64]*Stats
}

func newState() *state {
	return &state{lastSeen: make(map[uint64]time.Time), stats: make(map[uint64]*Stats)}
}

func cloneState(s *state) *state {
	c := newState()
	for k, v := range s.lastSeen {
		c.lastSeen[k] = v
	}
	for k, v := range s.stats {
		c.stats[k] = cloneStats(v)
	}
	return c
}

func updateState(s *state, u posttree.StatUpdate) {
	if prev, ok := s.lastSeen[u.RootPostId]; !ok || u.Timestamp.After(prev) {
		s.lastSeen[u.RootPostId] = u.Timestamp
	}

	st, ok := s.stats[u.RootPostId]
	if !ok {
		st = newStats()
		s.stats[u.RootPostId] = st
	}

	switch u.Kind {
	case posttree.StatComment:
		st.NumComments++
	case posttree.StatReply:
		st.NumReplies++
	}
	st.UniquePeople[u.PersonId] = struct{}{}
}

// Snapshot is the output emitted at each notification: the active subset of
// post stats, keyed by post id.
type Snapshot struct {
	At    time.Time
	Posts map[uint64]*Stats
}

// Operator wraps the generic window-notify operator with C6's active-window
// filtering semantics.
type Operator struct {
	inner        *windownotify.Operator[posttree.StatUpdate, *state, Snapshot]
	activeWindow time.Duration
}

// New returns an Operator that notifies on the given cadence and considers a
// post active if touched within activeWindow of the notification time.
func New(notifyEvery, activeWindow time.Duration) *Operator {
	op := &Operator{activeWindow: activeWindow}
	op.inner = windownotify.New[posttree.StatUpdate, *state, Snapshot](
		notifyEvery,
		newState,
		updateState,
		cloneState,
		op.onNotify,
	)
	return op
}

func (op *Operator) onNotify(s *state, t time.Time) Snapshot {
	cutoff := t.Add(-op.activeWindow)
	out := make(map[uint64]*Stats)
	for postId, last := range s.lastSeen {
		if !last.Before(cutoff) {
			out[postId] = cloneStats(s.stats[postId])
		}
	}
	return Snapshot{At: t, Posts: out}
}

// Process feeds one StatUpdate into the accumulator.
func (op *Operator) Process(u posttree.StatUpdate) {
	op.inner.Process(u)
}

// MaybeNotify fires every scheduled notification that the given frontier has
// passed.
func (op *Operator) MaybeNotify(frontier time.Time) []Snapshot {
	return op.inner.MaybeNotify(frontier)
}
