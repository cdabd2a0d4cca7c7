// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package posttree implements the post-tree operator (C4): it maintains,
// per worker, a map from every known Post/Comment id to the root post it
// belongs to, resolves out-of-order comments and replies against that map,
// and emits the stat and recommendation deltas consumed by C6 and C7.
package posttree

import (
	"time"

	"github.com/dspa-project/engine/clog"
	"github.com/dspa-project/engine/event"
)

// Node records who created an event, which root post it ultimately belongs
// to, and the event's own timestamp (used to order out-of-order children
// against it during resolution).
type Node struct {
	CreatorPersonId uint64
	RootPostId      uint64
	Timestamp       time.Time
}

// StatKind classifies a StatUpdate by the kind of activity that produced it.
type StatKind int

const (
	StatPost StatKind = iota
	StatComment
	StatReply
	StatLike
)

// StatUpdate is emitted for every event once its root post is known, and
// consumed by the active-posts accumulator (C6).
type StatUpdate struct {
	Kind       StatKind
	RootPostId uint64
	PersonId   uint64
	Timestamp  time.Time
}

func (u StatUpdate) GetTimestamp() time.Time { return u.Timestamp }

// RecKind classifies a RecommendationUpdate by the activity that produced
// it.
type RecKind int

const (
	RecPost RecKind = iota
	RecLike
	RecComment
	RecReply
)

// RecommendationUpdate is emitted for every event once its root post (or, in
// the case of a Post, the post itself) is known, and consumed by the
// friend-recommendation engine (C7). FromPerson is the event's acter
// (proxy for liveness, credited W_active); ToPerson is the candidate credited
// by the interaction: the author of the event's parent (the post for a Like
// or a comment on a post, the replied-to comment for a reply), or the
// post's own author for a Post. ForumId and
// Tags are populated only for Kind == RecPost.
type RecommendationUpdate struct {
	Kind       RecKind
	Timestamp  time.Time
	FromPerson uint64
	ToPerson   uint64
	ForumId    uint64
	Tags       []uint64
}

func (u RecommendationUpdate) GetTimestamp() time.Time { return u.Timestamp }

// Operator holds one worker's post-tree state.
type Operator struct {
	*clog.CLogger

	rootOf   map[event.Id]Node
	deferred map[event.Id][]event.Event

	onStat func(StatUpdate)
	onRec  func(RecommendationUpdate)

	gcDropped uint64
}

// New returns an empty Operator. onStat/onRec are invoked synchronously for
// every emission produced while processing or resolving an event.
func New(onStat func(StatUpdate), onRec func(RecommendationUpdate)) *Operator {
	return &Operator{
		CLogger:  clog.New("posttree "),
		rootOf:   make(map[event.Id]Node),
		deferred: make(map[event.Id][]event.Event),
		onStat:   onStat,
		onRec:    onRec,
	}
}

// Process handles one incoming event, per the rules of C4.
func (op *Operator) Process(e event.Event) {
	switch e.Kind {
	case event.KindPost:
		op.processPost(e)
	case event.KindLike:
		op.processLike(e)
	case event.KindComment:
		op.processComment(e)
	}
}

func (op *Operator) processPost(p event.Event) {
	id := event.PostId(p.PostId)
	op.rootOf[id] = Node{CreatorPersonId: p.PersonId, RootPostId: p.PostId, Timestamp: p.Timestamp()}

	op.onStat(StatUpdate{Kind: StatPost, RootPostId: p.PostId, PersonId: p.PersonId, Timestamp: p.Timestamp()})
	op.onRec(RecommendationUpdate{
		Kind:       RecPost,
		Timestamp:  p.Timestamp(),
		FromPerson: p.PersonId,
		ToPerson:   p.PersonId,
		ForumId:    p.ForumId,
		Tags:       p.Tags,
	})

	op.resolve(id)
}

func (op *Operator) processLike(l event.Event) {
	postId := event.PostId(l.LikePostId)
	root, ok := op.rootOf[postId]
	if !ok {
		op.park(postId, l)
		return
	}
	op.emitLike(l, root)
}

func (op *Operator) emitLike(l event.Event, root Node) {
	op.onStat(StatUpdate{Kind: StatLike, RootPostId: root.RootPostId, PersonId: l.PersonId, Timestamp: l.Timestamp()})
	op.onRec(RecommendationUpdate{
		Kind:       RecLike,
		Timestamp:  l.Timestamp(),
		FromPerson: l.PersonId,
		ToPerson:   root.CreatorPersonId,
	})
}

func (op *Operator) processComment(c event.Event) {
	parent := c.TargetId()
	root, ok := op.rootOf[parent]
	if !ok {
		op.park(parent, c)
		return
	}
	op.attachComment(c, root)
}

func (op *Operator) attachComment(c event.Event, root Node) {
	id := event.CommentId(c.CommentId)
	op.rootOf[id] = Node{CreatorPersonId: c.PersonId, RootPostId: root.RootPostId, Timestamp: c.Timestamp()}

	statKind := StatComment
	recKind := RecComment
	if c.IsReplyToComment() {
		statKind = StatReply
		recKind = RecReply
	}

	op.onStat(StatUpdate{Kind: statKind, RootPostId: root.RootPostId, PersonId: c.PersonId, Timestamp: c.Timestamp()})
	op.onRec(RecommendationUpdate{
		Kind:       recKind,
		Timestamp:  c.Timestamp(),
		FromPerson: c.PersonId,
		ToPerson:   root.CreatorPersonId,
	})

	op.resolve(id)
}

// park defers an event whose parent id is not yet known.
func (op *Operator) park(parent event.Id, e event.Event) {
	op.deferred[parent] = append(op.deferred[parent], e)
}

// resolve drains the deferred bucket for id (now known), re-processing each
// parked event. A parked event whose timestamp precedes its parent's is
// dropped rather than emitted (Design Notes §9's resolved "stricter rule").
// Reattachment may recursively unlock further deferred ids.
func (op *Operator) resolve(id event.Id) {
	parked, ok := op.deferred[id]
	if !ok {
		return
	}
	delete(op.deferred, id)

	// id is the parent whose node was just inserted; its own Timestamp is
	// what a resolved child must not precede (Design Notes §9: drop a
	// reply strictly earlier than its parent).
	root := op.rootOf[id]

	for _, e := range parked {
		if e.Timestamp().Before(root.Timestamp) {
			op.Printf("dropping late-resolved event %s (ts before parent)", e)
			continue
		}
		switch e.Kind {
		case event.KindLike:
			op.emitLike(e, root)
		case event.KindComment:
			op.attachComment(e, root)
		}
	}
}

// GC drops any deferred bucket all of whose parked events have a timestamp
// at or before the given frontier: such events can no longer be resolved by
// on-time data and are garbage.
func (op *Operator) GC(frontier time.Time) {
	for id, bucket := range op.deferred {
		allStale := true
		for _, e := range bucket {
			if e.Timestamp().After(frontier) {
				allStale = false
				break
			}
		}
		if allStale {
			delete(op.deferred, id)
			op.gcDropped += uint64(len(bucket))
		}
	}
}

// GCDropped returns the cumulative number of deferred events dropped by GC.
func (op *Operator) GCDropped() uint64 {
	return op.gcDropped
}

// RootOf exposes the current root-post mapping for id, for testing.
func (op *Operator) RootOf(id event.Id) (Node, bool) {
	n, ok := op.rootOf[id]
	return n, ok
}

// DeferredCount exposes the number of events parked under id, for testing.
func (op *Operator) DeferredCount(id event.Id) int {
	return len(op.deferred[id])
}
