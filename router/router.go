// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package router implements the reply broadcast router (C3): it splits the
// event stream by the predicate "is a Comment replying to another Comment".
// The matching branch is broadcast to every worker (a reply may reference a
// comment whose root post is only known on one worker); the non-matching
// branch is partitioned by the event's target id so every Post/Like/
// reply-to-post Comment reaches exactly the worker that owns its root post.
package router

import (
	"github.com/dspa-project/engine/event"
	"github.com/dspa-project/engine/exchange"
)

// Router fans a local worker's decoded events out across the cluster's
// exchange.Fabric.
type Router struct {
	fabric *exchange.Fabric[event.Event]
	worker int
}

// New returns a Router for the given fabric, identifying the calling
// worker's own index (used only to select its receive channel, see Recv).
func New(fabric *exchange.Fabric[event.Event], worker int) *Router {
	return &Router{fabric: fabric, worker: worker}
}

// Route sends e to its destination(s): broadcast for a reply-to-comment
// Comment, otherwise partitioned by TargetId (post_id for Post/Like,
// reply_to_post_id or reply_to_comment_id for Comment) mod the worker count.
func (r *Router) Route(e event.Event, workers int) {
	if e.IsReplyToComment() {
		r.fabric.Broadcast(e)
		return
	}
	dest := exchange.PartitionOf(e.TargetId().Val, workers)
	r.fabric.Send(dest, e)
}

// Recv returns the calling worker's receive channel: the concatenation,
// per spec.md §4.3, of everything broadcast to it plus everything
// partitioned to it — both land on the same fabric channel since Route
// picks exactly one of Broadcast/Send per event, so no separate merge is
// required.
func (r *Router) Recv() <-chan event.Event {
	return r.fabric.Recv(r.worker)
}
