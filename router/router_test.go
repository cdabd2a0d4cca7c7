// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dspa-project/engine/event"
	"github.com/dspa-project/engine/exchange"
)

func TestReplyToCommentIsBroadcastToEveryWorker(t *testing.T) {
	f := exchange.NewFabric[event.Event](3, 4)
	r := New(f, 0)

	parent := uint64(21)
	reply := event.Event{Kind: event.KindComment, CommentId: 22, ReplyToCommentId: &parent, CommentTime: time.Unix(500, 0)}
	r.Route(reply, 3)

	for w := 0; w < 3; w++ {
		select {
		case got := <-f.Recv(w):
			assert.Equal(t, reply.CommentId, got.CommentId)
		default:
			t.Fatalf("worker %d did not receive the broadcast reply", w)
		}
	}
}

func TestNonReplyIsPartitionedToExactlyOneWorker(t *testing.T) {
	f := exchange.NewFabric[event.Event](4, 4)
	r := New(f, 0)

	p := event.Event{Kind: event.KindPost, PostId: 10, PostTime: time.Unix(100, 0)}
	r.Route(p, 4)

	want := exchange.PartitionOf(p.PostId, 4)
	for w := 0; w < 4; w++ {
		select {
		case got := <-f.Recv(w):
			require.Equal(t, want, w)
			assert.Equal(t, p.PostId, got.PostId)
		default:
			assert.NotEqual(t, want, w, "owning worker must have received the event")
		}
	}
}
