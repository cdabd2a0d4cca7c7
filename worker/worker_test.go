// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dspa-project/engine/config"
	"github.com/dspa-project/engine/event"
	"github.com/dspa-project/engine/exchange"
	"github.com/dspa-project/engine/operators/posttree"
	"github.com/dspa-project/engine/queries"
)

func testConfig() *config.Config {
	return &config.Config{
		NumPartitions:        4,
		TopK:                 5,
		RecWindowCount:       4,
		RecWindowSize:        time.Hour,
		ActiveWindow:         12 * time.Hour,
		ActivePostsWindow:    30 * time.Minute,
		BurstWindow:          60 * time.Second,
		BurstBucket:          10 * time.Second,
		MaxFreq:              100,
		PercentileBuckets:    100,
		PercentileTarget:     5,
		PercentileLowerBound: 0,
		PercentileUpperBound: 100,
	}
}

func TestNewAssignsOnlyOwnedRecommendationTargets(t *testing.T) {
	cfg := testConfig()
	cfg.RecommendationClients = []uint64{1, 2, 3, 4}
	sel := queries.NewSelection([]queries.ID{queries.Recommendations})
	fabric := exchange.NewFabric[event.Event](2, 4)
	recFabric := exchange.NewFabric[posttree.RecommendationUpdate](2, 4)
	spamFabric := exchange.NewFabric[event.Event](2, 4)

	w0, err := New(cfg, sel, 0, 2, fabric, recFabric, spamFabric, nil)
	require.NoError(t, err)
	w1, err := New(cfg, sel, 1, 2, fabric, recFabric, spamFabric, nil)
	require.NoError(t, err)

	total := len(w0.targets) + len(w1.targets)
	assert.Equal(t, len(cfg.RecommendationClients), total)
	for target := range w0.targets {
		assert.Equal(t, 0, int(target%2))
	}
	for target := range w1.targets {
		assert.Equal(t, 1, int(target%2))
	}
}

func TestOnEventRoutesThroughFabricWhenQuerySelected(t *testing.T) {
	cfg := testConfig()
	sel := queries.NewSelection([]queries.ID{queries.ActivePosts})
	fabric := exchange.NewFabric[event.Event](1, 4)
	recFabric := exchange.NewFabric[posttree.RecommendationUpdate](1, 4)
	spamFabric := exchange.NewFabric[event.Event](1, 4)
	w, err := New(cfg, sel, 0, 1, fabric, recFabric, spamFabric, nil)
	require.NoError(t, err)

	w.onEvent(event.Event{Kind: event.KindPost, PostId: 1})
	select {
	case e := <-fabric.Recv(0):
		assert.Equal(t, uint64(1), e.PostId)
	default:
		t.Fatal("expected event routed onto the fabric")
	}
}

// onEvent must re-partition by person id onto spamFabric rather than feed
// the local freq/uniq detectors directly, since Kafka partitions (and so
// worker ownership) are not person-aware.
func TestOnEventPartitionsSpamTrafficByPersonId(t *testing.T) {
	cfg := testConfig()
	sel := queries.NewSelection([]queries.ID{queries.SpamDetection})
	fabric := exchange.NewFabric[event.Event](4, 4)
	recFabric := exchange.NewFabric[posttree.RecommendationUpdate](4, 4)
	spamFabric := exchange.NewFabric[event.Event](4, 4)
	w, err := New(cfg, sel, 0, 4, fabric, recFabric, spamFabric, nil)
	require.NoError(t, err)

	e := event.Event{Kind: event.KindPost, PostId: 1, PersonId: 7, PostTime: time.Unix(0, 0)}
	w.onEvent(e)

	want := exchange.PartitionOf(e.PersonId, 4)
	select {
	case got := <-spamFabric.Recv(want):
		assert.Equal(t, e.PersonId, got.PersonId)
	default:
		t.Fatalf("expected event routed onto spamFabric at worker %d", want)
	}

	select {
	case <-fabric.Recv(0):
		t.Fatal("spam-only selection must not route through the C3 fabric")
	default:
	}
}

// onRec must broadcast, since a target's recommendation engine generally
// lives on a different worker than the one whose post-tree produced the
// update.
func TestOnRecBroadcastsToEveryWorker(t *testing.T) {
	cfg := testConfig()
	sel := queries.NewSelection([]queries.ID{queries.Recommendations})
	fabric := exchange.NewFabric[event.Event](3, 4)
	recFabric := exchange.NewFabric[posttree.RecommendationUpdate](3, 4)
	spamFabric := exchange.NewFabric[event.Event](3, 4)
	w, err := New(cfg, sel, 0, 3, fabric, recFabric, spamFabric, nil)
	require.NoError(t, err)

	u := posttree.RecommendationUpdate{Kind: posttree.RecPost, FromPerson: 1, ToPerson: 1, Timestamp: time.Unix(0, 0)}
	w.onRec(u)

	for i := 0; i < 3; i++ {
		select {
		case got := <-recFabric.Recv(i):
			assert.Equal(t, u.FromPerson, got.FromPerson)
		default:
			t.Fatalf("worker %d did not receive the broadcast recommendation update", i)
		}
	}
}
