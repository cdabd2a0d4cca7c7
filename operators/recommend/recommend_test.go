// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package recommend

import (
	"testing"
	"time"

	"github.com/dspa-project/engine/config"
	"github.com/dspa-project/engine/operators/posttree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func testConfig() *config.Config {
	return &config.Config{
		WeightLike: 5, WeightComment: 5, WeightReply: 5,
		WeightTag: 2, WeightForum: 2, WeightActive: 1,
		WeightCommonFriends: 4, WeightWork: 3, WeightStudy: 3,
		TopK: 5, RecWindowCount: 4, RecWindowSize: time.Hour,
	}
}

func TestS4WindowSlideAgesOutOldestBucket(t *testing.T) {
	cfg := testConfig()
	e := NewTargetEngine(38, cfg)

	t0 := at(0)
	e.Process(posttree.RecommendationUpdate{Kind: posttree.RecLike, Timestamp: t0, FromPerson: 38, ToPerson: 1})
	e.Process(posttree.RecommendationUpdate{Kind: posttree.RecLike, Timestamp: t0.Add(3700 * time.Second), FromPerson: 38, ToPerson: 2})
	e.Process(posttree.RecommendationUpdate{Kind: posttree.RecLike, Timestamp: t0.Add(7400 * time.Second), FromPerson: 38, ToPerson: 3})
	e.Process(posttree.RecommendationUpdate{Kind: posttree.RecLike, Timestamp: t0.Add(11100 * time.Second), FromPerson: 38, ToPerson: 4})

	snaps := e.MaybeNotify(t0.Add(14400 * time.Second))
	require.NotEmpty(t, snaps)

	last := snaps[len(snaps)-1]
	for _, s := range last.TopK {
		assert.NotEqual(t, uint64(1), s.PersonId, "candidate 1's like should have aged out of the 4h window")
	}
}

func TestTopKSizeAndOrdering(t *testing.T) {
	cfg := testConfig()
	cfg.TopK = 2
	e := NewTargetEngine(1, cfg)
	t0 := at(0)

	e.Process(posttree.RecommendationUpdate{Kind: posttree.RecLike, Timestamp: t0, FromPerson: 1, ToPerson: 2})
	e.Process(posttree.RecommendationUpdate{Kind: posttree.RecComment, Timestamp: t0, FromPerson: 1, ToPerson: 3})
	e.Process(posttree.RecommendationUpdate{Kind: posttree.RecComment, Timestamp: t0, FromPerson: 1, ToPerson: 4})

	snaps := e.MaybeNotify(t0.Add(time.Hour))
	require.Len(t, snaps, 1)
	assert.LessOrEqual(t, len(snaps[0].TopK), 2)
	for i := 1; i < len(snaps[0].TopK); i++ {
		assert.GreaterOrEqual(t, snaps[0].TopK[i-1].Value, snaps[0].TopK[i].Value)
	}
}

func TestActiveCreditNotGivenToSelf(t *testing.T) {
	cfg := testConfig()
	e := NewTargetEngine(1, cfg)
	t0 := at(0)
	e.Process(posttree.RecommendationUpdate{Kind: posttree.RecPost, Timestamp: t0, FromPerson: 1, ToPerson: 1})

	snaps := e.MaybeNotify(t0.Add(time.Hour))
	require.Len(t, snaps, 1)
	for _, s := range snaps[0].TopK {
		assert.NotEqual(t, uint64(1), s.PersonId, "target must never be credited for their own activity")
	}
}

func TestPostTagOverlapCreditsAuthor(t *testing.T) {
	cfg := testConfig()
	e := NewTargetEngine(1, cfg)
	t0 := at(0)

	// target posts with tag 7, learning it.
	e.Process(posttree.RecommendationUpdate{Kind: posttree.RecPost, Timestamp: t0, FromPerson: 1, ToPerson: 1, Tags: []uint64{7}})
	// a stranger posts with the same tag.
	e.Process(posttree.RecommendationUpdate{Kind: posttree.RecPost, Timestamp: t0.Add(time.Minute), FromPerson: 99, ToPerson: 99, Tags: []uint64{7}})

	snaps := e.MaybeNotify(t0.Add(time.Hour))
	require.Len(t, snaps, 1)
	var found bool
	for _, s := range snaps[0].TopK {
		if s.PersonId == 99 {
			found = true
			assert.Greater(t, s.Value, uint64(0))
		}
	}
	assert.True(t, found, "candidate sharing a tag with the target should be credited")
}
