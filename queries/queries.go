// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package queries is the registry of the three pluggable analytical queries
// (spec.md §1): active-post statistics, friend recommendations, and spammer
// detection. Unlike the teacher's registry.Registry (which dispatches a
// single named Computation per coordinator request), all three queries here
// run concurrently inside the same operator graph — the registry's role is
// simply to let the CLI's -q/--queries flag select which of the three
// downstream printers are wired up (spec.md §6: "-q <comma-list of query
// ids in {1,2,3}>").
package queries

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dspa-project/engine/operators/activeposts"
	"github.com/dspa-project/engine/operators/recommend"
)

// ID identifies one of the three analytical queries.
type ID int

const (
	ActivePosts     ID = 1
	Recommendations ID = 2
	SpamDetection   ID = 3
)

func (id ID) String() string {
	switch id {
	case ActivePosts:
		return "active-posts"
	case Recommendations:
		return "recommendations"
	case SpamDetection:
		return "spam-detection"
	default:
		return "unknown"
	}
}

// ParseIDs parses a comma-separated list of query ids (e.g. "1,2,3") as
// accepted by the -q/--queries CLI flag.
func ParseIDs(s string) ([]ID, error) {
	var ids []ID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("queries: invalid query id %q", part)
		}
		id := ID(n)
		if id != ActivePosts && id != Recommendations && id != SpamDetection {
			return nil, fmt.Errorf("queries: unknown query id %d (must be 1, 2, or 3)", n)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("queries: no query ids given")
	}
	return ids, nil
}

// Selection records which of the three queries are enabled for a run.
type Selection struct {
	enabled map[ID]struct{}
}

// NewSelection returns a Selection enabling exactly the given ids.
func NewSelection(ids []ID) Selection {
	s := Selection{enabled: make(map[ID]struct{}, len(ids))}
	for _, id := range ids {
		s.enabled[id] = struct{}{}
	}
	return s
}

// Enabled reports whether the given query was requested.
func (s Selection) Enabled(id ID) bool {
	_, ok := s.enabled[id]
	return ok
}

// PrintActivePosts renders one active-posts snapshot (query 1) in
// deterministic (sorted by post id) order.
func PrintActivePosts(snap activeposts.Snapshot) {
	fmt.Printf("[query 1] active posts @ %s\n", snap.At.UTC().Format("2006-01-02T15:04:05Z"))
	ids := make([]uint64, 0, len(snap.Posts))
	for id := range snap.Posts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		st := snap.Posts[id]
		fmt.Printf("  post %d: comments=%d replies=%d unique_people=%d\n",
			id, st.NumComments, st.NumReplies, len(st.UniquePeople))
	}
}

// PrintRecommendations renders one target's top-K recommendation snapshot
// (query 2).
func PrintRecommendations(snap recommend.Snapshot) {
	fmt.Printf("[query 2] recommendations for %d @ %s\n", snap.Target, snap.At.UTC().Format("2006-01-02T15:04:05Z"))
	for rank, s := range snap.TopK {
		fmt.Printf("  #%d: person=%d score=%d\n", rank+1, s.PersonId, s.Value)
	}
}

// PrintSpamFlag renders one spam-detector flag (query 3).
func PrintSpamFlag(detector string, personId uint64) {
	fmt.Printf("[query 3] spam flagged by %s: person=%d\n", detector, personId)
}
