// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package worker wires one worker's full operator graph together: C2 → C3 →
// C4 → {C6, C7}, and C2 → {C9 frequency, C9 uniqueness} in parallel. It is
// the Go-native equivalent of the teacher's components.Worker — a
// long-running component with its own identity, started and stopped the
// same way (context cancellation, a completed channel) — but instead of
// dispatching named partial computations received over DDA, it runs the
// identical stream-processing graph every worker in the cluster runs.
package worker

import (
	"context"
	"time"

	"github.com/dspa-project/engine/clog"
	"github.com/dspa-project/engine/config"
	"github.com/dspa-project/engine/db"
	"github.com/dspa-project/engine/event"
	"github.com/dspa-project/engine/exchange"
	"github.com/dspa-project/engine/metrics"
	"github.com/dspa-project/engine/operators/activeposts"
	"github.com/dspa-project/engine/operators/posttree"
	"github.com/dspa-project/engine/operators/recommend"
	"github.com/dspa-project/engine/operators/spam"
	"github.com/dspa-project/engine/presence"
	"github.com/dspa-project/engine/queries"
	"github.com/dspa-project/engine/router"
	"github.com/dspa-project/engine/source"
)

// Worker owns one shared-nothing replica of the operator graph. Per
// spec.md §5, no state here is shared with any other Worker; the only
// cross-worker channels are the exchange.Fabric values passed in at
// construction.
type Worker struct {
	*clog.CLogger

	index, total int
	cfg          *config.Config
	sel          queries.Selection

	src        *source.Source
	router     *router.Router
	recFabric  *exchange.Fabric[posttree.RecommendationUpdate]
	spamFabric *exchange.Fabric[event.Event]

	tree          *posttree.Operator
	active        *activeposts.Operator
	targets       map[uint64]*recommend.TargetEngine
	freq          *spam.FrequencyDetector
	uniq          *spam.UniquenessDetector
	frontierGC    time.Time
	lastGCDropped uint64

	announcer *presence.Announcer
	metrics   *metrics.Worker
}

// New constructs one worker's operator graph. fabric carries C3's
// broadcast/partitioned event exchange; recFabric broadcasts every
// RecommendationUpdate to every worker, since a target's recommendation
// engine lives wherever PartitionOf(target) lands while the update itself
// is only produced on whichever worker owns the referenced post's tree
// (spec.md §4.7: "every worker observes all events it needs"); spamFabric
// re-partitions the raw event stream by person id so C9's per-person burst
// and uniqueness state is never split across workers. store may be nil if
// query 2 is not selected (no bootstrap needed).
func New(cfg *config.Config, sel queries.Selection, index, total int,
	fabric *exchange.Fabric[event.Event],
	recFabric *exchange.Fabric[posttree.RecommendationUpdate],
	spamFabric *exchange.Fabric[event.Event],
	store *db.Store) (*Worker, error) {
	w := &Worker{
		CLogger:    clog.New("worker[%d] ", index),
		index:      index,
		total:      total,
		cfg:        cfg,
		sel:        sel,
		recFabric:  recFabric,
		spamFabric: spamFabric,
		metrics:    metrics.ForWorker(index),
	}

	w.router = router.New(fabric, index)
	w.active = activeposts.New(cfg.ActivePostsWindow, cfg.ActiveWindow)
	w.tree = posttree.New(w.onStat, w.onRec)

	w.targets = make(map[uint64]*recommend.TargetEngine)
	if sel.Enabled(queries.Recommendations) {
		for _, target := range cfg.RecommendationClients {
			if exchange.PartitionOf(target, total) != index {
				continue
			}
			eng := recommend.NewTargetEngine(target, cfg)
			if store != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				err := eng.Bootstrap(ctx, store)
				cancel()
				if err != nil {
					return nil, err
				}
			}
			w.targets[target] = eng
		}
	}

	w.freq = spam.NewFrequencyDetector(cfg, func(p uint64) {
		w.metrics.SpamFlagged("frequency")
		queries.PrintSpamFlag("frequency", p)
	})
	w.uniq = spam.NewUniquenessDetector(cfg, func(p uint64) {
		w.metrics.SpamFlagged("uniqueness")
		queries.PrintSpamFlag("uniqueness", p)
	})

	announcer, err := presence.Open(cfg.PresenceURL, index)
	if err != nil {
		return nil, err
	}
	w.announcer = announcer

	w.src = source.New(cfg, index, total, w.onEvent, w.onSourceError)

	return w, nil
}

func (w *Worker) onStat(u posttree.StatUpdate) {
	if w.sel.Enabled(queries.ActivePosts) {
		w.active.Process(u)
	}
}

// onRec broadcasts a RecommendationUpdate to every worker rather than
// applying it to w.targets directly: the update is only produced on
// whichever worker owns the referenced post's tree, which is generally not
// the worker that owns the target's recommendation engine (targets are
// assigned by an independent round-robin on person id). See recvRec.
func (w *Worker) onRec(u posttree.RecommendationUpdate) {
	if !w.sel.Enabled(queries.Recommendations) {
		return
	}
	w.recFabric.Broadcast(u)
}

// recvRec applies a broadcast RecommendationUpdate to this worker's own
// locally-owned targets, filtering out everyone else's.
func (w *Worker) recvRec(u posttree.RecommendationUpdate) {
	for _, eng := range w.targets {
		eng.Process(u)
	}
}

func (w *Worker) onSourceError(err error) {
	w.Errorf("source error: %v", err)
}

// onEvent is the source's per-event callback. Everything is routed through
// the exchange fabric rather than processed locally: C9's detectors need
// the event re-partitioned by person id (spamFabric) since the CSV
// producer round-robins across Kafka partitions without person-awareness,
// so one person's activity can otherwise split across workers; everything
// else is routed by router (C3) to reach C4 on whichever worker owns its
// tree.
func (w *Worker) onEvent(e event.Event) {
	w.metrics.EventDecoded()

	if w.sel.Enabled(queries.SpamDetection) {
		w.spamFabric.Send(exchange.PartitionOf(e.PersonId, w.total), e)
	}

	if w.sel.Enabled(queries.ActivePosts) || w.sel.Enabled(queries.Recommendations) {
		w.router.Route(e, w.total)
	}
}

// Start runs the worker until ctx is cancelled or its source partitions
// reach EOF, then signals completed. The source runs its own poll
// goroutines (blocking network I/O only, per source.Source), but every
// operator mutation — post-tree, active-posts, recommendation targets —
// happens on this single goroutine's select loop, preserving the
// single-threaded-per-worker operator discipline of spec.md §5.
func (w *Worker) Start(ctx context.Context, completed chan<- struct{}) {
	defer func() {
		w.announcer.Close(context.Background())
		completed <- struct{}{}
	}()

	w.announcer.Announce(true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.src.Run(ctx)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	recv := w.router.Recv()
	recRecv := w.recFabric.Recv(w.index)
	spamRecv := w.spamFabric.Recv(w.index)
	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case <-done:
			return
		case e, ok := <-recv:
			if !ok {
				return
			}
			w.tree.Process(e)
		case u, ok := <-recRecv:
			if !ok {
				return
			}
			w.recvRec(u)
		case e, ok := <-spamRecv:
			if !ok {
				return
			}
			w.freq.Process(e)
			w.uniq.Process(e)
		case <-ticker.C:
			w.tick()
		}
	}
}

// tick drives the frontier-dependent side of every operator: garbage
// collection of stale deferred post-tree events, and the window-notify
// operators' scheduled notifications, all gated on the source's current
// event-time capability (spec.md §4.2, §4.4, §4.6, §4.7).
func (w *Worker) tick() {
	frontier := w.src.Capability()
	if !frontier.After(w.frontierGC) {
		return
	}
	w.frontierGC = frontier
	w.metrics.Capability(frontier.Unix())

	w.tree.GC(frontier)
	if dropped := w.tree.GCDropped(); dropped > w.lastGCDropped {
		w.metrics.GCDropped(dropped - w.lastGCDropped)
		w.lastGCDropped = dropped
	}

	if w.sel.Enabled(queries.ActivePosts) {
		for _, snap := range w.active.MaybeNotify(frontier) {
			queries.PrintActivePosts(snap)
		}
	}

	if w.sel.Enabled(queries.Recommendations) {
		for _, eng := range w.targets {
			for _, snap := range eng.MaybeNotify(frontier) {
				queries.PrintRecommendations(snap)
			}
		}
	}
}
