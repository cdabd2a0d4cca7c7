// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package presence provides a best-effort, ambient liveness announce layer
// modeled directly on the teacher repo's components.Worker: each
// pipeline worker optionally opens a *dda.Dda against a configured broker
// URL and publishes join/leave announcements so an operations dashboard
// elsewhere in the cluster can see which workers are alive. It never gates
// correctness: per spec.md §7, broker/transport errors are logged and do
// not stop the worker, and presence is simply disabled (not fatal) when no
// broker URL is configured.
package presence

import (
	"context"
	"time"

	"github.com/coatyio/dda/config"
	"github.com/coatyio/dda/dda"
	"github.com/coatyio/dda/services/com/api"
	"github.com/google/uuid"

	"github.com/dspa-project/engine/clog"
)

const (
	eventTypeAnnounceWorker = "dspa.presence.announceWorker"
)

var (
	dataJoin  = []byte("HELLO")
	dataLeave = []byte("BYE")
)

// Announcer publishes join/leave liveness events for one pipeline worker.
// A nil *Announcer (returned when no broker URL is configured) is safe to
// call every method on; they become no-ops.
type Announcer struct {
	*clog.CLogger
	id  string
	dda *dda.Dda
}

// Open connects to the DDA communication service at brokerUrl and returns
// an Announcer for the given pipeline worker index. If brokerUrl is empty,
// presence is disabled and every method on the returned Announcer is a
// no-op — this is not a startup failure, unlike the relational store
// bootstrap in C7.
func Open(brokerUrl string, worker int) (*Announcer, error) {
	if brokerUrl == "" {
		return nil, nil
	}

	id := uuid.NewString()
	a := &Announcer{CLogger: clog.New("presence[%d] ", worker), id: id}

	cfg := config.New()
	cfg.Services.Com.Url = brokerUrl
	cfg.Identity.Name = "dspa-worker"
	cfg.Identity.Id = id
	cfg.Apis.Grpc.Disabled = true
	cfg.Apis.GrpcWeb.Disabled = true

	d, err := dda.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Open(0); err != nil {
		return nil, err
	}
	a.dda = d
	return a, nil
}

// Announce publishes a join (alive) or leave event. Publish failures are
// logged, not propagated: presence is an ambient concern (spec.md §7).
func (a *Announcer) Announce(join bool) {
	if a == nil {
		return
	}
	data := dataJoin
	if !join {
		data = dataLeave
	}
	evt := api.Event{Type: eventTypeAnnounceWorker, Id: a.id, Source: "worker", Data: data}
	if err := a.dda.PublishEvent(evt); err != nil {
		a.Errorf("failed announcing %s: %v", string(data), err)
	}
}

// Close leaves (best-effort) and releases the DDA connection. ctx is only
// used to bound how long Close waits for the leave announcement to flush.
func (a *Announcer) Close(ctx context.Context) {
	if a == nil {
		return
	}
	a.Announce(false)
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
	}
	a.dda.Close()
}
