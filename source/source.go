// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package source implements the partitioned, watermark-aware event source
// (C2): each worker consumes a disjoint subset of broker partitions assigned
// round-robin (worker i owns partitions {p : p mod W == i}), decodes every
// non-watermark record into an event.Event, and advances an event-time
// output capability whenever it observes a watermark record.
package source

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dspa-project/engine/clog"
	"github.com/dspa-project/engine/config"
	"github.com/dspa-project/engine/event"
)

// SourceError reports a decode failure of a non-watermark payload, or a
// broker transport error on a partition. Per
// spec.md §7 this is a soft error: it is logged and polling continues, the
// record is simply skipped.
type SourceError struct {
	Partition int
	Reason    string
}

func (e *SourceError) Error() string {
	return "source: partition " + itoa(e.Partition) + ": " + e.Reason
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Source consumes the worker's owned subset of partitions of a single Kafka
// topic, hands every decoded event to onEvent, and maintains a
// monotonically-advancing event-time capability, read via Capability.
type Source struct {
	*clog.CLogger

	readers    []*kafka.Reader
	maxDelay   time.Duration
	capability time.Time

	onEvent func(event.Event)
	onError func(error)
}

// New opens one kafka.Reader per partition owned by worker index `worker`
// out of `workers` total, per the round-robin assignment rule of C2.
func New(cfg *config.Config, worker, workers int, onEvent func(event.Event), onError func(error)) *Source {
	s := &Source{
		CLogger:  clog.New("source[%d] ", worker),
		maxDelay: cfg.MaxDelay,
		onEvent:  onEvent,
		onError:  onError,
	}
	for p := 0; p < cfg.NumPartitions; p++ {
		if p%workers != worker {
			continue
		}
		s.readers = append(s.readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:   cfg.BrokerAddrs,
			Topic:     cfg.Topic,
			Partition: p,
			MinBytes:  1,
			MaxBytes:  10e6,
		}))
	}
	return s
}

// Capability returns the source's current event-time output capability: no
// event with a timestamp earlier than this will be emitted hereafter.
func (s *Source) Capability() time.Time {
	return s.capability
}

// record pairs a raw message with the partition it came from, merged onto
// one channel so decode and capability advance stay single-threaded even
// though each partition is polled by its own goroutine (only the blocking
// network read is parallel, per spec.md §5's single-threaded-operator rule).
type record struct {
	partition int
	value     string
	err       error
}

// Run consumes every owned partition until ctx is cancelled or every reader
// reaches EOF, decoding each record and invoking onEvent or advancing the
// capability as appropriate. Broker transport errors are reported via
// onError and polling continues (spec.md §7): they never mutate state and
// never stop the worker. All decode and capability mutation happens on the
// calling goroutine; per-partition readers only feed a merge channel.
func (s *Source) Run(ctx context.Context) {
	merged := make(chan record)
	var live int
	for _, r := range s.readers {
		live++
		go s.poll(ctx, r, merged)
	}

	for live > 0 {
		rec, ok := <-merged
		if !ok {
			break
		}
		if rec.err != nil {
			if errors.Is(rec.err, context.Canceled) || errors.Is(rec.err, io.EOF) {
				live--
				continue
			}
			s.onError(&SourceError{Partition: rec.partition, Reason: rec.err.Error()})
			continue
		}
		s.handle(rec.partition, rec.value)
	}
}

func (s *Source) poll(ctx context.Context, r *kafka.Reader, merged chan<- record) {
	defer r.Close()
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			merged <- record{partition: r.Config().Partition, err: err}
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			continue
		}
		merged <- record{partition: r.Config().Partition, value: string(msg.Value)}
	}
}

func (s *Source) handle(partition int, line string) {
	if ts, ok := event.IsWatermark(line); ok {
		s.advance(time.Unix(ts, 0).Add(-s.maxDelay))
		return
	}
	e, err := event.Decode(line)
	if err != nil {
		s.onError(&SourceError{Partition: partition, Reason: err.Error()})
		return
	}
	s.onEvent(e)
}

// advance raises the capability to the max of its current value and t,
// never backwards (spec.md §4.2: "Capability never moves backwards").
func (s *Source) advance(t time.Time) {
	if t.After(s.capability) {
		s.capability = t
	}
}
