// Package recorder implements the non-blocking audit recorder: a bounded
// ring buffer in front of the sink, drained by a single background worker.
//
// Auditing is best-effort relative to the operation it observes. Record
// never fails the caller: if the sink is down the record waits in the
// buffer, and if the buffer saturates the oldest record is dropped and a
// metric emitted. The single worker preserves arrival order, which is what
// gives per-actor append ordering.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "vigil/pkg/platform/audit"
	"vigil/pkg/requestcontext"
)

var (
	recordsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_audit_records_accepted_total",
		Help: "Audit records accepted into the recorder buffer",
	})
	recordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_audit_records_dropped_total",
		Help: "Audit records dropped because the buffer was saturated",
	})
	recordsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_audit_records_appended_total",
		Help: "Audit records durably appended to the sink",
	})
	sinkRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_audit_sink_retries_total",
		Help: "Append attempts retried because the sink was unavailable",
	})
)

const (
	flushBatchSize  = 64
	initialBackoff  = 50 * time.Millisecond
	maxBackoff      = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Recorder accepts audit records without ever propagating sink failures back
// to the business operation being audited.
type Recorder struct {
	sink          audit.Sink
	buf           *RingBuffer
	logger        *slog.Logger
	flushInterval time.Duration
	notify        chan struct{}
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger attaches a structured logger for sink failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithFlushInterval overrides the periodic flush interval.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) { r.flushInterval = d }
}

// New constructs a recorder in front of the given sink. Run must be started
// for records to reach the sink.
func New(sink audit.Sink, capacity int, opts ...Option) *Recorder {
	r := &Recorder{
		sink:          sink,
		buf:           NewRingBuffer(capacity),
		flushInterval: time.Second,
		notify:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record accepts one audit record. It stamps ID and timestamp if unset,
// enqueues, and returns immediately. It never blocks on the sink and never
// returns an error to the caller.
func (r *Recorder) Record(ctx context.Context, rec audit.Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = requestcontext.Now(ctx)
	}
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.RequestID == "" {
		rec.RequestID = requestcontext.RequestID(ctx)
	}
	if rec.SourceIP == "" {
		rec.SourceIP = requestcontext.ClientIP(ctx)
	}

	recordsAccepted.Inc()
	if dropped := r.buf.Enqueue(rec); dropped > 0 {
		recordsDropped.Add(float64(dropped))
		if r.logger != nil {
			r.logger.Warn("audit buffer saturated, dropped oldest record")
		}
	}

	// Nudge the worker without blocking; a full notify channel already
	// means a wakeup is pending.
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Run drains the buffer into the sink until ctx is cancelled, then makes a
// final bounded drain attempt so accepted records survive clean shutdowns.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			_ = r.Flush(drainCtx)
			return ctx.Err()
		case <-r.notify:
			r.flush(ctx)
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

// Flush synchronously drains the buffer into the sink. Intended for tests
// and shutdown; normal operation relies on Run.
func (r *Recorder) Flush(ctx context.Context) error {
	for r.buf.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.flush(ctx)
	}
	return ctx.Err()
}

// flush moves one batch from the buffer to the sink, retrying each record
// with capped backoff while the sink is unavailable. Records are appended
// strictly in dequeue order.
func (r *Recorder) flush(ctx context.Context) {
	batch := r.buf.DequeueBatch(flushBatchSize)
	for _, rec := range batch {
		backoff := initialBackoff
		for {
			err := r.sink.Append(ctx, rec)
			if err == nil {
				recordsAppended.Inc()
				break
			}

			sinkRetries.Inc()
			if r.logger != nil {
				r.logger.Warn("audit sink append failed, retrying",
					"error", err,
					"record_id", rec.ID,
					"backoff", backoff.String(),
				)
			}

			select {
			case <-ctx.Done():
				// Give up on this batch; records are lost to the log
				// but the process is going down anyway.
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// BufferLen exposes the current buffer depth for health reporting.
func (r *Recorder) BufferLen() int { return r.buf.Len() }
