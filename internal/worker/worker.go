// Package worker consumes ingest requests from NATS and runs them through
// the ingest pipeline.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/myrag/myrag/internal/agent"
	"github.com/myrag/myrag/internal/natsutil"
)

// IngestRequest is the message body on the ingest subject
type IngestRequest struct {
	URLs []string `json:"urls"`
}

// IngestReply is sent back to the requester
type IngestReply struct {
	Inserted int      `json:"inserted"`
	Skipped  []string `json:"skipped"`
	Error    string   `json:"error"`
}

// Ingester runs an ingest for a list of URLs
type Ingester interface {
	Ingest(ctx context.Context, urls []string, progress agent.ProgressFunc) (*agent.IngestResult, error)
}

// Worker serves ingest requests on one queue group
type Worker struct {
	nc       *nats.Conn
	ingester Ingester
	subject  string
	queue    string
	logger   *slog.Logger
	sub      *nats.Subscription
}

// New creates a worker. Call Start to begin consuming.
func New(nc *nats.Conn, ingester Ingester, subject, queue string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		nc:       nc,
		ingester: ingester,
		subject:  subject,
		queue:    queue,
		logger:   logger,
	}
}

// Start subscribes to the ingest subject
func (w *Worker) Start() error {
	sub, err := natsutil.Serve(w.nc, w.subject, w.queue, w.handle)
	if err != nil {
		return fmt.Errorf("worker: subscribe %s: %w", w.subject, err)
	}
	w.sub = sub
	w.logger.Info("worker listening", "subject", w.subject, "queue", w.queue)
	return nil
}

// Stop drains the subscription so in-flight requests finish
func (w *Worker) Stop() error {
	if w.sub == nil {
		return nil
	}
	return w.sub.Drain()
}

func (w *Worker) handle(ctx context.Context, req IngestRequest) IngestReply {
	if len(req.URLs) == 0 {
		return IngestReply{Skipped: []string{}, Error: "urls must not be empty"}
	}

	w.logger.Info("ingest request received", "urls", len(req.URLs))
	res, err := w.ingester.Ingest(ctx, req.URLs, nil)
	if err != nil {
		w.logger.Error("ingest failed", "err", err)
		return IngestReply{Skipped: []string{}, Error: err.Error()}
	}
	return IngestReply{Inserted: res.Inserted, Skipped: res.Skipped}
}

// Submit sends an ingest request to a worker and waits for the reply
func Submit(ctx context.Context, nc *nats.Conn, subject string, urls []string) (*IngestReply, error) {
	reply, err := natsutil.Request[IngestRequest, IngestReply](ctx, nc, subject, IngestRequest{URLs: urls})
	if err != nil {
		return nil, fmt.Errorf("worker: request %s: %w", subject, err)
	}
	if reply.Error != "" {
		return &reply, fmt.Errorf("worker: ingest failed: %s", reply.Error)
	}
	return &reply, nil
}
