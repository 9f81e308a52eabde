package recorder

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"lokalhub/backend/internal/graph"
	"lokalhub/backend/pkg/logger"
)

// Sink is the slice of the repository the recorder writes through
type Sink interface {
	RecordActivity(ctx context.Context, a *graph.Activity) error
	CreateNotification(ctx context.Context, n *graph.Notification) (*graph.Notification, error)
}

// Recorder dispatches audit-trail and notification writes off the caller's
// request path. Writes are best-effort: a full queue drops the record and a
// failed write is logged and discarded. Neither outcome ever reaches the
// caller of the primary operation.
type Recorder struct {
	sink    Sink
	queue   chan job
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// New starts a recorder with a bounded queue drained by a single worker
func New(sink Sink, queueSize int, timeout time.Duration) *Recorder {
	if queueSize < 1 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Recorder{
		sink:    sink,
		queue:   make(chan job, queueSize),
		timeout: timeout,
		logger:  logger.Named("recorder"),
		cancel:  cancel,
	}

	r.wg.Add(1)
	go r.worker(ctx)
	return r
}

func (r *Recorder) worker(ctx context.Context) {
	defer r.wg.Done()
	for j := range r.queue {
		jobCtx, cancel := context.WithTimeout(ctx, r.timeout)
		if err := j.run(jobCtx); err != nil {
			r.logger.Warn("Best-effort write failed",
				zap.String("job", j.name),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Activity enqueues an audit record. Never blocks; drops when the queue is
// full.
func (r *Recorder) Activity(actType, action, userID, targetID, targetType, details string) {
	a := &graph.Activity{
		Type:       actType,
		Action:     action,
		UserID:     userID,
		TargetID:   targetID,
		TargetType: targetType,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
	r.enqueue(job{
		name: "activity",
		run: func(ctx context.Context) error {
			return r.sink.RecordActivity(ctx, a)
		},
	})
}

// Notify enqueues an inbox notification. Never blocks; drops when the queue
// is full.
func (r *Recorder) Notify(userID, message, notifType, link string) {
	n := &graph.Notification{
		UserID:  userID,
		Message: message,
		Type:    notifType,
		Link:    link,
	}
	r.enqueue(job{
		name: "notification",
		run: func(ctx context.Context) error {
			_, err := r.sink.CreateNotification(ctx, n)
			return err
		},
	})
}

func (r *Recorder) enqueue(j job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Warn("Recorder closed, dropping record", zap.String("job", j.name))
		return
	}
	select {
	case r.queue <- j:
	default:
		r.logger.Warn("Recorder queue full, dropping record", zap.String("job", j.name))
	}
}

// Close stops accepting records and drains what is already queued, up to
// the context deadline
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}
