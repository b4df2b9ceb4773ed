package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/notification"
)

// Config holds dispatcher configuration
type Config struct {
	WorkerCount     int           // default: 2
	QueueSize       int           // default: 100
	DeliveryTimeout time.Duration // default: 30 seconds
}

var _ notification.Notifier = (*Dispatcher)(nil)

// Dispatcher delivers run summaries to a slow notifier (mail, broker) from background
// workers, so finishing a run never waits on them.
type Dispatcher struct {
	next   notification.Notifier
	config Config

	queue    chan notification.RunSummary
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewDispatcher creates a dispatcher and starts its workers.
func NewDispatcher(next notification.Notifier, cfg Config) *Dispatcher {
	// Set defaults
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 100
	}
	if cfg.DeliveryTimeout == 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}

	d := &Dispatcher{
		next:   next,
		config: cfg,
		queue:  make(chan notification.RunSummary, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	slog.Info("Notification dispatcher started", "workers", cfg.WorkerCount, "queue_size", cfg.QueueSize)
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case summary := <-d.queue:
			d.deliver(id, summary)
		case <-d.stopCh:
			// Drain what is already queued before exiting.
			for {
				select {
				case summary := <-d.queue:
					d.deliver(id, summary)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(worker int, summary notification.RunSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.DeliveryTimeout)
	defer cancel()

	if err := d.next.NotifyRunCompleted(ctx, summary); err != nil {
		slog.Error("Failed to deliver run summary", "worker", worker, "run_id", summary.RunID, "error", err)
		return
	}
	slog.Debug("Run summary delivered", "worker", worker, "run_id", summary.RunID, "type", summary.Type)
}

// NotifyRunCompleted queues the summary. When the queue is full it delivers inline.
func (d *Dispatcher) NotifyRunCompleted(ctx context.Context, summary notification.RunSummary) error {
	select {
	case <-d.stopCh:
		return d.next.NotifyRunCompleted(ctx, summary)
	default:
	}

	select {
	case d.queue <- summary:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return d.next.NotifyRunCompleted(ctx, summary)
	}
}

// Stop delivers the queued summaries and stops the workers.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	d.wg.Wait()
	slog.Info("Notification dispatcher stopped")
}
