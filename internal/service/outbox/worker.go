package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

var (
	publishResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outbox_publish_results_total",
		Help: "Outbox publish attempts grouped by result.",
	}, []string{"result"})
	pendingBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_outbox_pending_records",
		Help: "Current number of pending records in the transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending outbox record.",
	})
)

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithBatchSize задаёт размер батча из outbox.
func WithBatchSize(batchSize int) Option {
	return func(w *Worker) {
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

// WithMaxAttempts задаёт число попыток публикации перед MarkFailed.
func WithMaxAttempts(maxAttempts int) Option {
	return func(w *Worker) {
		if maxAttempts > 0 {
			w.maxAttempts = maxAttempts
		}
	}
}

// WithRetryBaseDelay задаёт базовый delay для exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) {
		if delay >= 0 {
			w.retryBaseDelay = delay
		}
	}
}

// Worker доставляет pending-сообщения из transactional outbox в брокер.
// Сообщение либо помечается sent, либо после исчерпания попыток failed;
// порядок внутри батча сохраняется.
type Worker struct {
	repo           domain.OutboxRepository
	publisher      domain.OutboxPublisher
	logger         *log.Entry
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		logger:         log.WithField("component", "outbox-worker"),
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(w)
	}
	return w
}

// Run запускает периодический polling outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один polling-цикл и возвращает число доставленных
// сообщений.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	w.refreshBacklog()

	batch, err := w.repo.PullPending(w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return 0
	}

	sent := 0
	for _, msg := range batch {
		if ctx.Err() != nil {
			break
		}

		if err := w.deliver(ctx, msg); err != nil {
			w.logger.WithError(err).WithFields(log.Fields{
				"outbox_id":  msg.ID,
				"event_type": msg.EventType,
			}).Error("outbox publish failed after retries")
			publishResults.WithLabelValues("failed").Inc()

			if markErr := w.repo.MarkFailed(msg.ID); markErr != nil {
				w.logger.WithError(markErr).WithField("outbox_id", msg.ID).Warn("failed to mark outbox as failed")
			}
			continue
		}

		if err := w.repo.MarkSent(msg.ID); err != nil {
			w.logger.WithError(err).WithField("outbox_id", msg.ID).Warn("failed to mark outbox as sent")
			continue
		}
		sent++
	}

	w.refreshBacklog()
	return sent
}

func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error
	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		if attempt > 0 && w.retryBaseDelay > 0 {
			delay := w.retryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if lastErr = w.publisher.Publish(msg); lastErr == nil {
			publishResults.WithLabelValues("sent").Inc()
			return nil
		}
		publishResults.WithLabelValues("retry_error").Inc()
	}
	return fmt.Errorf("publish failed after %d attempts: %w", w.maxAttempts, lastErr)
}

func (w *Worker) refreshBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingBacklog.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		oldestPendingAge.Set(0)
		return
	}
	age := time.Since(stats.OldestPendingAt).Seconds()
	if age < 0 {
		age = 0
	}
	oldestPendingAge.Set(age)
}
