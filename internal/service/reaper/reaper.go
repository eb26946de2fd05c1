package reaper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
)

const (
	defaultReapInterval = time.Minute
	defaultOrderTimeout = 5 * time.Minute

	timeoutReason = "Order timed out"
)

var (
	reaperRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sagashop_reaper_runs_total",
		Help: "Total number of timeout reaper runs grouped by result.",
	}, []string{"result"})
	reaperCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sagashop_reaper_cancelled_total",
		Help: "Total number of orders cancelled by the timeout reaper.",
	})
	reaperLastCancelled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sagashop_reaper_last_cancelled",
		Help: "Number of orders cancelled during the last reaper run.",
	})
	reaperUnannounced = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sagashop_reaper_unannounced",
		Help: "Cancelled orders whose ORDER_CANCELLED publish is still pending retry.",
	})
)

// Options задаёт параметры воркера.
type Options struct {
	Logger   *log.Entry
	Interval time.Duration
	Timeout  time.Duration
}

// Option настраивает Worker.
type Option func(*Options)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между циклами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithTimeout задаёт возраст PENDING-заказа, после которого он считается
// зависшим.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

// Worker — страховка живости саги: периодически отменяет PENDING-заказы,
// зависшие дольше таймаута (потерянное событие, упавший сервис, застрявший
// платёж), и публикует ORDER_CANCELLED, чтобы инвентарь снял резерв.
type Worker struct {
	orders    domain.OrderRepository
	publisher rabbit.EventPublisher
	logger    *log.Entry
	interval  time.Duration
	timeout   time.Duration

	// mu защищает unannounced: заказы уже CANCELLED в базе, но их
	// ORDER_CANCELLED ещё не ушёл. Публикация повторяется каждый цикл,
	// иначе инвентарь никогда не снимет резерв.
	mu          sync.Mutex
	unannounced []domain.Order
}

// NewWorker создаёт воркер отмены зависших заказов.
func NewWorker(orders domain.OrderRepository, publisher rabbit.EventPublisher, options ...Option) *Worker {
	opts := Options{
		Interval: defaultReapInterval,
		Timeout:  defaultOrderTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "order-reaper")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultReapInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultOrderTimeout
	}

	return &Worker{
		orders:    orders,
		publisher: publisher,
		logger:    logger,
		interval:  opts.Interval,
		timeout:   opts.Timeout,
	}
}

// Run запускает периодическую отмену до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.orders == nil {
		w.logger.Warn("order reaper is disabled: repo is nil")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reap(ctx)
		}
	}
}

func (w *Worker) reap(ctx context.Context) {
	cancelled, err := w.ReapOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		reaperRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("reaper run failed")
		return
	}

	reaperRunsTotal.WithLabelValues("ok").Inc()
	reaperLastCancelled.Set(float64(cancelled))
	if cancelled > 0 {
		w.logger.WithField("cancelled", cancelled).Info("expired orders cancelled")
	}
}

// ReapOnce отменяет все PENDING-заказы старше таймаута одним условным
// UPDATE и публикует ORDER_CANCELLED для каждого. Отмена и чтение затронутых
// строк выполняются одним запросом: конкурентный COMPLETED не может
// проскочить между ними. Неудачная публикация не теряется: заказ остаётся
// в очереди unannounced и переобъявляется на следующем цикле. Redelivery
// безопасна — release на стороне инвентаря идемпотентен.
func (w *Worker) ReapOnce(ctx context.Context) (int, error) {
	olderThan := time.Now().UTC().Add(-w.timeout)

	expired, err := w.orders.CancelExpired(olderThan, timeoutReason)
	if err != nil {
		return 0, err
	}
	for range expired {
		reaperCancelledTotal.Inc()
	}

	w.mu.Lock()
	toAnnounce := append(w.unannounced, expired...)
	w.unannounced = nil
	w.mu.Unlock()

	var failedPublish []domain.Order
	for _, order := range toAnnounce {
		env, err := rabbit.NewEnvelope(rabbit.EventTypeOrderCancelled, order.SagaID, order.TenantID, rabbit.OrderCancelledData{
			OrderID: order.ID,
			Reason:  timeoutReason,
		})
		if err != nil {
			w.logger.WithError(err).WithField("order_id", order.ID).Error("build ORDER_CANCELLED failed")
			continue
		}
		if err := w.publisher.Publish(ctx, env); err != nil {
			// Заказ уже CANCELLED в базе, повторной отмены не будет, а без
			// события инвентарь не снимет резерв. Поэтому уровень error и
			// повтор на следующем цикле.
			w.logger.WithError(err).WithField("order_id", order.ID).Error("publish ORDER_CANCELLED failed, will retry")
			failedPublish = append(failedPublish, order)
		}
	}

	w.mu.Lock()
	w.unannounced = append(failedPublish, w.unannounced...)
	reaperUnannounced.Set(float64(len(w.unannounced)))
	w.mu.Unlock()

	return len(expired), nil
}
