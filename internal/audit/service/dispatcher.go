package service

import (
	"context"
	"sync"
	"time"

	auditdomain "github.com/smallbiznis/buildledger/internal/audit/domain"
	"github.com/smallbiznis/buildledger/internal/config"
	"github.com/smallbiznis/buildledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

type DispatcherParams struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Log       *zap.Logger
	Service   auditdomain.Service
	Core      *config.CoreConfigHolder `optional:"true"`
	Metrics   *metrics.Core            `optional:"true"`
}

// Dispatcher writes security events on a single background worker. Delivery is
// best effort: events are dropped when the queue is full or after Stop.
type Dispatcher struct {
	log     *zap.Logger
	svc     auditdomain.Service
	metrics *metrics.Core
	queue   chan auditdomain.Event

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
	once    sync.Once
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	d := newDispatcher(p.Log, p.Service, p.Metrics, p.Core.Get().Audit.QueueSize)
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				d.Start()
				return nil
			},
			OnStop: d.Stop,
		})
	}
	return d
}

func newDispatcher(log *zap.Logger, svc auditdomain.Service, m *metrics.Core, size int) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		log:     log.Named("audit.dispatcher"),
		svc:     svc,
		metrics: m,
		queue:   make(chan auditdomain.Event, size),
		done:    make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	go d.run()
}

// Dispatch captures request metadata from ctx and enqueues the event without blocking.
func (d *Dispatcher) Dispatch(ctx context.Context, event auditdomain.Event) bool {
	if d == nil {
		return false
	}
	event = enrichFromContext(ctx, event)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(event, "dispatcher stopped")
		return false
	}

	select {
	case d.queue <- event:
		return true
	default:
		d.drop(event, "queue full")
		return false
	}
}

// Stop closes the queue and waits for queued events to drain or ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.write(event)
	}
}

func (d *Dispatcher) write(event auditdomain.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("security event writer panicked", zap.String("action", event.Action), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := d.svc.LogSecurityEvent(ctx, event); err != nil {
		d.log.Warn("security event not persisted", zap.String("action", event.Action), zap.Error(err))
	}
}

func (d *Dispatcher) drop(event auditdomain.Event, reason string) {
	d.metrics.RecordAuditDropped()
	d.log.Warn("security event dropped", zap.String("action", event.Action), zap.String("reason", reason))
}

var _ auditdomain.Dispatcher = (*Dispatcher)(nil)
