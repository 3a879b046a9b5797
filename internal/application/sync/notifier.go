// Package sync keeps the downstream point-of-sale service convergent with
// the inventory of record: an event-driven webhook push for low latency and
// a periodic reconciliation sweep for eventual correctness.
package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/beataims/backend/internal/domain/inventory"
	domainsync "github.com/beataims/backend/internal/domain/sync"
)

// Notifier pushes committed stock snapshots to the downstream service over a
// bounded queue with a single consumer. Enqueueing never blocks the sales
// path: when the queue is full the snapshot is dropped with a warning and
// the reconciliation sweep repairs the gap.
type Notifier struct {
	remote      domainsync.RemoteNotifier
	queue       chan inventory.StockChanged
	pushTimeout time.Duration
	log         *zap.Logger

	startOnce gosync.Once
	stopOnce  gosync.Once
	stopCh    chan struct{}
	wg        gosync.WaitGroup
}

// NewNotifier creates a notifier with the given queue capacity and per-push
// timeout.
func NewNotifier(remote domainsync.RemoteNotifier, queueSize int, pushTimeout time.Duration, log *zap.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = 256
	}
	if pushTimeout <= 0 {
		pushTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		remote:      remote,
		queue:       make(chan inventory.StockChanged, queueSize),
		pushTimeout: pushTimeout,
		log:         log.Named("notifier"),
		stopCh:      make(chan struct{}),
	}
}

// Publish enqueues a snapshot without blocking. Implements the stock event
// sink used by the fulfillment and stock services.
func (n *Notifier) Publish(event inventory.StockChanged) {
	select {
	case n.queue <- event:
	default:
		n.log.Warn("notification queue full, dropping snapshot",
			zap.Uint("product_id", event.ProductID),
			zap.Int("quantity", event.Quantity))
	}
}

// Start launches the consumer goroutine.
func (n *Notifier) Start(ctx context.Context) {
	n.startOnce.Do(func() {
		n.wg.Add(1)
		go n.consume(ctx)
	})
}

// Stop drains nothing: it halts the consumer and returns once it exits.
// Pending snapshots are abandoned; the sweep is the backstop.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.stopCh) })
	n.wg.Wait()
}

func (n *Notifier) consume(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case event := <-n.queue:
			n.push(ctx, event)
		case <-n.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// push delivers one snapshot. Failures are logged and swallowed: a lost
// push only delays convergence until the next sweep.
func (n *Notifier) push(ctx context.Context, event inventory.StockChanged) {
	pushCtx, cancel := context.WithTimeout(ctx, n.pushTimeout)
	defer cancel()

	if err := n.remote.PushStockUpdate(pushCtx, event); err != nil {
		n.log.Warn("stock push failed",
			zap.Uint("product_id", event.ProductID),
			zap.Int("quantity", event.Quantity),
			zap.Error(err))
		return
	}
	n.log.Debug("stock snapshot pushed",
		zap.Uint("product_id", event.ProductID),
		zap.Int("quantity", event.Quantity))
}
