package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const sendTimeout = 10 * time.Second

// Dispatcher fans queued messages out to a fixed set of workers. Enqueue never
// blocks: when the queue is full or the dispatcher is shut down the message is
// dropped and logged.
type Dispatcher struct {
	queue   chan Message
	senders map[Channel]Sender
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines reading from a queue of queueSize.
func NewDispatcher(logger *zap.Logger, workers, queueSize int, senders map[Channel]Sender) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	d := &Dispatcher{
		queue:   make(chan Message, queueSize),
		senders: senders,
		logger:  logger,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work(i)
	}
	return d
}

// Enqueue schedules msg for delivery and reports whether it was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped, dispatcher closed",
			zap.String("channel", string(msg.Channel)),
			zap.String("event", msg.Event))
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn("notification dropped, queue full",
			zap.String("channel", string(msg.Channel)),
			zap.String("event", msg.Event),
			zap.Int("queue_size", cap(d.queue)))
		return false
	}
}

// Shutdown stops accepting messages and waits for the queue to drain or ctx
// to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(id, msg)
	}
}

func (d *Dispatcher) deliver(worker int, msg Message) {
	sender, ok := d.senders[msg.Channel]
	if !ok {
		d.logger.Error("no sender for channel",
			zap.String("channel", string(msg.Channel)),
			zap.String("event", msg.Event))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if _, err := sender.Send(ctx, msg); err != nil {
		d.logger.Error("notification failed",
			zap.Int("worker", worker),
			zap.String("channel", string(msg.Channel)),
			zap.String("to", msg.To),
			zap.String("event", msg.Event),
			zap.Error(err))
	}
}
