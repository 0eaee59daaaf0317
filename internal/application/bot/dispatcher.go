package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dilly/tablebot/internal/infrastructure/logger"
)

const (
	// DefaultMaxConcurrent bounds messages handled at the same time
	DefaultMaxConcurrent = 4
	// DefaultMessageTimeout bounds one message end to end
	DefaultMessageTimeout = 2 * time.Minute
)

// ErrDispatcherClosed is returned by Dispatch after Shutdown
var ErrDispatcherClosed = errors.New("bot: dispatcher closed")

// MessageHandler handles one inbound message
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg IncomingMessage) error
}

// DispatcherConfig contains configuration for the dispatcher
type DispatcherConfig struct {
	MaxConcurrent  int
	MessageTimeout time.Duration
	Logger         *zap.Logger
}

// Dispatcher runs message handling in the background with bounded
// concurrency, so the webhook can acknowledge immediately.
type Dispatcher struct {
	handler MessageHandler
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher around handler
func NewDispatcher(handler MessageHandler, config *DispatcherConfig) *Dispatcher {
	if config == nil {
		config = &DispatcherConfig{}
	}
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	timeout := config.MessageTimeout
	if timeout <= 0 {
		timeout = DefaultMessageTimeout
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler: handler,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		timeout: timeout,
		logger:  log.Named("dispatcher"),
		baseCtx: baseCtx,
		cancel:  cancel,
	}
}

// Dispatch queues msg. The request context only contributes its values;
// its cancellation does not stop the handler.
func (d *Dispatcher) Dispatch(ctx context.Context, msg IncomingMessage) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go d.run(context.WithoutCancel(ctx), msg)
	return nil
}

func (d *Dispatcher) run(ctx context.Context, msg IncomingMessage) {
	defer d.wg.Done()
	log := logger.WithLogger(ctx, d.logger).With(zap.String("message_id", msg.ID))

	if err := d.sem.Acquire(d.baseCtx, 1); err != nil {
		log.Warn("Message dropped, dispatcher shutting down")
		return
	}
	defer d.sem.Release(1)

	msgCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	stop := context.AfterFunc(d.baseCtx, cancel)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while handling message",
				zap.Any("error", r),
				zap.Stack("stacktrace"))
		}
	}()

	if err := d.handler.HandleMessage(msgCtx, msg); err != nil {
		log.Warn("Message handling failed", zap.Error(err))
	}
}

// Wait blocks until every dispatched message is done or ctx expires
func (d *Dispatcher) Wait(ctx context.Context) error {
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

// Shutdown stops accepting messages and waits for in-flight ones. When ctx
// expires first, in-flight handlers are cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	err := d.Wait(ctx)
	d.cancel()
	if err != nil {
		d.logger.Warn("Dispatcher shutdown timed out, cancelling in-flight messages", zap.Error(err))
	}
	return err
}
