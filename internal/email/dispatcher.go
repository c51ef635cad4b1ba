package email

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type DispatcherConfig struct {
	QueueSize int
	// PerSecond caps outbound sends; Burst allows short spikes.
	PerSecond float64
	Burst     int
}

// Dispatcher sends queued messages on a background worker so request
// handlers never wait on SMTP.
type Dispatcher struct {
	mailer  Mailer
	limiter *rate.Limiter
	logger  *slog.Logger

	ch      chan Message
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(mailer Mailer, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		mailer:  mailer,
		limiter: rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.Burst),
		logger:  logger.With("component", "email"),
		ch:      make(chan Message, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for msg := range d.ch {
		if err := d.limiter.Wait(d.ctx); err != nil {
			d.logger.Warn("email dispatcher stopped before send", "to", msg.To, "error", err)
			continue
		}
		if err := d.mailer.Send(d.ctx, msg); err != nil {
			d.logger.Error("failed to send email", "to", msg.To, "subject", msg.Subject, "error", err)
		}
	}
}

// Enqueue reports whether the message was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}
	select {
	case d.ch <- msg:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("email queue full, dropping message", "to", msg.To, "subject", msg.Subject)
		return false
	}
}

// Close drains queued messages, waiting at most timeout before cancelling
// in-flight sends.
func (d *Dispatcher) Close(timeout time.Duration) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		d.cancel()
		<-done
	}
	d.cancel()
}

func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}
