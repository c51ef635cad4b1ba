// Package audit records security-relevant actions. Recording never blocks or
// fails the operation being audited.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"gatekeeper/internal/models"
)

// Event is one auditable outcome. Before and After are marshalled to JSON.
type Event struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Before     any
	After      any
	IP         string
	UserAgent  string
}

type Sink interface {
	Write(ctx context.Context, entry *models.AuditLogEntry) error
}

type Config struct {
	BufferSize int
}

type Recorder struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time

	ch      chan *models.AuditLogEntry
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// mu orders sends against Close so nothing lands in ch after the drain
	mu     sync.RWMutex
	closed bool
}

func NewRecorder(cfg Config, logger *slog.Logger, sinks ...Sink) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		sinks:  sinks,
		logger: logger.With("component", "audit"),
		now:    time.Now,
		ch:     make(chan *models.AuditLogEntry, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-r.done:
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *models.AuditLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, sink := range r.sinks {
		if err := sink.Write(ctx, entry); err != nil {
			r.logger.Warn("audit sink write failed", "action", entry.Action, "error", err)
		}
	}
}

// Record queues the event. When the queue is full or the recorder is closed
// the event is dropped and counted.
func (r *Recorder) Record(_ context.Context, e Event) {
	if r == nil {
		return
	}

	entry := &models.AuditLogEntry{
		ID:         newEntryID(),
		Action:     e.Action,
		EntityType: e.EntityType,
		IPAddress:  e.IP,
		UserAgent:  e.UserAgent,
		CreatedAt:  r.now().UTC(),
	}
	if e.ActorID != "" {
		entry.ActorUserID = &e.ActorID
	}
	if e.EntityID != "" {
		entry.EntityID = &e.EntityID
	}
	entry.BeforeJSON = r.marshal(e.Action, e.Before)
	entry.AfterJSON = r.marshal(e.Action, e.After)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.ch <- entry:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping entry", "action", e.Action)
	}
}

func (r *Recorder) marshal(action string, v any) *string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn("audit payload not serialisable", "action", action, "error", err)
		return nil
	}
	s := string(b)
	return &s
}

// Close stops accepting events and drains the queue.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "aud_" + uuid.NewString()
	}
	return "aud_" + id.String()
}

// FailurePayload is the After value recorded for a failed action.
func FailurePayload(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
