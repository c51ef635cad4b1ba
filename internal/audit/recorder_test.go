package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"gatekeeper/internal/models"
)

type captureSink struct {
	mu      sync.Mutex
	entries []*models.AuditLogEntry
}

func (s *captureSink) Write(_ context.Context, e *models.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

type failingSink struct{}

func (failingSink) Write(context.Context, *models.AuditLogEntry) error {
	return errors.New("sink down")
}

func TestActionOutcomeNames(t *testing.T) {
	if got := ActionLogin.Success(); got != "LOGIN_SUCCESS" {
		t.Fatalf("Success() = %q", got)
	}
	if got := ActionRefreshToken.Failed(); got != "REFRESH_TOKEN_FAILED" {
		t.Fatalf("Failed() = %q", got)
	}
}

func TestRecorderDeliversToEverySinkDespiteFailures(t *testing.T) {
	capture := &captureSink{}
	r := NewRecorder(Config{BufferSize: 8}, nil, failingSink{}, capture)

	r.Record(context.Background(), Event{
		ActorID:    "usr_1",
		Action:     ActionLogin.Failed(),
		EntityType: EntityUser,
		EntityID:   "usr_1",
		After:      FailurePayload(errors.New("Invalid email or password")),
		IP:         "10.0.0.1",
	})
	r.Close()

	if len(capture.entries) != 1 {
		t.Fatalf("captured %d entries, want 1", len(capture.entries))
	}
	e := capture.entries[0]
	if e.Action != "LOGIN_FAILED" || e.ActorUserID == nil || *e.ActorUserID != "usr_1" {
		t.Fatalf("entry = %+v", e)
	}
	if !strings.HasPrefix(e.ID, "aud_") {
		t.Fatalf("ID = %q, want aud_ prefix", e.ID)
	}
	if e.AfterJSON == nil || *e.AfterJSON != `{"error":"Invalid email or password"}` {
		t.Fatalf("AfterJSON = %v", e.AfterJSON)
	}
	if e.BeforeJSON != nil {
		t.Fatalf("BeforeJSON = %v, want nil", *e.BeforeJSON)
	}
}

func TestRecorderAnonymousActor(t *testing.T) {
	capture := &captureSink{}
	r := NewRecorder(Config{}, nil, capture)

	r.Record(context.Background(), Event{Action: ActionLogin.Failed(), EntityType: EntityUser})
	r.Close()

	if len(capture.entries) != 1 || capture.entries[0].ActorUserID != nil {
		t.Fatalf("entries = %+v, want one entry without actor", capture.entries)
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Write(context.Context, *models.AuditLogEntry) error {
	<-s.release
	return nil
}

func TestRecorderDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	r := NewRecorder(Config{BufferSize: 1}, nil, blockingSink{release: release})

	for i := 0; i < 10; i++ {
		r.Record(context.Background(), Event{Action: ActionLogout.Success(), EntityType: EntitySession})
	}
	close(release)
	r.Close()

	if r.Dropped() == 0 {
		t.Fatal("Dropped() = 0, want events dropped while the sink was blocked")
	}
}

func TestRecorderIgnoresEventsAfterClose(t *testing.T) {
	capture := &captureSink{}
	r := NewRecorder(Config{}, nil, capture)
	r.Close()
	r.Record(context.Background(), Event{Action: ActionLogin.Success()})

	if len(capture.entries) != 0 {
		t.Fatalf("captured %d entries after Close", len(capture.entries))
	}
	if r.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want the late event counted", r.Dropped())
	}
}

func TestRecorderAccountsForEveryEventAcrossClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		capture := &captureSink{}
		r := NewRecorder(Config{BufferSize: 64}, nil, capture)

		const writers, perWriter = 8, 50
		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < perWriter; i++ {
					r.Record(context.Background(), Event{Action: ActionLogin.Success(), EntityType: EntityUser})
				}
			}()
		}

		close(start)
		r.Close()
		wg.Wait()

		capture.mu.Lock()
		written := len(capture.entries)
		capture.mu.Unlock()
		if got := uint64(written) + r.Dropped(); got != writers*perWriter {
			t.Fatalf("round %d: written %d + dropped %d = %d, want %d",
				round, written, r.Dropped(), got, writers*perWriter)
		}
	}
}

func TestFileSinkWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewFileSink(&buf)
	actor := "usr_9"
	after := `{"role":"ADMIN"}`

	err := sink.Write(context.Background(), &models.AuditLogEntry{
		ID:          "aud_1",
		ActorUserID: &actor,
		Action:      "REGISTER_SUCCESS",
		EntityType:  EntityUser,
		AfterJSON:   &after,
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["action"] != "REGISTER_SUCCESS" || line["actor_user_id"] != "usr_9" || line["event"] != "audit" {
		t.Fatalf("line = %v", line)
	}
}
