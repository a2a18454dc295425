package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/marketflow-backend/internal/logger"
)

func newTestSession(t *testing.T) (*Session, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/generate", nil)
	s, err := NewSession(w, r, logger.NewNop())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s, w
}

type noFlushWriter struct {
	header http.Header
}

func (w *noFlushWriter) Header() http.Header       { return w.header }
func (w *noFlushWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *noFlushWriter) WriteHeader(statusCode int)  {}

func TestNewSession_RequiresFlusher(t *testing.T) {
	r := httptest.NewRequest("POST", "/generate", nil)
	_, err := NewSession(&noFlushWriter{header: http.Header{}}, r, logger.NewNop())
	if !errors.Is(err, ErrStreamingUnsupported) {
		t.Fatalf("expected ErrStreamingUnsupported, got %v", err)
	}
}

func TestSession_ChunksThenResultInOrder(t *testing.T) {
	s, w := newTestSession(t)

	if err := s.SendChunk("hello "); err != nil {
		t.Fatalf("SendChunk failed: %v", err)
	}
	if err := s.SendChunk("world"); err != nil {
		t.Fatalf("SendChunk failed: %v", err)
	}
	if err := s.SendResult(map[string]any{"content": "hello world"}); err != nil {
		t.Fatalf("SendResult failed: %v", err)
	}

	body := w.Body.String()
	first := strings.Index(body, `"text":"hello "`)
	second := strings.Index(body, `"text":"world"`)
	final := strings.Index(body, "event: result")
	if first == -1 || second == -1 || final == -1 {
		t.Fatalf("missing events in body: %q", body)
	}
	if !(first < second && second < final) {
		t.Fatalf("events out of order: %q", body)
	}
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
}

func TestSession_RejectsSendsAfterTerminal(t *testing.T) {
	s, w := newTestSession(t)

	if err := s.SendResult(map[string]any{"content": "done"}); err != nil {
		t.Fatalf("SendResult failed: %v", err)
	}
	if err := s.SendChunk("late"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := s.SendError(errors.New("late error")); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := s.SendResult(nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}

	body := w.Body.String()
	if strings.Count(body, "event: ") != 1 {
		t.Fatalf("expected exactly one event after terminal, got body %q", body)
	}
	if strings.Contains(body, "late") {
		t.Fatalf("post-terminal payload leaked into body: %q", body)
	}
}

func TestSession_ErrorIsTerminal(t *testing.T) {
	s, w := newTestSession(t)

	if err := s.SendChunk("partial"); err != nil {
		t.Fatalf("SendChunk failed: %v", err)
	}
	if err := s.SendError(errors.New("provider unavailable")); err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	body := w.Body.String()
	if !strings.Contains(body, "event: error") {
		t.Fatalf("missing error event: %q", body)
	}
	if !strings.Contains(body, "provider unavailable") {
		t.Fatalf("missing error message: %q", body)
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("expected done channel closed after terminal event")
	}
}

func TestSession_ClosesOnCanceledContext(t *testing.T) {
	w := httptest.NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest("POST", "/generate", nil).WithContext(ctx)
	s, err := NewSession(w, r, logger.NewNop())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	cancel()

	if err := s.SendChunk("after disconnect"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if strings.Contains(w.Body.String(), "after disconnect") {
		t.Fatalf("chunk written after disconnect: %q", w.Body.String())
	}
	if err := s.SendResult(nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
