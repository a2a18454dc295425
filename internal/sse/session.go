package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/yungbote/marketflow-backend/internal/logger"
)

// ErrSessionClosed is returned by any send after the terminal event, or
// after the client has gone away. The session never reopens.
var ErrSessionClosed = errors.New("streaming session closed")

// ErrStreamingUnsupported is returned when the response writer cannot
// flush incrementally.
var ErrStreamingUnsupported = errors.New("streaming unsupported by response writer")

type sessionState int

const (
	stateOpen sessionState = iota
	stateStreaming
	stateClosed
)

// Session frames one HTTP response as an event stream. Lifecycle:
// open -> streaming (zero or more chunk events) -> closed (exactly one
// result or error event). Chunks are flushed as they are sent so the
// caller observes progressive output, and nothing is ever written after
// the terminal event.
type Session struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	log     *logger.Logger
	state   sessionState
	done    chan struct{}
}

func NewSession(w http.ResponseWriter, r *http.Request, baseLog *logger.Logger) (*Session, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Session{
		w:       w,
		flusher: flusher,
		ctx:     r.Context(),
		log:     baseLog.With("component", "StreamingSession"),
		state:   stateOpen,
		done:    make(chan struct{}),
	}, nil
}

// Context is the request context: it is canceled when the client
// disconnects, and producers feeding this session must stop on it.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Done is closed once the terminal event has been written.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) SendChunk(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return ErrSessionClosed
	}
	if err := s.ctx.Err(); err != nil {
		// Transport is gone; nothing further can be delivered.
		s.state = stateClosed
		close(s.done)
		return ErrSessionClosed
	}
	s.state = stateStreaming
	return s.writeEvent("chunk", map[string]any{"text": text})
}

// SendResult writes the single terminal result event and closes the
// session.
func (s *Session) SendResult(payload any) error {
	return s.terminal("result", payload)
}

// SendError writes the single terminal error event and closes the
// session.
func (s *Session) SendError(err error) error {
	msg := "generation failed"
	if err != nil {
		msg = err.Error()
	}
	return s.terminal("error", map[string]any{"message": msg})
}

func (s *Session) terminal(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		s.log.Warn("Terminal event after session close dropped", "event", event)
		return ErrSessionClosed
	}
	s.state = stateClosed
	defer close(s.done)
	if err := s.ctx.Err(); err != nil {
		return ErrSessionClosed
	}
	return s.writeEvent(event, payload)
}

func (s *Session) writeEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
