package flagrelay

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/foresightmobile/flagrelay/internal/backoff"
)

// StreamEvent is one server-sent event from the push channel.
type StreamEvent struct {
	Type string
	Data []byte
}

// EventHandler consumes stream events. It is invoked from the stream's own
// goroutine, one event at a time.
type EventHandler func(event StreamEvent)

// Streamer is the push-update channel contract: a long-lived connection
// delivering flag-change events, independent of the polling client.
type Streamer interface {
	Start(fn EventHandler)
	Stop()
}

// Stream is an SSE implementation of Streamer. Its transport is built from
// the same NetworkConfig as the polling client, so streaming and polling
// share identical network policy; the session is rebuilt on reconnect
// whenever the configuration changed.
type Stream struct {
	netConfig  *NetworkConfig
	url        string
	credential string
	logger     Logger
	metrics    *MetricsCollector

	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	jitter         float64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	session *session
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithStreamLogger attaches a logger for connection lifecycle messages.
func WithStreamLogger(logger Logger) StreamOption {
	return func(s *Stream) {
		s.logger = logger
	}
}

// WithStreamMetrics attaches a metrics collector for reconnect accounting.
func WithStreamMetrics(mc *MetricsCollector) StreamOption {
	return func(s *Stream) {
		s.metrics = mc
	}
}

// WithStreamBackoff tunes the reconnect delay schedule.
func WithStreamBackoff(initial, max time.Duration, multiplier, jitter float64) StreamOption {
	return func(s *Stream) {
		s.initialBackoff = initial
		s.maxBackoff = max
		s.multiplier = multiplier
		s.jitter = jitter
	}
}

// NewStream creates a push-update channel for the given SSE endpoint.
func NewStream(netConfig *NetworkConfig, rawURL, credential string, opts ...StreamOption) *Stream {
	if netConfig == nil {
		netConfig = NewNetworkConfig()
	}
	s := &Stream{
		netConfig:      netConfig,
		url:            rawURL,
		credential:     credential,
		initialBackoff: time.Second,
		maxBackoff:     time.Minute,
		multiplier:     2.0,
		jitter:         0.1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the connection and delivers events to fn until Stop is called.
// The connection is re-established with capped exponential backoff after any
// failure; the handler never sees partial events.
func (s *Stream) Start(fn EventHandler) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go s.run(ctx, fn, done)
}

// Stop tears the connection down. It blocks until the stream goroutine exits.
func (s *Stream) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Stream) run(ctx context.Context, fn EventHandler, done chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		delivered, err := s.connectOnce(ctx, fn)
		if ctx.Err() != nil {
			return
		}
		if delivered {
			attempt = 0
		}
		if err != nil && s.logger != nil {
			s.logger.Warn("Stream connection lost", "url", s.url, "error", err.Error())
		}
		if s.metrics != nil {
			s.metrics.RecordStreamReconnect()
		}

		delay := backoff.Delay(attempt, s.initialBackoff, s.maxBackoff, s.multiplier, s.jitter)
		attempt++

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// connectOnce runs a single connection lifetime. It reports whether any
// event was delivered, which resets the backoff schedule.
func (s *Stream) connectOnce(ctx context.Context, fn EventHandler) (bool, error) {
	sess := s.sessionForConnect()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return false, &ClientError{Type: ErrorTypeConstruction, Message: "could not build stream request", Cause: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("X-Environment-Key", s.credential)
	for k, v := range sess.settings.AdditionalHeaders {
		req.Header.Set(k, v)
	}

	resp, err := sess.httpClient.Do(req)
	if err != nil {
		return false, &ClientError{Type: ErrorTypeStream, Message: "stream connect failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, &ClientError{Type: ErrorTypeStream, Message: "unexpected stream status", StatusCode: resp.StatusCode}
	}

	delivered := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Bytes()
		switch {
		case len(line) == 0:
			if data.Len() > 0 {
				event := StreamEvent{Type: eventType, Data: append([]byte(nil), data.Bytes()...)}
				if event.Type == "" {
					event.Type = "message"
				}
				fn(event)
				delivered = true
			}
			eventType = ""
			data.Reset()
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimSpace(line[len("data:"):]))
		case bytes.HasPrefix(line, []byte(":")):
			// Comment / keep-alive line.
		}
	}

	if err := scanner.Err(); err != nil {
		return delivered, &ClientError{Type: ErrorTypeStream, Message: "stream read failed", Cause: err}
	}
	return delivered, nil
}

// sessionForConnect rebuilds the stream's session when the shared
// NetworkConfig changed since the last connect. Unlike the polling session,
// the overall client timeout is cleared so the exchange can stay open
// indefinitely; the request timeout bounds only the response headers.
func (s *Stream) sessionForConnect() *session {
	ns := s.netConfig.Snapshot()
	fp := ns.fingerprint()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.fingerprint == fp {
		return s.session
	}

	sess := newSession(ns)
	sess.httpClient.Timeout = 0
	if t, ok := sess.httpClient.Transport.(*http.Transport); ok && ns.RequestTimeout > 0 {
		t.ResponseHeaderTimeout = ns.RequestTimeout
	}
	s.session = sess
	if s.logger != nil {
		s.logger.Debug("Rebuilt stream session", "sessionID", sess.id)
	}
	return sess
}
