// Package telemetry implements best-effort, non-blocking reporting of request
// outcomes to an external analytics sink.
//
// Emit never blocks the caller and never fails the request: events go onto a
// buffered channel drained by a background worker, and a full queue drops the
// event. Delivery failures are logged and counted, nothing more.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"edge-proxy-go/internal/metrics"
)

// Event kinds.
const (
	KindRequest  = "request"
	KindRedirect = "redirect"
)

// Event is one request-outcome record sent to the analytics sink.
type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Hostname   string    `json:"hostname"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	Status     int       `json:"status"`
	Outcome    string    `json:"outcome"`
	DurationMs int64     `json:"duration_ms"`
	Country    string    `json:"country,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Referer    string    `json:"referer,omitempty"`
	Target     string    `json:"target,omitempty"` // redirect destination
	Timestamp  time.Time `json:"timestamp"`
}

// Emitter delivers events to the analytics sink. Implementations must not
// block and must swallow their own failures.
type Emitter interface {
	Emit(Event)
}

// Noop discards all events. Used when no sink is configured and in tests.
type Noop struct{}

// Emit discards the event.
func (Noop) Emit(Event) {}

// HTTPEmitter posts events as JSON to a fire-and-forget analytics endpoint.
type HTTPEmitter struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics

	events chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Emitter = (*HTTPEmitter)(nil)

// NewHTTPEmitter creates an emitter with the given queue size. Call Start to
// launch the delivery worker and Close to drain and stop it.
func NewHTTPEmitter(endpoint string, queueSize int, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *HTTPEmitter {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &HTTPEmitter{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "telemetry"),
		metrics:    m,
		events:     make(chan Event, queueSize),
	}
}

// Start launches the background delivery worker.
func (e *HTTPEmitter) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for ev := range e.events {
			e.deliver(ev)
		}
	}()
}

// Emit enqueues an event without blocking. When the queue is full the event
// is dropped and counted; the caller's response is never affected.
func (e *HTTPEmitter) Emit(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	select {
	case e.events <- ev:
	default:
		e.count("dropped")
		e.logger.Debug("telemetry queue full, event dropped", "kind", ev.Kind)
	}
}

// Close stops accepting events, drains the queue, and waits for the worker.
func (e *HTTPEmitter) Close() {
	e.once.Do(func() {
		close(e.events)
	})
	e.wg.Wait()
}

func (e *HTTPEmitter) deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		e.count("failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(data))
	if err != nil {
		e.count("failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.count("failed")
		e.logger.Debug("telemetry delivery failed", "err", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		e.count("failed")
		e.logger.Debug("telemetry sink rejected event", "status", resp.StatusCode)
		return
	}
	e.count("sent")
}

func (e *HTTPEmitter) count(result string) {
	if e.metrics != nil {
		e.metrics.TelemetryEvents.WithLabelValues(result).Inc()
	}
}
