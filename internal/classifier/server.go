// Package classifier provides a stand-in sign classifier service speaking
// the cockpit's telemetry protocol, for local loops and tests.
package classifier

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"safedrive-monitor/internal/models"
	"safedrive-monitor/internal/telemetry"
)

// Detector inspects one sample and reports the sign it sees, or nil for
// none.
type Detector interface {
	Detect(sample models.TelemetrySample) *models.ClassificationEvent
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(models.TelemetrySample) *models.ClassificationEvent

// Detect implements Detector.
func (f DetectorFunc) Detect(sample models.TelemetrySample) *models.ClassificationEvent {
	return f(sample)
}

// Server answers each inbound {image, speed} sample with one classification
// response, exactly one response per request.
type Server struct {
	detector Detector
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer wraps a detector in the websocket protocol.
func NewServer(detector Detector, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{detector: detector, log: log}
}

// Handler returns the websocket endpoint handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("websocket upgrade failed", "err", err)
			return
		}
		defer conn.Close()
		s.log.Info("cockpit connected", "remote", conn.RemoteAddr())

		for {
			var sample models.TelemetrySample
			if err := conn.ReadJSON(&sample); err != nil {
				s.log.Info("cockpit disconnected", "remote", conn.RemoteAddr())
				return
			}
			if len(sample.Image) == 0 {
				continue
			}

			resp := telemetry.Response{
				Status: "ok",
				Result: s.detector.Detect(sample),
			}
			if err := conn.WriteJSON(resp); err != nil {
				s.log.Warn("response write failed", "err", err)
				return
			}
		}
	})
}

// Sequence is a scripted detector: each step fires once the given number of
// samples has been processed, in order. Between steps it reports nothing.
type Sequence struct {
	mu    sync.Mutex
	steps []SequenceStep
	seen  int
}

// SequenceStep emits ClassID at Confidence for every sample from AfterSample
// until the next step takes over.
type SequenceStep struct {
	AfterSample int
	ClassID     string
	Confidence  float64
}

// NewSequence builds a scripted detector. Steps must be ordered by
// AfterSample.
func NewSequence(steps []SequenceStep) *Sequence {
	return &Sequence{steps: steps}
}

// Detect implements Detector.
func (q *Sequence) Detect(sample models.TelemetrySample) *models.ClassificationEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seen++
	var current *SequenceStep
	for i := range q.steps {
		if q.seen >= q.steps[i].AfterSample {
			current = &q.steps[i]
		}
	}
	if current == nil || current.ClassID == "" {
		return nil
	}
	return &models.ClassificationEvent{ClassID: current.ClassID, Confidence: current.Confidence}
}
