// Package sampler drives the capture-and-send cycle that feeds the
// telemetry channel while a trip is active.
package sampler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"safedrive-monitor/internal/models"
)

// DefaultInterval approximates a 60 Hz display refresh. The cadence is
// deliberately faster than the classifier can answer; the channel's
// single-in-flight rule drops the surplus, which keeps perceived latency
// minimal without queueing.
const DefaultInterval = time.Second / 60

// FrameSource produces the current visual frame as an encoded image.
// Capture may fail transiently (source not ready, zero dimensions); the loop
// skips such ticks and the next tick retries naturally.
type FrameSource interface {
	CaptureFrame() ([]byte, error)
}

// Sender consumes sampled frames. Implemented by telemetry.Channel.
type Sender interface {
	Send(models.TelemetrySample) bool
}

// Loop repeatedly captures frames and hands them to the sender together with
// the live speed reading.
type Loop struct {
	source   FrameSource
	sender   Sender
	speed    func() float64
	interval time.Duration
	log      *slog.Logger

	stopped atomic.Bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithInterval overrides the sampling cadence.
func WithInterval(d time.Duration) Option { return func(l *Loop) { l.interval = d } }

// WithLogger overrides the loop's logger.
func WithLogger(lg *slog.Logger) Option { return func(l *Loop) { l.log = lg } }

// NewLoop builds a sampling loop. speed is read once per tick at send time.
func NewLoop(source FrameSource, sender Sender, speed func() float64, opts ...Option) *Loop {
	l := &Loop{
		source:   source,
		sender:   sender,
		speed:    speed,
		interval: DefaultInterval,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run samples until ctx is cancelled or Stop is called. It never returns an
// error from capture or send failures; both degrade to skipped ticks.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if l.stopped.Load() {
			return nil
		}

		frame, err := l.source.CaptureFrame()
		if err != nil {
			continue
		}
		// Re-check after the capture: Stop during a capture in flight must
		// still suppress the send.
		if l.stopped.Load() {
			return nil
		}
		l.sender.Send(models.TelemetrySample{Image: frame, Speed: l.speed()})
	}
}

// Stop halts the loop immediately. No send is issued after Stop returns,
// even if a capture was mid-flight when it was called.
func (l *Loop) Stop() { l.stopped.Store(true) }
