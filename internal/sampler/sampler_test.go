package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safedrive-monitor/internal/models"
)

type recordingSender struct {
	mu      sync.Mutex
	samples []models.TelemetrySample
}

func (r *recordingSender) Send(s models.TelemetrySample) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return true
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

type flakySource struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *flakySource) CaptureFrame() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("source not ready")
	}
	return []byte("frame"), nil
}

func TestLoopSendsFrames(t *testing.T) {
	sender := &recordingSender{}
	source := &flakySource{}
	loop := NewLoop(source, sender, func() float64 { return 42 }, WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	require.Eventually(t, func() bool { return sender.count() >= 3 }, time.Second, time.Millisecond)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, []byte("frame"), sender.samples[0].Image)
	assert.Equal(t, 42.0, sender.samples[0].Speed)
}

func TestCaptureFailureSkipsTick(t *testing.T) {
	sender := &recordingSender{}
	source := &flakySource{fail: true}
	loop := NewLoop(source, sender, func() float64 { return 0 }, WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	// Ticks keep coming, nothing is sent, nothing errors.
	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.calls >= 5
	}, time.Second, time.Millisecond)
	assert.Zero(t, sender.count())

	// The next tick after recovery sends naturally.
	source.mu.Lock()
	source.fail = false
	source.mu.Unlock()
	require.Eventually(t, func() bool { return sender.count() > 0 }, time.Second, time.Millisecond)
}

func TestStopSuppressesFurtherSends(t *testing.T) {
	sender := &recordingSender{}
	loop := NewLoop(&flakySource{}, sender, func() float64 { return 0 }, WithInterval(time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	require.Eventually(t, func() bool { return sender.count() > 0 }, time.Second, time.Millisecond)
	loop.Stop()

	require.NoError(t, <-done)
	sent := sender.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, sent, sender.count())
}

func TestStaticSource(t *testing.T) {
	empty := &StaticSource{}
	_, err := empty.CaptureFrame()
	assert.Error(t, err)

	loaded := &StaticSource{Frame: []byte("frame")}
	data, err := loaded.CaptureFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("frame"), data)
}
