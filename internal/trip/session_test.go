package trip

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safedrive-monitor/internal/models"
	"safedrive-monitor/internal/rules"
)

type fakeChannel struct {
	events chan models.ClassificationEvent
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan models.ClassificationEvent, 16)}
}

func (f *fakeChannel) Events() <-chan models.ClassificationEvent { return f.events }
func (f *fakeChannel) Connected() bool                           { return true }

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []models.TripSubmission
}

func (f *fakeSubmitter) SubmitTrip(ctx context.Context, sub models.TripSubmission) (*models.TripResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
	return &models.TripResult{Status: "success", NewScore: 94}, nil
}

func (f *fakeSubmitter) submissions() []models.TripSubmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TripSubmission(nil), f.subs...)
}

func startSession(t *testing.T, ch *fakeChannel, sub Submitter, opts ...rules.Option) (*Session, chan error) {
	t.Helper()
	s := NewSession(Config{
		UserID:     "driver-1",
		Plate:      "TEST-0001",
		Channel:    ch,
		Submitter:  sub,
		EngineOpts: opts,
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return s, done
}

func TestTripChargesViolationOnce(t *testing.T) {
	ch := newFakeChannel()
	sub := &fakeSubmitter{}
	s, done := startSession(t, ch, sub)

	ch.events <- models.ClassificationEvent{ClassID: "class_2", Confidence: 0.9}
	require.Eventually(t, func() bool {
		return s.Snapshot().Restrictions.SpeedCeiling == 30
	}, time.Second, 5*time.Millisecond)

	for i := 0; i < 10; i++ {
		s.UpdateVehicle(models.VehicleState{Speed: 45, Steering: models.SteerStraight})
		time.Sleep(2 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return s.Snapshot().Violations == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	require.NoError(t, <-done)

	subs := sub.submissions()
	require.Len(t, subs, 1)
	require.Len(t, subs[0].Violations, 1)
	assert.Equal(t, models.ViolationOverspeed, subs[0].Violations[0].Type)
	assert.Equal(t, "driver-1", subs[0].UserID)
	assert.Equal(t, "TEST-0001", subs[0].Plate)
}

func TestTripPerfectDrivingBonus(t *testing.T) {
	ch := newFakeChannel()
	sub := &fakeSubmitter{}
	s, done := startSession(t, ch, sub)

	s.UpdateVehicle(models.VehicleState{Speed: 40, Steering: models.SteerStraight})
	require.Eventually(t, func() bool { return s.Snapshot().State.Speed == 40 }, time.Second, 5*time.Millisecond)

	s.Stop()
	require.NoError(t, <-done)

	subs := sub.submissions()
	require.Len(t, subs, 1)
	require.Len(t, subs[0].Violations, 1)
	assert.Equal(t, models.BonusPerfectDriving, subs[0].Violations[0].Type)
	assert.Negative(t, subs[0].Violations[0].ScoreDelta)
}

func TestExpiredEpisodeStopsCharging(t *testing.T) {
	ch := newFakeChannel()
	sub := &fakeSubmitter{}
	s, done := startSession(t, ch, sub, rules.WithLifetime(30*time.Millisecond))

	ch.events <- models.ClassificationEvent{ClassID: "class_2", Confidence: 0.9}
	require.Eventually(t, func() bool {
		return s.Snapshot().Restrictions.SpeedCeiling == 30
	}, time.Second, 5*time.Millisecond)

	// After auto-expiry the restriction set reverts to all-clear...
	require.Eventually(t, func() bool {
		return s.Snapshot().Restrictions.Clear()
	}, time.Second, 5*time.Millisecond)

	// ...and a qualifying speed no longer produces a violation.
	s.UpdateVehicle(models.VehicleState{Speed: 90, Steering: models.SteerStraight})
	require.Eventually(t, func() bool { return s.Snapshot().State.Speed == 90 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, s.Snapshot().Violations)

	s.Stop()
	require.NoError(t, <-done)
}

func TestNewSignReArmsViolations(t *testing.T) {
	ch := newFakeChannel()
	sub := &fakeSubmitter{}
	s, done := startSession(t, ch, sub, rules.WithCooldown(10*time.Millisecond))

	ch.events <- models.ClassificationEvent{ClassID: "class_2", Confidence: 0.9}
	require.Eventually(t, func() bool {
		return s.Snapshot().Restrictions.SpeedCeiling == 30
	}, time.Second, 5*time.Millisecond)

	s.UpdateVehicle(models.VehicleState{Speed: 45, Steering: models.SteerStraight})
	require.Eventually(t, func() bool { return s.Snapshot().Violations == 1 }, time.Second, 5*time.Millisecond)

	// A new episode of the same class, past the cooldown, charges afresh
	// when the breach is observed again.
	time.Sleep(15 * time.Millisecond)
	ch.events <- models.ClassificationEvent{ClassID: "class_2", Confidence: 0.9}
	require.Eventually(t, func() bool { return s.Snapshot().Violations == 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	require.NoError(t, <-done)
}

func TestSnapshotSighting(t *testing.T) {
	ch := newFakeChannel()
	s, done := startSession(t, ch, nil)

	ch.events <- models.ClassificationEvent{ClassID: "class_2", Confidence: 0.9}
	require.Eventually(t, func() bool { return s.Snapshot().Seen != nil }, time.Second, 5*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, "class_2", snap.Seen.Sign.ClassID)
	assert.True(t, snap.Connected)
	assert.NotEmpty(t, snap.Advice)

	// An empty classification clears the sighting but not the rules.
	ch.events <- models.ClassificationEvent{}
	require.Eventually(t, func() bool { return s.Snapshot().Seen == nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 30.0, s.Snapshot().Restrictions.SpeedCeiling)

	s.Stop()
	require.NoError(t, <-done)
}
