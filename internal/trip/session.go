// Package trip orchestrates one driving trip: it owns the event loop that
// serializes classification events, vehicle-state updates, and restriction
// expiry against the rule engine and violation evaluator.
package trip

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"safedrive-monitor/internal/evaluator"
	"safedrive-monitor/internal/hud"
	"safedrive-monitor/internal/models"
	"safedrive-monitor/internal/rules"
	"safedrive-monitor/internal/sampler"
)

// Classifier is the inbound side of the telemetry channel.
type Classifier interface {
	Events() <-chan models.ClassificationEvent
	Connected() bool
}

// Submitter receives the finalized trip ledger. Implemented by the account
// service client; submission failures never block trip end.
type Submitter interface {
	SubmitTrip(ctx context.Context, sub models.TripSubmission) (*models.TripResult, error)
}

// Snapshot is the HUD's read-only view of the live trip.
type Snapshot struct {
	Connected    bool
	State        models.VehicleState
	Restrictions models.RestrictionSet
	Seen         *rules.Sighting
	Advice       string
	Alerts       []models.ViolationRecord
	Violations   int
}

// Session runs one trip for one user and vehicle. The engine and evaluator
// are touched only from the session's event loop goroutine; everything else
// reaches the trip through channels or the mutex-guarded snapshot.
type Session struct {
	UserID string
	Plate  string

	engine    *rules.Engine
	eval      *evaluator.Evaluator
	alerts    *hud.Alerts
	channel   Classifier
	submitter Submitter
	loop      *sampler.Loop
	log       *slog.Logger

	states chan models.VehicleState

	mu     sync.Mutex
	cancel context.CancelFunc
	snap   Snapshot
	ledger []models.ViolationRecord
	speed  float64
}

// Config assembles a Session.
type Config struct {
	UserID    string
	Plate     string
	Channel   Classifier
	Source    sampler.FrameSource
	Sender    sampler.Sender
	Submitter Submitter

	// GracePeriod optionally suppresses violation checks for a window after
	// each new sign takes effect. Zero disables it.
	GracePeriod time.Duration
	AlertTTL    time.Duration
	SampleEvery time.Duration
	EngineOpts  []rules.Option
	Logger      *slog.Logger
}

// NewSession wires a trip from its collaborators. The telemetry channel is
// borrowed, not owned: it stays connected after the trip ends.
func NewSession(cfg Config) *Session {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		UserID:    cfg.UserID,
		Plate:     cfg.Plate,
		engine:    rules.NewEngine(append([]rules.Option{rules.WithLogger(log)}, cfg.EngineOpts...)...),
		eval:      evaluator.New(evaluator.WithGracePeriod(cfg.GracePeriod), evaluator.WithLogger(log)),
		alerts:    hud.NewAlerts(cfg.AlertTTL),
		channel:   cfg.Channel,
		submitter: cfg.Submitter,
		log:       log,
		states:    make(chan models.VehicleState, 8),
	}

	if cfg.Source != nil && cfg.Sender != nil {
		opts := []sampler.Option{sampler.WithLogger(log)}
		if cfg.SampleEvery > 0 {
			opts = append(opts, sampler.WithInterval(cfg.SampleEvery))
		}
		s.loop = sampler.NewLoop(cfg.Source, cfg.Sender, s.currentSpeed, opts...)
	}
	return s
}

// Run drives the trip until ctx is cancelled or Stop is called, then
// finalizes and submits the ledger. The returned error never reflects
// channel or submission failures.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	start := time.Now()
	s.log.Info("trip started", "user", s.UserID, "plate", s.Plate)

	g, gctx := errgroup.WithContext(runCtx)
	if s.loop != nil {
		g.Go(func() error { return s.loop.Run(gctx) })
	}
	g.Go(func() error { return s.eventLoop(gctx) })

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	s.finish(start)
	return nil
}

// Stop ends the trip: the sampling loop halts immediately, pending episode
// timers die with the event loop, and Run proceeds to finalization.
func (s *Session) Stop() {
	if s.loop != nil {
		s.loop.Stop()
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// UpdateVehicle feeds a new speed/steering reading into the trip.
func (s *Session) UpdateVehicle(state models.VehicleState) {
	s.mu.Lock()
	s.speed = state.Speed
	s.mu.Unlock()

	select {
	case s.states <- state:
	default:
		// The loop coalesces naturally: a dropped intermediate state is
		// superseded by the next reading.
	}
}

// Snapshot returns the HUD view of the trip.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snap
	snap.Connected = s.channel != nil && s.channel.Connected()
	snap.Alerts = s.alerts.Active()
	return snap
}

func (s *Session) currentSpeed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// eventLoop is the trip's single writer: only it touches the rule engine and
// the evaluator, so each evaluation observes the latest restriction set and
// the latest vehicle state with no stale-read window.
func (s *Session) eventLoop(ctx context.Context) error {
	state := models.VehicleState{Steering: models.SteerStraight}

	expiry := time.NewTimer(0)
	if !expiry.Stop() {
		<-expiry.C
	}
	defer expiry.Stop()

	var events <-chan models.ClassificationEvent
	if s.channel != nil {
		events = s.channel.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events:
			now := time.Now()
			out := s.engine.Observe(ev, now)
			if out.RuleChanged {
				s.eval.BeginEpisode(out.EpisodeID, now)
				resetTimer(expiry, out.ExpiresAt.Sub(now))
				s.evaluate(state, now)
			}

		case st := <-s.states:
			state = st
			s.evaluate(state, time.Now())

		case <-expiry.C:
			s.engine.ExpireIfDue(time.Now())
		}

		s.publish(state)
	}
}

func (s *Session) evaluate(state models.VehicleState, now time.Time) {
	for _, rec := range s.eval.Evaluate(state, s.engine.Active(), now) {
		s.alerts.Push(rec)
	}
}

func (s *Session) publish(state models.VehicleState) {
	records := s.eval.Ledger()

	s.mu.Lock()
	s.snap.State = state
	s.snap.Restrictions = s.engine.Active()
	s.snap.Seen = s.engine.Seen()
	s.snap.Advice = s.engine.Advice()
	s.snap.Violations = len(records)
	s.ledger = records
	s.mu.Unlock()
}

func (s *Session) finish(start time.Time) {
	s.engine.Reset()
	s.alerts.Clear()

	records := s.eval.Finalize(time.Now())
	s.mu.Lock()
	s.ledger = records
	s.mu.Unlock()

	sub := models.TripSubmission{
		UserID:     s.UserID,
		Plate:      s.Plate,
		Violations: records,
		Duration:   time.Since(start).Seconds(),
	}
	s.log.Info("trip finished", "user", s.UserID, "plate", s.Plate,
		"records", len(records), "duration_s", sub.Duration)

	if s.submitter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := s.submitter.SubmitTrip(ctx, sub)
	if err != nil {
		// Data loss is accepted over blocking the driver at trip end.
		s.log.Error("trip submission failed", "err", err)
		return
	}
	s.log.Info("trip submitted", "new_score", res.NewScore)
}

// Ledger exposes the records charged so far, for display between updates.
func (s *Session) Ledger() []models.ViolationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
