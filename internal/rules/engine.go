// Package rules turns inbound sign classifications into a time-bounded
// active restriction set with per-class cooldown and auto-expiry.
package rules

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"safedrive-monitor/internal/models"
	"safedrive-monitor/internal/signs"
)

const (
	// DefaultCooldown suppresses rule churn from re-detecting the same
	// physical sign across consecutive frames.
	DefaultCooldown = 2000 * time.Millisecond

	// DefaultLifetime is how long a restriction set stays active with no new
	// triggering sign before reverting to all-clear.
	DefaultLifetime = 5000 * time.Millisecond

	// AdvisoryConfidence gates only the surfaced guidance text, never rule
	// application.
	AdvisoryConfidence = 0.4
)

// Sighting is the "currently seen" HUD indicator: the last sign the
// classifier reported, at whatever confidence.
type Sighting struct {
	Sign       signs.Descriptor
	Confidence float64
}

// Outcome reports what one observed classification did to the engine.
type Outcome struct {
	// RuleChanged is true when the event started a new restriction episode
	// and replaced the active set.
	RuleChanged bool
	// EpisodeID identifies the episode active after the observation. Empty
	// when the engine is idle.
	EpisodeID string
	// Restrictions is the active set after the observation.
	Restrictions models.RestrictionSet
	// ExpiresAt is when the active episode auto-clears; the owning loop arms
	// its timer from this. Zero when idle.
	ExpiresAt time.Time
}

// Engine is the restriction rule state machine. It is deliberately free of
// timers and goroutines: callers pass in the current time and drive expiry
// from ExpiresAt, which keeps transitions deterministic under test.
//
// An Engine is owned by a single trip-session loop and is not safe for
// concurrent use.
type Engine struct {
	cooldown time.Duration
	lifetime time.Duration
	log      *slog.Logger

	lastTrigger map[string]time.Time

	active    models.RestrictionSet
	episodeID string
	expiresAt time.Time

	seen   *Sighting
	advice string
}

// Option configures an Engine.
type Option func(*Engine)

// WithCooldown overrides the per-class trigger cooldown.
func WithCooldown(d time.Duration) Option { return func(e *Engine) { e.cooldown = d } }

// WithLifetime overrides the episode auto-expiry window.
func WithLifetime(d time.Duration) Option { return func(e *Engine) { e.lifetime = d } }

// WithLogger overrides the engine's logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// NewEngine returns an idle engine with an all-clear restriction set.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cooldown:    DefaultCooldown,
		lifetime:    DefaultLifetime,
		log:         slog.Default(),
		lastTrigger: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Observe feeds one classification event into the state machine.
//
// An empty event clears the seen-sign indicator and nothing else. A non-empty
// event always updates the indicator; it changes rules only when the class is
// outside its cooldown window, in which case the previous episode (if any) is
// superseded: the set is rebuilt from all-clear, a fresh episode starts, and
// the expiry window restarts.
func (e *Engine) Observe(ev models.ClassificationEvent, now time.Time) Outcome {
	if ev.Empty() {
		e.seen = nil
		return e.outcome(false)
	}

	desc := signs.Lookup(ev.ClassID)
	e.seen = &Sighting{Sign: desc, Confidence: ev.Confidence}
	if ev.Confidence > AdvisoryConfidence {
		e.advice = desc.Advisory
	}

	if last, ok := e.lastTrigger[ev.ClassID]; ok && now.Sub(last) < e.cooldown {
		return e.outcome(false)
	}
	e.lastTrigger[ev.ClassID] = now

	e.episodeID = uuid.NewString()
	e.active = restrictionFor(ev.ClassID, desc)
	e.expiresAt = now.Add(e.lifetime)
	if lifted(ev.ClassID) {
		e.advice = "Speed limit lifted"
	}

	e.log.Debug("restriction episode started",
		"class_id", ev.ClassID, "sign", desc.Label, "conf", ev.Confidence,
		"episode", e.episodeID, "restrictions", e.active)
	return e.outcome(true)
}

// ExpireIfDue reverts the set to all-clear and ends the episode once the
// expiry deadline has passed. It reports whether anything changed.
func (e *Engine) ExpireIfDue(now time.Time) bool {
	if e.episodeID == "" || now.Before(e.expiresAt) {
		return false
	}
	e.log.Debug("restriction episode expired", "episode", e.episodeID)
	e.clearEpisode()
	return true
}

// Reset returns the engine to idle: the active episode, its expiry, and all
// cooldown history are discarded. Called when a trip ends.
func (e *Engine) Reset() {
	e.clearEpisode()
	e.lastTrigger = make(map[string]time.Time)
	e.seen = nil
	e.advice = ""
}

// Active returns the restriction set currently in force.
func (e *Engine) Active() models.RestrictionSet { return e.active }

// EpisodeID identifies the current restriction episode; empty when idle.
func (e *Engine) EpisodeID() string { return e.episodeID }

// ExpiresAt is the active episode's auto-clear deadline; zero when idle.
func (e *Engine) ExpiresAt() time.Time { return e.expiresAt }

// Seen returns the currently reported sign, or nil when the classifier sees
// nothing.
func (e *Engine) Seen() *Sighting { return e.seen }

// Advice returns the last surfaced guidance text.
func (e *Engine) Advice() string { return e.advice }

func (e *Engine) clearEpisode() {
	e.active = models.RestrictionSet{}
	e.episodeID = ""
	e.expiresAt = time.Time{}
}

func (e *Engine) outcome(changed bool) Outcome {
	return Outcome{
		RuleChanged:  changed,
		EpisodeID:    e.episodeID,
		Restrictions: e.active,
		ExpiresAt:    e.expiresAt,
	}
}

func lifted(classID string) bool {
	return classID == "class_18" || classID == "class_19"
}

// restrictionFor maps a sign class onto the restriction set it imposes.
// The most recent applicable sign supersedes prior ones, so the mapping
// always builds from an all-clear set.
func restrictionFor(classID string, d signs.Descriptor) models.RestrictionSet {
	var rs models.RestrictionSet

	switch d.Kind {
	case signs.KindLimit:
		rs.SpeedCeiling = d.SpeedLimit

	case signs.KindForbid:
		switch classID {
		case "class_8", "class_11", "class_15":
			rs.TurnBan.Left = true
		case "class_9", "class_13":
			rs.TurnBan.Right = true
		case "class_12", "class_14":
			rs.TurnBan.Left = true
			rs.TurnBan.Right = true
		case "class_16", "class_53", "class_55":
			rs.StopRequired = true
		case "class_54":
			rs.SpeedFloor = 5
		}

	case signs.KindStop, signs.KindWarn:
		switch classID {
		case "class_52", "class_57":
			rs.StopRequired = true
		case "class_56":
			rs.SpeedCeiling = 20
		}

	case signs.KindGuide:
		// Mandatory-direction signs ban the complement of what they permit.
		switch classID {
		case "class_21":
			rs.TurnBan.Left = true
			rs.TurnBan.Right = true
		case "class_20":
			rs.TurnBan.Left = true
		case "class_22", "class_25":
			rs.TurnBan.Right = true
		case "class_24", "class_26":
			rs.TurnBan.Left = true
		case "class_28":
			rs.SpeedFloor = 20
		case "class_30":
			rs.StopRequired = true
		}
	}

	return rs
}
