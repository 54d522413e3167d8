// Package evaluator checks live vehicle state against the active restriction
// set and accumulates violations into the trip ledger.
package evaluator

import (
	"fmt"
	"log/slog"
	"time"

	"safedrive-monitor/internal/models"
)

type chargeKey struct {
	episode string
	kind    models.ViolationType
}

// Evaluator owns the trip ledger for one trip. Within one restriction
// episode each violation type is charged at most once, no matter how many
// telemetry ticks re-observe the breach.
//
// Like the rule engine, an Evaluator belongs to a single trip-session loop
// and is not safe for concurrent use.
type Evaluator struct {
	grace time.Duration
	log   *slog.Logger

	episodeID    string
	episodeStart time.Time

	charged map[chargeKey]struct{}
	ledger  []models.ViolationRecord
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithGracePeriod suppresses evaluation for the given window after each
// episode starts, giving the driver time to react to a newly seen sign.
// Zero (the default) disables the buffer.
func WithGracePeriod(d time.Duration) Option { return func(ev *Evaluator) { ev.grace = d } }

// WithLogger overrides the evaluator's logger.
func WithLogger(l *slog.Logger) Option { return func(ev *Evaluator) { ev.log = l } }

// New returns an evaluator with an empty ledger.
func New(opts ...Option) *Evaluator {
	ev := &Evaluator{
		log:     slog.Default(),
		charged: make(map[chargeKey]struct{}),
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// BeginEpisode records that a new restriction episode started: the dedup set
// resets, so earlier charges no longer block the same violation type.
func (ev *Evaluator) BeginEpisode(episodeID string, now time.Time) {
	ev.episodeID = episodeID
	ev.episodeStart = now
	ev.charged = make(map[chargeKey]struct{})
}

// Evaluate checks the vehicle state against the restriction set and returns
// any newly charged violations, already appended to the ledger. Checks run
// in fixed priority order; each is gated by its own per-episode dedup tag,
// so several may fire on a single tick.
func (ev *Evaluator) Evaluate(state models.VehicleState, rs models.RestrictionSet, now time.Time) []models.ViolationRecord {
	if ev.grace > 0 && now.Sub(ev.episodeStart) < ev.grace {
		return nil
	}

	var out []models.ViolationRecord
	charge := func(kind models.ViolationType, desc string, delta int) {
		key := chargeKey{episode: ev.episodeID, kind: kind}
		if _, done := ev.charged[key]; done {
			return
		}
		ev.charged[key] = struct{}{}
		rec := models.ViolationRecord{
			Type:        kind,
			Description: desc,
			ScoreDelta:  delta,
			Timestamp:   now,
		}
		ev.ledger = append(ev.ledger, rec)
		out = append(out, rec)
		ev.log.Info("violation charged", "type", kind, "episode", ev.episodeID, "delta", delta)
	}

	if rs.SpeedCeiling > 0 && state.Speed > rs.SpeedCeiling {
		charge(models.ViolationOverspeed,
			fmt.Sprintf("Overspeed: limit %.0f, travelling at %.0f", rs.SpeedCeiling, state.Speed), 6)
	}
	if rs.SpeedFloor > 0 {
		if state.Speed == 0 {
			charge(models.ViolationIllegalParking, "Illegal parking: stopping prohibited here", 3)
		} else if state.Speed < rs.SpeedFloor {
			charge(models.ViolationLowSpeed,
				fmt.Sprintf("Below minimum speed %.0f", rs.SpeedFloor), 3)
		}
	}
	if rs.StopRequired && state.Speed > 0 {
		charge(models.ViolationFailureToStop, "Failure to stop: no entry or stop required ahead", 6)
	}
	if state.Steering == models.SteerLeft && rs.TurnBan.Left {
		charge(models.ViolationIllegalTurn, "Illegal left turn or U-turn", 3)
	}
	if state.Steering == models.SteerRight && rs.TurnBan.Right {
		charge(models.ViolationIllegalTurn, "Illegal right turn", 3)
	}

	return out
}

// Ledger returns a copy of the records charged so far, in charge order.
func (ev *Evaluator) Ledger() []models.ViolationRecord {
	out := make([]models.ViolationRecord, len(ev.ledger))
	copy(out, ev.ledger)
	return out
}

// Finalize closes out the trip ledger. A trip with no violations earns the
// perfect-driving bonus, a single record with a negative score delta.
func (ev *Evaluator) Finalize(now time.Time) []models.ViolationRecord {
	if len(ev.ledger) == 0 {
		ev.ledger = append(ev.ledger, models.ViolationRecord{
			Type:        models.BonusPerfectDriving,
			Description: "Perfect driving bonus: no violations recorded",
			ScoreDelta:  -10,
			Timestamp:   now,
		})
	}
	return ev.Ledger()
}

// Reset discards the ledger and dedup state for a fresh trip.
func (ev *Evaluator) Reset() {
	ev.episodeID = ""
	ev.episodeStart = time.Time{}
	ev.charged = make(map[chargeKey]struct{})
	ev.ledger = nil
}
