package models

import "time"

// TelemetrySample is one outbound frame+speed reading. It is created once
// per sampling tick, handed to the telemetry channel, and never persisted.
type TelemetrySample struct {
	Image []byte  `json:"image"`
	Speed float64 `json:"speed"` // km/h
}

// ClassificationEvent is the classifier's verdict for one sample.
// A zero ClassID means no sign is currently detected. Duplicate events for
// the same physical sign are expected: the sign stays visible across many
// consecutive frames.
type ClassificationEvent struct {
	ClassID    string  `json:"class_id"`
	Confidence float64 `json:"conf"` // 0..1
}

// Empty reports whether the classifier saw no sign in the sampled frame.
func (e ClassificationEvent) Empty() bool {
	return e.ClassID == ""
}

// Steering is the driver's current steering direction.
type Steering string

const (
	SteerStraight Steering = "straight"
	SteerLeft     Steering = "left"
	SteerRight    Steering = "right"
)

// VehicleState is the live driving state evaluated against active road
// restrictions.
type VehicleState struct {
	Speed    float64
	Steering Steering
}

// TurnBan flags which turn directions are currently prohibited.
type TurnBan struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// RestrictionSet is the currently active road-rule state. Exactly one set is
// live at a time; it is wholly replaced on a new triggering sign and reverts
// to the zero value when its validity window expires. Zero values mean "no
// restriction".
type RestrictionSet struct {
	SpeedCeiling float64 `json:"speed_ceiling,omitempty"`
	SpeedFloor   float64 `json:"speed_floor,omitempty"`
	TurnBan      TurnBan `json:"turn_ban"`
	StopRequired bool    `json:"stop_required"`
}

// Clear reports whether no restriction is in force.
func (r RestrictionSet) Clear() bool {
	return r == RestrictionSet{}
}

// ViolationType tags one kind of chargeable driving violation.
type ViolationType string

const (
	ViolationOverspeed      ViolationType = "OVERSPEED"
	ViolationIllegalParking ViolationType = "ILLEGAL_PARKING"
	ViolationLowSpeed       ViolationType = "LOW_SPEED"
	ViolationFailureToStop  ViolationType = "FAILURE_TO_STOP"
	ViolationIllegalTurn    ViolationType = "ILLEGAL_TURN"

	// BonusPerfectDriving is the synthetic credit awarded when a trip ends
	// with no recorded violations.
	BonusPerfectDriving ViolationType = "PERFECT_DRIVING"
)

// ViolationRecord is one immutable entry in a trip ledger. ScoreDelta is the
// number of credit points deducted; the perfect-driving bonus carries a
// negative delta.
type ViolationRecord struct {
	Type        ViolationType `json:"type"`
	Description string        `json:"desc"`
	ScoreDelta  int           `json:"deduction"`
	Timestamp   time.Time     `json:"date"`
}
