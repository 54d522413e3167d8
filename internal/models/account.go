package models

import "time"

// User is a registered driver profile as served by the account API.
type User struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Phone       string         `json:"phone,omitempty"`
	CreditScore int            `json:"credit_score"`
	Vehicles    []string       `json:"vehicles"`
	History     []HistoryEntry `json:"history"`
}

// HistoryEntry is one past violation or bonus, flattened across trips and
// ordered most recent trip first.
type HistoryEntry struct {
	Date       time.Time     `json:"date"`
	Type       ViolationType `json:"type"`
	Desc       string        `json:"desc"`
	ScoreDelta int           `json:"deduction"`
	Plate      string        `json:"plate"`
}

// Vehicle is a registered vehicle owned by a user.
type Vehicle struct {
	UserID    string    `json:"user_id"`
	Plate     string    `json:"plate"`
	CreatedAt time.Time `json:"created_at"`
}

// TripSubmission is the finalized trip ledger handed to the account service
// when a trip ends.
type TripSubmission struct {
	UserID     string            `json:"user_id"`
	Plate      string            `json:"plate"`
	Violations []ViolationRecord `json:"violations"`
	Duration   float64           `json:"duration"` // seconds
}

// TripResult is the account service's acknowledgement of a submitted trip.
type TripResult struct {
	Status   string `json:"status"`
	NewScore int    `json:"new_score"`
}
