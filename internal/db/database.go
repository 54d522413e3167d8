package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"safedrive-monitor/internal/models"
)

// Sentinel errors the API layer maps onto HTTP statuses.
var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("already exists")
	ErrBadPassword = errors.New("wrong user id or password")
)

// InitialCreditScore is the score granted on registration; trips move it
// within [0, 100].
const InitialCreditScore = 100

// Database wraps the SQLite connection behind the account service.
type Database struct {
	conn *sql.DB
}

// New opens (and if needed creates) the account database at dbPath.
func New(dbPath string) (*Database, error) {
	// Enable WAL mode and other optimizations via connection string
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates tables and indexes
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT DEFAULT '',
		credit_score INTEGER NOT NULL DEFAULT 100,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS vehicles (
		plate TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(user_id)
	);

	CREATE TABLE IF NOT EXISTS trips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		plate TEXT NOT NULL,
		total_delta INTEGER NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(user_id)
	);

	CREATE TABLE IF NOT EXISTS trip_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trip_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		description TEXT NOT NULL,
		score_delta INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (trip_id) REFERENCES trips(id)
	);

	CREATE INDEX IF NOT EXISTS idx_vehicles_user ON vehicles(user_id);
	CREATE INDEX IF NOT EXISTS idx_trips_user ON trips(user_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_trip_events_trip ON trip_events(trip_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// RegisterUser creates a user with the initial credit score.
func (db *Database) RegisterUser(userID, password, name string) error {
	var exists int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM users WHERE user_id = ?`, userID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("user %s: %w", userID, ErrDuplicate)
	}

	_, err = db.conn.Exec(
		`INSERT INTO users (user_id, password, name, credit_score) VALUES (?, ?, ?, ?)`,
		userID, password, name, InitialCreditScore)
	return err
}

// Authenticate checks credentials and returns the user's profile.
func (db *Database) Authenticate(userID, password string) (*models.User, error) {
	var stored string
	err := db.conn.QueryRow(`SELECT password FROM users WHERE user_id = ?`, userID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBadPassword
	}
	if err != nil {
		return nil, err
	}
	if stored != password {
		return nil, ErrBadPassword
	}
	return db.GetUser(userID)
}

// GetUser returns the full profile: credit score, vehicle plates, and the
// flattened violation history ordered most recent trip first.
func (db *Database) GetUser(userID string) (*models.User, error) {
	u := &models.User{ID: userID, Vehicles: []string{}, History: []models.HistoryEntry{}}

	err := db.conn.QueryRow(
		`SELECT name, phone, credit_score FROM users WHERE user_id = ?`, userID,
	).Scan(&u.Name, &u.Phone, &u.CreditScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`SELECT plate FROM vehicles WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var plate string
		if err := rows.Scan(&plate); err != nil {
			return nil, err
		}
		u.Vehicles = append(u.Vehicles, plate)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	history, err := db.userHistory(userID)
	if err != nil {
		return nil, err
	}
	u.History = history

	return u, nil
}

func (db *Database) userHistory(userID string) ([]models.HistoryEntry, error) {
	rows, err := db.conn.Query(`
		SELECT e.timestamp, e.event_type, e.description, e.score_delta, t.plate
		FROM trip_events e
		JOIN trips t ON t.id = e.trip_id
		WHERE t.user_id = ?
		ORDER BY t.start_time DESC, e.id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.HistoryEntry{}
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.Date, &h.Type, &h.Desc, &h.ScoreDelta, &h.Plate); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// UpdateUser changes the mutable profile fields; empty strings leave the
// field untouched.
func (db *Database) UpdateUser(userID, name, phone string) (*models.User, error) {
	if name != "" {
		if _, err := db.conn.Exec(`UPDATE users SET name = ? WHERE user_id = ?`, name, userID); err != nil {
			return nil, err
		}
	}
	if phone != "" {
		if _, err := db.conn.Exec(`UPDATE users SET phone = ? WHERE user_id = ?`, phone, userID); err != nil {
			return nil, err
		}
	}
	return db.GetUser(userID)
}

// AddVehicle registers a plate for a user. Plates are globally unique.
func (db *Database) AddVehicle(userID, plate string) error {
	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM vehicles WHERE plate = ?`, plate).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("plate %s: %w", plate, ErrDuplicate)
	}

	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM users WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	_, err := db.conn.Exec(`INSERT INTO vehicles (user_id, plate) VALUES (?, ?)`, userID, plate)
	return err
}

// DeleteVehicle removes a plate owned by the user.
func (db *Database) DeleteVehicle(userID, plate string) error {
	res, err := db.conn.Exec(`DELETE FROM vehicles WHERE user_id = ? AND plate = ?`, userID, plate)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("vehicle %s: %w", plate, ErrNotFound)
	}
	return nil
}

// SubmitTrip records a finished trip and applies its score delta to the
// user's credit score, clamped to [0, 100]. It returns the new score.
func (db *Database) SubmitTrip(sub models.TripSubmission) (int, error) {
	var score int
	err := db.conn.QueryRow(`SELECT credit_score FROM users WHERE user_id = ?`, sub.UserID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %s: %w", sub.UserID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}

	total := 0
	for _, v := range sub.Violations {
		total += v.ScoreDelta
	}
	score = clamp(score-total, 0, 100)

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now()
	start := now.Add(-time.Duration(sub.Duration * float64(time.Second)))
	res, err := tx.Exec(
		`INSERT INTO trips (user_id, plate, total_delta, start_time, end_time) VALUES (?, ?, ?, ?, ?)`,
		sub.UserID, sub.Plate, total, start, now)
	if err != nil {
		return 0, err
	}
	tripID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO trip_events (trip_id, event_type, description, score_delta, timestamp) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, v := range sub.Violations {
		ts := v.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if _, err := stmt.Exec(tripID, v.Type, v.Description, v.ScoreDelta, ts); err != nil {
			return 0, err
		}
	}

	if _, err := tx.Exec(`UPDATE users SET credit_score = ? WHERE user_id = ?`, score, sub.UserID); err != nil {
		return 0, err
	}

	return score, tx.Commit()
}

// GetStats returns database statistics
func (db *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var users int64
	db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&users)
	stats["total_users"] = users

	var vehicles int64
	db.conn.QueryRow("SELECT COUNT(*) FROM vehicles").Scan(&vehicles)
	stats["total_vehicles"] = vehicles

	var trips int64
	db.conn.QueryRow("SELECT COUNT(*) FROM trips").Scan(&trips)
	stats["total_trips"] = trips

	var events int64
	db.conn.QueryRow("SELECT COUNT(*) FROM trip_events").Scan(&events)
	stats["total_trip_events"] = events

	return stats, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
