package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safedrive-monitor/internal/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestRegisterAndAuthenticate(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.RegisterUser("driver-1", "secret", "Alex"))

	// Duplicate registration is rejected.
	err := database.RegisterUser("driver-1", "other", "Alex")
	assert.ErrorIs(t, err, ErrDuplicate)

	user, err := database.Authenticate("driver-1", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Alex", user.Name)
	assert.Equal(t, InitialCreditScore, user.CreditScore)
	assert.Empty(t, user.Vehicles)
	assert.Empty(t, user.History)

	_, err = database.Authenticate("driver-1", "wrong")
	assert.ErrorIs(t, err, ErrBadPassword)

	_, err = database.Authenticate("ghost", "secret")
	assert.ErrorIs(t, err, ErrBadPassword)
}

func TestGetUserNotFound(t *testing.T) {
	database := newTestDB(t)

	_, err := database.GetUser("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.RegisterUser("driver-1", "secret", "Alex"))

	user, err := database.UpdateUser("driver-1", "Sam", "555-0100")
	require.NoError(t, err)
	assert.Equal(t, "Sam", user.Name)
	assert.Equal(t, "555-0100", user.Phone)

	// Empty fields leave existing values untouched.
	user, err = database.UpdateUser("driver-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Sam", user.Name)
	assert.Equal(t, "555-0100", user.Phone)
}

func TestVehicles(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.RegisterUser("driver-1", "secret", "Alex"))
	require.NoError(t, database.RegisterUser("driver-2", "secret", "Kim"))

	require.NoError(t, database.AddVehicle("driver-1", "TEST-0001"))

	// Plates are globally unique, even across owners.
	assert.ErrorIs(t, database.AddVehicle("driver-2", "TEST-0001"), ErrDuplicate)
	assert.ErrorIs(t, database.AddVehicle("ghost", "TEST-0002"), ErrNotFound)

	user, err := database.GetUser("driver-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"TEST-0001"}, user.Vehicles)

	// Only the owner can delete a plate.
	assert.ErrorIs(t, database.DeleteVehicle("driver-2", "TEST-0001"), ErrNotFound)
	require.NoError(t, database.DeleteVehicle("driver-1", "TEST-0001"))

	user, err = database.GetUser("driver-1")
	require.NoError(t, err)
	assert.Empty(t, user.Vehicles)
}

func TestSubmitTripAppliesScore(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.RegisterUser("driver-1", "secret", "Alex"))

	score, err := database.SubmitTrip(models.TripSubmission{
		UserID: "driver-1",
		Plate:  "TEST-0001",
		Violations: []models.ViolationRecord{
			{Type: models.ViolationOverspeed, Description: "Overspeed", ScoreDelta: 6, Timestamp: time.Now()},
			{Type: models.ViolationIllegalTurn, Description: "Illegal turn", ScoreDelta: 3, Timestamp: time.Now()},
		},
		Duration: 120,
	})
	require.NoError(t, err)
	assert.Equal(t, 91, score)

	user, err := database.GetUser("driver-1")
	require.NoError(t, err)
	assert.Equal(t, 91, user.CreditScore)
	require.Len(t, user.History, 2)
	assert.Equal(t, models.ViolationOverspeed, user.History[0].Type)
	assert.Equal(t, "TEST-0001", user.History[0].Plate)
}

func TestSubmitTripBonusRaisesScore(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.RegisterUser("driver-1", "secret", "Alex"))

	// Drag the score down first so the bonus has headroom below the cap.
	_, err := database.SubmitTrip(models.TripSubmission{
		UserID:     "driver-1",
		Plate:      "TEST-0001",
		Violations: []models.ViolationRecord{{Type: models.ViolationOverspeed, ScoreDelta: 6}},
	})
	require.NoError(t, err)

	score, err := database.SubmitTrip(models.TripSubmission{
		UserID:     "driver-1",
		Plate:      "TEST-0001",
		Violations: []models.ViolationRecord{{Type: models.BonusPerfectDriving, ScoreDelta: -10}},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, score) // clamped at the cap: 94 + 10 -> 100
}

func TestSubmitTripClampsAtZero(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.RegisterUser("driver-1", "secret", "Alex"))

	var records []models.ViolationRecord
	for i := 0; i < 20; i++ {
		records = append(records, models.ViolationRecord{Type: models.ViolationOverspeed, ScoreDelta: 6})
	}
	score, err := database.SubmitTrip(models.TripSubmission{UserID: "driver-1", Plate: "P", Violations: records})
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestSubmitTripUnknownUser(t *testing.T) {
	database := newTestDB(t)

	_, err := database.SubmitTrip(models.TripSubmission{UserID: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.RegisterUser("driver-1", "secret", "Alex"))
	require.NoError(t, database.AddVehicle("driver-1", "TEST-0001"))

	stats, err := database.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["total_users"])
	assert.Equal(t, int64(1), stats["total_vehicles"])
	assert.Equal(t, int64(0), stats["total_trips"])
}
