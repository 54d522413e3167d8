package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safedrive-monitor/internal/client"
	"safedrive-monitor/internal/db"
	"safedrive-monitor/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ts := httptest.NewServer(NewServer(database, nil).Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) apiResponse {
	t.Helper()
	defer resp.Body.Close()
	var env apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	env := decodeResponse(t, resp)
	assert.True(t, env.Success)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/auth/register", map[string]string{"user_id": "driver-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env := decodeResponse(t, resp)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestRegisterDuplicate(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{"user_id": "driver-1", "password": "secret", "name": "Alex"}

	resp := postJSON(t, ts.URL+"/api/v1/auth/register", body)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/v1/auth/register", body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginStatuses(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/v1/auth/register",
		map[string]string{"user_id": "driver-1", "password": "secret", "name": "Alex"})
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/v1/auth/login", map[string]string{"user_id": "driver-1", "password": "wrong"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/v1/auth/login", map[string]string{"user_id": "driver-1", "password": "secret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeResponse(t, resp)
	assert.True(t, env.Success)
}

func TestGetUserNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/users/ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// Round trip through the cockpit client: register, add a vehicle, submit a
// trip, and read the resulting profile back.
func TestClientRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	c := client.New(ts.URL)

	user, err := c.Register(ctx, "driver-1", "secret", "Alex")
	require.NoError(t, err)
	assert.Equal(t, db.InitialCreditScore, user.CreditScore)

	require.NoError(t, c.AddVehicle(ctx, "driver-1", "TEST-0001"))
	assert.Error(t, c.AddVehicle(ctx, "driver-1", "TEST-0001"))

	res, err := c.SubmitTrip(ctx, models.TripSubmission{
		UserID: "driver-1",
		Plate:  "TEST-0001",
		Violations: []models.ViolationRecord{
			{Type: models.ViolationOverspeed, Description: "Overspeed", ScoreDelta: 6},
		},
		Duration: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 94, res.NewScore)

	user, err = c.GetUser(ctx, "driver-1")
	require.NoError(t, err)
	assert.Equal(t, 94, user.CreditScore)
	assert.Equal(t, []string{"TEST-0001"}, user.Vehicles)
	require.Len(t, user.History, 1)
	assert.Equal(t, models.ViolationOverspeed, user.History[0].Type)

	require.NoError(t, c.DeleteVehicle(ctx, "driver-1", "TEST-0001"))
	assert.Error(t, c.DeleteVehicle(ctx, "driver-1", "TEST-0001"))
}

func TestUpdateUser(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/v1/auth/register",
		map[string]string{"user_id": "driver-1", "password": "secret", "name": "Alex"})
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/v1/users/update",
		map[string]string{"user_id": "driver-1", "phone": "555-0100"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeResponse(t, resp)
	require.True(t, env.Success)

	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var user models.User
	require.NoError(t, json.Unmarshal(raw, &user))
	assert.Equal(t, "Alex", user.Name)
	assert.Equal(t, "555-0100", user.Phone)
}

func TestSubmitTripUnknownUser(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/trips", models.TripSubmission{UserID: "ghost"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
