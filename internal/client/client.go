// Package client is the cockpit's HTTP client for the account and trip
// service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"safedrive-monitor/internal/models"
)

// Client talks to the account API. The zero timeout defaults to 10 s.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the service at base, e.g. "http://localhost:8080".
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("account service unreachable: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("account service: %s", env.Error)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// Register creates a new driver profile.
func (c *Client) Register(ctx context.Context, userID, password, name string) (*models.User, error) {
	var u models.User
	body := map[string]string{"user_id": userID, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates and returns the driver profile.
func (c *Client) Login(ctx context.Context, userID, password string) (*models.User, error) {
	var u models.User
	body := map[string]string{"user_id": userID, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser reads a profile by id: credit score, vehicles, history.
func (c *Client) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+userID, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AddVehicle registers a plate for the user.
func (c *Client) AddVehicle(ctx context.Context, userID, plate string) error {
	body := map[string]string{"user_id": userID, "plate": plate}
	return c.do(ctx, http.MethodPost, "/api/v1/vehicles", body, nil)
}

// DeleteVehicle removes a plate owned by the user.
func (c *Client) DeleteVehicle(ctx context.Context, userID, plate string) error {
	body := map[string]string{"user_id": userID, "plate": plate}
	return c.do(ctx, http.MethodDelete, "/api/v1/vehicles", body, nil)
}

// SubmitTrip hands the finalized ledger to the service. Fire and forget from
// the cockpit's point of view: callers log failures and move on.
func (c *Client) SubmitTrip(ctx context.Context, sub models.TripSubmission) (*models.TripResult, error) {
	var res models.TripResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/trips", sub, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
