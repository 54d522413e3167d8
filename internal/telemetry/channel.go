// Package telemetry manages the duplex websocket connection to the remote
// sign classifier.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"safedrive-monitor/internal/models"
)

// DefaultRetryInterval is the fixed reconnect poll interval. Reconnection is
// a flat poll, not exponential backoff: the classifier endpoint is a fixed
// local service and the cost of a probe is negligible.
const DefaultRetryInterval = 3000 * time.Millisecond

// Response is the classifier's wire reply to one telemetry sample. A nil
// Result means no sign is currently detected.
type Response struct {
	Status string                      `json:"status"`
	Result *models.ClassificationEvent `json:"yolo_result"`
}

// Channel is the cockpit's telemetry link. At most one sample may be in
// flight at a time: while a response is outstanding Send drops frames, so a
// slow classifier bounds latency instead of accumulating lag.
//
// Run owns the connection for its whole lifetime and survives trips; a trip
// ending does not close the link.
type Channel struct {
	url    string
	retry  time.Duration
	dialer *websocket.Dialer
	log    *slog.Logger

	// mu protects conn and busy. busy is set immediately before a write and
	// cleared on response or write error, so there is no window in which two
	// sends are outstanding.
	mu   sync.Mutex
	conn *websocket.Conn
	busy bool

	connected atomic.Bool
	events    chan models.ClassificationEvent
}

// Option configures a Channel.
type Option func(*Channel)

// WithRetryInterval overrides the reconnect poll interval.
func WithRetryInterval(d time.Duration) Option { return func(c *Channel) { c.retry = d } }

// WithLogger overrides the channel's logger.
func WithLogger(l *slog.Logger) Option { return func(c *Channel) { c.log = l } }

// NewChannel returns a channel for the given websocket endpoint. Call Run to
// start connecting.
func NewChannel(url string, opts ...Option) *Channel {
	c := &Channel{
		url:    url,
		retry:  DefaultRetryInterval,
		dialer: websocket.DefaultDialer,
		log:    slog.Default(),
		events: make(chan models.ClassificationEvent, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run dials the classifier and keeps the link alive until ctx is cancelled,
// redialling on the fixed retry interval after every failure or remote
// close. Connection and parse errors are absorbed; while disconnected the
// system degrades to "no live restrictions".
func (c *Channel) Run(ctx context.Context) error {
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.log.Warn("classifier dial failed", "url", c.url, "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retry):
				continue
			}
		}

		c.log.Info("classifier connected", "url", c.url)
		c.attach(conn)
		c.readLoop(ctx, conn)
		c.detach(conn)
		c.log.Info("classifier disconnected", "url", c.url)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retry):
		}
	}
}

// Send attempts to transmit one sample. It reports false, without error or
// side effect, when the link is down or a previous send is unacknowledged.
func (c *Channel) Send(sample models.TelemetrySample) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.busy {
		return false
	}
	c.busy = true
	if err := c.conn.WriteJSON(sample); err != nil {
		c.busy = false
		c.log.Warn("telemetry send failed", "err", err)
		// A failed write means the link is gone; closing unblocks the read
		// loop so the reconnect cycle can start.
		c.conn.Close()
		return false
	}
	return true
}

// Connected reports current link state for the HUD.
func (c *Channel) Connected() bool { return c.connected.Load() }

// Events delivers parsed classification events in arrival order. Empty
// events mean "no sign currently detected".
func (c *Channel) Events() <-chan models.ClassificationEvent { return c.events }

func (c *Channel) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.busy = false
	c.mu.Unlock()
	c.connected.Store(true)
}

func (c *Channel) detach(conn *websocket.Conn) {
	c.connected.Store(false)
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.busy = false
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		// The response acknowledges the in-flight sample whether or not the
		// payload parses; the next send is unblocked either way.
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()

		var resp Response
		if err := json.Unmarshal(payload, &resp); err != nil {
			c.log.Warn("malformed classifier payload dropped", "err", err)
			continue
		}
		if resp.Status != "ok" {
			c.log.Warn("classifier reported failure", "status", resp.Status)
			continue
		}

		var ev models.ClassificationEvent
		if resp.Result != nil {
			ev = *resp.Result
		}
		select {
		case c.events <- ev:
		default:
			c.log.Warn("event consumer lagging, classification dropped", "class_id", ev.ClassID)
		}
	}
}
