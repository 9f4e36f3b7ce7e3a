package streamclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Logger is the minimal logging surface the client needs. Passing nil
// disables logging; the service's own logger satisfies the interface,
// and external consumers plug in whatever they run.
type Logger interface {
	Info(action string, fields map[string]any)
	Debug(action string, fields map[string]any)
	Error(action string, err error, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) Info(string, map[string]any)         {}
func (nopLogger) Debug(string, map[string]any)        {}
func (nopLogger) Error(string, error, map[string]any) {}

// State is the controller's connection state as published on
// TopicConnection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateLost         State = "lost" // retry ceiling exhausted, refresh required
)

// ErrConnectionLost is returned by Run when the retry ceiling is
// exhausted. Every other failure mode is self-healing.
var ErrConnectionLost = errors.New("stream connection lost, reconnect ceiling exhausted")

var errServerReconnect = errors.New("server requested reconnect")

type Config struct {
	URL        string
	Token      string       // optional bearer token for authenticated streams
	HTTPClient *http.Client // defaults to http.DefaultClient

	StaleAfter  time.Duration // silence threshold before forced teardown (default 30s)
	BackoffBase time.Duration // first retry delay (default 1s)
	BackoffCap  time.Duration // delay ceiling (default 30s)
	MaxAttempts int           // consecutive failed attempts before giving up (default 10)
}

func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
}

// statusReport is the payload published on TopicConnection.
type statusReport struct {
	State        string    `json:"state"`
	Attempts     int       `json:"attempts"`
	LastActivity time.Time `json:"lastActivity,omitempty"`
}

// Client owns the single network connection to a stream endpoint and
// republishes everything it receives onto the local bus. It detects
// half-open connections by treating prolonged silence as death: the
// server keepalives every 15s, so 30s of nothing means the transport
// died without telling us.
type Client struct {
	cfg Config
	bus *Bus
	lg  Logger

	mu           sync.Mutex
	state        State
	attempts     int
	lastActivity time.Time
}

func New(cfg Config, bus *Bus, lg Logger) *Client {
	cfg.defaults()
	if lg == nil {
		lg = nopLogger{}
	}
	return &Client{cfg: cfg, bus: bus, lg: lg, state: StateDisconnected}
}

// Run drives the connect/reconnect loop until ctx is canceled or the
// retry ceiling is reached.
func (c *Client) Run(ctx context.Context) error {
	ctrl := c.bus.Subscribe(TopicControl)
	defer c.bus.Unsubscribe(ctrl)
	go c.answerStatusRequests(ctx, ctrl)

	for {
		c.setState(StateConnecting)
		err := c.stream(ctx)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}
		if errors.Is(err, errServerReconnect) {
			// Server-initiated cycling: re-open immediately, this is
			// not a failure.
			c.lg.Debug("server_requested_reconnect", nil)
			continue
		}

		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		if attempt > c.cfg.MaxAttempts {
			c.setState(StateLost)
			c.lg.Error("reconnect_ceiling_exhausted", err, map[string]any{"attempts": attempt})
			return ErrConnectionLost
		}

		delay := backoff(c.cfg.BackoffBase, c.cfg.BackoffCap, attempt)
		c.lg.Debug("reconnect_scheduled", map[string]any{"attempt": attempt, "delay_ms": delay.Milliseconds()})
		c.setState(StateDisconnected)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// backoff returns min(base * 2^(attempt-1), limit).
func backoff(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}

// stream runs one connection to completion. It returns
// errServerReconnect when the server asked for cycling, or the transport
// error otherwise.
func (c *Client) stream(ctx context.Context) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream endpoint returned %d", resp.StatusCode)
	}

	c.connected()

	// Health check: any frame counts as activity, including keepalive
	// comments. Prolonged silence tears the connection down even if the
	// transport never reports an error.
	go func() {
		period := c.cfg.StaleAfter / 3
		if period < time.Second {
			period = time.Second
		}
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-connCtx.Done():
				return
			case <-t.C:
				if time.Since(c.activity()) > c.cfg.StaleAfter {
					c.lg.Debug("stream_stale", map[string]any{"silence_ms": time.Since(c.activity()).Milliseconds()})
					cancel()
					return
				}
			}
		}
	}()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event string
	var data bytes.Buffer
	for sc.Scan() {
		line := sc.Text()
		c.touch()
		switch {
		case line == "":
			if event != "" {
				if event == "reconnect" {
					c.publish(event, data.Bytes())
					return errServerReconnect
				}
				c.publish(event, data.Bytes())
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// keepalive comment, activity only
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errors.New("stream closed by server")
}

func (c *Client) publish(event string, data []byte) {
	c.bus.Publish(TopicEvents, Message{
		Event:      event,
		Data:       json.RawMessage(bytes.Clone(data)),
		ReceivedAt: time.Now(),
	})
}

// answerStatusRequests serves request-status control messages with the
// current connection state, substituting for a retained topic.
func (c *Client) answerStatusRequests(ctx context.Context, ctrl *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ctrl.C:
			if !ok {
				return
			}
			if m.Event == RequestStatus {
				c.publishStatus()
			}
		}
	}
}

func (c *Client) connected() {
	c.mu.Lock()
	c.state = StateConnected
	c.attempts = 0
	c.lastActivity = time.Now()
	c.mu.Unlock()
	c.publishStatus()
	c.lg.Info("stream_connected", map[string]any{"url": c.cfg.URL})
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		c.publishStatus()
	}
}

func (c *Client) publishStatus() {
	c.mu.Lock()
	report := statusReport{State: string(c.state), Attempts: c.attempts, LastActivity: c.lastActivity}
	c.mu.Unlock()
	b, _ := json.Marshal(report)
	c.bus.Publish(TopicConnection, Message{Event: "status", Data: b, ReceivedAt: time.Now()})
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Client) activity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Status returns the controller's current state snapshot.
func (c *Client) Status() (State, int, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.attempts, c.lastActivity
}
