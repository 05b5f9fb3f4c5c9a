package gateway

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event names pushed on /events
const (
	EventBanner     = "BANNER"
	EventPing       = "PING"
	EventSpinResult = "SPIN_RESULT"
	EventDebugText  = "DEBUG_TEXT"
)

const defaultRetry = 3 * time.Second

// Event is one dispatched server-sent event
type Event struct {
	ID   string
	Name string
	Data []byte
}

// Decode unmarshals the event payload
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// BannerData is sent once per subscription
type BannerData struct {
	Version string `json:"version"`
}

// PingData is the keep-alive payload
type PingData struct {
	TimestampMs int64 `json:"timestampMs"`
}

// ParseEvents reads a text/event-stream body and calls handle for each
// complete event. It returns the last seen event id when the stream ends.
func ParseEvents(r io.Reader, handle func(Event)) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var (
		lastID string
		cur    Event
		data   bytes.Buffer
		dirty  bool
	)
	dispatch := func() {
		if !dirty {
			return
		}
		if cur.Name == "" {
			cur.Name = "message"
		}
		cur.Data = bytes.TrimSuffix(bytes.Clone(data.Bytes()), []byte("\n"))
		if cur.ID != "" {
			lastID = cur.ID
		}
		handle(cur)
		cur = Event{}
		data.Reset()
		dirty = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			dispatch()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			cur.Name = value
			dirty = true
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			dirty = true
		case "id":
			cur.ID = value
		}
	}
	if err := scanner.Err(); err != nil {
		return lastID, err
	}
	dispatch()
	return lastID, nil
}

// EventFeed subscribes to the read-only push channel. It never settles
// spins; consumers use it for liveness and diagnostics only.
type EventFeed struct {
	client *Client
	retry  time.Duration

	// OnConnect, when set, is told about connection state changes
	OnConnect func(connected bool)
}

func (c *Client) Events() *EventFeed {
	return &EventFeed{client: c, retry: defaultRetry}
}

// WithRetry sets the reconnect backoff
func (f *EventFeed) WithRetry(d time.Duration) *EventFeed {
	if d > 0 {
		f.retry = d
	}
	return f
}

// Run keeps a subscription open until ctx is done, reconnecting after failures
func (f *EventFeed) Run(ctx context.Context, handle func(Event)) error {
	var lastID string
	for {
		id, err := f.stream(ctx, lastID, handle)
		if id != "" {
			lastID = id
		}
		f.connected(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.client.log.Warn("event feed disconnected", zap.Error(err), zap.Duration("retry", f.retry))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.retry):
		}
	}
}

func (f *EventFeed) stream(ctx context.Context, lastID string, handle func(Event)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.client.baseURL+"/events", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := f.client.http.Do(req)
	if err != nil {
		return "", transportError("events", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", serverError("events", resp.StatusCode, "subscription refused")
	}
	f.connected(true)

	id, err := ParseEvents(resp.Body, handle)
	if err == nil {
		err = errors.New("stream closed")
	}
	return id, err
}

func (f *EventFeed) connected(ok bool) {
	if f.OnConnect != nil {
		f.OnConnect(ok)
	}
}

// LiveStatus folds feed events into a small read-only status
type LiveStatus struct {
	mu        sync.RWMutex
	connected bool
	lastPing  time.Time
	version   string
}

// LiveSnapshot is a copy of LiveStatus
type LiveSnapshot struct {
	Connected bool
	LastPing  time.Time
	Version   string
}

func (s *LiveStatus) SetConnected(ok bool) {
	s.mu.Lock()
	s.connected = ok
	s.mu.Unlock()
}

// Observe records banner and ping events; other events are ignored
func (s *LiveStatus) Observe(e Event) error {
	switch e.Name {
	case EventBanner:
		var b BannerData
		if err := e.Decode(&b); err != nil {
			return fmt.Errorf("decode banner: %w", err)
		}
		s.mu.Lock()
		s.version = b.Version
		s.mu.Unlock()
	case EventPing:
		var p PingData
		if err := e.Decode(&p); err != nil {
			return fmt.Errorf("decode ping: %w", err)
		}
		s.mu.Lock()
		s.lastPing = time.UnixMilli(p.TimestampMs)
		s.mu.Unlock()
	}
	return nil
}

func (s *LiveStatus) Snapshot() LiveSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return LiveSnapshot{Connected: s.connected, LastPing: s.lastPing, Version: s.version}
}

// Label renders the snapshot for a panel footer
func (s LiveSnapshot) Label() string {
	if !s.Connected {
		return "feed offline"
	}
	if s.LastPing.IsZero() {
		return "feed live"
	}
	return "feed live, last ping " + s.LastPing.UTC().Format("15:04:05")
}
