package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseEvents(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive comment",
		"id: 1",
		"event: BANNER",
		`data: {"version":"2.0"}`,
		"",
		"event: DEBUG_TEXT",
		"data: line one",
		"data: line two",
		"",
		"data: anonymous",
		"",
		"id: 7",
		"event: PING",
		`data: {"timestampMs":1700000000000}`,
	}, "\n")

	var got []Event
	lastID, err := ParseEvents(strings.NewReader(stream), func(e Event) { got = append(got, e) })
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if lastID != "7" {
		t.Errorf("expected last id 7, got %q", lastID)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}

	if got[0].Name != EventBanner || string(got[0].Data) != `{"version":"2.0"}` {
		t.Errorf("unexpected banner %+v", got[0])
	}
	if string(got[1].Data) != "line one\nline two" {
		t.Errorf("multi-line data not joined: %q", got[1].Data)
	}
	if got[2].Name != "message" {
		t.Errorf("expected default event name, got %q", got[2].Name)
	}
	if got[3].Name != EventPing {
		t.Errorf("expected trailing PING dispatched at EOF, got %+v", got[3])
	}
}

func TestLiveStatusObserve(t *testing.T) {
	var s LiveStatus
	if err := s.Observe(Event{Name: EventBanner, Data: []byte(`{"version":"9.9"}`)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Observe(Event{Name: EventPing, Data: []byte(`{"timestampMs":1000}`)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Observe(Event{Name: EventSpinResult, Data: []byte(`not json`)}); err != nil {
		t.Errorf("spin results should be ignored, got %v", err)
	}
	if err := s.Observe(Event{Name: EventPing, Data: []byte(`nope`)}); err == nil {
		t.Error("expected decode error for bad ping")
	}

	snap := s.Snapshot()
	if snap.Version != "9.9" || !snap.LastPing.Equal(time.UnixMilli(1000)) || snap.Connected {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Label() != "feed offline" {
		t.Errorf("unexpected label %q", snap.Label())
	}
	s.SetConnected(true)
	if !strings.HasPrefix(s.Snapshot().Label(), "feed live") {
		t.Errorf("unexpected label %q", s.Snapshot().Label())
	}
}

func TestEventFeedRun(t *testing.T) {
	var (
		mu      sync.Mutex
		lastIDs []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lastIDs = append(lastIDs, r.Header.Get("Last-Event-ID"))
		n := len(lastIDs)
		mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "id: %d\nevent: BANNER\ndata: {\"version\":\"1\"}\n\n", n)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var states []bool
	feed := NewClient(srv.URL).Events().WithRetry(5 * time.Millisecond)
	feed.OnConnect = func(ok bool) { states = append(states, ok) }

	banners := 0
	err := feed.Run(ctx, func(e Event) {
		if e.Name == EventBanner {
			banners++
		}
		if banners == 2 {
			cancel()
		}
	})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(lastIDs) < 2 || lastIDs[0] != "" || lastIDs[1] != "1" {
		t.Errorf("expected reconnect with Last-Event-ID 1, got %v", lastIDs)
	}
	if len(states) < 2 || !states[0] || states[1] {
		t.Errorf("expected connect then disconnect, got %v", states)
	}
}
