package utils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

type blockingEditor struct {
	mu      sync.Mutex
	titles  []string
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingEditor() *blockingEditor {
	return &blockingEditor{started: make(chan struct{}, 16), release: make(chan struct{}, 16)}
}

func (e *blockingEditor) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	e.mu.Lock()
	e.titles = append(e.titles, (*m.Embeds)[0].Title)
	e.mu.Unlock()
	e.started <- struct{}{}
	<-e.release
	return &discordgo.Message{ID: m.ID}, e.err
}

func (e *blockingEditor) seen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.titles...)
}

func frameTitled(title string) MessageFrame {
	return MessageFrame{Embed: &discordgo.MessageEmbed{Title: title}}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for edit")
	}
}

func TestFrameWriterCoalescesToLatest(t *testing.T) {
	ed := newBlockingEditor()
	w := NewFrameWriter(ed, "c1", "m1", nil)
	defer w.Close()

	w.Push(frameTitled("1"))
	waitSignal(t, ed.started)

	for _, title := range []string{"2", "3", "4", "5"} {
		w.Push(frameTitled(title))
	}
	ed.release <- struct{}{}

	waitSignal(t, ed.started)
	ed.release <- struct{}{}

	got := ed.seen()
	if len(got) != 2 || got[0] != "1" || got[1] != "5" {
		t.Errorf("expected edits [1 5], got %v", got)
	}
}

func TestFrameWriterStopsWhenMessageGone(t *testing.T) {
	ed := newBlockingEditor()
	ed.err = &MockError{Message: "HTTP 404 Not Found, Unknown Message"}
	w := NewFrameWriter(ed, "c1", "m1", nil)

	w.Push(frameTitled("1"))
	waitSignal(t, ed.started)
	ed.release <- struct{}{}

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("writer kept running after the message was deleted")
	}
	w.Close()
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
