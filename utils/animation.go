package utils

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// MessageFrame is one full render of a panel message
type MessageFrame struct {
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// MessageEditor is the slice of *discordgo.Session the writer needs
type MessageEditor interface {
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// FrameWriter applies frames to one message from a single goroutine.
// Push never blocks; frames that arrive while an edit is in flight are
// coalesced so only the newest one is written next.
type FrameWriter struct {
	editor    MessageEditor
	channelID string
	messageID string
	limiter   *RateLimiter

	mu      sync.Mutex
	pending *MessageFrame
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewFrameWriter(editor MessageEditor, channelID, messageID string, limiter *RateLimiter) *FrameWriter {
	ctx, cancel := context.WithCancel(context.Background())
	w := &FrameWriter{
		editor:    editor,
		channelID: channelID,
		messageID: messageID,
		limiter:   limiter,
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *FrameWriter) MessageID() string { return w.messageID }
func (w *FrameWriter) ChannelID() string { return w.channelID }

// Push queues a frame, replacing any frame not yet written
func (w *FrameWriter) Push(f MessageFrame) {
	w.mu.Lock()
	w.pending = &f
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close stops the writer; an unwritten frame is dropped
func (w *FrameWriter) Close() {
	w.cancel()
	<-w.done
}

// Done is closed once the writer has stopped
func (w *FrameWriter) Done() <-chan struct{} { return w.done }

func (w *FrameWriter) run() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.wake:
		}

		w.mu.Lock()
		frame := w.pending
		w.pending = nil
		w.mu.Unlock()
		if frame == nil {
			continue
		}

		if w.limiter != nil {
			if err := w.limiter.Wait(w.ctx); err != nil {
				return
			}
		}
		if !w.write(frame) {
			return
		}
	}
}

// write reports false when the message is gone and the writer should stop
func (w *FrameWriter) write(frame *MessageFrame) bool {
	embeds := []*discordgo.MessageEmbed{frame.Embed}
	components := frame.Components
	start := time.Now()
	_, err := w.editor.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         w.messageID,
		Channel:    w.channelID,
		Embeds:     &embeds,
		Components: &components,
	})
	FrameEditLatency.Observe(time.Since(start).Seconds())
	if err == nil {
		FrameEdits.WithLabelValues("ok").Inc()
		return true
	}

	FrameEdits.WithLabelValues("error").Inc()
	Logger().Warn("panel edit failed",
		zap.String("channel_id", w.channelID),
		zap.String("message_id", w.messageID),
		zap.Error(err),
	)
	return !isMessageGoneError(err)
}
