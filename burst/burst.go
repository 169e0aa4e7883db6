// Package burst implements C3: per-user coalescing of messages that
// arrive in quick succession into a single unit handed to the queue.
package burst

import (
	"sync"
	"time"

	"github.com/coralcommerce/dispatcher/models"
)

// Emit is called once per user when a coalescing window closes, with
// the concatenated InboundMessage ready for C4.
type Emit func(models.InboundMessage)

type userBuffer struct {
	mu      sync.Mutex
	pending []models.InboundMessage
	timer   *time.Timer
	armedAt time.Time
}

// Buffer holds one userBuffer per active user. Coalescing window and
// max-wait are configurable; defaults are a 5s window and a 2x max
// wait.
type Buffer struct {
	window  time.Duration
	maxWait time.Duration
	emit    Emit

	mu   sync.Mutex
	byID map[string]*userBuffer
}

func New(window, maxWait time.Duration, emit Emit) *Buffer {
	if maxWait < window {
		maxWait = 2 * window
	}
	return &Buffer{
		window:  window,
		maxWait: maxWait,
		emit:    emit,
		byID:    make(map[string]*userBuffer),
	}
}

// Enqueue appends msg to the user's pending list, arming or resetting
// the coalescing timer. A message arriving while pending is non-empty
// resets the timer up to maxWait to bound added latency.
func (b *Buffer) Enqueue(msg models.InboundMessage) {
	ub := b.bufferFor(msg.UserID)

	ub.mu.Lock()
	defer ub.mu.Unlock()

	ub.pending = append(ub.pending, msg)

	if ub.timer == nil {
		ub.armedAt = time.Now()
		ub.timer = time.AfterFunc(b.window, func() { b.flush(msg.UserID) })
		return
	}

	elapsed := time.Since(ub.armedAt)
	remaining := b.maxWait - elapsed
	if remaining <= 0 {
		return // already at max wait; let the in-flight timer fire as scheduled
	}
	reset := b.window
	if reset > remaining {
		reset = remaining
	}
	ub.timer.Reset(reset)
}

func (b *Buffer) flush(userID string) {
	ub := b.bufferFor(userID)

	ub.mu.Lock()
	pending := ub.pending
	ub.pending = nil
	ub.timer = nil
	ub.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	b.emit(coalesce(pending))
}

func coalesce(msgs []models.InboundMessage) models.InboundMessage {
	if len(msgs) == 1 {
		return msgs[0]
	}
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	merged := msgs[0]
	merged.Text = joinLines(texts)
	merged.TransportMessageID = msgs[len(msgs)-1].TransportMessageID // latest
	merged.ArrivedAt = msgs[0].ArrivedAt                             // earliest
	return merged
}

func joinLines(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n" + p
	}
	return out
}

func (b *Buffer) bufferFor(userID string) *userBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	ub, ok := b.byID[userID]
	if !ok {
		ub = &userBuffer{}
		b.byID[userID] = ub
	}
	return ub
}
