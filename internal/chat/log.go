package chat

import (
	"errors"

	"github.com/foliochat/folio-chat-ui/internal/models"
)

// ErrStaleHandle is returned when a turn handle no longer refers to the tail of the log, which
// happens when another message was appended after the handle was issued.
var ErrStaleHandle = errors.New("turn handle does not refer to the last message")

// Log holds the ordered transcript of one chat widget. It is created with a single seeded greeting
// message and only ever grows by appends, except for in-place mutation of the tail while an
// assistant turn is streaming. Log is not safe for concurrent use; the orchestrator owning it
// serializes access.
type Log struct {
	greeting models.Message
	messages []models.Message
}

// NewLog creates a transcript seeded with the given greeting message. Reset truncates back to this
// exact message later on.
func NewLog(greeting models.Message) *Log {
	return &Log{
		greeting: greeting,
		messages: []models.Message{greeting},
	}
}

// Append adds a message to the end of the transcript and returns a handle identifying the turn.
// The handle stays valid only while the message remains the tail of the log.
func (l *Log) Append(msg models.Message) int {
	l.messages = append(l.messages, msg)
	return len(l.messages) - 1
}

// Update replaces the content and typing state of the message identified by handle, leaving every
// other field untouched. It fails with ErrStaleHandle when the handle no longer addresses the tail,
// so an overlapping turn can never mutate the wrong message.
func (l *Log) Update(handle int, content string, typing bool) error {
	if handle != len(l.messages)-1 {
		return ErrStaleHandle
	}
	l.setTail(content, typing)
	return nil
}

// UpdateLast replaces the content and typing state of the last message. It is a no-op on an empty
// log.
func (l *Log) UpdateLast(content string, typing bool) {
	if len(l.messages) == 0 {
		return
	}
	l.setTail(content, typing)
}

func (l *Log) setTail(content string, typing bool) {
	last := &l.messages[len(l.messages)-1]
	last.Content = content
	if typing {
		last.State = models.MessageStateTyping
	} else {
		last.State = models.MessageStateFinal
	}
}

// Drop removes the message identified by handle from the transcript. Like Update, it only applies
// to the tail; it is used to discard a partially streamed message after a decode failure.
func (l *Log) Drop(handle int) error {
	if handle < 0 || handle != len(l.messages)-1 {
		return ErrStaleHandle
	}
	l.messages = l.messages[:handle]
	return nil
}

// Reset truncates the transcript back to the single greeting message captured at construction time.
func (l *Log) Reset() {
	l.messages = append(l.messages[:0], l.greeting)
}

// Messages returns a copy of the transcript in conversation order.
func (l *Log) Messages() []models.Message {
	out := make([]models.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages in the transcript.
func (l *Log) Len() int {
	return len(l.messages)
}
