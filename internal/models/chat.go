package models

import "time"

// Message represents an individual entry within the chat transcript. It contains the core components
// of a chat message including its unique identifier, the participant's role, the text content, and
// the time when the message was created.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time

	// State tracks the terminal annotation of the message. Text content and the typing state are
	// mutable only while the message is the tail of the transcript; everything else is set at
	// creation and never changes.
	State MessageState

	// RetryAfter holds the number of seconds the user should wait before sending another message.
	// It is only meaningful when State is MessageStateRateLimited.
	RetryAfter int
}

// Role represents the role of a message participant.
type Role string

// MessageState represents the lifecycle annotation of a message. Modeling this as a single enum
// keeps contradictory combinations, such as a message that is both typing and failed, unrepresentable.
type MessageState string

const (
	// RoleUser represents a message typed by the site visitor.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the chat backend, including error bubbles.
	RoleAssistant Role = "assistant"

	// MessageStateFinal marks a message whose content is complete and immutable.
	MessageStateFinal MessageState = "final"
	// MessageStateTyping marks an assistant message still receiving streamed content. At most one
	// message in a transcript carries this state at any time.
	MessageStateTyping MessageState = "typing"
	// MessageStateRateLimited marks an assistant bubble produced by a rate-limited turn.
	MessageStateRateLimited MessageState = "rate_limited"
	// MessageStateFailed marks an assistant bubble produced by a failed turn.
	MessageStateFailed MessageState = "failed"
)

// Typing reports whether the message is still receiving streamed content.
func (m Message) Typing() bool {
	return m.State == MessageStateTyping
}

// Errored reports whether the message represents a transport or rate-limit failure rather than
// backend output.
func (m Message) Errored() bool {
	return m.State == MessageStateRateLimited || m.State == MessageStateFailed
}

// StreamEventKind represents the type of an event produced while decoding a streamed chat response.
type StreamEventKind string

const (
	// StreamEventChunk reports newly accumulated content. Content always carries the whole message
	// decoded so far, not the latest fragment.
	StreamEventChunk StreamEventKind = "chunk"
	// StreamEventComplete reports the end of a stream, whether it ran to completion or was stopped.
	StreamEventComplete StreamEventKind = "complete"
	// StreamEventRateLimited reports that the backend refused the turn with a rate limit. Content
	// carries the user-facing explanation and RetryAfter the advised wait in seconds.
	StreamEventRateLimited StreamEventKind = "rate_limited"
)

// StreamEvent is one decoded step of a streamed chat turn.
type StreamEvent struct {
	Kind       StreamEventKind
	Content    string
	RetryAfter int
}
