package chat

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foliochat/folio-chat-ui/internal/models"
	"github.com/google/uuid"
)

// Assistant streams the backend's reply to one chat turn. The history carries the transcript as it
// stood when the turn started, including the user message that opened it. Implementations must call
// stop before each blocking read and terminate through a complete event when it reports true.
type Assistant interface {
	Chat(
		ctx context.Context,
		message string,
		history []models.Message,
		sessionID string,
		stop func() bool,
	) iter.Seq2[models.StreamEvent, error]
}

// SessionStore owns the durable chat session identifier correlating this widget's requests with the
// backend's conversational memory.
type SessionStore interface {
	GetOrCreate() string
	Rotate() string
}

// State represents the orchestrator's position in a chat turn.
type State string

const (
	// StateIdle means no turn is in flight; sends are accepted.
	StateIdle State = "idle"
	// StateSending means a request is in flight but no content has arrived yet.
	StateSending State = "sending"
	// StateStreaming means assistant content is arriving.
	StateStreaming State = "streaming"
)

// ErrBusy is returned when a send or reset is attempted while a previous turn is still in flight.
// Overlapping turns are rejected rather than interleaved, so a streaming update can never land on
// the wrong message.
var ErrBusy = errors.New("a chat turn is already in flight")

const fallbackReply = "I apologize, but I couldn't generate a response."

// Orchestrator composes the session store, the transcript log, and the assistant transport into the
// chat capability the widget handlers consume: send a message, stop answering, start a new chat,
// and observe the transcript with its loading and error state. One orchestrator is bound to one
// chat widget and is safe for concurrent use.
type Orchestrator struct {
	assistant Assistant
	sessions  SessionStore

	mu      sync.Mutex
	state   State
	log     *Log
	lastErr string

	stopFlag atomic.Bool

	onUpdate func()
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator whose transcript is seeded with the given greeting. The
// onUpdate callback, if non-nil, is invoked after every observable transcript or state change; it
// is called without internal locks held.
func NewOrchestrator(
	assistant Assistant,
	sessions SessionStore,
	greeting string,
	onUpdate func(),
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		assistant: assistant,
		sessions:  sessions,
		state:     StateIdle,
		log: NewLog(models.Message{
			ID:        uuid.New().String(),
			Role:      models.RoleAssistant,
			Content:   greeting,
			Timestamp: time.Now(),
			State:     models.MessageStateFinal,
		}),
		onUpdate: onUpdate,
		logger:   logger.With(slog.String("module", "orchestrator")),
	}
}

// SendMessage runs one full chat turn: it appends the user message, sends the request, folds the
// streamed reply into the transcript, and finalizes the assistant message. It blocks until the turn
// reaches a terminal state and returns ErrBusy when another turn is already in flight. Every other
// failure is folded into the transcript or the error field rather than returned.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrBusy
	}
	o.state = StateSending
	o.lastErr = ""
	o.stopFlag.Store(false)
	sessionID := o.sessions.GetOrCreate()
	o.log.Append(models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
		State:     models.MessageStateFinal,
	})
	history := o.log.Messages()
	o.mu.Unlock()
	o.notify()

	defer func() {
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
		o.stopFlag.Store(false)
		o.notify()
	}()

	// Handle of the typing assistant message, issued on the first chunk.
	handle := -1

	for ev, err := range o.assistant.Chat(ctx, text, history, sessionID, o.stopFlag.Load) {
		if err != nil {
			o.failTurn(handle, err)
			return nil
		}

		switch ev.Kind {
		case models.StreamEventRateLimited:
			o.mu.Lock()
			o.log.Append(models.Message{
				ID:         uuid.New().String(),
				Role:       models.RoleAssistant,
				Content:    ev.Content,
				Timestamp:  time.Now(),
				State:      models.MessageStateRateLimited,
				RetryAfter: ev.RetryAfter,
			})
			o.mu.Unlock()
			o.notify()

		case models.StreamEventChunk:
			o.mu.Lock()
			o.state = StateStreaming
			if handle < 0 {
				handle = o.log.Append(models.Message{
					ID:        uuid.New().String(),
					Role:      models.RoleAssistant,
					Content:   ev.Content,
					Timestamp: time.Now(),
					State:     models.MessageStateTyping,
				})
			} else if err := o.log.Update(handle, ev.Content, true); err != nil {
				o.logger.Error("Failed to update streaming message", slog.String("error", err.Error()))
			}
			o.mu.Unlock()
			o.notify()

		case models.StreamEventComplete:
			o.mu.Lock()
			switch {
			case handle >= 0:
				if err := o.log.Update(handle, ev.Content, false); err != nil {
					o.logger.Error("Failed to finalize streaming message", slog.String("error", err.Error()))
				}
			case ev.Content != "":
				o.log.Append(models.Message{
					ID:        uuid.New().String(),
					Role:      models.RoleAssistant,
					Content:   ev.Content,
					Timestamp: time.Now(),
					State:     models.MessageStateFinal,
				})
			default:
				o.log.Append(models.Message{
					ID:        uuid.New().String(),
					Role:      models.RoleAssistant,
					Content:   fallbackReply,
					Timestamp: time.Now(),
					State:     models.MessageStateFinal,
				})
			}
			o.mu.Unlock()
			o.notify()
		}
	}

	return nil
}

// failTurn records a transport or decode failure. A half-decoded assistant message cannot be
// trusted, so any partially streamed tail is discarded along with its content.
func (o *Orchestrator) failTurn(handle int, err error) {
	o.logger.Error("Chat turn failed", slog.String("error", err.Error()))

	o.mu.Lock()
	o.lastErr = err.Error()
	if handle >= 0 {
		if dropErr := o.log.Drop(handle); dropErr != nil {
			o.logger.Error("Failed to discard partial message", slog.String("error", dropErr.Error()))
		}
	}
	o.mu.Unlock()
	o.notify()
}

// StopAnswering requests cooperative cancellation of the in-flight turn. The decode loop observes
// the flag at its next check point and finalizes the partial reply through the normal completion
// path. Calling it while idle has no effect.
func (o *Orchestrator) StopAnswering() {
	o.stopFlag.Store(true)
}

// StartNewChat rotates the session identifier and resets the transcript to the greeting message. It
// returns the new session identifier, or ErrBusy while a turn is in flight.
func (o *Orchestrator) StartNewChat() (string, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return "", ErrBusy
	}
	id := o.sessions.Rotate()
	o.log.Reset()
	o.lastErr = ""
	o.mu.Unlock()
	o.notify()

	return id, nil
}

// ClearError dismisses the error banner from the previous turn.
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	o.lastErr = ""
	o.mu.Unlock()
	o.notify()
}

// Busy reports whether a chat turn is currently in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state != StateIdle
}

// Snapshot returns the current transcript together with the loading flag and the user-visible error
// from the last turn, empty when the last turn succeeded.
func (o *Orchestrator) Snapshot() ([]models.Message, bool, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.log.Messages(), o.state != StateIdle, o.lastErr
}

func (o *Orchestrator) notify() {
	if o.onUpdate != nil {
		o.onUpdate()
	}
}
