package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/foliochat/folio-chat-ui/internal/chat"
)

// HandleChat accepts the visitor's message through a "message" form field and starts a chat turn.
// The turn runs asynchronously; the transcript updates reach the browser through the messages SSE
// topic rather than this response. Requests arriving while a turn is still in flight are rejected,
// never interleaved.
func (m *Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")
	if msg == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	if m.orch.Busy() {
		http.Error(w, "A reply is still in progress", http.StatusConflict)
		return
	}

	go func() {
		// The send guard is authoritative; losing the race after the Busy check above only means
		// this turn is dropped like any other overlapping send.
		if err := m.orch.SendMessage(context.Background(), msg); err != nil {
			if errors.Is(err, chat.ErrBusy) {
				m.logger.Warn("Dropped overlapping chat turn")
				return
			}
			m.logger.Error("Failed to run chat turn", slog.String(errLoggerKey, err.Error()))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

// HandleStop requests cooperative cancellation of the in-flight reply. The decode loop finishes the
// current frame and finalizes the partial message through the normal completion path.
func (m *Main) HandleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.orch.StopAnswering()
	w.WriteHeader(http.StatusNoContent)
}

// HandleNewChat rotates the session identifier and resets the transcript to the greeting message.
func (m *Main) HandleNewChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := m.orch.StartNewChat(); err != nil {
		if errors.Is(err, chat.ErrBusy) {
			http.Error(w, "A reply is still in progress", http.StatusConflict)
			return
		}
		m.logger.Error("Failed to start new chat", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDismissError clears the error banner left by the previous turn.
func (m *Main) HandleDismissError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.orch.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE serves the Server-Sent Events stream carrying transcript updates.
func (m *Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}
