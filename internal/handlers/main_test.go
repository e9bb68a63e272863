package handlers_test

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/foliochat/folio-chat-ui/internal/handlers"
	"github.com/foliochat/folio-chat-ui/internal/models"
)

const testGreeting = "Hello! How can I help you today?"

type mockAssistant struct {
	events []models.StreamEvent
	err    error
}

func (m *mockAssistant) Chat(
	_ context.Context,
	_ string,
	_ []models.Message,
	_ string,
	_ func() bool,
) iter.Seq2[models.StreamEvent, error] {
	return func(yield func(models.StreamEvent, error) bool) {
		for _, ev := range m.events {
			if !yield(ev, nil) {
				return
			}
		}
		if m.err != nil {
			yield(models.StreamEvent{}, m.err)
		}
	}
}

type mockSessions struct {
	id string
}

func (m *mockSessions) GetOrCreate() string {
	if m.id == "" {
		m.id = "session-1"
	}
	return m.id
}

func (m *mockSessions) Rotate() string {
	m.id = "session-rotated"
	return m.id
}

func newTestMain(t *testing.T) *handlers.Main {
	t.Helper()

	assistant := &mockAssistant{
		events: []models.StreamEvent{{Kind: models.StreamEventComplete, Content: "AI response"}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m, err := handlers.NewMain(assistant, &mockSessions{}, testGreeting, logger)
	if err != nil {
		t.Fatalf("NewMain() error = %v", err)
	}
	return m
}

func TestNewMain(t *testing.T) {
	m := newTestMain(t)

	if m.Shutdown(context.Background()) != nil {
		t.Error("Shutdown() should not return error")
	}
}

func TestHandleHome(t *testing.T) {
	m := newTestMain(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	m.HandleHome(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("HandleHome() status = %v, want %v", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), testGreeting) {
		t.Errorf("HandleHome() body = %v, want to contain the greeting", w.Body.String())
	}
}

func TestHandleChat(t *testing.T) {
	m := newTestMain(t)

	tests := []struct {
		name       string
		method     string
		message    string
		wantStatus int
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Empty message",
			method:     http.MethodPost,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Valid message",
			method:     http.MethodPost,
			message:    "Hello",
			wantStatus: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := strings.NewReader("message=" + tt.message)
			req := httptest.NewRequest(tt.method, "/chats", form)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			m.HandleChat(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleChat() status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleStop(t *testing.T) {
	m := newTestMain(t)

	req := httptest.NewRequest(http.MethodPost, "/chats/stop", nil)
	w := httptest.NewRecorder()

	m.HandleStop(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("HandleStop() status = %v, want %v", w.Code, http.StatusNoContent)
	}
}

func TestHandleNewChat(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		wantStatus int
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "New chat",
			method:     http.MethodPost,
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMain(t)

			req := httptest.NewRequest(tt.method, "/chats/new", nil)
			w := httptest.NewRecorder()

			m.HandleNewChat(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleNewChat() status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	m := newTestMain(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	m.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("HandleHealth() status = %v, want %v", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("HandleHealth() body = %v, want to contain %q", w.Body.String(), "healthy")
	}
}
