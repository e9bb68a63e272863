package chat_test

import (
	"errors"
	"testing"

	"github.com/foliochat/folio-chat-ui/internal/chat"
	"github.com/foliochat/folio-chat-ui/internal/models"
)

func greeting() models.Message {
	return models.Message{
		ID:      "greeting",
		Role:    models.RoleAssistant,
		Content: "Hello! How can I help you today?",
		State:   models.MessageStateFinal,
	}
}

func TestLogReset(t *testing.T) {
	tests := []struct {
		name    string
		appends int
	}{
		{name: "Fresh log", appends: 0},
		{name: "After one message", appends: 1},
		{name: "After several messages", appends: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := chat.NewLog(greeting())
			for i := 0; i < tt.appends; i++ {
				l.Append(models.Message{Role: models.RoleUser, Content: "hi", State: models.MessageStateFinal})
			}

			l.Reset()

			msgs := l.Messages()
			if len(msgs) != 1 {
				t.Fatalf("Reset() left %d messages, want 1", len(msgs))
			}
			if msgs[0] != greeting() {
				t.Errorf("Reset() sole message = %+v, want the greeting", msgs[0])
			}
		})
	}
}

func TestLogUpdateLastOnEmptyLog(t *testing.T) {
	var l chat.Log

	l.UpdateLast("content", true)

	if l.Len() != 0 {
		t.Errorf("UpdateLast() on empty log changed length to %d, want 0", l.Len())
	}
}

func TestLogUpdateLast(t *testing.T) {
	l := chat.NewLog(greeting())
	l.Append(models.Message{
		ID:      "a1",
		Role:    models.RoleAssistant,
		Content: "He",
		State:   models.MessageStateTyping,
	})

	l.UpdateLast("Hello", false)

	msgs := l.Messages()
	last := msgs[len(msgs)-1]
	if last.Content != "Hello" {
		t.Errorf("UpdateLast() content = %q, want %q", last.Content, "Hello")
	}
	if last.State != models.MessageStateFinal {
		t.Errorf("UpdateLast() state = %q, want %q", last.State, models.MessageStateFinal)
	}
	if last.ID != "a1" || last.Role != models.RoleAssistant {
		t.Errorf("UpdateLast() touched immutable fields: %+v", last)
	}
}

func TestLogUpdateRejectsStaleHandle(t *testing.T) {
	l := chat.NewLog(greeting())
	handle := l.Append(models.Message{Role: models.RoleAssistant, State: models.MessageStateTyping})
	l.Append(models.Message{Role: models.RoleUser, Content: "interleaved", State: models.MessageStateFinal})

	err := l.Update(handle, "late content", true)

	if !errors.Is(err, chat.ErrStaleHandle) {
		t.Fatalf("Update() with stale handle error = %v, want ErrStaleHandle", err)
	}
	if got := l.Messages()[handle].Content; got != "" {
		t.Errorf("Update() with stale handle mutated message content to %q", got)
	}
}

func TestLogDrop(t *testing.T) {
	l := chat.NewLog(greeting())
	handle := l.Append(models.Message{Role: models.RoleAssistant, Content: "partial", State: models.MessageStateTyping})

	if err := l.Drop(handle); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("Drop() left %d messages, want 1", l.Len())
	}

	if err := l.Drop(5); !errors.Is(err, chat.ErrStaleHandle) {
		t.Errorf("Drop() with stale handle error = %v, want ErrStaleHandle", err)
	}
}
