package handlers

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"time"

	foliochat "github.com/foliochat/folio-chat-ui"
	"github.com/foliochat/folio-chat-ui/internal/chat"
	"github.com/foliochat/folio-chat-ui/internal/models"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	highlighting "github.com/yuin/goldmark-highlighting"
)

const (
	messagesSSETopic = "messages"

	errLoggerKey = "error"
)

var messagesSSEType = sse.Type("messages")

// message is the view model for one transcript bubble.
type message struct {
	ID        string
	Role      string
	HTML      template.HTML
	Timestamp time.Time

	State      string
	RetryAfter int
}

// Main handles the HTTP surface of the chat widget. It owns the orchestrator bound to this widget,
// renders the transcript through HTML templates, and pushes every transcript change to connected
// browsers over Server-Sent Events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	orch *chat.Orchestrator

	logger *slog.Logger
}

// NewMain creates a Main instance wired to the given assistant transport and session store. The
// transcript is seeded with the greeting message, and every subsequent orchestrator update is
// published to the messages SSE topic.
func NewMain(
	assistant chat.Assistant,
	sessions chat.SessionStore,
	greeting string,
	logger *slog.Logger,
) (*Main, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("monokai"),
			),
		),
	)

	tmpl, err := template.ParseFS(
		foliochat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return nil, err
	}

	m := &Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, messagesSSETopic},
				}, true
			},
		},
		templates: tmpl,
		markdown:  md,
		logger:    logger.With(slog.String("module", "handlers")),
	}
	m.orch = chat.NewOrchestrator(assistant, sessions, greeting, m.publishMessages, logger)

	return m, nil
}

// publishMessages renders the current transcript and pushes it to all subscribed browsers.
func (m *Main) publishMessages() {
	messages, loading, errStr := m.orch.Snapshot()

	var sb bytes.Buffer
	err := m.templates.ExecuteTemplate(&sb, "chat_messages", transcriptData{
		Messages: m.viewMessages(messages),
		Loading:  loading,
		Error:    errStr,
	})
	if err != nil {
		m.logger.Error("Failed to render transcript", slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{Type: messagesSSEType}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg, messagesSSETopic); err != nil {
		m.logger.Error("Failed to publish transcript", slog.String(errLoggerKey, err.Error()))
	}
}

type transcriptData struct {
	Messages []message
	Loading  bool
	Error    string
}

// viewMessages converts transcript messages into renderable bubbles. Backend output is rendered as
// markdown; user input and error bubbles are escaped verbatim.
func (m *Main) viewMessages(messages []models.Message) []message {
	out := make([]message, len(messages))
	for i, msg := range messages {
		html := template.HTML(template.HTMLEscapeString(msg.Content))
		if msg.Role == models.RoleAssistant && !msg.Errored() {
			var buf bytes.Buffer
			if err := m.markdown.Convert([]byte(msg.Content), &buf); err != nil {
				m.logger.Error("Failed to render markdown", slog.String(errLoggerKey, err.Error()))
			} else {
				html = template.HTML(buf.String())
			}
		}
		out[i] = message{
			ID:         msg.ID,
			Role:       string(msg.Role),
			HTML:       html,
			Timestamp:  msg.Timestamp,
			State:      string(msg.State),
			RetryAfter: msg.RetryAfter,
		}
	}
	return out
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all connected
// clients and waits up to 5 seconds for connections to terminate.
func (m *Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	e.AppendData("bye")

	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
