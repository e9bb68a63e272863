package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type homePageData struct {
	Messages []message
	Loading  bool
	Error    string
}

// HandleHome renders the chat widget page with the current transcript snapshot.
func (m *Main) HandleHome(w http.ResponseWriter, _ *http.Request) {
	messages, loading, errStr := m.orch.Snapshot()

	data := homePageData{
		Messages: m.viewMessages(messages),
		Loading:  loading,
		Error:    errStr,
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleHealth reports process liveness for deploy probes.
func (m *Main) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
