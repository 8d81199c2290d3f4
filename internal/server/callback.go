package server

import (
	"fmt"
	"html"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
)

// CallbackResult holds the query parameters of the provider redirect.
type CallbackResult struct {
	Code  string
	State string
	Error string
}

// CallbackHandler captures the first redirect on its path and answers any later one with 404.
type CallbackHandler struct {
	path          string
	expectedState string
	logger        *log.Logger

	mu     sync.Mutex
	served bool
	result chan CallbackResult
	once   sync.Once
}

// NewCallbackHandler creates a handler for path that renders success only when state matches expectedState.
func NewCallbackHandler(path, expectedState string, logger *log.Logger) *CallbackHandler {
	return &CallbackHandler{
		path:          path,
		expectedState: expectedState,
		logger:        logger,
		result:        make(chan CallbackResult, 1),
	}
}

// Routes returns the callback path.
func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

// Result delivers the captured redirect exactly once.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.result
}

// Send publishes result unless one was already delivered.
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.result <- result
	})
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.served {
		h.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	h.served = true
	h.mu.Unlock()

	query := r.URL.Query()
	result := CallbackResult{
		Code:  query.Get("code"),
		State: query.Get("state"),
		Error: query.Get("error"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case result.Error != "":
		h.logger.Warn("authorization denied by provider", "error", result.Error)
		w.WriteHeader(http.StatusBadRequest)
		writePage(w, "Spotify authorization failed", "The provider returned: "+result.Error)
	case result.State != h.expectedState:
		h.logger.Warn("callback state mismatch")
		w.WriteHeader(http.StatusBadRequest)
		writePage(w, "Spotify authorization failed", "The login request did not match. Run login again.")
	case result.Code == "":
		w.WriteHeader(http.StatusBadRequest)
		writePage(w, "Spotify authorization failed", "No authorization code was received.")
	default:
		w.WriteHeader(http.StatusOK)
		writePage(w, "Spotify connected", "You can close this tab and return to the terminal.")
	}

	h.Send(result)
}

func writePage(w http.ResponseWriter, title, message string) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%[1]s</title></head>
<body style="font-family: sans-serif; padding: 2rem;">
<h1>%[1]s</h1>
<p>%[2]s</p>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(message))
}
