package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gwi.com/chatsync/internal/core"
	"gwi.com/chatsync/internal/model"
	"gwi.com/chatsync/internal/store"
)

// APIHandler exposes one core.Session over HTTP.
type APIHandler struct {
	session *core.Session
	token   string
	log     *zap.Logger
}

// NewAPIHandler serves session. When token is empty the API is open.
func NewAPIHandler(session *core.Session, token string, log *zap.Logger) *APIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIHandler{session: session, token: token, log: log}
}

func (h *APIHandler) TokenAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(tokenString), []byte(h.token)) != 1 {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps session errors onto status codes.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var subErr *core.SubmissionError
	switch {
	case errors.Is(err, core.ErrEmptyQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrUnauthenticated):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, core.ErrBusy), errors.Is(err, core.ErrNoConversation), errors.Is(err, core.ErrConversationChanged):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Conversation not found", http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Backend timed out", http.StatusGatewayTimeout)
	case errors.As(err, &subErr):
		http.Error(w, subErr.Error(), http.StatusBadGateway)
	default:
		h.log.Error("request_failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Backend request failed", http.StatusBadGateway)
	}
}

func (h *APIHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.View())
}

// EventsHandler streams every view change as a server-sent event.
func (h *APIHandler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	views, cancel := h.session.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	_, _ = w.Write([]byte(":\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case view := <-views:
			data, err := json.Marshal(view)
			if err != nil {
				h.log.Warn("encode_view_failed", zap.Error(err))
				continue
			}
			_, _ = w.Write([]byte("event: view\ndata: "))
			_, _ = w.Write(data)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	convs, err := h.session.Conversations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

type SelectRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SelectConversationHandler opens a conversation. An empty id returns to the
// welcome state. A failed history fetch still selects; the view reports it
// as degraded.
func (h *APIHandler) SelectConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == "" && req.ID != "" {
		req.Title = h.lookupTitle(r.Context(), req.ID)
	}
	if err := h.session.Select(r.Context(), req.ID, req.Title); err != nil {
		h.log.Warn("select_conversation_degraded", zap.String("conversation_id", req.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, h.session.View())
}

func (h *APIHandler) lookupTitle(ctx context.Context, id string) string {
	for _, c := range h.session.View().Conversations {
		if c.ID == id {
			return c.Title
		}
	}
	convs, err := h.session.Conversations(ctx)
	if err != nil {
		return ""
	}
	for _, c := range convs {
		if c.ID == id {
			return c.Title
		}
	}
	return ""
}

type RenameRequest struct {
	Title string `json:"title"`
}

func (h *APIHandler) RenameConversationHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.session.Rename(r.Context(), id, req.Title); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.View())
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	if err := h.session.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type PostMessageRequest struct {
	Text string `json:"text"`
}

type PostMessageResponse struct {
	Message *model.Message `json:"message"`
	View    core.View      `json:"view"`
}

// PostMessageHandler submits a message and answers once it is accepted; the
// reply arrives later through /api/events.
func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := h.session.Submit(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, PostMessageResponse{Message: msg, View: h.session.View()})
}

func (h *APIHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Refresh(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.View())
}
