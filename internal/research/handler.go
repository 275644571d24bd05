package research

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Handler holds the chat HTTP handlers.
type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log.With("component", "http")}
}

// Mount registers the chat routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/", h.Chat)
	r.Get("/{conversationId}", h.History)
	r.Delete("/{conversationId}", h.Delete)
}

// Chat runs one conversation turn.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	reply, err := h.svc.Chat(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, ErrBadRequest) {
			writeError(w, http.StatusBadRequest, "Message is required")
			return
		}
		h.log.Error("chat failed", "conversation_id", req.ConversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Message:        reply,
		ConversationID: req.ConversationID,
	})
}

// History returns the stored messages of a conversation.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationId")
	msgs, err := h.svc.History(r.Context(), id)
	if err != nil {
		h.log.Error("history failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(msgs) == 0 {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, models.Transcript{ConversationID: id, Messages: msgs})
}

// Delete archives and evicts a conversation.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationId")
	key, err := h.svc.End(r.Context(), id)
	if err != nil {
		h.log.Error("end conversation failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	resp := map[string]string{"message": "deleted"}
	if key != "" {
		resp["archive"] = key
	}
	writeJSON(w, http.StatusOK, resp)
}
