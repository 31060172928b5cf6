// Package httpapi is the local HTTP surface the web UI talks to: projection
// reads, navigation actions and the optimistic mutations.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
	"github.com/hirelink/realtime-gateway/internal/service"
)

type Handler struct {
	logger  *slog.Logger
	gateway *service.Gateway
}

func NewHandler(logger *slog.Logger, gateway *service.Gateway) *Handler {
	return &Handler{
		logger:  logger.With(slog.String("component", "httpapi")),
		gateway: gateway,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/v1/connection", h.connection)
	r.Get("/v1/conversations", h.conversations)
	r.Post("/v1/conversations/{peerID}/open", h.openConversation)
	r.Post("/v1/conversations/close", h.closeConversation)
	r.Get("/v1/notifications", h.notifications)
	r.Delete("/v1/notifications/{id}", h.dismiss)
	r.Get("/v1/applications/pending", h.pendingApplications)
	r.Get("/v1/peers/{peerID}/contact", h.peerContact)
	r.Post("/v1/publications/{id}/like", h.toggleLike)
	r.Post("/v1/messages", h.sendMessage)

	return r
}

func (h *Handler) connection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":            h.gateway.ConnectionState().String(),
		"first_connection": h.gateway.FirstConnection(),
	})
}

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": h.gateway.Conversations(),
	})
}

func (h *Handler) openConversation(w http.ResponseWriter, r *http.Request) {
	peerID, err := strconv.ParseInt(chi.URLParam(r, "peerID"), 10, 64)
	if err != nil || peerID <= 0 {
		http.Error(w, "invalid peer id", http.StatusBadRequest)
		return
	}
	h.gateway.OpenConversation(peerID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) closeConversation(w http.ResponseWriter, r *http.Request) {
	h.gateway.CloseConversation()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": h.gateway.Notifications(),
	})
}

func (h *Handler) dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid notification id", http.StatusBadRequest)
		return
	}
	if !h.gateway.Dismiss(id) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pendingApplications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"total": h.gateway.PendingApplications(),
	})
}

func (h *Handler) peerContact(w http.ResponseWriter, r *http.Request) {
	peerID, err := strconv.ParseInt(chi.URLParam(r, "peerID"), 10, 64)
	if err != nil || peerID <= 0 {
		http.Error(w, "invalid peer id", http.StatusBadRequest)
		return
	}

	contact, err := h.gateway.PeerContact(r.Context(), peerID)
	if err != nil {
		h.writeActionError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

type likeRequest struct {
	HasLiked   bool  `json:"has_liked"`
	LikesCount int64 `json:"likes_count"`
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	pubID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || pubID <= 0 {
		http.Error(w, "invalid publication id", http.StatusBadRequest)
		return
	}

	// The UI sends its last known server snapshot; it seeds the optimistic
	// wrapper on first use and is ignored afterwards.
	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	state, err := h.gateway.ToggleLike(r.Context(), model.LikeState{
		PublicationID: pubID,
		HasLiked:      req.HasLiked,
		LikesCount:    req.LikesCount,
	})
	if err != nil {
		h.writeActionError(w, err, state)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type sendMessageRequest struct {
	RecipientID int64  `json:"recipient_id"`
	Content     string `json:"content"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RecipientID <= 0 || req.Content == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	msg, err := h.gateway.SendMessage(r.Context(), req.RecipientID, req.Content)
	if err != nil {
		h.writeActionError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// writeActionError maps the domain taxonomy onto HTTP statuses: busy is a
// soft 409 the UI renders as a hint, auth expiry forces logout with 401,
// everything else is a failed confirmation call.
func (h *Handler) writeActionError(w http.ResponseWriter, err error, state any) {
	switch {
	case errors.Is(err, model.ErrMutationInFlight):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "already in progress",
			"state": state,
		})
	case errors.Is(err, model.ErrAuthExpired):
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": "session expired",
		})
	default:
		h.logger.Warn("ACTION_FAILED", slog.Any("err", err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": "remote call failed",
			"state": state,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
