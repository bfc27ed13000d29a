package notifier

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tutorboard/notifier/pkg/broadcast"
	"github.com/tutorboard/notifier/pkg/logger"
)

// Router returns the HTTP surface of the service. Authentication is the
// caller's concern: recipients are identified by an explicit recipient_id
// field, so the router is meant to be mounted behind an authenticating
// gateway that injects it.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Post("/broadcasts", s.handleCreateBroadcast)
	r.Get("/notifications", s.handleListNotifications)
	r.Get("/notifications/unread-count", s.handleUnreadCount)
	r.Post("/notifications/{broadcastID}/read", s.handleMarkRead)
	r.Post("/webhooks/email-open", s.handleEmailOpen)

	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Health(r.Context()))
}

type createBroadcastRequest struct {
	Kind              string         `json:"kind"`
	Title             string         `json:"title"`
	Body              string         `json:"body"`
	CreatedBy         string         `json:"created_by"`
	RelatedEntityID   *uuid.UUID     `json:"related_entity_id,omitempty"`
	RelatedEntityKind string         `json:"related_entity_kind,omitempty"`
	TemplateData      map[string]any `json:"template_data,omitempty"`
}

func (s *Service) handleCreateBroadcast(w http.ResponseWriter, r *http.Request) {
	var req createBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.NotifyAll(r.Context(), NotifyAllParams{
		Kind:              broadcast.Kind(req.Kind),
		Title:             req.Title,
		Body:              req.Body,
		CreatedBy:         req.CreatedBy,
		RelatedEntityID:   req.RelatedEntityID,
		RelatedEntityKind: req.RelatedEntityKind,
		TemplateData:      req.TemplateData,
	})
	if err != nil {
		if errors.Is(err, broadcast.ErrInvalidBroadcast) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to create broadcast", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create broadcast")
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

func (s *Service) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := recipientIDFromQuery(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	items, err := s.ListForRecipient(r.Context(), recipientID, limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list notifications", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if items == nil {
		items = []broadcast.FeedItem{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func (s *Service) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := recipientIDFromQuery(w, r)
	if !ok {
		return
	}

	n, err := s.UnreadCount(r.Context(), recipientID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to count unread notifications", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to count unread notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

type markReadRequest struct {
	RecipientID uuid.UUID `json:"recipient_id"`
}

func (s *Service) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	broadcastID, err := uuid.Parse(chi.URLParam(r, "broadcastID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid broadcast id")
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RecipientID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "recipient_id is required")
		return
	}

	if err := s.MarkRead(r.Context(), broadcastID, req.RecipientID); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to mark notification read", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type emailOpenEvent struct {
	BroadcastID uuid.UUID `json:"broadcast_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
}

func (s *Service) handleEmailOpen(w http.ResponseWriter, r *http.Request) {
	var ev emailOpenEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil ||
		ev.BroadcastID == uuid.Nil || ev.RecipientID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "broadcast_id and recipient_id are required")
		return
	}

	// Open tracking never fails the webhook; the provider retries on 5xx
	// and these events are advisory.
	_ = s.MarkEmailOpened(r.Context(), ev.BroadcastID, ev.RecipientID)

	w.WriteHeader(http.StatusNoContent)
}

func recipientIDFromQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.URL.Query().Get("recipient_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "recipient_id is required")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
