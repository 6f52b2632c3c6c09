package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"social_automation/internal/models"
)

// notificationService is the service-layer surface the handlers need. The
// presentation layer polls these; nothing is pushed from the core.
type notificationService interface {
	List(ctx context.Context, userID int64, page, pageSize int, unreadOnly bool) ([]*models.Notification, *models.Pagination, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, userID int64, ids []int64) error
	MarkAllRead(ctx context.Context, userID int64) error
	RealtimeFeed(ctx context.Context, userID int64) ([]json.RawMessage, error)
}

type NotificationHandler struct {
	svc    notificationService
	logger *logrus.Logger
}

func NewNotificationHandler(svc notificationService, logger *logrus.Logger) *NotificationHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NotificationHandler{svc: svc, logger: logger}
}

// GET /api/users/{user_id}/notifications?page=1&page_size=20&unread_only=false
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	page := 1
	if ps := r.URL.Query().Get("page"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 {
			page = v
		}
	}

	pageSize := 20
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	items, pagination, err := h.svc.List(ctx, userID, page, pageSize, unreadOnly)
	if err != nil {
		h.logger.WithError(err).Error("list notifications")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"pagination":    pagination,
	})
}

// GET /api/users/{user_id}/notifications/unread_count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	count, err := h.svc.UnreadCount(ctx, userID)
	if err != nil {
		h.logger.WithError(err).Error("unread count")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"unread_count": count})
}

// POST /api/users/{user_id}/notifications/read  body: {"ids": [1,2,3]}
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		http.Error(w, "ids is required", http.StatusBadRequest)
		return
	}

	if err := h.svc.MarkRead(ctx, userID, req.IDs); err != nil {
		h.logger.WithError(err).Error("mark read")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// POST /api/users/{user_id}/notifications/read_all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.MarkAllRead(ctx, userID); err != nil {
		h.logger.WithError(err).Error("mark all read")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// GET /api/users/{user_id}/notifications/feed
func (h *NotificationHandler) RealtimeFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	feed, err := h.svc.RealtimeFeed(ctx, userID)
	if err != nil {
		h.logger.WithError(err).Error("realtime feed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if feed == nil {
		feed = []json.RawMessage{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"feed": feed})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
