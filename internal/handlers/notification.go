package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"redas-backend/internal/models"
	"redas-backend/internal/repository"
)

// NotificationHandler serves the caller's own inbox.
type NotificationHandler struct {
	inbox repository.NotificationRepository
	log   *zap.Logger
}

func NewNotificationHandler(inbox repository.NotificationRepository, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{inbox: inbox, log: log}
}

// List returns a page of notifications, newest first.
// Query: filter (read|unread), type, page, per_page.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	f := models.NotificationFilter{
		Status:  q.Get("filter"),
		Type:    q.Get("type"),
		Page:    page,
		PerPage: perPage,
	}
	f.Normalize()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := h.inbox.List(ctx, actor.ID, f)
	if err != nil {
		h.log.Error("list notifications", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}
	if result.Data == nil {
		result.Data = []models.Notification{}
	}
	JSON(w, http.StatusOK, result)
}

// UnreadCount returns {"count": n} for the notification badge.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	n, err := h.inbox.UnreadCount(ctx, actor.ID)
	if err != nil {
		h.log.Error("count unread notifications", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to count notifications")
		return
	}
	JSON(w, http.StatusOK, map[string]int{"count": n})
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.inbox.MarkRead(ctx, actor.ID, id); err != nil {
		h.notificationError(w, err, "Failed to mark notification as read")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

// MarkAllRead marks every unread notification of the caller as read.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	n, err := h.inbox.MarkAllRead(ctx, actor.ID)
	if err != nil {
		h.log.Error("mark all notifications read", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to mark notifications as read")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "All notifications marked as read",
		"count":   n,
	})
}

// Delete removes one of the caller's notifications.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.inbox.Delete(ctx, actor.ID, id); err != nil {
		h.notificationError(w, err, "Failed to delete notification")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Notification deleted"})
}

// DeleteRead removes every read notification of the caller.
func (h *NotificationHandler) DeleteRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	n, err := h.inbox.DeleteAll(ctx, actor.ID, true)
	if err != nil {
		h.log.Error("delete read notifications", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to delete notifications")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Read notifications deleted",
		"count":   n,
	})
}

func (h *NotificationHandler) notificationError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, repository.ErrNotificationNotFound) {
		JSONError(w, http.StatusNotFound, "Notification not found")
		return
	}
	h.log.Error(fallback, zap.Error(err))
	JSONError(w, http.StatusInternalServerError, fallback)
}
