// internal/handlers/notification/notification_handler.go
package notification

import (
	"net/http"
	"strconv"

	"ruleboard-service/internal/cache"
	"ruleboard-service/internal/domain/notification"
	"ruleboard-service/internal/middleware"
	xerrors "ruleboard-service/internal/pkg/errors"
	"ruleboard-service/internal/pkg/response"
	"ruleboard-service/internal/repository/postgres"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	repo        *postgres.NotificationRepository
	invalidator cache.Invalidator
	logger      *zap.Logger
}

func NewNotificationHandler(repo *postgres.NotificationRepository, invalidator cache.Invalidator, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		repo:        repo,
		invalidator: invalidator,
		logger:      logger,
	}
}

// GetLatest retrieves the recent-activity window for the current user.
func (h *NotificationHandler) GetLatest(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	limitStr := c.DefaultQuery("limit", strconv.Itoa(notification.RecentWindow))
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > notification.RecentWindow {
		limit = notification.RecentWindow
	}

	notifications, err := h.repo.GetLatest(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get notifications", err)
		return
	}

	unread, err := h.repo.GetUnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get unread count", err)
		return
	}

	response.Success(c, http.StatusOK, "notifications retrieved", notification.ListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	})
}

// MarkAsRead marks one notification as read, scoped to the current user.
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	notifID := c.Param("id")

	if err := h.repo.MarkAsRead(c.Request.Context(), notifID, userID); err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "notification not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to mark as read", err)
		return
	}

	if err := h.invalidator.Invalidate(c.Request.Context(), cache.ViewNotifications, userID); err != nil {
		h.logger.Warn("cache invalidation failed", zap.Error(err))
	}

	response.Success(c, http.StatusOK, "notification marked as read", nil)
}

// GetUnreadCount gets the count of unread notifications.
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	count, err := h.repo.GetUnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get unread count", err)
		return
	}

	response.Success(c, http.StatusOK, "unread count retrieved", gin.H{
		"unread_count": count,
	})
}
