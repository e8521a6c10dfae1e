// internal/repository/postgres/notification_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"ruleboard-service/internal/domain/notification"
	xerrors "ruleboard-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// GetLatest retrieves the most recent notifications for a user, newest
// first.
func (r *NotificationRepository) GetLatest(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	if limit <= 0 || limit > notification.RecentWindow {
		limit = notification.RecentWindow
	}

	query := `
		SELECT id, type, title, message, priority, status, user_id, compliance_id, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest notifications: %w", err)
	}
	defer rows.Close()

	notifications := []notification.Notification{}
	for rows.Next() {
		var n notification.Notification

		err := rows.Scan(
			&n.ID, &n.Type, &n.Title, &n.Message, &n.Priority, &n.Status,
			&n.UserID, &n.ComplianceID, &n.CreatedAt, &n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}

	return notifications, nil
}

// MarkAsRead flips a notification to read, scoped to both the id and the
// owning user so one user can never mutate another's rows.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id string, userID string) error {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
	`

	result, err := r.db.Exec(ctx, query, notification.StatusRead, time.Now(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// GetUnreadCount counts unread notifications server-side. The in-memory
// projection stays authoritative for live views; this backs the plain
// HTTP surface.
func (r *NotificationRepository) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1 AND status = $2
	`

	var count int
	err := r.db.QueryRow(ctx, query, userID, notification.StatusUnread).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}

	return count, nil
}
