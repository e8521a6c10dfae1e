// internal/domain/notification/entity.go
package notification

import "time"

type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// RecentWindow caps the in-memory notification list. The list is a
// bounded recent-activity window, not a full history.
const RecentWindow = 10

type Notification struct {
	ID           string     `json:"id" db:"id"`
	Type         string     `json:"type" db:"type"`
	Title        string     `json:"title" db:"title"`
	Message      string     `json:"message" db:"message"`
	Priority     Priority   `json:"priority" db:"priority"`
	Status       Status     `json:"status" db:"status"`
	UserID       string     `json:"user_id" db:"user_id"`
	ComplianceID *string    `json:"compliance_id,omitempty" db:"compliance_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// IsUnread reports whether the notification has not been read yet.
func (n *Notification) IsUnread() bool {
	return n.Status == StatusUnread
}

// DTOs

type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}
