// internal/domain/profile/entity.go
package profile

import "database/sql"

// DefaultRole is assigned when the backing profile record is missing or
// carries no role.
const DefaultRole = "user"

// UserProfile is the application-level view of an authenticated identity.
// It is rebuilt from scratch on every session change, never patched.
type UserProfile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Record is the raw profiles row.
type Record struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	Role           sql.NullString `db:"role"`
	DepartmentCode sql.NullString `db:"department_code"`
	Name           sql.NullString `db:"name"`
}

// ToProfile maps a stored record into the UserProfile shape, defaulting
// the role when the column is NULL or empty.
func (r *Record) ToProfile() *UserProfile {
	role := DefaultRole
	if r.Role.Valid && r.Role.String != "" {
		role = r.Role.String
	}

	return &UserProfile{
		ID:         r.ID,
		Email:      r.Email,
		Role:       role,
		Department: stringFromNull(r.DepartmentCode),
		Name:       stringFromNull(r.Name),
	}
}

// Fallback builds the minimal profile used when the profile row cannot be
// read. The email comes from the session and may be empty.
func Fallback(userID, email string) *UserProfile {
	return &UserProfile{
		ID:    userID,
		Email: email,
		Role:  DefaultRole,
	}
}

func stringFromNull(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}
