package domain

import "time"

// Roles recognised across the system. Staff roles (admin, librarian) may
// manage copies and cards; members may only act on their own resources.
const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
	RoleMember    = "member"
)

// User models an authenticated actor. The lifecycle core references users by
// KeycloakID and trusts the Active flag and Role as given facts; it never
// creates or authenticates users itself.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	KeycloakID   string    `json:"keycloak_id"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsStaff reports whether the user holds a card-management role.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleLibrarian
}
