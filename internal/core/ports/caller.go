package ports

// Caller is the authenticated identity an operation runs on behalf of. It is
// passed explicitly by parameter on every gated call rather than kept in
// ambient request-scoped state.
type Caller struct {
	UserID string // stable user key (keycloak id)
	Role   string
}

// HasAnyRole reports whether the caller holds one of the given roles.
func (c Caller) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
