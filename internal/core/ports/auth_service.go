package ports

import (
	"context"

	"github.com/bibliora/library-system/internal/core/domain"
)

// AuthService handles account registration and login.
type AuthService interface {
	Register(ctx context.Context, username, password, email, role string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
}
