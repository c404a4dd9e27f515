package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup key.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPassword is returned when the password does not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUnauthenticated is returned for a missing, malformed or revoked token.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// User is a back-office account; cashiers place orders under their user ID.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Token is a stored personal access token. Only the HMAC of the secret part
// is persisted.
type Token struct {
	ID        int64
	UserID    int64
	Name      string
	Hash      string
	CreatedAt time.Time
}

// Repository provides user and access-token persistence.
type Repository interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	UsersExist(ctx context.Context, ids []int64) (map[int64]bool, error)

	CreateToken(ctx context.Context, userID int64, name, hash string) (int64, error)
	FindToken(ctx context.Context, id int64) (*Token, error)
	TouchToken(ctx context.Context, id int64, at time.Time) error
	DeleteToken(ctx context.Context, id int64) error
}
