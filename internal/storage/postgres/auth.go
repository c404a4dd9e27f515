package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pos-backend/internal/domain/auth"
)

const (
	userColumns = `id, name, email, password, role, created_at, updated_at`

	findUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	findUserByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	existingUsersSQL   = `SELECT id FROM users WHERE id = ANY($1)`

	upsertUserSQL = `INSERT INTO users (name, email, password, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
		    password = EXCLUDED.password,
		    role = EXCLUDED.role,
		    updated_at = LOCALTIMESTAMP(0)
		RETURNING id`

	createTokenSQL = `INSERT INTO personal_access_tokens (user_id, name, token_hash)
		VALUES ($1, $2, $3)
		RETURNING id`

	findTokenSQL = `SELECT id, user_id, name, token_hash, created_at
		FROM personal_access_tokens WHERE id = $1`

	touchTokenSQL  = `UPDATE personal_access_tokens SET last_used_at = $2 WHERE id = $1`
	deleteTokenSQL = `DELETE FROM personal_access_tokens WHERE id = $1`
)

var _ auth.Repository = (*AuthRepository)(nil)

// AuthRepository implements auth.Repository backed by PostgreSQL.
type AuthRepository struct {
	pool *pgxpool.Pool
}

// NewAuthRepository returns an AuthRepository that uses the given pool.
func NewAuthRepository(pool *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{pool: pool}
}

// FindUserByEmail returns auth.ErrUserNotFound when no user has the email.
func (r *AuthRepository) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.findUser(ctx, findUserByEmailSQL, email)
}

// FindUserByID returns auth.ErrUserNotFound when no user has the ID.
func (r *AuthRepository) FindUserByID(ctx context.Context, id int64) (*auth.User, error) {
	return r.findUser(ctx, findUserByIDSQL, id)
}

func (r *AuthRepository) findUser(ctx context.Context, query string, arg any) (*auth.User, error) {
	var u auth.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user %v: %w", arg, err)
	}
	return &u, nil
}

// UsersExist reports, for each of ids, whether a user with that ID exists.
func (r *AuthRepository) UsersExist(ctx context.Context, ids []int64) (map[int64]bool, error) {
	rows, err := r.pool.Query(ctx, existingUsersSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("checking users: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scanning user ids: %w", err)
	}

	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = false
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

// UpsertUser creates the user or, when the email is taken, overwrites its
// name, password hash and role. The user's ID is filled in.
func (r *AuthRepository) UpsertUser(ctx context.Context, u *auth.User) error {
	err := r.pool.QueryRow(ctx, upsertUserSQL, u.Name, u.Email, u.PasswordHash, u.Role).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("upserting user %q: %w", u.Email, err)
	}
	return nil
}

// CreateToken stores a token hash for userID and returns the token ID.
func (r *AuthRepository) CreateToken(ctx context.Context, userID int64, name, hash string) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, createTokenSQL, userID, name, hash).Scan(&id); err != nil {
		return 0, fmt.Errorf("creating token for user %d: %w", userID, err)
	}
	return id, nil
}

// FindToken returns auth.ErrUnauthenticated when the token does not exist.
func (r *AuthRepository) FindToken(ctx context.Context, id int64) (*auth.Token, error) {
	var t auth.Token
	err := r.pool.QueryRow(ctx, findTokenSQL, id).Scan(&t.ID, &t.UserID, &t.Name, &t.Hash, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnauthenticated
		}
		return nil, fmt.Errorf("finding token %d: %w", id, err)
	}
	return &t, nil
}

// TouchToken records the last time the token was used.
func (r *AuthRepository) TouchToken(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.pool.Exec(ctx, touchTokenSQL, id, at.Truncate(time.Second)); err != nil {
		return fmt.Errorf("touching token %d: %w", id, err)
	}
	return nil
}

// DeleteToken revokes the token. Deleting a missing token is not an error.
func (r *AuthRepository) DeleteToken(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, deleteTokenSQL, id); err != nil {
		return fmt.Errorf("deleting token %d: %w", id, err)
	}
	return nil
}
