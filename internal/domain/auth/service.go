package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// tokenName is stored alongside every token issued by Login.
const tokenName = "auth_token"

// Principal is the authenticated identity attached to a request.
type Principal struct {
	User    User
	TokenID int64
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// LoginResult holds a freshly issued plaintext token and its owner.
type LoginResult struct {
	AccessToken string
	User        User
}

// Service issues, validates and revokes opaque bearer tokens.
//
// Tokens have the form "<id>|<secret>". The id selects the stored row and the
// secret is compared against the stored HMAC-SHA256(pepper, secret).
type Service struct {
	repo   Repository
	pepper []byte
	now    func() time.Time
}

// NewService creates an auth Service backed by repo. pepper keys the token HMAC.
func NewService(repo Repository, pepper []byte) *Service {
	return &Service{repo: repo, pepper: pepper, now: time.Now}
}

// Login checks the credentials and issues a new access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}

	secret, err := newSecret()
	if err != nil {
		return nil, errors.Wrap(err, "generate token secret")
	}
	id, err := s.repo.CreateToken(ctx, u.ID, tokenName, s.HashSecret(secret))
	if err != nil {
		return nil, errors.Wrap(err, "create token")
	}

	return &LoginResult{
		AccessToken: strconv.FormatInt(id, 10) + "|" + secret,
		User:        *u,
	}, nil
}

// Authenticate resolves a plaintext bearer token into a Principal.
// Any failure other than a datastore error is reported as ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, plaintext string) (*Principal, error) {
	idPart, secret, ok := strings.Cut(plaintext, "|")
	if !ok || secret == "" {
		return nil, ErrUnauthenticated
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	tok, err := s.repo.FindToken(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return nil, ErrUnauthenticated
		}
		return nil, errors.Wrap(err, "find token")
	}

	stored, err := hex.DecodeString(tok.Hash)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare(s.mac(secret), stored) != 1 {
		return nil, ErrUnauthenticated
	}

	u, err := s.repo.FindUserByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, errors.Wrap(err, "find token owner")
	}

	if err := s.repo.TouchToken(ctx, tok.ID, s.now()); err != nil {
		return nil, errors.Wrap(err, "touch token")
	}

	return &Principal{User: *u, TokenID: tok.ID}, nil
}

// Logout revokes the token the principal authenticated with.
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	if err := s.repo.DeleteToken(ctx, p.TokenID); err != nil {
		return errors.Wrap(err, "delete token")
	}
	return nil
}

// HashSecret returns the hex HMAC-SHA256 of a token secret, as stored.
func (s *Service) HashSecret(secret string) string {
	return hex.EncodeToString(s.mac(secret))
}

func (s *Service) mac(secret string) []byte {
	m := hmac.New(sha256.New, s.pepper)
	m.Write([]byte(secret))
	return m.Sum(nil)
}

// HashPassword returns the bcrypt hash stored in users.password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}

func newSecret() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
