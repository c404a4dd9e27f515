package handler

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pos-backend/internal/domain/auth"
	"github.com/xenking/pos-backend/internal/domain/validate"
)

// RequireAuth rejects requests without a valid bearer token and stores the
// resolved principal in the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			unauthenticated(w)
			return
		}

		p, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				unauthenticated(w)
				return
			}
			internalError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthenticated(w http.ResponseWriter) {
	writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
}

// Login handles POST /api/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		h.badBody(w, r, err)
		return
	}
	req, v, err := decodeLogin(data)
	if err != nil {
		h.badBody(w, r, err)
		return
	}

	switch {
	case v.Has("email"):
	case req.Email == "":
		v.Add("email", validate.Required("email"))
	default:
		if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
			v.Add("email", "The email field must be a valid email address.")
		}
	}
	if req.Password == "" && !v.Has("password") {
		v.Add("password", validate.Required("password"))
	}
	if err := v.Err(); err != nil {
		handleError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, "Email not found")
		return
	case errors.Is(err, auth.ErrInvalidPassword):
		writeMessage(w, http.StatusUnauthorized, "Invalid password")
		return
	case err != nil:
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str("Login successful") })
			e.Field("access_token", func(e *jx.Encoder) { e.Str(res.AccessToken) })
			e.Field("user", func(e *jx.Encoder) { h.encodeUser(e, &res.User) })
		})
	})
}

// Logout handles POST /api/logout by revoking the presented token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthenticated(w)
		return
	}
	if err := h.auth.Logout(r.Context(), p); err != nil {
		internalError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Logout successful")
}

// CurrentUser handles GET /api/user.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthenticated(w)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeUser(e, &p.User) })
}

// encodeUser never writes the password hash.
func (h *Handler) encodeUser(e *jx.Encoder, u *auth.User) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(u.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(u.Name) })
		e.Field("email", func(e *jx.Encoder) { e.Str(u.Email) })
		e.Field("role", func(e *jx.Encoder) { e.Str(u.Role) })
		e.Field("created_at", func(e *jx.Encoder) { h.encodeTime(e, u.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { h.encodeTime(e, u.UpdatedAt) })
	})
}
