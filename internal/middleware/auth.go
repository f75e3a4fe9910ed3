package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-user-service/internal/model"
)

type authenticator interface {
	Authenticate(tokenString string) (string, error)
	ResolveIdentity(ctx context.Context, tokenString string) (model.PublicUser, error)
}

type contextKey string

const (
	subjectContextKey contextKey = "auth_subject"
	userContextKey    contextKey = "auth_user"
)

type AuthMiddleware struct {
	auth authenticator
}

func NewAuthMiddleware(auth authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth checks the bearer token and stores its subject. The user record
// is not loaded; handlers decide what a missing user means.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "Not authenticated")
			return
		}

		subject, err := m.auth.Authenticate(token)
		if err != nil {
			writeUnauthorized(w, "Invalid or expired token.")
			return
		}

		ctx := context.WithValue(r.Context(), subjectContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireIdentity resolves the bearer token all the way to a stored user.
func (m *AuthMiddleware) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "Not authenticated")
			return
		}

		user, err := m.auth.ResolveIdentity(r.Context(), token)
		if err != nil {
			if !isUnauthorized(err) {
				writeInternalError(w)
				return
			}
			writeUnauthorized(w, "Invalid token.")
			return
		}

		ctx := context.WithValue(r.Context(), subjectContextKey, user.ID)
		ctx = context.WithValue(ctx, userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey).(string)
	return subject, ok && subject != ""
}

func UserFromContext(ctx context.Context) (model.PublicUser, bool) {
	user, ok := ctx.Value(userContextKey).(model.PublicUser)
	return user, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", detail)
}
