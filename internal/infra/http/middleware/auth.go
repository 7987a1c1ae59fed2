package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/webscanio/api/pkg/apierror"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/domain/user"
	"github.com/webscanio/api/pkg/jwt"
	"github.com/webscanio/api/pkg/logger"
)

// Auth-related context keys - use logger.ContextKey for consistency.
const (
	UserIDKey                   = logger.ContextKeyUserID
	SubjectKey logger.ContextKey = "subject"
	EmailKey   logger.ContextKey = "email"
	NameKey    logger.ContextKey = "name"
	ClaimsKey  logger.ContextKey = "jwt_claims"
)

// Credential gate failure messages. Each failure mode gets its own 401
// message: absent header, header not in bearer shape, token that fails
// verification, and a verified token whose subject no longer exists.
var (
	errNoCredential        = errors.New("no credential presented")
	errMalformedCredential = errors.New("malformed credential")
)

// SubjectStore resolves a token subject against the user store. It is the
// slice of user.Repository the credential gate needs.
type SubjectStore interface {
	GetByID(ctx context.Context, id shared.ID) (*user.User, error)
}

// AuthConfig wires the credential gate.
type AuthConfig struct {
	// JWT verifies access tokens.
	JWT *jwt.Generator
	// Users resolves token subjects to stored accounts.
	Users SubjectStore
	// Logger receives gate diagnostics. Optional.
	Logger *logger.Logger
}

// Auth returns the credential gate middleware. A request passes only when
// it presents a bearer token that verifies and whose subject resolves to a
// stored user; the resolved identity is attached to the request context.
//
// Store lookup failures other than "not found" are reported as 500, not
// 401: an unreachable database says nothing about the credential.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := credentialFromRequest(r)
			if err != nil {
				apierror.Unauthorized(err.Error()).WriteJSON(w)
				return
			}

			claims, err := cfg.JWT.ValidateAccessToken(token)
			if err != nil {
				log.WithContext(r.Context()).Debug("token validation failed", "error", err)
				apierror.Unauthorized("invalid credential").WriteJSON(w)
				return
			}

			subject, err := shared.ParseID(claims.UserID)
			if err != nil {
				// A verified signature with a garbled subject claim is
				// still a corrupt credential.
				apierror.Unauthorized("invalid credential").WriteJSON(w)
				return
			}

			account, err := cfg.Users.GetByID(r.Context(), subject)
			if err != nil {
				if shared.IsNotFound(err) {
					apierror.Unauthorized("unknown subject").WriteJSON(w)
					return
				}
				log.WithContext(r.Context()).Error("subject lookup failed",
					"user_id", claims.UserID,
					"error", err,
				)
				apierror.InternalError(err).WriteJSON(w)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, UserIDKey, account.ID().String())
			ctx = context.WithValue(ctx, SubjectKey, account.ID())
			ctx = context.WithValue(ctx, EmailKey, account.Email())
			ctx = context.WithValue(ctx, NameKey, account.Name())
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// credentialFromRequest extracts the bearer token from a request. The
// Authorization header is the primary surface; the "token" query parameter
// serves WebSocket handshakes, where browsers cannot set headers.
func credentialFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", errNoCredential
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return "", errMalformedCredential
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errMalformedCredential
	}
	return token, nil
}

// =============================================================================
// Context Getters
// =============================================================================

// GetUserID extracts the user ID string from context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetSubject extracts the authenticated caller's ID from context. A zero
// ID means the request never passed the credential gate.
func GetSubject(ctx context.Context) shared.ID {
	if id, ok := ctx.Value(SubjectKey).(shared.ID); ok {
		return id
	}
	return shared.ID{}
}

// GetEmail extracts the user email from context.
func GetEmail(ctx context.Context) string {
	if email, ok := ctx.Value(EmailKey).(string); ok {
		return email
	}
	return ""
}

// GetName extracts the user display name from context.
func GetName(ctx context.Context) string {
	if name, ok := ctx.Value(NameKey).(string); ok {
		return name
	}
	return ""
}

// GetClaims extracts the verified token claims from context.
func GetClaims(ctx context.Context) *jwt.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}
