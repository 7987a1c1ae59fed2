package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/internal/config"
	"github.com/webscanio/api/internal/infra/http/middleware"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/jwt"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/validator"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:            "test-secret-with-enough-entropy-0123456789",
		JWTIssuer:            "webscan-test",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
		PasswordMinLength:    8,
		MaxLoginAttempts:     3,
		LockoutDuration:      15 * time.Minute,
		AllowRegistration:    true,
	}
}

type authHarness struct {
	users   *memUserRepo
	tokens  *memTokenStore
	service *app.AuthService
	router  http.Handler
}

func newAuthHarness(t *testing.T, cfg config.AuthConfig) *authHarness {
	t.Helper()
	log := logger.NewNop()

	h := &authHarness{
		users:  newMemUserRepo(),
		tokens: newMemTokenStore(),
	}
	h.service = app.NewAuthService(h.users, h.tokens, cfg, log)
	handler := NewAuthHandler(h.service, validator.New(), log)

	// Authenticated routes resolve the subject from the access token the
	// same way production does.
	gate := middleware.Auth(middleware.AuthConfig{
		JWT: jwt.NewGenerator(jwt.TokenConfig{
			Secret:               cfg.JWTSecret,
			Issuer:               cfg.JWTIssuer,
			AccessTokenDuration:  cfg.AccessTokenDuration,
			RefreshTokenDuration: cfg.RefreshTokenDuration,
		}),
		Users:  h.users,
		Logger: log,
	})

	r := chi.NewRouter()
	r.Post("/auth/register", Wrap(log, handler.Register))
	r.Post("/auth/login", Wrap(log, handler.Login))
	r.Post("/auth/refresh", Wrap(log, handler.Refresh))
	r.Group(func(r chi.Router) {
		r.Use(gate)
		r.Get("/auth/me", Wrap(log, handler.Me))
		r.Get("/auth/ws-token", Wrap(log, handler.WSToken))
	})
	h.router = r

	return h
}

func (h *authHarness) do(t *testing.T, method, target, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *authHarness) register(t *testing.T, email string) AuthResponse {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/auth/register",
		`{"email": "`+email+`", "name": "Test User", "password": "correct horse battery"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestRegister_IssuesTokenPair(t *testing.T) {
	h := newAuthHarness(t, testAuthConfig())

	resp := h.register(t, "new@example.com")

	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.Equal(t, "Test User", resp.User.Name)
	assert.Equal(t, "active", resp.User.Status)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	id, err := shared.ParseID(resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.tokens.countFor(id.String()), "the refresh token is tracked")
}

func TestRegister_Rejections(t *testing.T) {
	t.Run("duplicate email", func(t *testing.T) {
		h := newAuthHarness(t, testAuthConfig())
		h.register(t, "taken@example.com")

		rec := h.do(t, http.MethodPost, "/auth/register",
			`{"email": "taken@example.com", "name": "Other", "password": "correct horse battery"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		_, message := decodeEnvelope(t, rec)
		assert.Equal(t, "Email is already registered", message)
	})

	t.Run("password below minimum length", func(t *testing.T) {
		h := newAuthHarness(t, testAuthConfig())

		rec := h.do(t, http.MethodPost, "/auth/register",
			`{"email": "weak@example.com", "name": "Weak", "password": "short"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("password missing required class", func(t *testing.T) {
		cfg := testAuthConfig()
		cfg.PasswordRequireNumber = true
		h := newAuthHarness(t, cfg)

		rec := h.do(t, http.MethodPost, "/auth/register",
			`{"email": "classless@example.com", "name": "NoDigits", "password": "correct horse battery"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("registration disabled", func(t *testing.T) {
		cfg := testAuthConfig()
		cfg.AllowRegistration = false
		h := newAuthHarness(t, cfg)

		rec := h.do(t, http.MethodPost, "/auth/register",
			`{"email": "nope@example.com", "name": "Nope", "password": "correct horse battery"}`, "")

		assert.Equal(t, http.StatusForbidden, rec.Code)
		_, message := decodeEnvelope(t, rec)
		assert.Equal(t, "Registration is disabled", message)
	})
}

func TestLogin_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	h := newAuthHarness(t, testAuthConfig())
	h.register(t, "known@example.com")

	unknown := h.do(t, http.MethodPost, "/auth/login",
		`{"email": "unknown@example.com", "password": "correct horse battery"}`, "")
	wrongPassword := h.do(t, http.MethodPost, "/auth/login",
		`{"email": "known@example.com", "password": "wrong password here"}`, "")

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)

	_, unknownMsg := decodeEnvelope(t, unknown)
	_, wrongMsg := decodeEnvelope(t, wrongPassword)
	assert.Equal(t, unknownMsg, wrongMsg, "responses must not reveal which field was wrong")
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	cfg := testAuthConfig()
	h := newAuthHarness(t, cfg)
	registered := h.register(t, "victim@example.com")

	for i := 0; i < cfg.MaxLoginAttempts; i++ {
		rec := h.do(t, http.MethodPost, "/auth/login",
			`{"email": "victim@example.com", "password": "guessing attempt"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// Even the right password bounces off a locked account.
	rec := h.do(t, http.MethodPost, "/auth/login",
		`{"email": "victim@example.com", "password": "correct horse battery"}`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, message := decodeEnvelope(t, rec)
	assert.Equal(t, "Account temporarily locked", message)

	assert.Equal(t, 0, h.tokens.countFor(registered.User.ID),
		"the lockout revokes outstanding refresh tokens")
}

func TestLogin_IssuesFreshPair(t *testing.T) {
	h := newAuthHarness(t, testAuthConfig())
	h.register(t, "login@example.com")

	rec := h.do(t, http.MethodPost, "/auth/login",
		`{"email": "login@example.com", "password": "correct horse battery"}`, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotNil(t, resp.User.LastLoginAt)
}

func TestRefresh_RotatesAndRejectsReplay(t *testing.T) {
	h := newAuthHarness(t, testAuthConfig())
	registered := h.register(t, "rotate@example.com")

	first := h.do(t, http.MethodPost, "/auth/refresh",
		`{"refreshToken": "`+registered.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, first.Code)

	var rotated AuthResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&rotated))
	assert.NotEqual(t, registered.RefreshToken, rotated.RefreshToken)

	// The spent token is dead; presenting it again is a replay.
	replay := h.do(t, http.MethodPost, "/auth/refresh",
		`{"refreshToken": "`+registered.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
	_, message := decodeEnvelope(t, replay)
	assert.Equal(t, "Invalid refresh token", message)

	// The rotated token still works.
	again := h.do(t, http.MethodPost, "/auth/refresh",
		`{"refreshToken": "`+rotated.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	h := newAuthHarness(t, testAuthConfig())
	registered := h.register(t, "confused@example.com")

	rec := h.do(t, http.MethodPost, "/auth/refresh",
		`{"refreshToken": "`+registered.AccessToken+`"}`, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, message := decodeEnvelope(t, rec)
	assert.Equal(t, "Invalid refresh token", message)
}

func TestMe_ReturnsProfileBehindGate(t *testing.T) {
	h := newAuthHarness(t, testAuthConfig())
	registered := h.register(t, "me@example.com")

	t.Run("with access token", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/auth/me", "", registered.AccessToken)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp UserResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, registered.User.ID, resp.ID)
		assert.Equal(t, "me@example.com", resp.Email)
	})

	t.Run("without credential", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/auth/me", "", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		_, message := decodeEnvelope(t, rec)
		assert.Equal(t, "no credential presented", message)
	})
}

func TestWSToken_MintsShortLivedAccessToken(t *testing.T) {
	cfg := testAuthConfig()
	h := newAuthHarness(t, cfg)
	registered := h.register(t, "ws@example.com")

	rec := h.do(t, http.MethodGet, "/auth/ws-token", "", registered.AccessToken)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp WSTokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(app.WSTokenTTL.Seconds()), resp.ExpiresIn)

	// The minted token must pass the same gate as a header credential.
	gen := jwt.NewGenerator(jwt.TokenConfig{
		Secret:               cfg.JWTSecret,
		Issuer:               cfg.JWTIssuer,
		AccessTokenDuration:  cfg.AccessTokenDuration,
		RefreshTokenDuration: cfg.RefreshTokenDuration,
	})
	claims, err := gen.ValidateAccessToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID)
}
