package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/domain/user"
	"github.com/webscanio/api/pkg/jwt"
	"github.com/webscanio/api/pkg/logger"
)

type fakeSubjectStore struct {
	users map[string]*user.User
	err   error
}

func (f *fakeSubjectStore) GetByID(_ context.Context, id shared.ID) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[id.String()]; ok {
		return u, nil
	}
	return nil, shared.NotFound("User not found")
}

func testGenerator() *jwt.Generator {
	return jwt.NewGenerator(jwt.TokenConfig{
		Secret:               "test-secret-with-enough-entropy-0123456789",
		Issuer:               "webscan-test",
		AccessTokenDuration:  time.Minute,
		RefreshTokenDuration: time.Hour,
	})
}

func storedAccount(t *testing.T) *user.User {
	t.Helper()
	now := time.Now().UTC()
	return user.Reconstitute(
		shared.NewID(), "dev@example.com", "Dev", user.StatusActive,
		"$2a$10$hash", 0, nil, nil, now, now,
	)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (status string, message string) {
	t.Helper()
	var resp struct {
		Status     string `json:"status"`
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Status, resp.Message
}

func TestAuth_CredentialFailures(t *testing.T) {
	gen := testGenerator()
	account := storedAccount(t)
	store := &fakeSubjectStore{users: map[string]*user.User{account.ID().String(): account}}

	strayToken, _, err := gen.GenerateAccessToken(shared.NewID().String(), "gone@example.com", "Gone")
	require.NoError(t, err)

	forger := jwt.NewGenerator(jwt.TokenConfig{
		Secret:              "a-completely-different-signing-secret!",
		Issuer:              "webscan-test",
		AccessTokenDuration: time.Minute,
	})
	forgedToken, _, err := forger.GenerateAccessToken(account.ID().String(), account.Email(), account.Name())
	require.NoError(t, err)

	expiredGen := jwt.NewGenerator(jwt.TokenConfig{
		Secret:              "test-secret-with-enough-entropy-0123456789",
		Issuer:              "webscan-test",
		AccessTokenDuration: -time.Minute,
	})
	expiredToken, _, err := expiredGen.GenerateAccessToken(account.ID().String(), account.Email(), account.Name())
	require.NoError(t, err)

	refreshToken, _, err := gen.GenerateRefreshToken(account.ID().String())
	require.NoError(t, err)

	garbledToken, _, err := gen.GenerateAccessToken("not-a-uuid", "", "")
	require.NoError(t, err)

	tests := []struct {
		name        string
		header      string
		wantMessage string
	}{
		{"missing header", "", "no credential presented"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "malformed credential"},
		{"bare token without scheme", "just-a-token", "malformed credential"},
		{"empty bearer token", "Bearer   ", "malformed credential"},
		{"garbage token", "Bearer not.a.jwt", "invalid credential"},
		{"forged signature", "Bearer " + forgedToken, "invalid credential"},
		{"expired token", "Bearer " + expiredToken, "invalid credential"},
		{"refresh token on access surface", "Bearer " + refreshToken, "invalid credential"},
		{"garbled subject claim", "Bearer " + garbledToken, "invalid credential"},
		{"deleted account", "Bearer " + strayToken, "unknown subject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := Auth(AuthConfig{JWT: gen, Users: store, Logger: logger.NewNop()})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					called = true
				}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called, "handler must not run on a failed credential")

			status, message := decodeEnvelope(t, rec)
			assert.Equal(t, "error", status)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}

func TestAuth_StoreFailureIsNotACredentialFailure(t *testing.T) {
	gen := testGenerator()
	account := storedAccount(t)
	token, _, err := gen.GenerateAccessToken(account.ID().String(), account.Email(), account.Name())
	require.NoError(t, err)

	store := &fakeSubjectStore{err: errors.New("connection refused")}
	handler := Auth(AuthConfig{JWT: gen, Users: store, Logger: logger.NewNop()})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run when subject resolution fails")
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code,
		"an unreachable store says nothing about the credential")

	_, message := decodeEnvelope(t, rec)
	assert.Equal(t, "Internal server error", message)
}

func TestAuth_AttachesIdentity(t *testing.T) {
	gen := testGenerator()
	account := storedAccount(t)
	store := &fakeSubjectStore{users: map[string]*user.User{account.ID().String(): account}}

	token, _, err := gen.GenerateAccessToken(account.ID().String(), account.Email(), account.Name())
	require.NoError(t, err)

	var gotSubject shared.ID
	var gotUserID, gotEmail, gotName string
	var gotClaims *jwt.Claims

	handler := Auth(AuthConfig{JWT: gen, Users: store, Logger: logger.NewNop()})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSubject = GetSubject(r.Context())
			gotUserID = GetUserID(r.Context())
			gotEmail = GetEmail(r.Context())
			gotName = GetName(r.Context())
			gotClaims = GetClaims(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, gotSubject.Equals(account.ID()))
	assert.Equal(t, account.ID().String(), gotUserID)
	assert.Equal(t, "dev@example.com", gotEmail)
	assert.Equal(t, "Dev", gotName)
	require.NotNil(t, gotClaims)
	assert.Equal(t, jwt.TokenTypeAccess, gotClaims.TokenType)
}

func TestAuth_QueryTokenServesHandshake(t *testing.T) {
	gen := testGenerator()
	account := storedAccount(t)
	store := &fakeSubjectStore{users: map[string]*user.User{account.ID().String(): account}}

	token, _, err := gen.GenerateAccessToken(account.ID().String(), account.Email(), account.Name())
	require.NoError(t, err)

	called := false
	handler := Auth(AuthConfig{JWT: gen, Users: store, Logger: logger.NewNop()})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.True(t, GetSubject(r.Context()).Equals(account.ID()))
		}))

	// WebSocket clients cannot set headers; the token rides the query string.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws?token="+token, nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSubject_ZeroWithoutGate(t *testing.T) {
	assert.True(t, GetSubject(context.Background()).IsZero())
	assert.Empty(t, GetUserID(context.Background()))
	assert.Nil(t, GetClaims(context.Background()))
}
