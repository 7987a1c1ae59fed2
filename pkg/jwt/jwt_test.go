package jwt_test

import (
	"testing"
	"time"

	"github.com/webscanio/api/pkg/jwt"
)

func testGenerator(accessTTL time.Duration) *jwt.Generator {
	return jwt.NewGenerator(jwt.TokenConfig{
		Secret:               "test-secret",
		Issuer:               "webscan-test",
		AccessTokenDuration:  accessTTL,
		RefreshTokenDuration: 24 * time.Hour,
	})
}

func TestGenerateTokenPair_Success(t *testing.T) {
	g := testGenerator(time.Hour)

	pair, err := g.GenerateTokenPair("user123", "dev@example.com", "Dev User")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected non-empty token pair")
	}
	if !pair.ExpiresAt.After(time.Now()) {
		t.Fatal("expected future expiry")
	}
}

func TestGenerateTokenPair_EmptyUserID(t *testing.T) {
	g := testGenerator(time.Hour)

	_, err := g.GenerateTokenPair("", "dev@example.com", "Dev User")
	if err != jwt.ErrEmptyUserID {
		t.Fatalf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestValidateAccessToken_Success(t *testing.T) {
	g := testGenerator(time.Hour)

	pair, err := g.GenerateTokenPair("user456", "dev@example.com", "Dev User")
	if err != nil {
		t.Fatalf("failed to generate pair: %v", err)
	}

	claims, err := g.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if claims.UserID != "user456" {
		t.Errorf("expected user id %s, got %s", "user456", claims.UserID)
	}
	if claims.Email != "dev@example.com" {
		t.Errorf("expected email %s, got %s", "dev@example.com", claims.Email)
	}
	if claims.TokenType != jwt.TokenTypeAccess {
		t.Errorf("expected token type %s, got %s", jwt.TokenTypeAccess, claims.TokenType)
	}
}

func TestValidateAccessToken_RejectsRefreshToken(t *testing.T) {
	g := testGenerator(time.Hour)

	pair, err := g.GenerateTokenPair("user789", "", "")
	if err != nil {
		t.Fatalf("failed to generate pair: %v", err)
	}

	_, err = g.ValidateAccessToken(pair.RefreshToken)
	if err != jwt.ErrInvalidTokenType {
		t.Fatalf("expected ErrInvalidTokenType, got %v", err)
	}
}

func TestValidateRefreshToken_RejectsAccessToken(t *testing.T) {
	g := testGenerator(time.Hour)

	pair, err := g.GenerateTokenPair("user789", "", "")
	if err != nil {
		t.Fatalf("failed to generate pair: %v", err)
	}

	_, err = g.ValidateRefreshToken(pair.AccessToken)
	if err != jwt.ErrInvalidTokenType {
		t.Fatalf("expected ErrInvalidTokenType, got %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	g := testGenerator(-time.Minute)

	token, _, err := g.GenerateAccessToken("user123", "", "")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	_, err = g.ValidateToken(token)
	if err != jwt.ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateToken_InvalidSignature(t *testing.T) {
	g := testGenerator(time.Hour)

	token, _, err := g.GenerateAccessToken("user123", "", "")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	_, err = jwt.ValidateToken(token, "a-different-secret")
	if err != jwt.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateToken_Malformed(t *testing.T) {
	if _, err := jwt.ValidateToken("not.a.valid.token", "secret"); err != jwt.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := jwt.ValidateToken("", "secret"); err != jwt.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGenerateShortLivedToken(t *testing.T) {
	g := testGenerator(time.Hour)

	token, err := g.GenerateShortLivedToken("user123", 30*time.Second)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	claims, err := g.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.UserID != "user123" {
		t.Errorf("expected user id %s, got %s", "user123", claims.UserID)
	}
}
