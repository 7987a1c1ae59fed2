package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/webscanio/api/pkg/logger"
)

// Key prefix for refresh token tracking.
const prefixRefreshToken = "refresh"

// TokenStore tracks issued refresh tokens so they can be rotated on use
// and revoked in bulk. Only token hashes are stored, never the tokens.
type TokenStore struct {
	client *Client
	logger *logger.Logger
}

// NewTokenStore creates a new token store.
func NewTokenStore(client *Client, log *logger.Logger) (*TokenStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	return &TokenStore{
		client: client,
		logger: log,
	}, nil
}

// MustNewTokenStore creates a token store or panics on error.
func MustNewTokenStore(client *Client, log *logger.Logger) *TokenStore {
	ts, err := NewTokenStore(client, log)
	if err != nil {
		panic(fmt.Sprintf("failed to create token store: %v", err))
	}
	return ts
}

// StoreRefreshToken stores a refresh token hash atomically.
func (ts *TokenStore) StoreRefreshToken(ctx context.Context, userID, tokenHash string, ttl time.Duration) error {
	if userID == "" {
		return errors.New("userID is required")
	}
	if tokenHash == "" {
		return errors.New("tokenHash is required")
	}
	if ttl <= 0 {
		return errors.New("TTL must be positive")
	}

	key := fmt.Sprintf("%s:%s:%s", prefixRefreshToken, userID, tokenHash)
	userTokensKey := fmt.Sprintf("%s:%s:all", prefixRefreshToken, userID)

	// Atomic transaction
	pipe := ts.client.client.TxPipeline()
	pipe.Set(ctx, key, "1", ttl)
	pipe.SAdd(ctx, userTokensKey, tokenHash)
	pipe.Expire(ctx, userTokensKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}

	ts.logger.Debug("refresh token stored", "user_id", userID)
	return nil
}

// ValidateRefreshToken checks if a refresh token is valid.
func (ts *TokenStore) ValidateRefreshToken(ctx context.Context, userID, tokenHash string) (bool, error) {
	if userID == "" {
		return false, errors.New("userID is required")
	}
	if tokenHash == "" {
		return false, errors.New("tokenHash is required")
	}

	key := fmt.Sprintf("%s:%s:%s", prefixRefreshToken, userID, tokenHash)

	exists, err := ts.client.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("validate refresh token: %w", err)
	}

	return exists > 0, nil
}

// RevokeRefreshToken removes a refresh token atomically.
func (ts *TokenStore) RevokeRefreshToken(ctx context.Context, userID, tokenHash string) error {
	if userID == "" {
		return errors.New("userID is required")
	}
	if tokenHash == "" {
		return errors.New("tokenHash is required")
	}

	key := fmt.Sprintf("%s:%s:%s", prefixRefreshToken, userID, tokenHash)
	userTokensKey := fmt.Sprintf("%s:%s:all", prefixRefreshToken, userID)

	// Atomic transaction
	pipe := ts.client.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, userTokensKey, tokenHash)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	ts.logger.Debug("refresh token revoked", "user_id", userID)
	return nil
}

// RevokeAllRefreshTokens revokes all refresh tokens for a user atomically.
func (ts *TokenStore) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID is required")
	}

	userTokensKey := fmt.Sprintf("%s:%s:all", prefixRefreshToken, userID)

	// Get all members from the set
	members, err := ts.client.client.SMembers(ctx, userTokensKey).Result()
	if err != nil {
		return fmt.Errorf("get refresh tokens: %w", err)
	}

	if len(members) == 0 {
		return nil
	}

	// Atomic transaction - delete all tokens and the set
	pipe := ts.client.client.TxPipeline()
	for _, member := range members {
		key := fmt.Sprintf("%s:%s:%s", prefixRefreshToken, userID, member)
		pipe.Del(ctx, key)
	}
	pipe.Del(ctx, userTokensKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	ts.logger.Info("all refresh tokens revoked", "user_id", userID, "count", len(members))
	return nil
}

// rotateTokenScript atomically checks the old token and swaps in the new one.
// Returns 0 if the old token is unknown (already rotated or revoked).
var rotateTokenScript = redis.NewScript(`
	local old_key = KEYS[1]
	local new_key = KEYS[2]
	local set_key = KEYS[3]
	local old_hash = ARGV[1]
	local new_hash = ARGV[2]
	local ttl_ms = tonumber(ARGV[3])

	-- The old token must still be live
	local exists = redis.call('EXISTS', old_key)
	if exists == 0 then
		return 0
	end

	redis.call('DEL', old_key)
	redis.call('SREM', set_key, old_hash)
	redis.call('SET', new_key, '1', 'PX', ttl_ms)
	redis.call('SADD', set_key, new_hash)
	redis.call('PEXPIRE', set_key, ttl_ms)

	return 1
`)

// RotateRefreshToken atomically revokes the old token and stores the new one.
// It reports whether the swap happened: false means the old token was not
// live (already rotated or revoked), which callers should treat as an
// invalid token. Using Lua keeps check and swap in one step, so two
// concurrent refreshes presenting the same token cannot both succeed.
func (ts *TokenStore) RotateRefreshToken(ctx context.Context, userID, oldTokenHash, newTokenHash string, ttl time.Duration) (bool, error) {
	if userID == "" {
		return false, errors.New("userID is required")
	}
	if oldTokenHash == "" {
		return false, errors.New("oldTokenHash is required")
	}
	if newTokenHash == "" {
		return false, errors.New("newTokenHash is required")
	}
	if ttl <= 0 {
		return false, errors.New("TTL must be positive")
	}

	oldKey := fmt.Sprintf("%s:%s:%s", prefixRefreshToken, userID, oldTokenHash)
	newKey := fmt.Sprintf("%s:%s:%s", prefixRefreshToken, userID, newTokenHash)
	userTokensKey := fmt.Sprintf("%s:%s:all", prefixRefreshToken, userID)

	result, err := rotateTokenScript.Run(ctx, ts.client.client,
		[]string{oldKey, newKey, userTokensKey},
		oldTokenHash, newTokenHash, ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}

	if result == 0 {
		return false, nil
	}

	ts.logger.Debug("refresh token rotated", "user_id", userID)
	return true, nil
}
