// Package redis provides production-ready Redis integration for the WebScan API.
//
// # Overview
//
// This package provides six main components:
//   - Client: Connection management with TLS, pooling, and retry logic
//   - Cache[T]: Type-safe generic caching with TTL support
//   - TokenStore: Refresh token tracking with atomic rotation
//   - RateLimiter: Distributed rate limiting using fixed window counters
//   - ScanEventBus: Pub/sub fan-out of scan lifecycle events
//   - ScanStateStore: Latest-event snapshots for late subscribers
//
// # Quick Start
//
// Initialize the Redis client:
//
//	cfg := &config.RedisConfig{
//		Host:          "localhost",
//		Port:          6379,
//		Password:      "secret",
//		DB:            0,
//		PoolSize:      10,
//		MinIdleConns:  2,
//		DialTimeout:   5 * time.Second,
//		ReadTimeout:   3 * time.Second,
//		WriteTimeout:  3 * time.Second,
//		TLSEnabled:    true,  // Required in production
//		TLSSkipVerify: false, // Must be false in production
//		MaxRetries:    3,
//		MinRetryDelay: 100 * time.Millisecond,
//		MaxRetryDelay: 3 * time.Second,
//	}
//
//	client, err := redis.New(cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// # Using the Generic Cache
//
// Create a type-safe cache for any struct:
//
//	// Create cache with 5 minute TTL
//	statsCache, err := redis.NewCache[scan.Stats](client, "stats", 5*time.Minute)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Get or set pattern (cache-aside)
//	stats, err := statsCache.GetOrSet(ctx, ownerID, func(ctx context.Context) (*scan.Stats, error) {
//		return scanRepo.GetStats(ctx, ownerID)
//	})
//
// # Using the Token Store
//
// Track refresh tokens so they can be rotated on use:
//
//	tokenStore, err := redis.NewTokenStore(client, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// On login
//	err = tokenStore.StoreRefreshToken(ctx, userID, tokenHash, 7*24*time.Hour)
//
//	// On refresh: atomic check-and-swap. rotated == false means the
//	// presented token was already rotated or revoked.
//	rotated, err := tokenStore.RotateRefreshToken(ctx, userID, oldHash, newHash, 7*24*time.Hour)
//
//	// On account lockout or suspension
//	err = tokenStore.RevokeAllRefreshTokens(ctx, userID)
//
// # Using the Rate Limiter
//
// Distributed rate limiting with fixed windows:
//
//	rateLimiter, err := redis.NewRateLimiter(
//		client,
//		"ratelimit",     // key prefix
//		100,             // 100 requests
//		time.Minute,     // per minute
//		logger,
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// In HTTP middleware
//	result, err := rateLimiter.Allow(ctx, key)
//	if err != nil {
//		// Redis error - the middleware refuses the request rather
//		// than letting it through unmetered
//		return err
//	}
//	if !result.Allowed {
//		w.Header().Set("Retry-After", result.RetryAt.Format(time.RFC1123))
//		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
//		return
//	}
//	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
//
// # Scan Events
//
// Workers publish lifecycle events; each API instance runs one listener
// and dispatches to its local subscribers:
//
//	bus := redis.NewScanEventBus(client, "scan:events", logger)
//	if err := bus.StartListener(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	// Worker side
//	_ = bus.Publish(ctx, &redis.ScanEvent{
//		ScanID:   scanID.String(),
//		OwnerID:  ownerID.String(),
//		Status:   "in_progress",
//		Progress: 40,
//	})
//
//	// Subscriber side (e.g. a websocket session)
//	subID, events := bus.Subscribe(scanID)
//	defer bus.Unsubscribe(scanID, subID)
//	for ev := range events {
//		// forward to the client
//	}
//
// # Error Handling
//
// The package defines specific errors for common cases:
//
//	var (
//		ErrKeyNotFound = errors.New("redis: key not found")
//		ErrCacheMiss   = errors.New("cache: key not found")
//	)
//
// Use errors.Is for error checking:
//
//	if errors.Is(err, redis.ErrCacheMiss) {
//		// Handle cache miss
//	}
//
// # Thread Safety
//
// All components are safe for concurrent use. The underlying go-redis client
// manages connection pooling automatically.
//
// # Graceful Shutdown
//
// Always close the client on application shutdown:
//
//	if err := redisClient.Close(); err != nil {
//		log.Error("failed to close redis", "error", err)
//	}
package redis
