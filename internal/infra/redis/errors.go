package redis

import "errors"

var (
	// ErrKeyNotFound is returned by Client reads when a key is absent.
	ErrKeyNotFound = errors.New("redis: key not found")

	// ErrCacheMiss is returned by Cache.Get when a key is absent.
	ErrCacheMiss = errors.New("cache: key not found")
)
