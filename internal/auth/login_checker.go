package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-redis/redis/v8"
)

var ErrNotLogged = errors.New("session not found or expired")

const (
	checkerCacheSize = 10 * 1024 * 1024 // 10 MB
	// keep cache entries short-lived so that logout and scan-and-clean
	// are not masked for too long
	checkerCacheTTL = time.Minute
)

// LoginChecker resolves a session token to the owning user id.
// Lookups hit a small in-process cache first, then redis.
type LoginChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
	cache       *freecache.Cache
}

func NewLoginChecker(ttl time.Duration, redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		ttl:         ttl,
		redisClient: redisClient,
		cache:       freecache.NewCache(checkerCacheSize),
	}
}

// SessionUserID returns the id of the user owning the given session token,
// or ErrNotLogged if the session is expired / unknown.
func (lc *LoginChecker) SessionUserID(ctx context.Context, token string) (int, error) {
	if cached, err := lc.cache.Get([]byte(token)); err == nil {
		userID, err := strconv.Atoi(string(cached))
		if err == nil {
			return userID, nil
		}
		// malformed cache entry, fall through to redis
	}

	sessionKey := sessionKeyPrefix + token
	cmd := lc.redisClient.Get(ctx, sessionKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotLogged
		}
		return 0, err
	}

	userID, createdAt, err := parseSessionValue(cmd.Val())
	if err != nil {
		return 0, err
	}

	if time.Since(createdAt) > lc.ttl {
		return 0, ErrNotLogged
	}

	cacheTTL := checkerCacheTTL
	if remaining := lc.ttl - time.Since(createdAt); remaining < cacheTTL {
		cacheTTL = remaining
	}
	// best effort, a failed cache set only costs the next lookup a redis trip
	_ = lc.cache.Set([]byte(token), []byte(strconv.Itoa(userID)), int(cacheTTL.Seconds()))

	return userID, nil
}

// Forget drops the token from the in-process cache (used on logout).
func (lc *LoginChecker) Forget(token string) {
	lc.cache.Del([]byte(token))
}
