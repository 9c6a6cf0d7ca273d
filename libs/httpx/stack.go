package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/carejournal/libs/config"
	"github.com/redis/go-redis/v9"
)

// StackConfig holds the edge middleware settings shared by every service.
type StackConfig struct {
	CORS          CORSPolicy
	BodyLimit     int64
	Timeout       time.Duration
	RatePerMinute int
	RatePrefix    string
	RateFailOpen  bool
}

func StackConfigFromEnv() (StackConfig, error) {
	cfg := StackConfig{
		CORS: CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
		},
		RatePrefix:   config.String("RATE_LIMIT_PREFIX", "rl"),
		RateFailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
	}
	if methods := config.List("CORS_ALLOWED_METHODS"); len(methods) > 0 {
		cfg.CORS.AllowedMethods = methods
	}
	if headers := config.List("CORS_ALLOWED_HEADERS"); len(headers) > 0 {
		cfg.CORS.AllowedHeaders = headers
	}
	var err error
	if cfg.CORS.MaxAge, err = config.Duration("CORS_MAX_AGE", 10*time.Minute); err != nil {
		return StackConfig{}, err
	}
	limit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return StackConfig{}, err
	}
	cfg.BodyLimit = int64(limit)
	if cfg.Timeout, err = config.Duration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return StackConfig{}, err
	}
	if cfg.RatePerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return StackConfig{}, err
	}
	return cfg, nil
}

// Wrap applies the standard chain to h. Rate limiting is shared through Redis
// when rdb is non-nil and kept in memory otherwise; a non-positive limit disables it.
func (c StackConfig) Wrap(h http.Handler, logger *slog.Logger, rdb *redis.Client) http.Handler {
	mws := []Middleware{
		WithCORS(c.CORS),
		WithRequestID,
		WithAccessLog(logger),
		WithRecover(logger),
	}
	if c.BodyLimit > 0 {
		mws = append(mws, WithBodyLimit(c.BodyLimit))
	}
	if c.Timeout > 0 {
		mws = append(mws, WithTimeout(c.Timeout))
	}
	switch {
	case c.RatePerMinute <= 0:
	case rdb != nil:
		rl := NewRedisRateLimiter(rdb, c.RatePerMinute, time.Minute, c.RatePrefix)
		mws = append(mws, rl.Middleware(logger, c.RateFailOpen))
	default:
		mws = append(mws, NewRateLimiter(c.RatePerMinute, time.Minute).Middleware())
	}
	return Chain(h, mws...)
}
