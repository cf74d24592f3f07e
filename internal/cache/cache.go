package cache

import (
	"context"
	"strings"
	"time"

	"guild_stats/internal/app"

	"github.com/rs/zerolog/log"
)

// Cache stores serialized metric responses
type Cache interface {
	Init(ctx context.Context) error
	// Get returns the value and whether it was present and fresh
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// InvalidatePattern deletes every key matching a glob such as "metrics:s1:*"
	// and returns how many were removed
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
	Close() error
}

// New picks Redis when an address is configured, otherwise an in-process cache
func New(cfg *app.Config) Cache {
	if cfg.RedisAddr != "" {
		log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("Using Redis cache")
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	log.Info().Msg("Using in-memory cache")
	return NewMemoryCache()
}

// globEscaper escapes the characters Redis MATCH and path.Match treat specially
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// EscapeGlob makes s match only itself inside a glob pattern
func EscapeGlob(s string) string {
	return globEscaper.Replace(s)
}

// SeasonPattern matches every cached metric of a season
func SeasonPattern(season string) string {
	return "metrics:" + EscapeGlob(season) + ":*"
}
