package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"pdfgen/internal/infra/logging"
	"pdfgen/pkg/pdfgen"
)

const (
	cachePrefix  = "pdfcache:"
	cacheTimeout = time.Second
)

// pdfCache keeps rendered single documents in Redis. Failures are logged and treated as misses.
type pdfCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// cacheKey hashes everything that influences the output.
func cacheKey(req pdfgen.Request, opts pdfgen.Options) string {
	h := sha256.New()
	if req.URL != "" {
		h.Write([]byte("url\x00" + req.URL))
	} else {
		h.Write([]byte("content\x00" + req.Content))
	}
	h.Write([]byte{0})
	opt, _ := json.Marshal(opts)
	h.Write(opt)
	return cachePrefix + hex.EncodeToString(h.Sum(nil))
}

func (pc *pdfCache) get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	buf, err := pc.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil, false
	}
	logging.Info("PDF cache hit", "key", key)
	return buf, true
}

func (pc *pdfCache) set(ctx context.Context, key string, buf []byte) {
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	ttl := pc.ttl
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := pc.rdb.Set(ctx, key, buf, ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
