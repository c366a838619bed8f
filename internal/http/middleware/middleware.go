// Package middleware wires the global fiber middleware stack.
package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"pdfgen/internal/config"
	"pdfgen/internal/infra/logging"
	"pdfgen/internal/tokens"
)

// APIKeyLocal is the fiber.Ctx local holding the authenticated API key.
const APIKeyLocal = "api_key"

const (
	HealthPath = "/ops/health"
	ReadyPath  = "/ops/ready"
)

// Authorizer validates API keys.
type Authorizer interface {
	Authorize(token, scope string) error
	Ready() bool
	TokenRater
}

// Deps are the collaborators of the middleware stack. Nil fields disable what depends on them.
type Deps struct {
	Tokens Authorizer
	Store  fiber.Storage
	Redis  *redis.Client
}

// Register attaches global middleware to the app.
func Register(app *fiber.App, cfg config.Config, deps Deps) {
	store := deps.Store
	if store == nil {
		store = memoryStorage.New()
	}

	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  HealthPath,
		ReadinessEndpoint: ReadyPath,
		ReadinessProbe: func(c *fiber.Ctx) bool {
			return ready(c.UserContext(), cfg, deps)
		},
	}))

	if cfg.Auth.Enabled && deps.Tokens != nil {
		app.Use(keyAuth(cfg, deps.Tokens))
	}

	rl := RateLimitConfig{
		RateInterval:           cfg.RateLimiter.Interval,
		EnableUserLimiter:      cfg.RateLimiter.EnableUserLimiter,
		UserLimit:              cfg.RateLimiter.UserLimit,
		EnableTokenRateLimiter: cfg.RateLimiter.EnableTokenRateLimiter,
	}
	if deps.Tokens != nil {
		app.Use(TokenRateLimit(rl, deps.Tokens, store, NewLimiterCache()))
	}
	if rl.EnableUserLimiter || rl.UserLimit > 0 {
		app.Use(UserRateLimit(rl, store))
	}

	app.Use(requestLog)
}

func keyAuth(cfg config.Config, auth Authorizer) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: APIKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if err := auth.Authorize(key, tokens.ScopePDF); err != nil {
				return false, err
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			if c.Method() == fiber.MethodOptions {
				return true
			}
			return !cfg.Auth.Required && c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth may call ErrorHandler with a nil error.
			status := fiber.StatusUnauthorized
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			switch {
			case errors.Is(err, tokens.ErrTokenStoreNotReady):
				status = fiber.StatusServiceUnavailable
			case errors.Is(err, tokens.ErrScopeDenied):
				status = fiber.StatusForbidden
			case errors.Is(err, keyauth.ErrMissingOrMalformedAPIKey):
				err = errors.New("missing API key")
			}
			return jsonError(c, status, err.Error())
		},
	})
}

// ready checks the token store and, when configured, Redis.
func ready(ctx context.Context, cfg config.Config, deps Deps) bool {
	if cfg.Auth.Enabled && (deps.Tokens == nil || !deps.Tokens.Ready()) {
		return false
	}
	if deps.Redis != nil {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := deps.Redis.Ping(ctx).Err(); err != nil {
			logging.Warn("Readiness check failed", "component", "redis", "error", err)
			return false
		}
	}
	return true
}

// requestLog runs the app's error handler itself so the logged status is the one sent.
func requestLog(c *fiber.Ctx) error {
	start := time.Now()
	if err := c.Next(); err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}
	requestID := c.Get(fiber.HeaderXRequestID)
	if requestID == "" {
		requestID = c.GetRespHeader(fiber.HeaderXRequestID)
	}
	logging.Info("Request handled",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)
	return nil
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    status,
			"message": msg,
		},
	})
}
