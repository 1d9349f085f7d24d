package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/123pan/release-feed/internal/feed"
)

// Resolver describes the component that produces the feed document. It allows
// injecting fake resolvers during tests.
type Resolver interface {
	Resolve(ctx context.Context) feed.Result
	CacheStatus(ctx context.Context) feed.CacheStatus
	Repository() string
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger       *logrus.Logger
	Resolver     Resolver
	FeedPath     string
	ClientMaxAge time.Duration
	ListenPort   int
}

const (
	contextKeyRequestID = "_release_feed_request_id"

	// HeaderSource 标识本次响应由回退链中的哪一环给出。
	HeaderSource = "X-Release-Feed-Source"
)

// NewApp builds a Fiber application serving the feed route, with request-id,
// panic recovery and permissive CORS middleware.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}
	if !strings.HasPrefix(opts.FeedPath, "/") || isDiagnosticsPath(opts.FeedPath) {
		return nil, fmt.Errorf("invalid feed path: %q", opts.FeedPath)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions},
		ExposeHeaders: []string{"X-Request-ID", HeaderSource},
	}))

	handler := newFeedHandler(opts)
	app.Get(opts.FeedPath, handler.Handle)

	return app, nil
}

// RegisterFallback 为未注册的路径返回 JSON 404，需在所有路由注册完成后调用。
func RegisterFallback(app *fiber.App, logger *logrus.Logger) {
	app.Use(func(c fiber.Ctx) error {
		logger.WithFields(logrus.Fields{
			"action":     "route_lookup",
			"path":       c.Path(),
			"request_id": RequestID(c),
		}).Debug("route not found")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found",
		})
	})
}

// requestContextMiddleware 负责生成请求 ID。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
