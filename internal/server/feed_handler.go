package server

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/123pan/release-feed/internal/logging"
)

const feedContentType = "application/json; charset=utf-8"

type feedHandler struct {
	resolver     Resolver
	logger       *logrus.Logger
	cacheControl string
}

func newFeedHandler(opts AppOptions) *feedHandler {
	maxAge := int64(opts.ClientMaxAge / time.Second)
	if maxAge < 0 {
		maxAge = 0
	}
	return &feedHandler{
		resolver:     opts.Resolver,
		logger:       opts.Logger,
		cacheControl: "max-age=" + strconv.FormatInt(maxAge, 10),
	}
}

// Handle 永远返回 200：Resolver 保证给出非空文档。
func (h *feedHandler) Handle(c fiber.Ctx) error {
	started := time.Now()

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result := h.resolver.Resolve(ctx)

	c.Set(fiber.HeaderContentType, feedContentType)
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderCacheControl, h.cacheControl)
	c.Set(HeaderSource, result.Source)

	fields := logging.ResolveFields(h.resolver.Repository(), result.Source, result.CacheHit)
	fields["action"] = "resolve"
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	fields["bytes"] = len(result.Document)
	if requestID := RequestID(c); requestID != "" {
		fields["request_id"] = requestID
	}
	h.logger.WithFields(fields).Info("resolve_complete")

	return c.Status(fiber.StatusOK).Send(result.Document)
}
