package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/123pan/release-feed/internal/feed"
	"github.com/123pan/release-feed/internal/server"
	"github.com/123pan/release-feed/internal/version"
)

// RegisterStatusRoutes 暴露 /-/status 诊断接口，供运维确认缓存新鲜度与版本。
func RegisterStatusRoutes(app *fiber.App, resolver server.Resolver) {
	if app == nil || resolver == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(encodeStatus(resolver.Repository(), resolver.CacheStatus(c.Context())))
	})
}

type statusPayload struct {
	Repository string           `json:"repository"`
	Cache      feed.CacheStatus `json:"cache"`
	Version    string           `json:"version"`
}

func encodeStatus(repository string, status feed.CacheStatus) statusPayload {
	return statusPayload{
		Repository: repository,
		Cache:      status,
		Version:    version.Version,
	}
}
