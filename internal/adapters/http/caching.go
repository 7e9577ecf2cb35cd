package http

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ETagMiddleware computes a weak ETag for catalog and stored-route reads
// and answers 304 when the client already has it. Session reads change with
// every edit and are skipped.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != 200 {
			return nil
		}
		if strings.HasPrefix(c.Path(), "/v1/sessions") {
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		h := sha256.Sum256(body)
		etag := `W/"` + hex.EncodeToString(h[:8]) + `"`
		c.Set("ETag", etag)

		if c.Get("If-None-Match") == etag {
			c.Status(304)
			c.Response().ResetBody()
		}
		return nil
	}
}

// CachingMiddleware sets Cache-Control on GET responses that do not set it.
// Editing state is never cached.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Get("Cache-Control") != "" ||
			len(c.Response().Header.Peek("Cache-Control")) > 0 {
			return err
		}

		path := c.Path()
		var ttl string
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"
		case path == "/metrics":
			ttl = "no-cache"
		case strings.HasPrefix(path, "/v1/sessions"):
			ttl = "no-store"
		case strings.HasPrefix(path, "/v1/regions"):
			ttl = "public, max-age=3600"
		case strings.HasPrefix(path, "/v1/pois"):
			ttl = "public, max-age=300"
		case strings.HasPrefix(path, "/v1/routes"):
			ttl = "private, max-age=30"
		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}
		return err
	}
}
