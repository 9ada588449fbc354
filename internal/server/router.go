package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mmsync/mmsync/internal/loader"
	"github.com/mmsync/mmsync/internal/metrics"
)

// Syncer runs sync requests. *loader.Engine satisfies it; tests inject fakes.
type Syncer interface {
	Sync(ctx context.Context, req loader.Request) (loader.Result, error)
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Syncer     Syncer
	ListenPort int
}

const contextKeyRequestID = "_mmsync_request_id"

// NewApp builds a Fiber application with request ids, panic recovery, the
// diagnostics endpoints and the sync API.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Syncer == nil {
		return nil, errors.New("syncer is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())
	app.Use(accessLogMiddleware(opts.Logger))

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/-/metrics", adaptor.HTTPHandler(metrics.Handler()))
	app.Post("/api/v1/sync", syncHandler(opts))

	return app, nil
}

// requestContextMiddleware 为每个请求生成请求 ID 并写入响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// accessLogMiddleware 在请求结束后记录方法、路径、状态码与耗时；诊断端点只记 debug。
func accessLogMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		entry := logger.WithFields(logrus.Fields{
			"action":      "http_request",
			"request_id":  RequestID(c),
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      status,
			"duration_ms": time.Since(started).Milliseconds(),
		})
		if strings.HasPrefix(c.Path(), "/-/") {
			entry.Debug("http_request")
		} else {
			entry.Info("http_request")
		}
		return err
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
