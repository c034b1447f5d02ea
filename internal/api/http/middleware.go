package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/api/http/handlers"
	"github.com/pediamatch/intake-service/internal/config"
	"github.com/pediamatch/intake-service/internal/observability"
	apperrors "github.com/pediamatch/intake-service/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

// PublicRateLimit bounds unauthenticated routes per client IP.
func PublicRateLimit(cfg config.RateLimitConfig) fiber.Handler {
	maxRequests := cfg.Max
	if maxRequests <= 0 {
		maxRequests = 30
	}
	return limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: cfg.Window(),
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewDomainError("RATE_LIMITED", "too many requests", http.StatusTooManyRequests, nil)
		},
	})
}

// SmsWebhookRateLimit bounds inbound replies per sender number. The provider
// posts from a shared address pool, so the client IP is only a fallback. Over
// the limit the sender gets a TwiML reply instead of an error status.
func SmsWebhookRateLimit(cfg config.RateLimitConfig) fiber.Handler {
	maxRequests := cfg.Max
	if maxRequests <= 0 {
		maxRequests = 30
	}
	return limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: cfg.Window(),
		KeyGenerator: func(c *fiber.Ctx) string {
			if from := strings.TrimSpace(c.FormValue("From")); from != "" {
				return "sms:" + from
			}
			return "sms-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return handlers.WriteTwiML(c, handlers.ReplyLimitedMessage)
		},
	})
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				body := fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}
				if len(domainErr.Details) > 0 {
					body["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.String("path", c.Path()), zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(fiber.Map{"error": body})
				err = nil
			}
		}()
		return c.Next()
	}
}
