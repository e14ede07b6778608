package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/server/handlers"
)

// DefaultWebhookPath is used when no webhook path is configured.
const DefaultWebhookPath = "/webhook"

// Options tunes the routes registered by New.
type Options struct {
	// WebhookPath is the path registered with Telegram's setWebhook.
	WebhookPath string
}

func (o Options) webhookPath() string {
	path := strings.TrimSpace(o.WebhookPath)
	if path == "" {
		return DefaultWebhookPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// New wires the Gin engine with the bot webhook, the operator push endpoint
// and the health check.
func New(opts Options, handler *handlers.WebhookHandler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(zapRecovery(logger))
	r.Use(zapLoggerMiddleware(logger))

	webhook := opts.webhookPath()
	r.POST(webhook, handler.Receive)
	r.POST("/send-message", handler.SendMessage)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	logger.Info("router initialized", zap.String("webhook_path", webhook))
	return r
}

func zapRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("handler panic",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

// zapLoggerMiddleware logs one line per request at a level chosen by the
// response status.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request rejected", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
