package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoice-reconciliation-service/internal/metrics"
	"invoice-reconciliation-service/pkg/logger"
)

const (
	// RequestIDHeader carries the request ID in both directions
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
	loggerKey    = "logger"
)

// RequestID reuses the caller's X-Request-ID or assigns a new one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request and stores a request-scoped
// logger for handlers
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		reqLogger := log.WithRequestID(c.GetString(requestIDKey)).WithFields(logger.Fields{
			"method": c.Request.Method,
			"path":   path,
		})
		c.Set(loggerKey, reqLogger)

		c.Next()

		status := c.Writer.Status()
		fields := logger.Fields{
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"body_size":  c.Writer.Size(),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			fields["query"] = query
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.Errors()
		}

		entry := reqLogger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("HTTP request")
		case status >= 400:
			entry.Warn("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}

// Recovery turns a handler panic into a 500 envelope
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(logger.Fields{
					"request_id": c.GetString(requestIDKey),
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
					"panic":      rec,
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered")

				abortWithError(c, http.StatusInternalServerError, "internal_error", "internal server error", "")
			}
		}()
		c.Next()
	}
}

// Metrics records request counts and latency by route template
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// BodyLimit caps request bodies at maxBytes
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// CORS builds the cross-origin policy. A "*" entry allows every origin
// without credentials.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cors.New(cfg)
}

func requestLogger(c *gin.Context) logger.Logger {
	if l, ok := c.Get(loggerKey); ok {
		if log, ok := l.(logger.Logger); ok {
			return log
		}
	}
	return logger.GetGlobalLogger()
}
