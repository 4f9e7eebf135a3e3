package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"kitchen-sync/internal/logger"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// NewRouter returns a gin engine with recovery and request logging
func NewRouter(log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))
	return router
}

// RequestLogger assigns a request id and logs the start and end of every request
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		log.Debug("request_started", fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path), requestID, map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"remote_addr": c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})

		c.Next()

		log.Debug("request_completed", fmt.Sprintf("%s %s - %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status()), requestID, map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// RequestID returns the id assigned by RequestLogger, or a fresh one
func RequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	return logger.GenerateRequestID()
}

// WriteError writes the JSON error body used by every endpoint
func WriteError(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": RequestID(c),
	})
}

// Health reports liveness plus the result of ping, which may be nil
func Health(service string, ping func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   service,
		}
		if ping != nil {
			if err := ping(c); err != nil {
				response["status"] = "unhealthy"
				response["error"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, response)
				return
			}
		}
		c.JSON(http.StatusOK, response)
	}
}

// CORS allows the given browser origins, or any origin when none are listed
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, RequestIDHeader)
	cfg.ExposeHeaders = []string{RequestIDHeader}
	return cors.New(cfg)
}
