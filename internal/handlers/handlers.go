package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/smile-overlay/internal/logging"
	"github.com/example/smile-overlay/internal/smile"
)

// RequestIDHeader carries the per-request identifier on responses.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// Inferer is the use case behind POST /infer.
type Inferer interface {
	Infer(ctx context.Context, requestID string, image []byte) (smile.InferResult, error)
}

// Options configures the routes.
type Options struct {
	// IndexHTML is served on GET /. Nil means the page could not be loaded.
	IndexHTML    []byte
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc Inferer, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router.Use(requestID(), cors(), accessLog(logger))

	router.GET("/", func(c *gin.Context) {
		if opts.IndexHTML == nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", opts.IndexHTML)
	})

	router.OPTIONS("/infer", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	router.POST("/infer", func(c *gin.Context) {
		id := c.GetString(requestIDKey)
		opLogger := logging.WithOperation(logger, "handlers.infer", id)

		body := c.Request.Body
		if opts.MaxBodyBytes > 0 {
			body = http.MaxBytesReader(c.Writer, body, opts.MaxBodyBytes)
		}
		image, err := io.ReadAll(body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.Status(http.StatusRequestEntityTooLarge)
				return
			}
			opLogger.Error("failed to read request body", zap.Error(err))
			c.Status(http.StatusInternalServerError)
			return
		}
		if len(image) == 0 {
			c.Status(http.StatusBadRequest)
			return
		}

		result, err := uc.Infer(c.Request.Context(), id, image)
		if err != nil {
			fields := []zap.Field{zap.Error(err), zap.Int("image_bytes", len(image))}
			if op, ok := logging.OperationOf(err); ok {
				fields = append(fields, zap.String("failed_operation", op))
			}
			opLogger.Error("inference failed", fields...)
			c.Status(http.StatusInternalServerError)
			return
		}

		payload, err := json.Marshal(result)
		if err != nil {
			opLogger.Error("failed to encode inference result", zap.Error(err))
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "application/json", payload)
	})
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Private-Network", "true")
		h.Set("Access-Control-Max-Age", "86400")
		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.Int("response_size", c.Writer.Size()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("server error", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("client error", fields...)
		default:
			logger.Debug("request served", fields...)
		}
	}
}
