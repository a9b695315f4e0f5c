// Package middleware provides the HTTP cross-cutting handlers.
package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"livecast/pkg/tracing"
)

// Tracing opens a span per request and records the outcome.
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Request.Method + " " + c.FullPath()
		ctx, span := tracing.StartSpan(c.Request.Context(), name)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.target", c.Request.URL.Path),
		)

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}
