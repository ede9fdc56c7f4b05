package middleware

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridetrack/internal/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	replayedHeader    = "Idempotent-Replayed"
	storeTimeout      = 2 * time.Second
)

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a mutating request repeats its
// Idempotency-Key. Keys are scoped to the route and its path parameters, so
// the same key may be reused for a different ride. Server errors are not
// stored and can be retried.
func Idempotency(store redis.ResponseStoreInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		scoped := c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		ctx := c.Request.Context()
		stored, err := store.GetResponse(ctx, scoped)
		if err != nil {
			log.Printf("[IDEMPOTENCY] Lookup failed for %s, proceeding: %v", c.Request.URL.Path, err)
			c.Next()
			return
		}

		if stored != nil {
			c.Header(replayedHeader, "true")
			if stored.ContentType != "" {
				c.Header("Content-Type", stored.ContentType)
			}
			c.Status(stored.StatusCode)
			_, _ = c.Writer.Write(stored.Body)
			c.Abort()
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		status := w.Status()
		if status < 200 || status >= 500 {
			return
		}

		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer cancel()
		err = store.SaveResponse(saveCtx, scoped, redis.StoredResponse{
			StatusCode:  status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}, idempotencyTTL)
		if err != nil {
			log.Printf("[IDEMPOTENCY] Failed to store response for %s: %v", c.Request.URL.Path, err)
		}
	}
}
