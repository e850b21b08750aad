package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type snapshot struct {
	status int
	header http.Header
	body   []byte
}

// teeWriter keeps a copy of everything the handler writes.
type teeWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// HasQuery reports whether a request carries the given query parameter.
// Live views change with every admission, so only point-in-time queries are cached.
func HasQuery(key string) func(*gin.Context) bool {
	return func(c *gin.Context) bool {
		return c.Query(key) != ""
	}
}

// cacheKey ignores the order of query parameters.
func cacheKey(r *http.Request) string {
	q := r.URL.Query().Encode()
	if q == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + q
}

// Cache replays successful GET responses accepted by cacheable for duration.
// A nil cacheable caches every GET.
func Cache(store *cache.Cache, duration time.Duration, cacheable func(*gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || (cacheable != nil && !cacheable(c)) {
			c.Next()
			return
		}

		key := cacheKey(c.Request)
		if v, found := store.Get(key); found {
			hit := v.(snapshot)
			h := c.Writer.Header()
			for k, vals := range hit.header {
				h[k] = vals
			}
			h.Set("X-Cache", "HIT")
			c.Writer.WriteHeader(hit.status)
			_, _ = c.Writer.Write(hit.body)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		tee := &teeWriter{ResponseWriter: c.Writer}
		c.Writer = tee
		c.Next()

		if status := tee.Status(); status >= 200 && status < 300 {
			header := tee.Header().Clone()
			header.Del("X-Cache")
			store.Set(key, snapshot{status: status, header: header, body: tee.buf.Bytes()}, duration)
		}
	}
}
