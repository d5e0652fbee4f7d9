// Package middleware – Idempotency-Key validation.
//
// A chat POST triggers an expensive generation call, so client retries must
// be deduplicable. Clients send an Idempotency-Key header; this middleware
// validates its shape, stashes the normalized key in the Gin context, and
// can mark the request as a replay via an injected lookup so the rate
// limiter lets it through for free. Serving the stored result stays in the
// handler's hands; the middleware never caches payloads itself.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's retry key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// keyPattern is an RFC-7230-ish token with a few safe extras. Keys are
// expected to be client-generated UUIDs, but anything token-shaped passes.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stashed by the validator, and
// whether one is present. Handlers should use this instead of re-reading
// the header.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup recognized this (student, key) pair
// as already completed.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IsRateBypass reports whether this request may skip rate limiting (set on
// detected replays).
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length; values <= 0 default to 200.
	MaxLen int
}

// IdempotencyLookup answers whether a stored, still-valid result exists for
// (studentID, key) at now. The subject stays out of the lookup on purpose:
// it lives in the not-yet-read JSON body, and the handler's authoritative
// replay path re-keys on the normalized (student, subject, key) triple
// anyway. TTL enforcement lives inside the lookup. Lookup errors must not
// block the request.
type IdempotencyLookup func(ctx context.Context, studentID, key string, now time.Time) (bool, error)

// IdempotencyValidator validates the Idempotency-Key header when present
// (absence is a no-op), rejects malformed keys with 400, and marks detected
// replays for rate-limit bypass.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !keyPattern.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			sid := studentIDFromCtx(c)
			if exists, _ := lookup(c.Request.Context(), sid, key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// studentIDFromCtx reads the authenticated student set by upstream auth,
// with the demo header fallback used in development and tests.
func studentIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(studentIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return c.GetHeader("X-Student-ID")
}
