package httpapi

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/veilhq/veil/internal/integrity"
)

const rawBodyKey = "rawBody"

// RawBodyMiddleware reads the request body once and stashes it in the
// context. The signature gate and the handlers both need the exact
// bytes Slack signed, so nobody downstream may consume the body stream.
func RawBodyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(rawBodyKey, body)
		c.Next()
	}
}

func rawBody(c *gin.Context) []byte {
	body, _ := c.Get(rawBodyKey)
	b, _ := body.([]byte)
	return b
}

// SignatureMiddleware rejects requests whose signed-request headers do
// not verify against the raw body. Failures are 400 with no detail.
func SignatureMiddleware(v *integrity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := v.Verify(
			c.GetHeader(integrity.TimestampHeader),
			c.GetHeader(integrity.SignatureHeader),
			rawBody(c),
		)
		if err != nil {
			log.Printf("signature rejected on %s: %v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad signature"})
			return
		}
		c.Next()
	}
}

// NonceMiddleware guards the internal _work endpoints: only requests
// forwarded by this process carry the route's nonce.
func NonceMiddleware(nonces *integrity.NonceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := nonces.Verify(c.Request.URL.Path, c.GetHeader(integrity.NonceHeader)); err != nil {
			log.Printf("nonce rejected on %s", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad nonce"})
			return
		}
		c.Next()
	}
}

// AdminAuthMiddleware checks for a secret X-Admin-Token header. An
// empty configured token fails closed.
func AdminAuthMiddleware(requiredToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if requiredToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: admin endpoints disabled"})
			return
		}

		suppliedToken := c.GetHeader("X-Admin-Token")
		if suppliedToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Admin token required"})
			return
		}
		if suppliedToken != requiredToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: Invalid admin token"})
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware adds basic, sensible security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevents clickjacking
		c.Header("X-Frame-Options", "DENY")
		// Prevents MIME-type sniffing
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	}
}

const (
	// 1 submission every 3 seconds per user
	submitRPS   = rate.Limit(1.0 / 3.0)
	submitBurst = 1
)

// UserRateLimiter throttles confession submissions per Slack user id.
type UserRateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
}

// NewSubmitLimiter returns the limiter used for confession submissions.
func NewSubmitLimiter() *UserRateLimiter {
	return NewUserRateLimiter(submitRPS, submitBurst)
}

func NewUserRateLimiter(r rate.Limit, b int) *UserRateLimiter {
	return &UserRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    b,
	}
}

// Allow reports whether the user may submit now.
func (rl *UserRateLimiter) Allow(uid string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.visitors[uid]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[uid] = limiter
	}
	return limiter.Allow()
}

// Sweep drops limiters that have regained their full burst, keeping
// the map from growing with every user id ever seen.
func (rl *UserRateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for uid, v := range rl.visitors {
		if v.Tokens() >= float64(rl.burst) {
			delete(rl.visitors, uid)
		}
	}
}
