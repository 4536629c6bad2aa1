package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// PasswordHeader carries the operator password. HTTP basic auth is accepted too.
const PasswordHeader = "X-App-Password"

type Middleware struct {
	passwordHash []byte
	logger       *zap.Logger

	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	now       func() time.Time

	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	lastSweep time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// defaultIdleAfter is used when the limit never refills a bucket.
const defaultIdleAfter = 10 * time.Minute

// NewMiddleware builds the middleware set. An empty passwordHash disables the
// password gate. Failed attempts per client IP are limited to limit/s with
// the given burst.
func NewMiddleware(passwordHash string, limit rate.Limit, burst int, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	// A bucket idle this long is full again, the same as a new one.
	idleAfter := defaultIdleAfter
	if limit > 0 && limit != rate.Inf {
		idleAfter = time.Duration(float64(burst) / float64(limit) * float64(time.Second))
	}
	return &Middleware{
		passwordHash: []byte(passwordHash),
		logger:       logger,
		limit:        limit,
		burst:        burst,
		idleAfter:    idleAfter,
		now:          time.Now,
		limiters:     make(map[string]*ipLimiter),
	}
}

// CORSMiddleware allows Cross-Origin requests
func (m *Middleware) CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, "+PasswordHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// PasswordGate rejects requests without the operator password. Clients that
// keep failing are answered 429 without checking the password. Limiters of
// clients idle long enough to have a full bucket again are dropped.
func (m *Middleware) PasswordGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(m.passwordHash) == 0 {
			c.Next()
			return
		}

		// Every attempt takes a token up front; a correct password gives it back.
		limiter := m.limiterFor(c.ClientIP())
		now := time.Now()
		res := limiter.ReserveN(now, 1)
		if !res.OK() || res.DelayFrom(now) > 0 {
			res.CancelAt(now)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many failed attempts"})
			return
		}

		password := c.GetHeader(PasswordHeader)
		if password == "" {
			_, password, _ = c.Request.BasicAuth()
		}
		if password == "" || bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)) != nil {
			m.logger.Warn("rejected password", zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
			return
		}
		res.CancelAt(now)

		c.Next()
	}
}

func (m *Middleware) limiterFor(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= m.idleAfter {
		for k, l := range m.limiters {
			if now.Sub(l.lastSeen) >= m.idleAfter {
				delete(m.limiters, k)
			}
		}
		m.lastSweep = now
	}

	l, ok := m.limiters[key]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.limiters[key] = l
	}
	l.lastSeen = now
	return l.limiter
}
