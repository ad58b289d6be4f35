// Package httpmiddleware holds gin middleware shared by the kiosk routes.
package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"facedesk/internal/clock"
)

// idleAfter is how long an untouched bucket is kept before it is pruned.
const idleAfter = 10 * time.Minute

// SimpleTokenBucket is an in-memory per-client rate limiter. A kiosk serves
// a handful of clients, so process-local state is enough.
type SimpleTokenBucket struct {
	capacity float64
	perSec   float64
	clock    clock.Clock
	exempt   map[string]bool

	mu        sync.Mutex
	state     map[string]*bucket
	lastPrune time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewSimpleTokenBucket creates limiter with capacity tokens and rate per minute.
// A non-positive perMinute disables limiting. Requests to the exempt paths
// (gin full paths) are never counted.
func NewSimpleTokenBucket(capacity, perMinute int, clk clock.Clock, exempt ...string) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	if clk == nil {
		clk = clock.New()
	}
	l := &SimpleTokenBucket{
		capacity: float64(capacity),
		perSec:   float64(perMinute) / 60,
		clock:    clk,
		exempt:   make(map[string]bool, len(exempt)),
		state:    make(map[string]*bucket),
	}
	for _, p := range exempt {
		l.exempt[p] = true
	}
	return l
}

// GinMiddleware returns gin handler enforcing per-IP limits.
func (l *SimpleTokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.perSec <= 0 || l.exempt[c.FullPath()] {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if ok, wait := l.take(ip); !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
			return
		}
		c.Next()
	}
}

// Allow takes one token from key's bucket.
func (l *SimpleTokenBucket) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take reports whether a token was available and, if not, how long until
// one will be.
func (l *SimpleTokenBucket) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	l.prune(now)

	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.state[key] = b
	}
	b.tokens = math.Min(l.capacity, b.tokens+now.Sub(b.last).Seconds()*l.perSec)
	b.last = now
	if b.tokens < 1 {
		return false, time.Duration((1 - b.tokens) / l.perSec * float64(time.Second))
	}
	b.tokens--
	return true, 0
}

func (l *SimpleTokenBucket) prune(now time.Time) {
	if now.Sub(l.lastPrune) < idleAfter {
		return
	}
	l.lastPrune = now
	for k, b := range l.state {
		if now.Sub(b.last) > idleAfter {
			delete(l.state, k)
		}
	}
}

// Len reports how many clients are tracked.
func (l *SimpleTokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state)
}
