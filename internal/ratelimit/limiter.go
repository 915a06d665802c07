package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/LouisHart1808/Plutus/internal/config"
	"github.com/LouisHart1808/Plutus/internal/logger"
)

// Limiter implements a token bucket rate limiter per client IP.
type Limiter struct {
	Configuration *config.Config
	logger        *logger.Logger

	clientBuckets map[string]*TokenBucket
	bucketsMutex  sync.RWMutex

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// TokenBucket represents a token bucket for one client.
type TokenBucket struct {
	capacity     int
	tokens       int
	lastRefill   time.Time
	refillRate   int
	refillPeriod time.Duration
	mu           sync.Mutex
}

// NewLimiter creates a new rate limiter and starts its cleanup loop.
func NewLimiter(configuration *config.Config, log *logger.Logger) *Limiter {
	limiter := &Limiter{
		Configuration: configuration,
		logger:        log,
		clientBuckets: make(map[string]*TokenBucket),
		cleanupTicker: time.NewTicker(5 * time.Minute),
		stopCleanup:   make(chan struct{}),
	}
	go limiter.cleanup()
	return limiter
}

// Allow checks if a request from the given IP is allowed.
func (limiter *Limiter) Allow(clientIP string) bool {
	if !limiter.Configuration.RateLimitEnabled {
		return true
	}

	limiter.bucketsMutex.Lock()
	bucket, exists := limiter.clientBuckets[clientIP]
	if !exists {
		bucket = &TokenBucket{
			capacity:     limiter.Configuration.RateLimitBurst,
			tokens:       limiter.Configuration.RateLimitBurst,
			lastRefill:   time.Now(),
			refillRate:   limiter.Configuration.RateLimitRequests,
			refillPeriod: limiter.Configuration.RateLimitWindow,
		}
		limiter.clientBuckets[clientIP] = bucket
	}
	limiter.bucketsMutex.Unlock()

	return bucket.Allow()
}

// GetClientIP extracts the real client IP from the request.
func (limiter *Limiter) GetClientIP(request *http.Request) string {
	if forwarded := request.Header.Get("X-Forwarded-For"); forwarded != "" {
		if clientIP := net.ParseIP(forwarded); clientIP != nil {
			return clientIP.String()
		}
		if host, _, err := net.SplitHostPort(forwarded); err == nil {
			if clientIP := net.ParseIP(host); clientIP != nil {
				return clientIP.String()
			}
		}
	}

	if realIP := request.Header.Get("X-Real-IP"); realIP != "" {
		if clientIP := net.ParseIP(realIP); clientIP != nil {
			return clientIP.String()
		}
	}

	clientIP, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return clientIP
}

// cleanup removes idle buckets to prevent unbounded growth.
func (limiter *Limiter) cleanup() {
	for {
		select {
		case <-limiter.cleanupTicker.C:
			limiter.bucketsMutex.Lock()
			now := time.Now()
			for clientIP, bucket := range limiter.clientBuckets {
				bucket.mu.Lock()
				if now.Sub(bucket.lastRefill) > 24*time.Hour {
					delete(limiter.clientBuckets, clientIP)
				}
				bucket.mu.Unlock()
			}
			limiter.bucketsMutex.Unlock()
		case <-limiter.stopCleanup:
			limiter.cleanupTicker.Stop()
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (limiter *Limiter) Stop() {
	close(limiter.stopCleanup)
}

// Allow checks if a token is available in the bucket.
func (bucket *TokenBucket) Allow() bool {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	if now.After(bucket.lastRefill) {
		elapsed := now.Sub(bucket.lastRefill)
		tokensToAdd := int(elapsed.Seconds() / bucket.refillPeriod.Seconds() * float64(bucket.refillRate))
		if tokensToAdd > 0 {
			bucket.tokens = minimum(bucket.capacity, bucket.tokens+tokensToAdd)
			bucket.lastRefill = now
		}
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

func minimum(a, b int) int {
	if a < b {
		return a
	}
	return b
}
