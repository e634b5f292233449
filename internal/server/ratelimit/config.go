// Defines rate limit tiers and routing rules.

package ratelimit

import (
	"net/http"
	"time"
)

// Tier is a named limiter.
type Tier struct {
	Name    string
	Limiter *Limiter
}

// Config holds one tier for reads and one for writes. Buckets are keyed by
// client IP.
type Config struct {
	Read  Tier
	Write Tier
}

// NewConfig creates limits of readPerMin GET requests and writePerMin
// mutating requests per minute and per client. Bursts are a sixth of the
// rate, at least one.
func NewConfig(readPerMin, writePerMin int) *Config {
	return &Config{
		Read:  Tier{Name: "read", Limiter: NewLimiter(readPerMin, time.Minute, max(readPerMin/6, 1))},
		Write: Tier{Name: "write", Limiter: NewLimiter(writePerMin, time.Minute, max(writePerMin/6, 1))},
	}
}

// DefaultConfig is generous for a single user with a few open clients:
// 600 reads and 120 writes per minute.
func DefaultConfig() *Config {
	return NewConfig(600, 120)
}

// Match returns the tier for a request, or nil for requests that are not
// limited: health checks and CORS preflights.
func (c *Config) Match(method, path string) *Tier {
	if c == nil || path == "/health" {
		return nil
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		return &c.Read
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return &c.Write
	default:
		return nil
	}
}

// Close stops all limiter cleanup goroutines.
func (c *Config) Close() {
	c.Read.Limiter.Close()
	c.Write.Limiter.Close()
}

// BuildKey creates a bucket key from the client identifier and tier name.
func BuildKey(identifier, tierName string) string {
	return "ip:" + identifier + ":" + tierName
}
