package nip11

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultTTL       = time.Hour
	DefaultCacheSize = 1024
)

// Capability is the result of a relay capability check.
type Capability struct {
	URL       string
	Supported bool
	// Info is nil if the relay info document could not be fetched.
	Info      *Info
	Error     string
	CheckedAt time.Time
}

// Fetcher retrieves relay information documents.
type Fetcher interface {
	Fetch(ctx context.Context, relayURL string) (*Info, error)
}

type CheckerOpt func(*Checker)

// WithTTL specifies how long the check results are cached.
func WithTTL(ttl time.Duration) CheckerOpt {
	return func(c *Checker) {
		c.ttl = ttl
	}
}

// WithCacheSize limits the number of cached results.
func WithCacheSize(size int) CheckerOpt {
	return func(c *Checker) {
		c.size = size
	}
}

// WithCheckerLogger specifies the logger for the checker.
func WithCheckerLogger(logger *zap.Logger) CheckerOpt {
	return func(c *Checker) {
		c.logger = logger
	}
}

// WithCheckerClock specifies the clock used for the cache expiration.
func WithCheckerClock(clock clockwork.Clock) CheckerOpt {
	return func(c *Checker) {
		c.clock = clock
	}
}

// Checker checks whether relays support negentropy, caching the results.
// Failed checks are cached too, as unsupported.
type Checker struct {
	fetcher Fetcher
	ttl     time.Duration
	size    int
	logger  *zap.Logger
	clock   clockwork.Clock
	cache   *expirable.LRU[string, Capability]
}

// NewChecker creates a Checker.
func NewChecker(fetcher Fetcher, opts ...CheckerOpt) *Checker {
	c := &Checker{
		fetcher: fetcher,
		ttl:     DefaultTTL,
		size:    DefaultCacheSize,
		logger:  zap.NewNop(),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = expirable.NewLRU[string, Capability](c.size, nil, c.ttl)
	return c
}

// Check returns the capability of the relay, fetching the relay info document
// unless a fresh result is cached.
func (c *Checker) Check(ctx context.Context, relayURL string) Capability {
	if cp, ok := c.cache.Get(relayURL); ok && c.clock.Since(cp.CheckedAt) < c.ttl {
		return cp
	}
	cp := Capability{URL: relayURL, CheckedAt: c.clock.Now()}
	info, err := c.fetcher.Fetch(ctx, relayURL)
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		cp.Error = err.Error()
		return cp
	case err != nil:
		c.logger.Debug("relay info check failed", zap.String("relay", relayURL), zap.Error(err))
		cp.Error = err.Error()
	default:
		cp.Info = info
		cp.Supported = info.SupportsNegentropy()
	}
	c.cache.Add(relayURL, cp)
	return cp
}

// Supports returns true if the relay advertises negentropy support.
func (c *Checker) Supports(ctx context.Context, relayURL string) bool {
	return c.Check(ctx, relayURL).Supported
}

// Clear drops the cached result for the relay.
func (c *Checker) Clear(relayURL string) {
	c.cache.Remove(relayURL)
}

// ClearAll drops all the cached results.
func (c *Checker) ClearAll() {
	c.cache.Purge()
}
