// Package rates keeps the process-wide table of conversion multipliers
// relative to the base currency.
package rates

import (
	"context"
	"fmt"
	"maps"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"billsplit/internal/log"
)

// FetchError reports a failed refresh. The cache is unchanged when it is
// returned.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch rates: %v", e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

type Option func(*Cache)

// WithTimeout bounds a single refresh.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger.WithComponent(log.ComponentRates)
		}
	}
}

// Cache maps currency codes to multipliers. The base currency is always
// present with rate 1.
type Cache struct {
	base     string
	provider Provider
	timeout  time.Duration
	logger   *log.Logger
	group    singleflight.Group

	mu        sync.RWMutex
	rates     map[string]float64
	refreshed time.Time
}

func NewCache(base string, provider Provider, opts ...Option) *Cache {
	base = normalize(base)
	c := &Cache{
		base:     base,
		provider: provider,
		timeout:  10 * time.Second,
		rates:    map[string]float64{base: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentRates)
	}
	return c
}

// Base returns the base currency code.
func (c *Cache) Base() string { return c.base }

// Rate returns the multiplier for code, or 1 when code is unknown.
func (c *Cache) Rate(code string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.rates[normalize(code)]; ok {
		return r
	}
	return 1
}

// Has reports whether code has a known rate.
func (c *Cache) Has(code string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rates[normalize(code)]
	return ok
}

// Rates returns a copy of the table.
func (c *Cache) Rates() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.rates)
}

// RefreshedAt returns the time of the last successful refresh, zero if none.
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}

// Refresh fetches the provider's table and merges it in. Codes missing from
// the response keep their previous rate and the base entry is never
// overwritten. Concurrent calls share one fetch.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	return err
}

func (c *Cache) refresh(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	fetched, err := c.provider.Fetch(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Rate refresh failed, keeping cached rates",
			log.NewFields().
				WithOperation(log.OpRefresh).
				WithErrorType(log.ErrorTypeNetwork).
				WithError(err).
				ToSlice()...)
		return &FetchError{Err: err}
	}

	merged := 0
	c.mu.Lock()
	for code, r := range fetched {
		code = normalize(code)
		if code == c.base || code == "" {
			continue
		}
		if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
			continue
		}
		c.rates[code] = r
		merged++
	}
	c.refreshed = time.Now()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Rates refreshed", log.FieldCount, merged, log.FieldCurrency, c.base)
	return nil
}

// Start runs one best-effort refresh in the background. Failures are only
// logged; the returned channel closes when the attempt is over.
func (c *Cache) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Refresh(ctx)
	}()
	return done
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
