package bridges

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReadyTimeout bounds how long a preparation run waits for the bridge
// registry before giving up.
const ReadyTimeout = 10 * time.Second

// TokenSource is the slice of Registry the cache needs. It exists so tests can
// substitute a fixed map for the live bridge.
type TokenSource interface {
	SupportedTokens(ctx context.Context) (map[string]TokenLimits, error)
}

// Cache holds the bridge registry snapshot. It is populated once and read-only
// afterwards; a token absent from the registry gets permissive defaults
// (minimum of one atomic unit, zero fee) rather than blocking withdrawals.
type Cache struct {
	source TokenSource
	log    *zap.Logger

	mu        sync.RWMutex
	limits    map[string]TokenLimits
	ready     chan struct{}
	populated bool
}

// NewCache creates an unpopulated cache over the given source.
func NewCache(source TokenSource, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		source: source,
		log:    log,
		ready:  make(chan struct{}),
	}
}

// Populate fetches the registry. The first successful fetch freezes the
// snapshot; later calls are no-ops, and a failed fetch may be retried.
func (c *Cache) Populate(ctx context.Context) error {
	c.mu.Lock()
	if c.populated {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	limits, err := c.source.SupportedTokens(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populated {
		return nil
	}
	c.limits = limits
	c.populated = true
	close(c.ready)
	c.log.Info("bridge registry populated", zap.Int("tokens", len(limits)))
	return nil
}

// WaitReady blocks until the cache is populated, the caller aborts, or the
// bounded wait elapses.
func (c *Cache) WaitReady(ctx context.Context) error {
	timer := time.NewTimer(ReadyTimeout)
	defer timer.Stop()

	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("bridge registry not ready after %s", ReadyTimeout)
	}
}

// Limits returns the registry entry for an asset, falling back to permissive
// defaults when the bridge does not list it.
func (c *Cache) Limits(assetID string) TokenLimits {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, ok := c.limits[assetID]; ok {
		return entry
	}
	return TokenLimits{
		MinDeposit:    big.NewInt(1),
		MinWithdrawal: big.NewInt(1),
		WithdrawalFee: big.NewInt(0),
	}
}
