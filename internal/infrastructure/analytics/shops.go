package analytics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/dilly/tablebot/internal/infrastructure/logger"
)

const (
	// DefaultPreferredShop is used as the default shop whenever the API lists it
	DefaultPreferredShop = "dlabparism6BFF685A"
	// DefaultFallbackShop is used when the API lists no shop at all
	DefaultFallbackShop = "default_shop"
	// DefaultShopCacheTTL is how long a fetched shop list stays fresh
	DefaultShopCacheTTL = time.Hour
)

// ShopLister is the subset of Client used by ShopDirectory
type ShopLister interface {
	FetchShopIDs(ctx context.Context) ([]string, error)
}

// ShopDirectoryConfig contains configuration for the shop directory
type ShopDirectoryConfig struct {
	PreferredShop string
	FallbackShop  string
	TTL           time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

// ShopDirectory caches the known shop IDs.
// The list is refreshed when it is empty or older than the TTL;
// a failed refresh keeps the previous list.
type ShopDirectory struct {
	lister    ShopLister
	preferred string
	fallback  string
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	shops     []string
	fetchedAt time.Time
}

// NewShopDirectory creates a directory backed by lister
func NewShopDirectory(lister ShopLister, config *ShopDirectoryConfig) *ShopDirectory {
	if config == nil {
		config = &ShopDirectoryConfig{}
	}
	d := &ShopDirectory{
		lister:    lister,
		preferred: config.PreferredShop,
		fallback:  config.FallbackShop,
		ttl:       config.TTL,
		logger:    config.Logger,
		now:       config.Now,
	}
	if d.preferred == "" {
		d.preferred = DefaultPreferredShop
	}
	if d.fallback == "" {
		d.fallback = DefaultFallbackShop
	}
	if d.ttl <= 0 {
		d.ttl = DefaultShopCacheTTL
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Shops returns the current shop list, refreshing it when stale
func (d *ShopDirectory) Shops(ctx context.Context) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.shops) > 0 && d.now().Sub(d.fetchedAt) < d.ttl {
		return d.shops
	}

	ids, err := d.lister.FetchShopIDs(ctx)
	if err != nil {
		logger.WithLogger(ctx, d.logger).Error("Error fetching shop IDs", zap.Error(err))
		return d.shops
	}
	d.shops = ids
	d.fetchedAt = d.now()
	logger.WithLogger(ctx, d.logger).Info("Shop directory refreshed", zap.Int("shops", len(ids)))
	return d.shops
}

// Refresh forces the next lookup to fetch the list again
func (d *ShopDirectory) Refresh(ctx context.Context) []string {
	d.mu.Lock()
	d.fetchedAt = time.Time{}
	d.mu.Unlock()
	return d.Shops(ctx)
}

// Default returns the preferred shop if known, else the first known shop,
// else the fallback shop
func (d *ShopDirectory) Default(ctx context.Context) string {
	shops := d.Shops(ctx)
	for _, id := range shops {
		if id == d.preferred {
			return id
		}
	}
	if len(shops) > 0 {
		return shops[0]
	}
	return d.fallback
}

// Resolve maps a user-typed shop candidate onto a known shop ID.
// Matching is case-insensitive and the canonical ID is returned.
func (d *ShopDirectory) Resolve(ctx context.Context, candidate string) (string, bool) {
	if candidate == "" {
		return "", false
	}
	fold := cases.Fold()
	want := fold.String(candidate)
	for _, id := range d.Shops(ctx) {
		if id == candidate || fold.String(id) == want {
			return id, true
		}
	}
	return "", false
}
