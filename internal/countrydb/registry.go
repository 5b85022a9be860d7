package countrydb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/medical-appointments/internal/appointment"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

// Registry holds one pool per configured country.
type Registry struct {
	pools  map[appointment.Country]*pgxpool.Pool
	stores map[appointment.Country]*Store
}

// Open connects to every country with a non-empty URL. Countries without a
// URL are skipped; asking for them later returns an error.
func Open(ctx context.Context, urls map[appointment.Country]string, logger *logging.Logger) (*Registry, error) {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Registry{
		pools:  make(map[appointment.Country]*pgxpool.Pool),
		stores: make(map[appointment.Country]*Store),
	}
	for country, url := range urls {
		if strings.TrimSpace(url) == "" {
			continue
		}
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("countrydb: connect %s: %w", country, err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			r.Close()
			return nil, fmt.Errorf("countrydb: ping %s: %w", country, err)
		}
		r.pools[country] = pool
		r.stores[country] = NewStore(pool)
		logger.Info("country database connected", "country", country)
	}
	return r, nil
}

// Store returns the store for country.
func (r *Registry) Store(country appointment.Country) (*Store, error) {
	store, ok := r.stores[country]
	if !ok {
		return nil, fmt.Errorf("countrydb: no database configured for %s", country)
	}
	return store, nil
}

// Close releases every pool.
func (r *Registry) Close() {
	for _, pool := range r.pools {
		pool.Close()
	}
}
