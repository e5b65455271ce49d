package storefront

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"time"
)

// SimAdapter is an in-process storefront used by the default wiring and by
// tests. Prices come from a catalog keyed by normalized query; unknown
// queries are deterministic misses. Latency and fault injection are
// optional.
type SimAdapter struct {
	name    string
	catalog map[string]float64
	latency time.Duration
	fail    error
}

// SimOption configures a SimAdapter.
type SimOption func(*SimAdapter)

// WithLatency makes every probe and purchase take at least d.
func WithLatency(d time.Duration) SimOption {
	return func(s *SimAdapter) { s.latency = d }
}

// WithFault makes every probe and purchase return err.
func WithFault(err error) SimOption {
	return func(s *SimAdapter) { s.fail = err }
}

// NewSim creates a simulated storefront with the given price catalog.
func NewSim(name string, catalog map[string]float64, opts ...SimOption) *SimAdapter {
	s := &SimAdapter{name: name, catalog: normalizeCatalog(catalog)}
	for _, o := range opts {
		o(s)
	}
	return s
}

func normalizeCatalog(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[normalize(k)] = v
	}
	return out
}

func normalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func (s *SimAdapter) Name() string { return s.name }

func (s *SimAdapter) sleep(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	// spread completion order a little so siblings do not settle in
	// lockstep
	jitter := time.Duration(s.hash()) % (s.latency/4 + 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.latency + jitter):
		return nil
	}
}

func (s *SimAdapter) hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s.name))
	return h.Sum64()
}

// Probe returns the catalog price for the query, or a miss.
func (s *SimAdapter) Probe(ctx context.Context, query string) (Quote, error) {
	if err := s.sleep(ctx); err != nil {
		return Quote{}, err
	}
	if s.fail != nil {
		return Quote{}, s.fail
	}
	price, ok := s.catalog[normalize(query)]
	if !ok {
		return Quote{Reason: "price not found"}, nil
	}
	return Quote{Found: true, Price: price, Label: normalize(query)}, nil
}

// Purchase succeeds iff the catalog carries the product.
func (s *SimAdapter) Purchase(ctx context.Context, query string) error {
	if err := s.sleep(ctx); err != nil {
		return err
	}
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.catalog[normalize(query)]; !ok {
		return errors.New("product not available")
	}
	return nil
}
