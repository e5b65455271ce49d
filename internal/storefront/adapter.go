// Package storefront defines the adapter contract for external shopping
// platforms and the configured, precedence-ordered set of adapters.
package storefront

import (
	"context"
	"fmt"
)

// Quote is a probe outcome. An ordinary miss is Found=false with a Reason;
// an error return from Probe is reserved for adapter-internal faults.
type Quote struct {
	Found  bool
	Price  float64
	Label  string
	Reason string
}

// Adapter is one storefront. Probe and Purchase may block for arbitrary
// durations and must honor context cancellation.
type Adapter interface {
	Name() string
	Probe(ctx context.Context, query string) (Quote, error)
	Purchase(ctx context.Context, query string) error
}

// Set holds the configured adapters. The construction order is the
// precedence order used to break price ties, so it must be stable.
type Set struct {
	order  []string
	byName map[string]Adapter
}

// NewSet builds a Set from adapters in precedence order. Duplicate names
// keep the first adapter.
func NewSet(adapters ...Adapter) *Set {
	s := &Set{byName: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := s.byName[a.Name()]; dup {
			continue
		}
		s.order = append(s.order, a.Name())
		s.byName[a.Name()] = a
	}
	return s
}

// Names returns the storefront names in precedence order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Lookup returns the adapter for the named storefront.
func (s *Set) Lookup(name string) (Adapter, error) {
	a, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("storefront %q is not configured", name)
	}
	return a, nil
}

// Len returns the number of configured storefronts.
func (s *Set) Len() int { return len(s.order) }
