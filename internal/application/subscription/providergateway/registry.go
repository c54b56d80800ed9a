package providergateway

import (
	"fmt"
	"sort"

	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
)

// Registry maps each provider to its gateway. It is built once at startup
// and read-only afterwards.
type Registry struct {
	gateways map[vo.Provider]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[vo.Provider]Gateway, len(gateways))}
	for _, gw := range gateways {
		r.gateways[gw.Provider()] = gw
	}
	return r
}

// Get returns ErrUnsupportedProvider when no gateway is registered.
func (r *Registry) Get(provider vo.Provider) (Gateway, error) {
	gw, ok := r.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	return gw, nil
}

// Providers returns the registered providers in a stable order.
func (r *Registry) Providers() []vo.Provider {
	providers := make([]vo.Provider, 0, len(r.gateways))
	for p := range r.gateways {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}
