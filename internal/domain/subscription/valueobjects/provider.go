package valueobjects

import (
	"fmt"
	"strings"
)

// Provider identifies the external billing service of record.
type Provider string

const (
	// ProviderMPulse is the mobile-carrier WAP billing gateway.
	ProviderMPulse Provider = "mpulse"
	// ProviderFacebook is the social-platform payments system.
	ProviderFacebook Provider = "facebook"
)

var validProviders = map[Provider]bool{
	ProviderMPulse:   true,
	ProviderFacebook: true,
}

func (p Provider) String() string {
	return string(p)
}

func (p Provider) IsValid() bool {
	return validProviders[p]
}

// ParseProvider accepts provider names case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown provider: %q", s)
	}
	return p, nil
}

// IsRenewable reports whether subscriptions with the provider are billed
// again automatically at the end of each term.
func (p Provider) IsRenewable() bool {
	return p == ProviderMPulse
}
