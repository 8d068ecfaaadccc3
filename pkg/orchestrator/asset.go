package orchestrator

import (
	"slices"
	"strings"

	"github.com/ArionMiles/beanbill/pkg/config"
)

// FallbackAsset is used when no rule matches the payment instrument.
const FallbackAsset = "Assets:FixMe"

// AssetMapper picks the asset account for a raw payment instrument. Rules
// are tried in declaration order and the first keyword contained in the
// instrument wins, ignoring case.
type AssetMapper struct {
	rules []config.AssetRule
}

// NewAssetMapper creates a mapper. Rules with an empty keyword or account
// are ignored.
func NewAssetMapper(rules []config.AssetRule) *AssetMapper {
	m := &AssetMapper{}
	for _, r := range rules {
		r.Keyword = strings.TrimSpace(r.Keyword)
		r.Account = strings.TrimSpace(r.Account)
		if r.Keyword == "" || r.Account == "" {
			continue
		}
		m.rules = append(m.rules, r)
	}
	return m
}

// Resolve returns the asset account for rawAccount, or FallbackAsset.
func (m *AssetMapper) Resolve(rawAccount string) string {
	raw := strings.ToLower(rawAccount)
	if raw == "" {
		return FallbackAsset
	}
	for _, r := range m.rules {
		if strings.Contains(raw, strings.ToLower(r.Keyword)) {
			return r.Account
		}
	}
	return FallbackAsset
}

// Accounts returns the distinct asset accounts, sorted.
func (m *AssetMapper) Accounts() []string {
	out := make([]string, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r.Account)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
