// Package vip holds the tier lookup table.
package vip

import (
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
)

// Terms are the per-tier commission rules
type Terms struct {
	Rate           decimal.Decimal `json:"rate"`
	MaxSubmissions int             `json:"max_submissions"`
	MinimumBalance decimal.Decimal `json:"minimum_balance"`
}

var defaultTerms = map[domain.VIPTier]Terms{
	domain.TierNormal:   {Rate: decimal.RequireFromString("0.005"), MaxSubmissions: 40, MinimumBalance: decimal.Zero},
	domain.TierSilver:   {Rate: decimal.RequireFromString("0.0075"), MaxSubmissions: 45, MinimumBalance: decimal.NewFromInt(100)},
	domain.TierGold:     {Rate: decimal.RequireFromString("0.01"), MaxSubmissions: 50, MinimumBalance: decimal.NewFromInt(500)},
	domain.TierPlatinum: {Rate: decimal.RequireFromString("0.0125"), MaxSubmissions: 55, MinimumBalance: decimal.NewFromInt(1000)},
	domain.TierDiamond:  {Rate: decimal.RequireFromString("0.015"), MaxSubmissions: 60, MinimumBalance: decimal.NewFromInt(2000)},
}

// Policy is a pure lookup over tier terms. Unknown tiers resolve to Normal.
type Policy struct {
	terms map[domain.VIPTier]Terms
}

// NewPolicy returns the default tier table
func NewPolicy() *Policy {
	terms := make(map[domain.VIPTier]Terms, len(defaultTerms))
	for tier, t := range defaultTerms {
		terms[tier] = t
	}
	return &Policy{terms: terms}
}

// IsKnown reports whether tier has its own row in the table
func (p *Policy) IsKnown(tier domain.VIPTier) bool {
	_, ok := p.terms[tier]
	return ok
}

// TermsFor returns the terms of tier, or Normal's for unknown tiers
func (p *Policy) TermsFor(tier domain.VIPTier) Terms {
	if t, ok := p.terms[tier]; ok {
		return t
	}
	return p.terms[domain.TierNormal]
}

// RateFor returns the commission rate of tier
func (p *Policy) RateFor(tier domain.VIPTier) decimal.Decimal {
	return p.TermsFor(tier).Rate
}

// MaxSubmissionsFor returns the submissions allowed per period
func (p *Policy) MaxSubmissionsFor(tier domain.VIPTier) int {
	return p.TermsFor(tier).MaxSubmissions
}

// MinimumBalanceFor returns the balance required to start submitting
func (p *Policy) MinimumBalanceFor(tier domain.VIPTier) decimal.Decimal {
	return p.TermsFor(tier).MinimumBalance
}
