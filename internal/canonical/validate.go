package canonical

import "strings"

// VATIDCountryPrefix returns the two-letter prefix of a VAT identifier,
// e.g. "DE" from "DE123456789".
func VATIDCountryPrefix(vatID string) string {
	vatID = strings.TrimSpace(vatID)
	if len(vatID) < 2 {
		return ""
	}
	return strings.ToUpper(vatID[:2])
}

// RequireAtLeastOneLine checks invariant 1: at least one invoice line.
func (inv *Invoice) RequireAtLeastOneLine() bool {
	return len(inv.Lines) > 0
}

// UnknownVATPrefixes returns the VAT id country prefixes among Seller
// and Buyer that do not resolve to a known ISO 3166-1 alpha-2 country —
// invariant 6's VAT-id half. Per SPEC_FULL.md §9(a) this is surfaced as
// a WARNING by the caller, never promoted to an error by this package.
func (inv *Invoice) UnknownVATPrefixes() []string {
	var bad []string
	for _, p := range []Party{inv.Seller, inv.Buyer} {
		if p.VATID == "" {
			continue
		}
		prefix := VATIDCountryPrefix(p.VATID)
		if prefix != "" && !IsKnownCountry(prefix) {
			bad = append(bad, prefix)
		}
	}
	return bad
}

// UnknownCurrency reports whether the document currency is not a
// recognised ISO 4217 code — invariant 6's currency half.
func (inv *Invoice) UnknownCurrency() bool {
	return inv.Currency != "" && !IsKnownCurrency(inv.Currency)
}
