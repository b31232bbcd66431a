// Package arithmetic recomputes line, tax-subtotal, and document totals
// from the canonical invoice and compares them against the declared
// values within the configured monetary tolerance, per SPEC_FULL.md §4.10.
package arithmetic

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/einvoice-platform/pipeline/internal/canonical"
	"github.com/einvoice-platform/pipeline/internal/findings"
)

// DefaultTolerance is the ±0.02 currency-unit tolerance named in §6's
// configuration options.
var DefaultTolerance = decimal.NewFromFloat(0.02)

// Validate recomputes totals from inv and returns one finding per
// violated invariant. An empty result means the invoice is arithmetically
// consistent.
func Validate(inv *canonical.Invoice, tolerance decimal.Decimal) []findings.Finding {
	var out []findings.Finding

	// 1. line-extension-sum = Σ line.net
	lineSum := decimal.Zero
	for _, l := range inv.Lines {
		lineSum = lineSum.Add(l.NetAmount)
	}
	if !withinTolerance(lineSum, inv.LineExtensionSum, tolerance) {
		out = append(out, findings.Finding{
			Severity: findings.SeverityError,
			Code:     findings.CodeCalcTotalMismatch,
			Message: fmt.Sprintf("line-extension sum mismatch: computed %s, declared %s",
				lineSum.StringFixed(2), inv.LineExtensionSum.StringFixed(2)),
		})
	}

	// 2. per-category tax-amount ≈ round(base × rate/100, 2)
	taxSum := decimal.Zero
	hundred := decimal.NewFromInt(100)
	for _, tb := range inv.TaxBreakdown {
		expected := tb.TaxableBase.Mul(tb.RatePercent).Div(hundred).RoundBank(2)
		if !withinTolerance(expected, tb.TaxAmount, tolerance) {
			out = append(out, findings.Finding{
				Severity: findings.SeverityError,
				Code:     findings.CodeCalcTaxMismatch,
				Message: fmt.Sprintf("tax amount mismatch for category %s: computed %s, declared %s",
					tb.CategoryCode, expected.StringFixed(2), tb.TaxAmount.StringFixed(2)),
				Field: "TaxBreakdown." + tb.CategoryCode,
			})
		}
		taxSum = taxSum.Add(tb.TaxAmount)
	}

	// 3. Σ tax amounts = tax-inclusive − tax-exclusive
	expectedTaxTotal := inv.TaxInclusive.Sub(inv.TaxExclusive)
	if !withinTolerance(taxSum, expectedTaxTotal, tolerance) {
		out = append(out, findings.Finding{
			Severity: findings.SeverityError,
			Code:     findings.CodeCalcTaxMismatch,
			Message: fmt.Sprintf("tax total mismatch: breakdown sums to %s, tax-inclusive minus tax-exclusive is %s",
				taxSum.StringFixed(2), expectedTaxTotal.StringFixed(2)),
		})
	}

	// 4. payable = tax-inclusive − prepaid
	expectedPayable := inv.TaxInclusive.Sub(inv.Prepaid)
	if !withinTolerance(expectedPayable, inv.Payable, tolerance) {
		out = append(out, findings.Finding{
			Severity: findings.SeverityError,
			Code:     findings.CodeCalcPayableMismatch,
			Message: fmt.Sprintf("payable amount mismatch: computed %s, declared %s",
				expectedPayable.StringFixed(2), inv.Payable.StringFixed(2)),
		})
	}

	out = append(out, CheckVATCategoryRules(inv)...)
	out = append(out, unknownCodeFindings(inv)...)

	return out
}

func withinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// unknownCodeFindings surfaces invariant 6 (unknown VAT prefix / unknown
// currency) and unknown IBAN country prefixes as findings. Per
// SPEC_FULL.md §9(a) an unknown VAT prefix is only ever a WARNING.
func unknownCodeFindings(inv *canonical.Invoice) []findings.Finding {
	var out []findings.Finding
	for _, prefix := range inv.UnknownVATPrefixes() {
		out = append(out, findings.Finding{
			Severity: findings.SeverityWarning,
			Code:     findings.CodeMapInvalidValue,
			Message:  fmt.Sprintf("VAT id country prefix %q does not resolve to a known country", prefix),
		})
	}
	for _, acc := range inv.BankAccounts {
		if prefix := canonical.IBANCountryPrefix(acc.IBAN); prefix != "" && !canonical.IsKnownCountry(prefix) {
			out = append(out, findings.Finding{
				Severity: findings.SeverityWarning,
				Code:     findings.CodeMapInvalidValue,
				Message:  fmt.Sprintf("IBAN country prefix %q does not resolve to a known country", prefix),
			})
		}
	}
	if inv.UnknownCurrency() {
		out = append(out, findings.Finding{
			Severity: findings.SeverityWarning,
			Code:     findings.CodeMapInvalidValue,
			Message:  fmt.Sprintf("currency %q is not a recognised ISO 4217 code", inv.Currency),
		})
	}
	return out
}
