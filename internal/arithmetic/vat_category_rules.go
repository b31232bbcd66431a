package arithmetic

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/einvoice-platform/pipeline/internal/canonical"
	"github.com/einvoice-platform/pipeline/internal/findings"
)

// categoryRule describes the consistency requirements for one EN 16931
// VAT category code. It consolidates the teacher's eight near-identical
// check_vat_*.go files (reverse charge, exempt, export, zero-rated,
// intra-community, IGIC, IPSI, not-subject) into one declarative table,
// since the target catalogue has no per-category finding code to
// distinguish them by.
type categoryRule struct {
	code                string
	label               string
	rateMustBeZero      bool
	requiresExemption   bool
	requiresSellerVATID bool
}

var categoryRules = []categoryRule{
	{code: "AE", label: "Reverse charge", rateMustBeZero: true, requiresExemption: true, requiresSellerVATID: true},
	{code: "E", label: "Exempt from VAT", rateMustBeZero: true, requiresExemption: true},
	{code: "G", label: "Export outside the EU", rateMustBeZero: true, requiresExemption: true},
	{code: "K", label: "Intra-community supply", rateMustBeZero: true, requiresExemption: true, requiresSellerVATID: true},
	{code: "O", label: "Not subject to VAT", rateMustBeZero: true, requiresExemption: true},
	{code: "Z", label: "Zero rated", rateMustBeZero: true},
	{code: "L", label: "IGIC (Canary Islands)"},
	{code: "M", label: "IPSI (Ceuta/Melilla)"},
}

func ruleFor(code string) (categoryRule, bool) {
	for _, r := range categoryRules {
		if r.code == code {
			return r, true
		}
	}
	return categoryRule{}, false
}

// CheckVATCategoryRules validates each VAT breakdown entry against its
// category-specific consistency requirements.
func CheckVATCategoryRules(inv *canonical.Invoice) []findings.Finding {
	var out []findings.Finding

	for _, tb := range inv.TaxBreakdown {
		rule, ok := ruleFor(tb.CategoryCode)
		if !ok {
			continue
		}

		if rule.rateMustBeZero && !tb.RatePercent.IsZero() {
			out = append(out, findings.Finding{
				Severity: findings.SeverityError,
				Code:     findings.CodeCalcTaxMismatch,
				Message:  fmt.Sprintf("%s VAT breakdown must have a rate of 0 (got %s)", rule.label, tb.RatePercent.String()),
				Field:    "TaxBreakdown." + tb.CategoryCode,
			})
		}
		if rule.rateMustBeZero && !tb.TaxAmount.IsZero() {
			out = append(out, findings.Finding{
				Severity: findings.SeverityError,
				Code:     findings.CodeCalcTaxMismatch,
				Message:  fmt.Sprintf("%s VAT amount must be 0 (got %s)", rule.label, tb.TaxAmount.StringFixed(2)),
				Field:    "TaxBreakdown." + tb.CategoryCode,
			})
		}
		if rule.requiresExemption && tb.ExemptionReason == "" && tb.ExemptionReasonCode == "" {
			out = append(out, findings.Finding{
				Severity: findings.SeverityError,
				Code:     findings.CodeCalcTaxMismatch,
				Message:  fmt.Sprintf("%s VAT breakdown must carry an exemption reason", rule.label),
				Field:    "TaxBreakdown." + tb.CategoryCode,
			})
		}
		if rule.requiresSellerVATID && inv.Seller.VATID == "" {
			out = append(out, findings.Finding{
				Severity: findings.SeverityError,
				Code:     findings.CodeCalcTaxMismatch,
				Message:  fmt.Sprintf("%s requires a seller VAT identifier", rule.label),
			})
		}
		if rule.requiresSellerVATID && inv.Buyer.VATID == "" {
			out = append(out, findings.Finding{
				Severity: findings.SeverityError,
				Code:     findings.CodeCalcTaxMismatch,
				Message:  fmt.Sprintf("%s requires a buyer VAT identifier", rule.label),
			})
		}

		basis := categoryBasis(inv, tb.CategoryCode)
		if !basis.Equal(tb.TaxableBase) && !withinTolerance(basis, tb.TaxableBase, DefaultTolerance) {
			out = append(out, findings.Finding{
				Severity: findings.SeverityError,
				Code:     findings.CodeCalcTaxMismatch,
				Message: fmt.Sprintf("%s taxable amount must equal the sum of matching line amounts (expected %s, got %s)",
					rule.label, basis.StringFixed(2), tb.TaxableBase.StringFixed(2)),
				Field: "TaxBreakdown." + tb.CategoryCode,
			})
		}
	}

	return out
}

func categoryBasis(inv *canonical.Invoice, categoryCode string) decimal.Decimal {
	basis := decimal.Zero
	for _, l := range inv.Lines {
		if l.TaxCategoryCode == categoryCode {
			basis = basis.Add(l.NetAmount)
		}
	}
	return basis.Round(2)
}
