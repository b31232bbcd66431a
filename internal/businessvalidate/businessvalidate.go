// Package businessvalidate orchestrates the three-way match against ERP
// data, per SPEC_FULL.md §4.12.
package businessvalidate

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/einvoice-platform/pipeline/internal/canonical"
	"github.com/einvoice-platform/pipeline/internal/erpadapter"
	"github.com/einvoice-platform/pipeline/internal/findings"
)

// Terminal is the terminal status implied by a business-stage result.
type Terminal string

const (
	TerminalValid         Terminal = "VALID"
	TerminalInvalid       Terminal = "INVALID"
	TerminalManualReview  Terminal = "MANUAL_REVIEW"
)

// Result is the outcome of running the business stage.
type Result struct {
	Findings []findings.Finding
	Terminal Terminal
}

// Validate runs the ordered steps of SPEC_FULL.md §4.12 against inv using
// adapter for ERP lookups. tolerance is the monetary tolerance
// (SPEC_FULL.md §6, default 0.02).
func Validate(ctx context.Context, adapter erpadapter.Adapter, inv *canonical.Invoice, tolerance decimal.Decimal) (Result, error) {
	var fs []findings.Finding

	// 1. Vendor lookup.
	if inv.Seller.VATID == "" {
		fs = append(fs, findings.Finding{
			Severity: findings.SeverityError,
			Code:     findings.CodeERPVendorUnknown,
			Message:  "invoice has no seller VAT id",
		})
		return Result{Findings: fs, Terminal: TerminalManualReview}, nil
	}
	vendor, err := adapter.FindVendorByVATID(ctx, inv.Seller.VATID)
	if err != nil {
		return Result{}, err
	}
	if vendor == nil {
		fs = append(fs, findings.Finding{
			Severity: findings.SeverityError,
			Code:     findings.CodeERPVendorUnknown,
			Message:  fmt.Sprintf("no ERP vendor found for VAT id %s", inv.Seller.VATID),
		})
		return Result{Findings: fs, Terminal: TerminalManualReview}, nil
	}

	// 2. Duplicate check.
	duplicate, err := adapter.IsDuplicateInvoice(ctx, vendor.VendorID, inv.InvoiceNumber)
	if err != nil {
		return Result{}, err
	}
	if duplicate {
		fs = append(fs, findings.Finding{
			Severity: findings.SeverityFatal,
			Code:     findings.CodeERPDuplicate,
			Message:  fmt.Sprintf("invoice %s already recorded for vendor %s", inv.InvoiceNumber, vendor.VendorID),
		})
		return Result{Findings: fs, Terminal: TerminalInvalid}, nil
	}

	manualReview := false

	// 3. Bank validation.
	if len(inv.BankAccounts) > 0 {
		registered, err := adapter.GetVendorBankDetails(ctx, vendor.VendorID)
		if err != nil {
			return Result{}, err
		}
		registeredSet := make(map[string]bool, len(registered))
		for _, b := range registered {
			registeredSet[canonical.NormalizeIBAN(b.IBAN)] = true
		}
		for _, acc := range inv.BankAccounts {
			if !registeredSet[canonical.NormalizeIBAN(acc.IBAN)] {
				fs = append(fs, findings.Finding{
					Severity: findings.SeverityError,
					Code:     findings.CodeERPBankMismatch,
					Message:  fmt.Sprintf("IBAN %s is not registered for vendor %s", acc.IBAN, vendor.VendorID),
				})
				manualReview = true
			}
		}
	}

	// 4. Purchase-order check.
	if inv.PurchaseOrderReference == "" {
		fs = append(fs, findings.Finding{
			Severity: findings.SeverityInfo,
			Code:     findings.CodeStageSkipped,
			Message:  "no purchase-order reference on invoice; three-way match skipped",
		})
		if manualReview {
			return Result{Findings: fs, Terminal: TerminalManualReview}, nil
		}
		return Result{Findings: fs, Terminal: TerminalValid}, nil
	}

	po, err := adapter.GetPurchaseOrder(ctx, inv.PurchaseOrderReference, vendor.VendorID)
	if err != nil {
		return Result{}, err
	}
	if po == nil {
		fs = append(fs, findings.Finding{
			Severity: findings.SeverityError,
			Code:     findings.CodeERPPOUnknown,
			Message:  fmt.Sprintf("purchase order %s not found for vendor %s", inv.PurchaseOrderReference, vendor.VendorID),
		})
		return Result{Findings: fs, Terminal: TerminalManualReview}, nil
	}
	if !po.OpenForInvoicing {
		fs = append(fs, findings.Finding{
			Severity: findings.SeverityError,
			Code:     findings.CodeERPPOClosed,
			Message:  fmt.Sprintf("purchase order %s is not open for invoicing", po.PONumber),
		})
		return Result{Findings: fs, Terminal: TerminalManualReview}, nil
	}

	// 5. Three-way match.
	diff := inv.TaxExclusive.Sub(po.TotalNet)
	switch {
	case diff.Abs().LessThanOrEqual(tolerance):
		// SUCCESS, no finding emitted.
	case diff.IsNegative():
		fs = append(fs, findings.Finding{
			Severity: findings.SeverityWarning,
			Code:     findings.CodeERPPOPartial,
			Message:  fmt.Sprintf("invoice amount %s is less than PO total %s; partial billing", inv.TaxExclusive.StringFixed(2), po.TotalNet.StringFixed(2)),
		})
	default:
		fs = append(fs, findings.Finding{
			Severity: findings.SeverityError,
			Code:     findings.CodeERPPOOverbill,
			Message:  fmt.Sprintf("invoice amount %s exceeds PO total %s", inv.TaxExclusive.StringFixed(2), po.TotalNet.StringFixed(2)),
		})
		manualReview = true
	}

	for _, line := range inv.Lines {
		if line.ItemIdentifier == "" {
			fs = append(fs, findings.Finding{
				Severity: findings.SeverityWarning,
				Code:     findings.CodeERPLineUnidentified,
				Message:  fmt.Sprintf("line %s has no item identifier to match against the PO", line.LineID),
				Field:    line.LineID,
			})
			continue
		}
		poLine, found := po.LineByIdentifier(line.ItemIdentifier)
		if !found {
			fs = append(fs, findings.Finding{
				Severity: findings.SeverityError,
				Code:     findings.CodeERPLineUnknown,
				Message:  fmt.Sprintf("item identifier %s not found on PO %s", line.ItemIdentifier, po.PONumber),
				Field:    line.LineID,
			})
			manualReview = true
			continue
		}
		if line.Quantity.GreaterThan(poLine.QuantityOpen()) {
			fs = append(fs, findings.Finding{
				Severity: findings.SeverityError,
				Code:     findings.CodeERPQtyExceeded,
				Message: fmt.Sprintf("line %s quantity %s exceeds open PO quantity %s",
					line.LineID, line.Quantity.String(), poLine.QuantityOpen().String()),
				Field: line.LineID,
			})
			manualReview = true
		}
	}

	for _, f := range fs {
		if f.Severity == findings.SeverityError {
			manualReview = true
		}
	}

	if manualReview {
		return Result{Findings: fs, Terminal: TerminalManualReview}, nil
	}
	return Result{Findings: fs, Terminal: TerminalValid}, nil
}
