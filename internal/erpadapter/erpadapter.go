// Package erpadapter implements the read-only ERP store contract of
// SPEC_FULL.md §4.11 on a dedicated sqlx+pgx connection pool, distinct
// from the metadata store's GORM stack per §4.14.
package erpadapter

import (
	"context"

	"github.com/shopspring/decimal"
)

// Vendor mirrors ERPVendor.
type Vendor struct {
	VendorID string
	VATID    string
	Active   bool
}

// BankDetails mirrors ERPBankDetails.
type BankDetails struct {
	IBAN string
}

// PurchaseOrderLine mirrors ERPPurchaseOrderLine.
type PurchaseOrderLine struct {
	ItemIdentifier   string
	QuantityOrdered  decimal.Decimal
	QuantityInvoiced decimal.Decimal
}

// QuantityOpen is ordered minus invoiced.
func (l PurchaseOrderLine) QuantityOpen() decimal.Decimal {
	return l.QuantityOrdered.Sub(l.QuantityInvoiced)
}

// PurchaseOrder mirrors ERPPurchaseOrder.
type PurchaseOrder struct {
	PONumber         string
	VendorID         string
	TotalNet         decimal.Decimal
	OpenForInvoicing bool
	Lines            []PurchaseOrderLine
}

// LineByIdentifier returns the PO line matching itemIdentifier, if any.
func (po PurchaseOrder) LineByIdentifier(itemIdentifier string) (PurchaseOrderLine, bool) {
	for _, l := range po.Lines {
		if l.ItemIdentifier == itemIdentifier {
			return l, true
		}
	}
	return PurchaseOrderLine{}, false
}

// Adapter is the read-only ERP contract §4.11 names.
type Adapter interface {
	FindVendorByVATID(ctx context.Context, vatID string) (*Vendor, error)
	IsDuplicateInvoice(ctx context.Context, vendorID, invoiceNumber string) (bool, error)
	GetVendorBankDetails(ctx context.Context, vendorID string) ([]BankDetails, error)
	GetPurchaseOrder(ctx context.Context, poNumber, vendorID string) (*PurchaseOrder, error)
}
