package businessvalidate

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einvoice-platform/pipeline/internal/canonical"
	"github.com/einvoice-platform/pipeline/internal/erpadapter"
	"github.com/einvoice-platform/pipeline/internal/findings"
)

type fakeAdapter struct {
	vendor       *erpadapter.Vendor
	duplicate    bool
	bankDetails  []erpadapter.BankDetails
	po           *erpadapter.PurchaseOrder
}

func (f *fakeAdapter) FindVendorByVATID(ctx context.Context, vatID string) (*erpadapter.Vendor, error) {
	return f.vendor, nil
}

func (f *fakeAdapter) IsDuplicateInvoice(ctx context.Context, vendorID, invoiceNumber string) (bool, error) {
	return f.duplicate, nil
}

func (f *fakeAdapter) GetVendorBankDetails(ctx context.Context, vendorID string) ([]erpadapter.BankDetails, error) {
	return f.bankDetails, nil
}

func (f *fakeAdapter) GetPurchaseOrder(ctx context.Context, poNumber, vendorID string) (*erpadapter.PurchaseOrder, error) {
	return f.po, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func DefaultTolerance() decimal.Decimal {
	return dec("0.02")
}

func baseInvoice() *canonical.Invoice {
	return &canonical.Invoice{
		InvoiceNumber: "INV-1",
		Seller:        canonical.Party{VATID: "DE123456789"},
		TaxExclusive:  dec("100.00"),
	}
}

func TestValidateUnknownVendorIsManualReview(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{vendor: nil}
	result, err := Validate(context.Background(), adapter, baseInvoice(), DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalManualReview, result.Terminal)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, findings.CodeERPVendorUnknown, result.Findings[0].Code)
}

func TestValidateDuplicateInvoiceIsInvalid(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{
		vendor:    &erpadapter.Vendor{VendorID: "V1", VATID: "DE123456789", Active: true},
		duplicate: true,
	}
	result, err := Validate(context.Background(), adapter, baseInvoice(), DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalInvalid, result.Terminal)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, findings.CodeERPDuplicate, result.Findings[0].Code)
	assert.Equal(t, findings.SeverityFatal, result.Findings[0].Severity)
}

func TestValidateBankMismatchForcesManualReview(t *testing.T) {
	t.Parallel()

	inv := baseInvoice()
	inv.BankAccounts = []canonical.BankDetails{{IBAN: "DE89370400440532013000"}}

	adapter := &fakeAdapter{
		vendor:      &erpadapter.Vendor{VendorID: "V1", VATID: "DE123456789", Active: true},
		bankDetails: []erpadapter.BankDetails{{IBAN: "FR1420041010050500013M02606"}},
	}
	result, err := Validate(context.Background(), adapter, inv, DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalManualReview, result.Terminal)
	var found bool
	for _, f := range result.Findings {
		if f.Code == findings.CodeERPBankMismatch {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateNoPurchaseOrderReferenceSkipsThreeWayMatch(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{
		vendor: &erpadapter.Vendor{VendorID: "V1", VATID: "DE123456789", Active: true},
	}
	result, err := Validate(context.Background(), adapter, baseInvoice(), DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalValid, result.Terminal)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, findings.CodeStageSkipped, result.Findings[0].Code)
}

func TestValidateUnknownPurchaseOrderIsManualReview(t *testing.T) {
	t.Parallel()

	inv := baseInvoice()
	inv.PurchaseOrderReference = "PO-1"

	adapter := &fakeAdapter{
		vendor: &erpadapter.Vendor{VendorID: "V1", VATID: "DE123456789", Active: true},
		po:     nil,
	}
	result, err := Validate(context.Background(), adapter, inv, DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalManualReview, result.Terminal)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, findings.CodeERPPOUnknown, result.Findings[0].Code)
}

func TestValidateClosedPurchaseOrderIsManualReview(t *testing.T) {
	t.Parallel()

	inv := baseInvoice()
	inv.PurchaseOrderReference = "PO-1"

	adapter := &fakeAdapter{
		vendor: &erpadapter.Vendor{VendorID: "V1", VATID: "DE123456789", Active: true},
		po:     &erpadapter.PurchaseOrder{PONumber: "PO-1", OpenForInvoicing: false},
	}
	result, err := Validate(context.Background(), adapter, inv, DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalManualReview, result.Terminal)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, findings.CodeERPPOClosed, result.Findings[0].Code)
}

func TestValidateMatchingThreeWayMatchIsValid(t *testing.T) {
	t.Parallel()

	inv := baseInvoice()
	inv.PurchaseOrderReference = "PO-1"
	inv.Lines = []canonical.InvoiceLine{
		{LineID: "1", ItemIdentifier: "SKU-1", Quantity: dec("5")},
	}

	adapter := &fakeAdapter{
		vendor: &erpadapter.Vendor{VendorID: "V1", VATID: "DE123456789", Active: true},
		po: &erpadapter.PurchaseOrder{
			PONumber:         "PO-1",
			TotalNet:         dec("100.00"),
			OpenForInvoicing: true,
			Lines: []erpadapter.PurchaseOrderLine{
				{ItemIdentifier: "SKU-1", QuantityOrdered: dec("10"), QuantityInvoiced: dec("2")},
			},
		},
	}
	result, err := Validate(context.Background(), adapter, inv, DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalValid, result.Terminal)
	assert.Empty(t, result.Findings)
}

func TestValidateOverbillIsManualReview(t *testing.T) {
	t.Parallel()

	inv := baseInvoice()
	inv.PurchaseOrderReference = "PO-1"
	inv.TaxExclusive = dec("500.00")

	adapter := &fakeAdapter{
		vendor: &erpadapter.Vendor{VendorID: "V1", VATID: "DE123456789", Active: true},
		po: &erpadapter.PurchaseOrder{
			PONumber:         "PO-1",
			TotalNet:         dec("100.00"),
			OpenForInvoicing: true,
		},
	}
	result, err := Validate(context.Background(), adapter, inv, DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalManualReview, result.Terminal)
	var found bool
	for _, f := range result.Findings {
		if f.Code == findings.CodeERPPOOverbill {
			found = true
			assert.Equal(t, findings.SeverityError, f.Severity)
		}
	}
	assert.True(t, found)
}

func TestValidatePartialBillingIsWarningOnly(t *testing.T) {
	t.Parallel()

	inv := baseInvoice()
	inv.PurchaseOrderReference = "PO-1"
	inv.TaxExclusive = dec("40.00")

	adapter := &fakeAdapter{
		vendor: &erpadapter.Vendor{VendorID: "V1", VATID: "DE123456789", Active: true},
		po: &erpadapter.PurchaseOrder{
			PONumber:         "PO-1",
			TotalNet:         dec("100.00"),
			OpenForInvoicing: true,
		},
	}
	result, err := Validate(context.Background(), adapter, inv, DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalValid, result.Terminal)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, findings.CodeERPPOPartial, result.Findings[0].Code)
	assert.Equal(t, findings.SeverityWarning, result.Findings[0].Severity)
}

func TestValidateLineQuantityExceedsOpenIsManualReview(t *testing.T) {
	t.Parallel()

	inv := baseInvoice()
	inv.PurchaseOrderReference = "PO-1"
	inv.Lines = []canonical.InvoiceLine{
		{LineID: "1", ItemIdentifier: "SKU-1", Quantity: dec("20")},
	}

	adapter := &fakeAdapter{
		vendor: &erpadapter.Vendor{VendorID: "V1", VATID: "DE123456789", Active: true},
		po: &erpadapter.PurchaseOrder{
			PONumber:         "PO-1",
			TotalNet:         dec("100.00"),
			OpenForInvoicing: true,
			Lines: []erpadapter.PurchaseOrderLine{
				{ItemIdentifier: "SKU-1", QuantityOrdered: dec("10"), QuantityInvoiced: dec("0")},
			},
		},
	}
	result, err := Validate(context.Background(), adapter, inv, DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalManualReview, result.Terminal)
	var found bool
	for _, f := range result.Findings {
		if f.Code == findings.CodeERPQtyExceeded {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateUnidentifiedLineIsWarningNotManualReview(t *testing.T) {
	t.Parallel()

	inv := baseInvoice()
	inv.PurchaseOrderReference = "PO-1"
	inv.Lines = []canonical.InvoiceLine{{LineID: "1", ItemIdentifier: ""}}

	adapter := &fakeAdapter{
		vendor: &erpadapter.Vendor{VendorID: "V1", VATID: "DE123456789", Active: true},
		po: &erpadapter.PurchaseOrder{
			PONumber:         "PO-1",
			TotalNet:         dec("100.00"),
			OpenForInvoicing: true,
		},
	}
	result, err := Validate(context.Background(), adapter, inv, DefaultTolerance())

	require.NoError(t, err)
	assert.Equal(t, TerminalValid, result.Terminal)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, findings.CodeERPLineUnidentified, result.Findings[0].Code)
	assert.Equal(t, findings.SeverityWarning, result.Findings[0].Severity)
}
