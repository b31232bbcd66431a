// Package canonical defines the normalised invoice representation shared
// by the CII and UBL mappers and consumed by the arithmetic and business
// validation stages.
package canonical

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType is the closed sum type over recognised document kinds.
type DocumentType string

const (
	DocumentTypeInvoice    DocumentType = "Invoice"
	DocumentTypeCreditNote DocumentType = "CreditNote"
)

// Party is a seller or buyer as carried in the canonical model.
type Party struct {
	Name        string
	VATID       string
	CountryCode string
	AddressLine string
	City        string
	PostCode    string
}

// InvoiceLine is one normalised invoice line.
type InvoiceLine struct {
	LineID          string
	ItemName        string
	ItemIdentifier  string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	NetAmount       decimal.Decimal
	TaxCategoryCode string
	TaxRatePercent  decimal.Decimal
}

// TaxBreakdown is one VAT category/rate entry.
type TaxBreakdown struct {
	CategoryCode string
	RatePercent  decimal.Decimal
	TaxableBase  decimal.Decimal
	TaxAmount    decimal.Decimal
	// ExemptionReason and ExemptionReasonCode are populated for
	// zero-rated categories (reverse charge, export, exempt, ...).
	ExemptionReason     string
	ExemptionReasonCode string
}

// BankDetails is one registered payee account.
type BankDetails struct {
	IBAN string
	BIC  string
}

// Invoice is the canonical invoice record, §3 of the specification.
type Invoice struct {
	InvoiceNumber string
	DocumentType  DocumentType
	IssueDate     time.Time
	DeliveryDate  *time.Time
	Currency      string

	Seller Party
	Buyer  Party

	Lines []InvoiceLine

	LineExtensionSum decimal.Decimal
	TaxExclusive     decimal.Decimal
	TaxInclusive     decimal.Decimal
	Payable          decimal.Decimal
	Prepaid          decimal.Decimal

	TaxBreakdown []TaxBreakdown
	BankAccounts []BankDetails

	PurchaseOrderReference string
}
