package mapping

import (
	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/einvoice-platform/pipeline/internal/canonical"
	"github.com/einvoice-platform/pipeline/internal/findings"
	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
	"github.com/einvoice-platform/pipeline/internal/xmlformat"
	"github.com/einvoice-platform/pipeline/internal/xpathkit"
)

// MapUBL transforms a parsed UBL Invoice or CreditNote root into the
// canonical invoice record, per SPEC_FULL.md §4.6.
func MapUBL(root *etree.Element, syntax xmlformat.Syntax) (*canonical.Invoice, []findings.Finding, error) {
	isCreditNote := syntax == xmlformat.SyntaxUBLCreditNote
	docType := canonical.DocumentTypeInvoice
	lineElement := "cac:InvoiceLine"
	quantityElement := "cbc:InvoicedQuantity"
	if isCreditNote {
		docType = canonical.DocumentTypeCreditNote
		lineElement = "cac:CreditNoteLine"
		quantityElement = "cbc:CreditedQuantity"
	}

	invoiceNumber, err := xpathkit.Text(root, "cbc:ID", "", true)
	if err != nil {
		return nil, nil, err
	}
	issueDate, err := xpathkit.Date(root, "cbc:IssueDate", xpathkit.DateFormatISOExtended, true)
	if err != nil {
		return nil, nil, err
	}
	currency, err := xpathkit.Text(root, "cbc:DocumentCurrencyCode", "", true)
	if err != nil {
		return nil, nil, err
	}

	sellerEl := xpathkit.Find(root, "cac:AccountingSupplierParty/cac:Party")
	if sellerEl == nil {
		return nil, nil, pipelineerr.MissingField("AccountingSupplierParty/Party")
	}
	seller, err := ublParty(sellerEl)
	if err != nil {
		return nil, nil, err
	}
	buyerEl := xpathkit.Find(root, "cac:AccountingCustomerParty/cac:Party")
	if buyerEl == nil {
		return nil, nil, pipelineerr.MissingField("AccountingCustomerParty/Party")
	}
	buyer, err := ublParty(buyerEl)
	if err != nil {
		return nil, nil, err
	}

	lines, warnings, err := ublLines(root, lineElement, quantityElement)
	if err != nil {
		return nil, nil, err
	}

	taxBreakdown, err := ublTaxTotal(root, currency)
	if err != nil {
		return nil, nil, err
	}

	totalsEl := xpathkit.Find(root, "cac:LegalMonetaryTotal")
	if totalsEl == nil {
		return nil, nil, pipelineerr.MissingField("LegalMonetaryTotal")
	}
	lineExtension, _, err := xpathkit.Decimal(totalsEl, "cbc:LineExtensionAmount", decimal.Zero, true)
	if err != nil {
		return nil, nil, err
	}
	taxExclusive, _, err := xpathkit.Decimal(totalsEl, "cbc:TaxExclusiveAmount", decimal.Zero, true)
	if err != nil {
		return nil, nil, err
	}
	taxInclusive, _, err := xpathkit.Decimal(totalsEl, "cbc:TaxInclusiveAmount", decimal.Zero, true)
	if err != nil {
		return nil, nil, err
	}
	payable, _, err := xpathkit.Decimal(totalsEl, "cbc:PayableAmount", decimal.Zero, true)
	if err != nil {
		return nil, nil, err
	}
	prepaid, _, _ := xpathkit.Decimal(totalsEl, "cbc:PrepaidAmount", decimal.Zero, false)

	var bankAccounts []canonical.BankDetails
	if iban, ierr := xpathkit.Text(root, "cac:PaymentMeans/cac:PayeeFinancialAccount/cbc:ID", "", false); ierr == nil && iban != "" {
		bankAccounts = append(bankAccounts, canonical.BankDetails{IBAN: canonical.NormalizeIBAN(iban)})
	}

	poReference, _ := xpathkit.Text(root, "cac:OrderReference/cbc:ID", "", false)

	return &canonical.Invoice{
		InvoiceNumber:          invoiceNumber,
		DocumentType:           docType,
		IssueDate:              issueDate,
		Currency:               currency,
		Seller:                 seller,
		Buyer:                  buyer,
		Lines:                  lines,
		LineExtensionSum:       lineExtension,
		TaxExclusive:           taxExclusive,
		TaxInclusive:           taxInclusive,
		Payable:                payable,
		Prepaid:                prepaid,
		TaxBreakdown:           taxBreakdown,
		BankAccounts:           bankAccounts,
		PurchaseOrderReference: poReference,
	}, warnings, nil
}

func ublParty(party *etree.Element) (canonical.Party, error) {
	name, _ := xpathkit.Text(party, "cac:PartyName/cbc:Name", "", false)
	if name == "" {
		var err error
		name, err = xpathkit.Text(party, "cac:PartyLegalEntity/cbc:RegistrationName", "", true)
		if err != nil {
			return canonical.Party{}, err
		}
	}
	country, err := xpathkit.Text(party, "cac:PostalAddress/cac:Country/cbc:IdentificationCode", "", true)
	if err != nil {
		return canonical.Party{}, err
	}
	vatID, _ := xpathkit.Text(party, "cac:PartyTaxScheme/cbc:CompanyID", "", false)
	line, _ := xpathkit.Text(party, "cac:PostalAddress/cbc:StreetName", "", false)
	city, _ := xpathkit.Text(party, "cac:PostalAddress/cbc:CityName", "", false)
	postcode, _ := xpathkit.Text(party, "cac:PostalAddress/cbc:PostalZone", "", false)

	return canonical.Party{
		Name:        name,
		VATID:       vatID,
		CountryCode: country,
		AddressLine: line,
		City:        city,
		PostCode:    postcode,
	}, nil
}

func ublLines(root *etree.Element, lineElement, quantityElement string) ([]canonical.InvoiceLine, []findings.Finding, error) {
	var lines []canonical.InvoiceLine
	var warnings []findings.Finding

	lineElements := xpathkit.FindAll(root, lineElement)
	if len(lineElements) == 0 {
		return nil, nil, pipelineerr.MissingField(lineElement)
	}

	for _, le := range lineElements {
		lineID, err := xpathkit.Text(le, "cbc:ID", "", true)
		if err != nil {
			return nil, nil, err
		}
		quantity, _, _ := xpathkit.Decimal(le, quantityElement, decimal.NewFromInt(1), false)
		netAmount, _, err := xpathkit.Decimal(le, "cbc:LineExtensionAmount", decimal.Zero, true)
		if err != nil {
			return nil, nil, err
		}

		priceEl := xpathkit.Find(le, "cac:Price")
		var unitPrice decimal.Decimal
		if priceEl != nil {
			priceAmount, _, perr := xpathkit.Decimal(priceEl, "cbc:PriceAmount", decimal.Zero, true)
			if perr != nil {
				return nil, nil, perr
			}
			baseQty, _, _ := xpathkit.Decimal(priceEl, "cbc:BaseQuantity", decimal.NewFromInt(1), false)
			if baseQty.IsZero() {
				return nil, nil, pipelineerr.InvalidValue("Price/BaseQuantity", "must not be zero")
			}
			unitPrice = priceAmount.DivRound(baseQty, 4)
		}

		itemEl := xpathkit.Find(le, "cac:Item")
		var itemName, itemID, categoryCode string
		var ratePercent decimal.Decimal
		if itemEl != nil {
			itemName, _ = xpathkit.Text(itemEl, "cbc:Name", "", false)
			itemID = ublItemIdentifier(itemEl)
			catEl := xpathkit.Find(itemEl, "cac:ClassifiedTaxCategory")
			if catEl != nil {
				categoryCode, _ = xpathkit.Text(catEl, "cbc:ID", "", false)
				ratePercent, _, _ = xpathkit.Decimal(catEl, "cbc:Percent", decimal.Zero, false)
			}
		}

		lines = append(lines, canonical.InvoiceLine{
			LineID:          lineID,
			ItemName:        itemName,
			ItemIdentifier:  itemID,
			Quantity:        quantity,
			UnitPrice:       unitPrice,
			NetAmount:       netAmount,
			TaxCategoryCode: categoryCode,
			TaxRatePercent:  ratePercent,
		})
	}

	return lines, warnings, nil
}

func ublItemIdentifier(item *etree.Element) string {
	if id, err := xpathkit.Text(item, "cac:StandardItemIdentification/cbc:ID", "", false); err == nil && id != "" {
		return id
	}
	if id, err := xpathkit.Text(item, "cac:SellersItemIdentification/cbc:ID", "", false); err == nil && id != "" {
		return id
	}
	if id, err := xpathkit.Text(item, "cac:BuyersItemIdentification/cbc:ID", "", false); err == nil && id != "" {
		return id
	}
	return ""
}

// ublTaxTotal matches TaxSubtotal entries against the document currency,
// in the style of the teacher's currencyID-keyed matching rather than
// positional matching.
func ublTaxTotal(root *etree.Element, currency string) ([]canonical.TaxBreakdown, error) {
	var breakdown []canonical.TaxBreakdown
	taxTotals := xpathkit.FindAll(root, "cac:TaxTotal")
	found := false
	for _, tt := range taxTotals {
		currencyID, _ := xpathkit.Attr(tt, "cbc:TaxAmount", "currencyID", "", false)
		if currencyID != "" && currencyID != currency {
			continue
		}
		for _, sub := range xpathkit.FindAll(tt, "cac:TaxSubtotal") {
			found = true
			basis, _, err := xpathkit.Decimal(sub, "cbc:TaxableAmount", decimal.Zero, true)
			if err != nil {
				return nil, err
			}
			amount, _, err := xpathkit.Decimal(sub, "cbc:TaxAmount", decimal.Zero, true)
			if err != nil {
				return nil, err
			}
			catEl := xpathkit.Find(sub, "cac:TaxCategory")
			if catEl == nil {
				return nil, pipelineerr.MissingField("TaxTotal/TaxSubtotal/TaxCategory")
			}
			categoryCode, err := xpathkit.Text(catEl, "cbc:ID", "", true)
			if err != nil {
				return nil, err
			}
			rate, _, _ := xpathkit.Decimal(catEl, "cbc:Percent", decimal.Zero, false)
			reason, _ := xpathkit.Text(catEl, "cbc:TaxExemptionReason", "", false)
			reasonCode, _ := xpathkit.Text(catEl, "cbc:TaxExemptionReasonCode", "", false)

			breakdown = append(breakdown, canonical.TaxBreakdown{
				CategoryCode:        categoryCode,
				RatePercent:         rate,
				TaxableBase:         basis,
				TaxAmount:           amount,
				ExemptionReason:     reason,
				ExemptionReasonCode: reasonCode,
			})
		}
	}
	if !found {
		return nil, pipelineerr.MissingField("TaxTotal/TaxSubtotal")
	}
	return breakdown, nil
}
