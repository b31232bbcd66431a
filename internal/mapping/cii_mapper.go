package mapping

import (
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/einvoice-platform/pipeline/internal/canonical"
	"github.com/einvoice-platform/pipeline/internal/findings"
	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
	"github.com/einvoice-platform/pipeline/internal/xpathkit"
)

// MapCII transforms a parsed CrossIndustryInvoice root into the canonical
// invoice record, following the field table in SPEC_FULL.md §4.5. Every
// mandatory-field failure returns a *pipelineerr.MappingError; optional
// fields that are present but unparsable degrade to a default value. No
// WARNING finding is produced for them: the returned slice stays empty.
func MapCII(root *etree.Element) (*canonical.Invoice, []findings.Finding, error) {
	var warnings []findings.Finding

	doc := xpathkit.Find(root, "rsm:ExchangedDocument")
	if doc == nil {
		return nil, nil, pipelineerr.MissingField("ExchangedDocument")
	}
	invoiceNumber, err := xpathkit.Text(doc, "ram:ID", "", true)
	if err != nil {
		return nil, nil, err
	}
	issueDate, err := xpathkit.Date(doc, "ram:IssueDateTime/udt:DateTimeString", xpathkit.DateFormatCIIBasic, true)
	if err != nil {
		return nil, nil, err
	}
	typeCode, err := xpathkit.Text(doc, "ram:TypeCode", "", true)
	if err != nil {
		return nil, nil, err
	}
	docType, err := ciiDocumentType(typeCode)
	if err != nil {
		return nil, nil, err
	}

	settlement := xpathkit.Find(root, "rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeSettlement")
	if settlement == nil {
		return nil, nil, pipelineerr.MissingField("ApplicableHeaderTradeSettlement")
	}
	currency, err := xpathkit.Text(settlement, "ram:InvoiceCurrencyCode", "", true)
	if err != nil {
		return nil, nil, err
	}

	agreement := xpathkit.Find(root, "rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeAgreement")
	if agreement == nil {
		return nil, nil, pipelineerr.MissingField("ApplicableHeaderTradeAgreement")
	}
	sellerEl := xpathkit.Find(agreement, "ram:SellerTradeParty")
	if sellerEl == nil {
		return nil, nil, pipelineerr.MissingField("ApplicableHeaderTradeAgreement/SellerTradeParty")
	}
	seller, err := ciiParty(sellerEl, "SellerTradeParty")
	if err != nil {
		return nil, nil, err
	}
	buyerEl := xpathkit.Find(agreement, "ram:BuyerTradeParty")
	if buyerEl == nil {
		return nil, nil, pipelineerr.MissingField("ApplicableHeaderTradeAgreement/BuyerTradeParty")
	}
	buyer, err := ciiParty(buyerEl, "BuyerTradeParty")
	if err != nil {
		return nil, nil, err
	}

	var deliveryDate *time.Time
	delivery := xpathkit.Find(root, "rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeDelivery")
	if delivery != nil {
		d, derr := xpathkit.Date(delivery, "ram:ActualDeliverySupplyChainEvent/ram:OccurrenceDateTime/udt:DateTimeString", xpathkit.DateFormatCIIBasic, false)
		if derr == nil && !d.IsZero() {
			deliveryDate = &d
		}
	}

	lines, lineWarnings, err := ciiLines(root)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, lineWarnings...)

	taxBreakdown, err := ciiTaxBreakdown(settlement)
	if err != nil {
		return nil, nil, err
	}

	totalsEl := xpathkit.Find(settlement, "ram:SpecifiedTradeSettlementHeaderMonetarySummation")
	if totalsEl == nil {
		return nil, nil, pipelineerr.MissingField("SpecifiedTradeSettlementHeaderMonetarySummation")
	}
	lineTotal, _, err := xpathkit.Decimal(totalsEl, "ram:LineTotalAmount", decimal.Zero, true)
	if err != nil {
		return nil, nil, err
	}
	taxBasis, _, err := xpathkit.Decimal(totalsEl, "ram:TaxBasisTotalAmount", decimal.Zero, true)
	if err != nil {
		return nil, nil, err
	}
	grandTotal, _, err := xpathkit.Decimal(totalsEl, "ram:GrandTotalAmount", decimal.Zero, true)
	if err != nil {
		return nil, nil, err
	}
	duePayable, _, err := xpathkit.Decimal(totalsEl, "ram:DuePayableAmount", decimal.Zero, true)
	if err != nil {
		return nil, nil, err
	}
	prepaid, _, _ := xpathkit.Decimal(totalsEl, "ram:TotalPrepaidAmount", decimal.Zero, false)

	var bankAccounts []canonical.BankDetails
	if iban, ierr := xpathkit.Text(settlement, "ram:SpecifiedTradeSettlementPaymentMeans/ram:PayeePartyCreditorFinancialAccount/ram:IBANID", "", false); ierr == nil && iban != "" {
		bankAccounts = append(bankAccounts, canonical.BankDetails{IBAN: canonical.NormalizeIBAN(iban)})
	}

	poReference, _ := xpathkit.Text(agreement, "ram:BuyerOrderReferencedDocument/ram:IssuerAssignedID", "", false)

	inv := &canonical.Invoice{
		InvoiceNumber:          invoiceNumber,
		DocumentType:           docType,
		IssueDate:              issueDate,
		Currency:               currency,
		Seller:                 seller,
		Buyer:                  buyer,
		Lines:                  lines,
		LineExtensionSum:       lineTotal,
		TaxExclusive:           taxBasis,
		TaxInclusive:           grandTotal,
		Payable:                duePayable,
		Prepaid:                prepaid,
		TaxBreakdown:           taxBreakdown,
		BankAccounts:           bankAccounts,
		PurchaseOrderReference: poReference,
		DeliveryDate:           deliveryDate,
	}

	return inv, warnings, nil
}

func ciiDocumentType(typeCode string) (canonical.DocumentType, error) {
	switch typeCode {
	case "380", "384":
		return canonical.DocumentTypeInvoice, nil
	case "381":
		return canonical.DocumentTypeCreditNote, nil
	default:
		return "", pipelineerr.InvalidValue("ExchangedDocument/TypeCode", "unrecognised type code: "+typeCode)
	}
}

func ciiParty(el *etree.Element, fieldPrefix string) (canonical.Party, error) {
	name, err := xpathkit.Text(el, "ram:Name", "", true)
	if err != nil {
		return canonical.Party{}, err
	}
	country, err := xpathkit.Text(el, "ram:PostalTradeAddress/ram:CountryID", "", true)
	if err != nil {
		return canonical.Party{}, err
	}
	vatID, _ := xpathkit.Text(el, "ram:SpecifiedTaxRegistration/ram:ID[@schemeID='VA']", "", false)
	line, _ := xpathkit.Text(el, "ram:PostalTradeAddress/ram:LineOne", "", false)
	city, _ := xpathkit.Text(el, "ram:PostalTradeAddress/ram:CityName", "", false)
	postcode, _ := xpathkit.Text(el, "ram:PostalTradeAddress/ram:PostcodeCode", "", false)

	return canonical.Party{
		Name:        name,
		VATID:       vatID,
		CountryCode: country,
		AddressLine: line,
		City:        city,
		PostCode:    postcode,
	}, nil
}

func ciiLines(root *etree.Element) ([]canonical.InvoiceLine, []findings.Finding, error) {
	var lines []canonical.InvoiceLine
	var warnings []findings.Finding

	lineElements := xpathkit.FindAll(root, "rsm:SupplyChainTradeTransaction/ram:IncludedSupplyChainTradeLineItem")
	if len(lineElements) == 0 {
		return nil, nil, pipelineerr.MissingField("IncludedSupplyChainTradeLineItem")
	}

	for _, le := range lineElements {
		lineID, err := xpathkit.Text(le, "ram:AssociatedDocumentLineDocument/ram:LineID", "", true)
		if err != nil {
			return nil, nil, err
		}

		agreement := xpathkit.Find(le, "ram:SpecifiedLineTradeAgreement")
		if agreement == nil {
			return nil, nil, pipelineerr.MissingField("SpecifiedLineTradeAgreement for line " + lineID)
		}
		charge, _, err := xpathkit.Decimal(agreement, "ram:NetPriceProductTradePrice/ram:ChargeAmount", decimal.Zero, true)
		if err != nil {
			return nil, nil, err
		}
		basisQty, _, _ := xpathkit.Decimal(agreement, "ram:NetPriceProductTradePrice/ram:BasisQuantity", decimal.NewFromInt(1), false)
		if basisQty.IsZero() {
			return nil, nil, pipelineerr.InvalidValue("SpecifiedLineTradeAgreement/NetPriceProductTradePrice/BasisQuantity", "must not be zero")
		}
		unitPrice := charge.DivRound(basisQty, 4)

		settlement := xpathkit.Find(le, "ram:SpecifiedLineTradeSettlement")
		if settlement == nil {
			return nil, nil, pipelineerr.MissingField("SpecifiedLineTradeSettlement for line " + lineID)
		}
		netAmount, _, err := xpathkit.Decimal(settlement, "ram:SpecifiedTradeSettlementLineMonetarySummation/ram:LineTotalAmount", decimal.Zero, true)
		if err != nil {
			return nil, nil, err
		}
		taxEl := xpathkit.Find(settlement, "ram:ApplicableTradeTax")
		var categoryCode string
		var ratePercent decimal.Decimal
		if taxEl != nil {
			categoryCode, _ = xpathkit.Text(taxEl, "ram:CategoryCode", "", false)
			ratePercent, _, _ = xpathkit.Decimal(taxEl, "ram:RateApplicablePercent", decimal.Zero, false)
		}

		product := xpathkit.Find(le, "ram:SpecifiedTradeProduct")
		var itemName, itemID string
		if product != nil {
			itemName, _ = xpathkit.Text(product, "ram:Name", "", false)
			itemID = ciiItemIdentifier(product)
		}

		quantityEl := xpathkit.Find(settlement, "ram:BilledQuantity")
		quantity := decimal.NewFromInt(1)
		if quantityEl != nil {
			if q, qerr := decimalFromText(quantityEl.Text()); qerr == nil {
				quantity = q
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

func ciiItemIdentifier(product *etree.Element) string {
	for _, scheme := range []string{"0160", "0088"} {
		if v, err := xpathkit.Attr(product, "ram:GlobalID", "schemeID", "", false); err == nil && v == scheme {
			if id, terr := xpathkit.Text(product, "ram:GlobalID", "", false); terr == nil && id != "" {
				return id
			}
		}
	}
	if gid, err := xpathkit.Text(product, "ram:GlobalID", "", false); err == nil && gid != "" {
		return gid
	}
	if id, err := xpathkit.Text(product, "ram:SellerAssignedID", "", false); err == nil && id != "" {
		return id
	}
	if id, err := xpathkit.Text(product, "ram:BuyerAssignedID", "", false); err == nil && id != "" {
		return id
	}
	return ""
}

func ciiTaxBreakdown(settlement *etree.Element) ([]canonical.TaxBreakdown, error) {
	var breakdown []canonical.TaxBreakdown
	for _, taxEl := range xpathkit.FindAll(settlement, "ram:ApplicableTradeTax") {
		typeCode, _ := xpathkit.Text(taxEl, "ram:TypeCode", "", false)
		if typeCode != "VAT" {
			continue
		}
		categoryCode, err := xpathkit.Text(taxEl, "ram:CategoryCode", "", true)
		if err != nil {
			return nil, err
		}
		rate, _, _ := xpathkit.Decimal(taxEl, "ram:RateApplicablePercent", decimal.Zero, false)
		if rate.IsZero() {
			rate, _, _ = xpathkit.Decimal(taxEl, "ram:ApplicablePercent", decimal.Zero, false)
		}
		basis, _, err := xpathkit.Decimal(taxEl, "ram:BasisAmount", decimal.Zero, true)
		if err != nil {
			return nil, err
		}
		amount, _, err := xpathkit.Decimal(taxEl, "ram:CalculatedAmount", decimal.Zero, true)
		if err != nil {
			return nil, err
		}
		reason, _ := xpathkit.Text(taxEl, "ram:ExemptionReason", "", false)
		reasonCode, _ := xpathkit.Text(taxEl, "ram:ExemptionReasonCode", "", false)

		breakdown = append(breakdown, canonical.TaxBreakdown{
			CategoryCode:        categoryCode,
			RatePercent:         rate,
			TaxableBase:         basis,
			TaxAmount:           amount,
			ExemptionReason:     reason,
			ExemptionReasonCode: reasonCode,
		})
	}
	if len(breakdown) == 0 {
		return nil, pipelineerr.MissingField("ApplicableHeaderTradeSettlement/ApplicableTradeTax")
	}
	return breakdown, nil
}

func decimalFromText(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
