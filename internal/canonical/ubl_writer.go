package canonical

import (
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"
)

const (
	nsUBLInvoiceWrite    = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsUBLCreditNoteWrite = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"
	nsUBLCAC             = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	nsUBLCBC             = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
)

// WriteUBL serialises inv back into UBL 2.1 XML, carrying exactly the
// fields CanonicalInvoice holds. It exists to satisfy the round-trip law
// mapUBL(serialiseUBL(canonical)) ≈ canonical, not as a general-purpose
// invoice authoring tool.
func WriteUBL(inv *Invoice, w io.Writer) error {
	doc := etree.NewDocument()

	isCreditNote := inv.DocumentType == DocumentTypeCreditNote
	var root *etree.Element
	var prefix string
	if isCreditNote {
		root = doc.CreateElement("CreditNote")
		root.CreateAttr("xmlns", nsUBLCreditNoteWrite)
		prefix = "cn"
	} else {
		root = doc.CreateElement("Invoice")
		root.CreateAttr("xmlns", nsUBLInvoiceWrite)
		prefix = "inv"
	}
	root.CreateAttr("xmlns:cac", nsUBLCAC)
	root.CreateAttr("xmlns:cbc", nsUBLCBC)

	root.CreateElement("cbc:ID").SetText(inv.InvoiceNumber)
	writeDate(root, "cbc:IssueDate", inv.IssueDate)
	if inv.DeliveryDate != nil {
		delivery := root.CreateElement("cac:Delivery")
		writeDate(delivery, "cbc:ActualDeliveryDate", *inv.DeliveryDate)
	}
	root.CreateElement("cbc:DocumentCurrencyCode").SetText(inv.Currency)

	writeUBLParty(root, "cac:AccountingSupplierParty", inv.Seller)
	writeUBLParty(root, "cac:AccountingCustomerParty", inv.Buyer)

	for _, tb := range inv.TaxBreakdown {
		taxTotal := root.CreateElement("cac:TaxTotal")
		taxTotal.CreateElement("cbc:TaxAmount").CreateAttr("currencyID", inv.Currency)
		taxTotal.FindElement("cbc:TaxAmount").SetText(tb.TaxAmount.StringFixed(2))
		sub := taxTotal.CreateElement("cac:TaxSubtotal")
		sub.CreateElement("cbc:TaxableAmount").SetText(tb.TaxableBase.StringFixed(2))
		sub.CreateElement("cbc:TaxAmount").SetText(tb.TaxAmount.StringFixed(2))
		cat := sub.CreateElement("cac:TaxCategory")
		cat.CreateElement("cbc:ID").SetText(tb.CategoryCode)
		cat.CreateElement("cbc:Percent").SetText(tb.RatePercent.String())
		if tb.ExemptionReason != "" {
			cat.CreateElement("cbc:TaxExemptionReason").SetText(tb.ExemptionReason)
		}
		if tb.ExemptionReasonCode != "" {
			cat.CreateElement("cbc:TaxExemptionReasonCode").SetText(tb.ExemptionReasonCode)
		}
	}

	totals := root.CreateElement("cac:LegalMonetaryTotal")
	totals.CreateElement("cbc:LineExtensionAmount").SetText(inv.LineExtensionSum.StringFixed(2))
	totals.CreateElement("cbc:TaxExclusiveAmount").SetText(inv.TaxExclusive.StringFixed(2))
	totals.CreateElement("cbc:TaxInclusiveAmount").SetText(inv.TaxInclusive.StringFixed(2))
	if !inv.Prepaid.IsZero() {
		totals.CreateElement("cbc:PrepaidAmount").SetText(inv.Prepaid.StringFixed(2))
	}
	totals.CreateElement("cbc:PayableAmount").SetText(inv.Payable.StringFixed(2))

	for _, acc := range inv.BankAccounts {
		pm := root.CreateElement("cac:PaymentMeans")
		acct := pm.CreateElement("cac:PayeeFinancialAccount")
		acct.CreateElement("cbc:ID").SetText(acc.IBAN)
		if acc.BIC != "" {
			branch := acct.CreateElement("cac:FinancialInstitutionBranch")
			branch.CreateElement("cbc:ID").SetText(acc.BIC)
		}
	}

	if inv.PurchaseOrderReference != "" {
		ref := root.CreateElement("cac:OrderReference")
		ref.CreateElement("cbc:ID").SetText(inv.PurchaseOrderReference)
	}

	lineElement := "cac:InvoiceLine"
	quantityElement := "cbc:InvoicedQuantity"
	if isCreditNote {
		lineElement = "cac:CreditNoteLine"
		quantityElement = "cbc:CreditedQuantity"
	}
	for _, line := range inv.Lines {
		le := root.CreateElement(lineElement)
		le.CreateElement("cbc:ID").SetText(line.LineID)
		le.CreateElement(quantityElement).SetText(line.Quantity.String())
		le.CreateElement("cbc:LineExtensionAmount").SetText(line.NetAmount.StringFixed(2))
		item := le.CreateElement("cac:Item")
		item.CreateElement("cbc:Name").SetText(line.ItemName)
		if line.ItemIdentifier != "" {
			sid := item.CreateElement("cac:StandardItemIdentification")
			sid.CreateElement("cbc:ID").SetText(line.ItemIdentifier)
		}
		cat := item.CreateElement("cac:ClassifiedTaxCategory")
		cat.CreateElement("cbc:ID").SetText(line.TaxCategoryCode)
		cat.CreateElement("cbc:Percent").SetText(line.TaxRatePercent.String())
		price := le.CreateElement("cac:Price")
		price.CreateElement("cbc:PriceAmount").SetText(line.UnitPrice.String())
	}

	_ = prefix // retained for readability parity with the teacher's writer, which threads a namespace prefix through every write* call
	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write UBL: %w", err)
	}
	return nil
}

func writeDate(parent *etree.Element, name string, t time.Time) {
	if t.IsZero() {
		return
	}
	parent.CreateElement(name).SetText(t.Format("2006-01-02"))
}

func writeUBLParty(root *etree.Element, wrapper string, p Party) {
	w := root.CreateElement(wrapper)
	party := w.CreateElement("cac:Party")
	if p.VATID != "" {
		scheme := party.CreateElement("cac:PartyTaxScheme")
		scheme.CreateElement("cbc:CompanyID").SetText(p.VATID)
	}
	name := party.CreateElement("cac:PartyName")
	name.CreateElement("cbc:Name").SetText(p.Name)
	addr := party.CreateElement("cac:PostalAddress")
	if p.AddressLine != "" {
		addr.CreateElement("cbc:StreetName").SetText(p.AddressLine)
	}
	if p.City != "" {
		addr.CreateElement("cbc:CityName").SetText(p.City)
	}
	if p.PostCode != "" {
		addr.CreateElement("cbc:PostalZone").SetText(p.PostCode)
	}
	country := addr.CreateElement("cac:Country")
	country.CreateElement("cbc:IdentificationCode").SetText(p.CountryCode)
}
