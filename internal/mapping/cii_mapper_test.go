package mapping

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
)

const validCII = `<?xml version="1.0" encoding="UTF-8"?>
<rsm:CrossIndustryInvoice xmlns:rsm="urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
                          xmlns:ram="urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
                          xmlns:udt="urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100">
  <rsm:ExchangedDocument>
    <ram:ID>471102</ram:ID>
    <ram:TypeCode>380</ram:TypeCode>
    <ram:IssueDateTime><udt:DateTimeString format="102">20240115</udt:DateTimeString></ram:IssueDateTime>
  </rsm:ExchangedDocument>
  <rsm:SupplyChainTradeTransaction>
    <ram:IncludedSupplyChainTradeLineItem>
      <ram:AssociatedDocumentLineDocument><ram:LineID>1</ram:LineID></ram:AssociatedDocumentLineDocument>
      <ram:SpecifiedTradeProduct><ram:Name>Widget</ram:Name></ram:SpecifiedTradeProduct>
      <ram:SpecifiedLineTradeAgreement>
        <ram:NetPriceProductTradePrice>
          <ram:ChargeAmount>10.00</ram:ChargeAmount>
          <ram:BasisQuantity>1</ram:BasisQuantity>
        </ram:NetPriceProductTradePrice>
      </ram:SpecifiedLineTradeAgreement>
      <ram:SpecifiedLineTradeSettlement>
        <ram:ApplicableTradeTax><ram:CategoryCode>S</ram:CategoryCode><ram:RateApplicablePercent>19</ram:RateApplicablePercent></ram:ApplicableTradeTax>
        <ram:BilledQuantity>10</ram:BilledQuantity>
        <ram:SpecifiedTradeSettlementLineMonetarySummation><ram:LineTotalAmount>100.00</ram:LineTotalAmount></ram:SpecifiedTradeSettlementLineMonetarySummation>
      </ram:SpecifiedLineTradeSettlement>
    </ram:IncludedSupplyChainTradeLineItem>
    <ram:ApplicableHeaderTradeAgreement>
      <ram:SellerTradeParty>
        <ram:Name>Seller GmbH</ram:Name>
        <ram:SpecifiedTaxRegistration><ram:ID schemeID="VA">DE123456789</ram:ID></ram:SpecifiedTaxRegistration>
        <ram:PostalTradeAddress><ram:CountryID>DE</ram:CountryID></ram:PostalTradeAddress>
      </ram:SellerTradeParty>
      <ram:BuyerTradeParty>
        <ram:Name>Buyer SARL</ram:Name>
        <ram:PostalTradeAddress><ram:CountryID>FR</ram:CountryID></ram:PostalTradeAddress>
      </ram:BuyerTradeParty>
    </ram:ApplicableHeaderTradeAgreement>
    <ram:ApplicableHeaderTradeDelivery/>
    <ram:ApplicableHeaderTradeSettlement>
      <ram:InvoiceCurrencyCode>EUR</ram:InvoiceCurrencyCode>
      <ram:ApplicableTradeTax>
        <ram:TypeCode>VAT</ram:TypeCode>
        <ram:CategoryCode>S</ram:CategoryCode>
        <ram:RateApplicablePercent>19</ram:RateApplicablePercent>
        <ram:BasisAmount>100.00</ram:BasisAmount>
        <ram:CalculatedAmount>19.00</ram:CalculatedAmount>
      </ram:ApplicableTradeTax>
      <ram:SpecifiedTradeSettlementHeaderMonetarySummation>
        <ram:LineTotalAmount>100.00</ram:LineTotalAmount>
        <ram:TaxBasisTotalAmount>100.00</ram:TaxBasisTotalAmount>
        <ram:TaxTotalAmount>19.00</ram:TaxTotalAmount>
        <ram:GrandTotalAmount>119.00</ram:GrandTotalAmount>
        <ram:DuePayableAmount>119.00</ram:DuePayableAmount>
      </ram:SpecifiedTradeSettlementHeaderMonetarySummation>
    </ram:ApplicableHeaderTradeSettlement>
  </rsm:SupplyChainTradeTransaction>
</rsm:CrossIndustryInvoice>`

func mustRoot(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	root := doc.Root()
	require.NotNil(t, root)
	return root
}

func TestMapCIIHappyPath(t *testing.T) {
	t.Parallel()

	inv, warnings, err := MapCII(mustRoot(t, validCII))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "471102", inv.InvoiceNumber)
	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, "DE123456789", inv.Seller.VATID)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "Widget", inv.Lines[0].ItemName)
	assert.True(t, inv.Payable.Equal(inv.TaxInclusive))
}

func TestMapCIIMissingMandatoryField(t *testing.T) {
	t.Parallel()

	withoutID := `<rsm:CrossIndustryInvoice xmlns:rsm="urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
		xmlns:ram="urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100">
		<rsm:ExchangedDocument><ram:TypeCode>380</ram:TypeCode></rsm:ExchangedDocument>
	</rsm:CrossIndustryInvoice>`

	_, _, err := MapCII(mustRoot(t, withoutID))
	require.Error(t, err)
	var mapErr *pipelineerr.MappingError
	require.ErrorAs(t, err, &mapErr)
	assert.Equal(t, "ram:ID", mapErr.Field)
}

func TestMapCIIZeroBasisQuantityIsInvalidValue(t *testing.T) {
	t.Parallel()

	xml := `<rsm:CrossIndustryInvoice xmlns:rsm="urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	                          xmlns:ram="urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	                          xmlns:udt="urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100">
	  <rsm:ExchangedDocument>
	    <ram:ID>1</ram:ID>
	    <ram:TypeCode>380</ram:TypeCode>
	    <ram:IssueDateTime><udt:DateTimeString format="102">20240115</udt:DateTimeString></ram:IssueDateTime>
	  </rsm:ExchangedDocument>
	  <rsm:SupplyChainTradeTransaction>
	    <ram:IncludedSupplyChainTradeLineItem>
	      <ram:AssociatedDocumentLineDocument><ram:LineID>1</ram:LineID></ram:AssociatedDocumentLineDocument>
	      <ram:SpecifiedLineTradeAgreement>
	        <ram:NetPriceProductTradePrice>
	          <ram:ChargeAmount>10.00</ram:ChargeAmount>
	          <ram:BasisQuantity>0</ram:BasisQuantity>
	        </ram:NetPriceProductTradePrice>
	      </ram:SpecifiedLineTradeAgreement>
	      <ram:SpecifiedLineTradeSettlement>
	        <ram:SpecifiedTradeSettlementLineMonetarySummation><ram:LineTotalAmount>100.00</ram:LineTotalAmount></ram:SpecifiedTradeSettlementLineMonetarySummation>
	      </ram:SpecifiedLineTradeSettlement>
	    </ram:IncludedSupplyChainTradeLineItem>
	    <ram:ApplicableHeaderTradeAgreement>
	      <ram:SellerTradeParty><ram:Name>Seller</ram:Name><ram:PostalTradeAddress><ram:CountryID>DE</ram:CountryID></ram:PostalTradeAddress></ram:SellerTradeParty>
	      <ram:BuyerTradeParty><ram:Name>Buyer</ram:Name><ram:PostalTradeAddress><ram:CountryID>FR</ram:CountryID></ram:PostalTradeAddress></ram:BuyerTradeParty>
	    </ram:ApplicableHeaderTradeAgreement>
	    <ram:ApplicableHeaderTradeSettlement>
	      <ram:InvoiceCurrencyCode>EUR</ram:InvoiceCurrencyCode>
	      <ram:SpecifiedTradeSettlementHeaderMonetarySummation>
	        <ram:LineTotalAmount>100.00</ram:LineTotalAmount>
	        <ram:TaxBasisTotalAmount>100.00</ram:TaxBasisTotalAmount>
	        <ram:TaxTotalAmount>19.00</ram:TaxTotalAmount>
	        <ram:GrandTotalAmount>119.00</ram:GrandTotalAmount>
	        <ram:DuePayableAmount>119.00</ram:DuePayableAmount>
	      </ram:SpecifiedTradeSettlementHeaderMonetarySummation>
	    </ram:ApplicableHeaderTradeSettlement>
	  </rsm:SupplyChainTradeTransaction>
	</rsm:CrossIndustryInvoice>`

	_, _, err := MapCII(mustRoot(t, xml))
	require.Error(t, err)
	var mapErr *pipelineerr.MappingError
	require.ErrorAs(t, err, &mapErr)
	assert.Contains(t, mapErr.Reason, "must not be zero")
}
