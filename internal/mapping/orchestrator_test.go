package mapping

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einvoice-platform/pipeline/internal/findings"
	"github.com/einvoice-platform/pipeline/internal/xmlformat"
)

func routedDoc(t *testing.T, xml string, syntax xmlformat.Syntax, declared xmlformat.DeclaredFormat) xmlformat.Routed {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	return xmlformat.Routed{
		Carrier:  xmlformat.CarrierXML,
		Syntax:   syntax,
		Declared: declared,
		XML:      []byte(xml),
		Doc:      doc,
	}
}

func TestMapDispatchesCIISuccess(t *testing.T) {
	t.Parallel()

	result := Map(routedDoc(t, validCII, xmlformat.SyntaxCII, xmlformat.DeclaredNone))
	require.Nil(t, result.Fatal)
	require.NotNil(t, result.Invoice)
	assert.Equal(t, "471102", result.Invoice.InvoiceNumber)
	assert.Empty(t, result.Findings)
}

func TestMapDeclaredMismatchEmitsWarningButStillMaps(t *testing.T) {
	t.Parallel()

	result := Map(routedDoc(t, validUBLInvoice, xmlformat.SyntaxUBLInvoice, xmlformat.DeclaredZUGFeRD))

	require.Nil(t, result.Fatal)
	require.NotNil(t, result.Invoice)
	require.NotEmpty(t, result.Findings)
	assert.Equal(t, findings.CodeFormatDeclaredMismatch, result.Findings[0].Code)
	assert.Equal(t, findings.SeverityWarning, result.Findings[0].Severity)
}

func TestMapFatalMappingErrorBecomesFinding(t *testing.T) {
	t.Parallel()

	invalid := `<rsm:CrossIndustryInvoice xmlns:rsm="urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
		xmlns:ram="urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100">
		<rsm:ExchangedDocument><ram:TypeCode>380</ram:TypeCode></rsm:ExchangedDocument>
	</rsm:CrossIndustryInvoice>`

	result := Map(routedDoc(t, invalid, xmlformat.SyntaxCII, xmlformat.DeclaredNone))

	require.NotNil(t, result.Fatal)
	require.Nil(t, result.Invoice)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, findings.SeverityFatal, result.Findings[0].Severity)
	assert.Equal(t, findings.CodeMapFieldMissing, result.Findings[0].Code)
}
