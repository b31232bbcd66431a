package xsdvalidate

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einvoice-platform/pipeline/internal/findings"
	"github.com/einvoice-platform/pipeline/internal/xmlformat"
)

func mustRoot(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	return doc.Root()
}

const validUBLShape = `<Invoice xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
                 xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:ID>1</cbc:ID>
  <cbc:IssueDate>2024-01-01</cbc:IssueDate>
  <cac:AccountingSupplierParty/>
  <cac:AccountingCustomerParty/>
  <cac:InvoiceLine/>
  <cac:LegalMonetaryTotal/>
</Invoice>`

func TestValidateUBLShapeNoViolations(t *testing.T) {
	t.Parallel()

	fs := Validate(mustRoot(t, validUBLShape), xmlformat.SyntaxUBLInvoice)
	assert.Empty(t, fs)
}

func TestValidateUBLMissingMandatoryElement(t *testing.T) {
	t.Parallel()

	xml := `<Invoice xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	                 xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
	  <cbc:ID>1</cbc:ID>
	  <cac:AccountingSupplierParty/>
	  <cac:AccountingCustomerParty/>
	  <cac:InvoiceLine/>
	  <cac:LegalMonetaryTotal/>
	</Invoice>`

	fs := Validate(mustRoot(t, xml), xmlformat.SyntaxUBLInvoice)
	require.NotEmpty(t, fs)
	var found bool
	for _, f := range fs {
		if f.XPath == "cbc:IssueDate" {
			found = true
			assert.Equal(t, findings.CodeXSDViolation, f.Code)
			assert.Equal(t, findings.SeverityError, f.Severity)
		}
	}
	assert.True(t, found)
}

func TestValidateUBLNoLinesViolatesMinOccurrence(t *testing.T) {
	t.Parallel()

	xml := `<Invoice xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	                 xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
	  <cbc:ID>1</cbc:ID>
	  <cbc:IssueDate>2024-01-01</cbc:IssueDate>
	  <cac:AccountingSupplierParty/>
	  <cac:AccountingCustomerParty/>
	  <cac:LegalMonetaryTotal/>
	</Invoice>`

	fs := Validate(mustRoot(t, xml), xmlformat.SyntaxUBLInvoice)
	require.NotEmpty(t, fs)
	assert.Equal(t, "cac:InvoiceLine", fs[0].XPath)
}

func TestValidateUnknownSyntaxIsFatal(t *testing.T) {
	t.Parallel()

	fs := Validate(mustRoot(t, `<Invoice/>`), xmlformat.Syntax("UNKNOWN"))
	require.Len(t, fs, 1)
	assert.Equal(t, findings.SeverityFatal, fs[0].Severity)
	assert.Equal(t, findings.CodeXSDViolation, fs[0].Code)
}
