package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einvoice-platform/pipeline/internal/findings"
)

const sampleSVRL = `<?xml version="1.0" encoding="UTF-8"?>
<schematron-output xmlns="http://purl.oclc.org/dsdl/svrl">
  <failed-assert id="BR-CO-15" location="/Invoice[1]">
    <text>Invoice total amount must equal sum of line net amounts plus tax.</text>
  </failed-assert>
  <failed-assert id="BR-DE-10" flag="warning" location="/Invoice[1]/cac:PaymentMeans[1]">
    <text>Payment means should include remittance information.</text>
  </failed-assert>
  <successful-report id="BR-CO-25" location="/Invoice[1]">
    <text>Due date is informational for this profile.</text>
  </successful-report>
</schematron-output>`

func TestParseSVRLClassifiesSeverities(t *testing.T) {
	t.Parallel()

	fs, err := ParseSVRL([]byte(sampleSVRL))
	require.NoError(t, err)
	require.Len(t, fs, 3)

	assert.Equal(t, findings.SeverityError, fs[0].Severity)
	assert.Equal(t, findings.SchematronCode("BR-CO-15"), fs[0].Code)
	assert.Equal(t, "/Invoice[1]", fs[0].XPath)
	assert.Contains(t, fs[0].Message, "Invoice total amount")

	assert.Equal(t, findings.SeverityWarning, fs[1].Severity)
	assert.Equal(t, findings.SchematronCode("BR-DE-10"), fs[1].Code)

	assert.Equal(t, findings.SeverityWarning, fs[2].Severity)
	assert.Equal(t, findings.SchematronCode("BR-CO-25"), fs[2].Code)
}

func TestParseSVRLEmptyReportHasNoFindings(t *testing.T) {
	t.Parallel()

	fs, err := ParseSVRL([]byte(`<schematron-output xmlns="http://purl.oclc.org/dsdl/svrl"/>`))
	require.NoError(t, err)
	assert.Empty(t, fs)
}

func TestParseSVRLMalformedXMLReturnsError(t *testing.T) {
	t.Parallel()

	_, err := ParseSVRL([]byte(`<svrl:schematron-output>`))
	assert.Error(t, err)
}
