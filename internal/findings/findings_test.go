package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepOutcomePrecedence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, OutcomeSuccess, StepOutcome(nil))
	assert.Equal(t, OutcomeWarnings, StepOutcome([]Finding{{Severity: SeverityWarning}}))
	assert.Equal(t, OutcomeErrors, StepOutcome([]Finding{{Severity: SeverityWarning}, {Severity: SeverityError}}))
	assert.Equal(t, OutcomeFatal, StepOutcome([]Finding{{Severity: SeverityError}, {Severity: SeverityFatal}}))
}

func TestReportHasFatalAndHasError(t *testing.T) {
	t.Parallel()

	var r Report
	r.AddStep(Step{Stage: "mapping", Findings: []Finding{{Severity: SeverityWarning, Code: CodeFormatDeclaredMismatch}}})
	assert.False(t, r.HasFatal())
	assert.False(t, r.HasError())

	r.AddStep(Step{Stage: "arithmetic", Findings: []Finding{{Severity: SeverityError, Code: CodeCalcTotalMismatch}}})
	assert.False(t, r.HasFatal())
	assert.True(t, r.HasError())

	r.AddStep(Step{Stage: "business", Findings: []Finding{{Severity: SeverityFatal, Code: CodeERPDuplicate}}})
	assert.True(t, r.HasFatal())
	assert.True(t, r.HasError())
}

func TestReportCodesPreservesStepOrder(t *testing.T) {
	t.Parallel()

	var r Report
	r.AddStep(Step{Findings: []Finding{{Code: CodeXSDViolation}}})
	r.AddStep(Step{Findings: []Finding{{Code: CodeMapFieldMissing}, {Code: CodeMapInvalidValue}}})

	assert.Equal(t, []Code{CodeXSDViolation, CodeMapFieldMissing, CodeMapInvalidValue}, r.Codes())
}

func TestSchematronCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Code("SCHEMATRON_BR-CO-15"), SchematronCode("BR-CO-15"))
}
