package semantic

import (
	"github.com/beevik/etree"

	"github.com/einvoice-platform/pipeline/internal/findings"
)

// ParseSVRL parses a Schematron Validation Report Language document and
// translates each assertion into a Finding. failed-assert elements whose
// "flag" attribute is "warning" become WARNING findings; all other
// failed-assert elements become ERROR. successful-report elements always
// become WARNING (an explicit report is informational by construction,
// but surfaced for operator visibility per §4.9).
func ParseSVRL(data []byte) ([]findings.Finding, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, nil
	}

	var out []findings.Finding
	for _, fa := range root.FindElements("//failed-assert") {
		out = append(out, svrlFinding(fa, severityFor(fa)))
	}
	for _, sr := range root.FindElements("//successful-report") {
		out = append(out, svrlFinding(sr, findings.SeverityWarning))
	}
	return out, nil
}

func severityFor(el *etree.Element) findings.Severity {
	if attr := el.SelectAttr("flag"); attr != nil && attr.Value == "warning" {
		return findings.SeverityWarning
	}
	return findings.SeverityError
}

func svrlFinding(el *etree.Element, severity findings.Severity) findings.Finding {
	ruleID := ""
	if attr := el.SelectAttr("id"); attr != nil {
		ruleID = attr.Value
	}
	location := ""
	if attr := el.SelectAttr("location"); attr != nil {
		location = attr.Value
	}
	message := ""
	if textEl := el.FindElement("text"); textEl != nil {
		message = textEl.Text()
	}

	return findings.Finding{
		Severity: severity,
		Code:     findings.SchematronCode(ruleID),
		Message:  message,
		XPath:    location,
	}
}
