// Package mapping dispatches a routed document to the CII or UBL mapper
// and translates mapper faults into structured findings, per SPEC_FULL.md
// §4.7.
package mapping

import (
	"github.com/einvoice-platform/pipeline/internal/canonical"
	"github.com/einvoice-platform/pipeline/internal/findings"
	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
	"github.com/einvoice-platform/pipeline/internal/xmlformat"
)

// Result is the outcome of orchestrating one document through the
// appropriate mapper.
type Result struct {
	Invoice  *canonical.Invoice
	Findings []findings.Finding
	// Fatal holds the permanent mapping error, if any; the caller
	// translates it into a FATAL finding and a SKIPPED chain for
	// subsequent stages.
	Fatal *pipelineerr.MappingError
}

// Map dispatches routed to the CII or UBL mapper based on its observed
// syntax. If the declared format disagrees with the observed syntax, a
// WARNING finding is emitted and the observed syntax is used regardless.
func Map(routed xmlformat.Routed) Result {
	var warnings []findings.Finding

	if routed.Declared != "" {
		expectedSyntax := xmlformat.SyntaxCII
		if routed.Syntax != expectedSyntax {
			warnings = append(warnings, findings.Finding{
				Severity: findings.SeverityWarning,
				Code:     findings.CodeFormatDeclaredMismatch,
				Message:  "declared hybrid-PDF format disagrees with observed XML syntax; proceeding with observed syntax",
			})
		}
	}

	var inv *canonical.Invoice
	var mapWarnings []findings.Finding
	var err error

	root := routed.Doc.Root()
	switch routed.Syntax {
	case xmlformat.SyntaxCII:
		inv, mapWarnings, err = MapCII(root)
	case xmlformat.SyntaxUBLInvoice, xmlformat.SyntaxUBLCreditNote:
		inv, mapWarnings, err = MapUBL(root, routed.Syntax)
	default:
		err = pipelineerr.InvalidValue("syntax", "unrecognised syntax: "+string(routed.Syntax))
	}

	warnings = append(warnings, mapWarnings...)

	if err != nil {
		mapErr, ok := err.(*pipelineerr.MappingError)
		if !ok {
			mapErr = pipelineerr.InvalidValue("unknown", err.Error())
		}
		code := findings.CodeMapFieldMissing
		if mapErr.Reason != "" {
			code = findings.CodeMapInvalidValue
		}
		return Result{
			Findings: append(warnings, findings.Finding{
				Severity: findings.SeverityFatal,
				Code:     code,
				Message:  mapErr.Error(),
				Field:    mapErr.Field,
			}),
			Fatal: mapErr,
		}
	}

	return Result{Invoice: inv, Findings: warnings}
}
