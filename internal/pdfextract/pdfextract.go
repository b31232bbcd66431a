// Package pdfextract locates and extracts the embedded CII XML
// byte-stream from a ZUGFeRD/Factur-X PDF/A-3 carrier.
package pdfextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
)

// Carrier identifies which hybrid profile produced the PDF.
type Carrier string

const (
	CarrierZUGFeRD  Carrier = "ZUGFERD"
	CarrierFacturX  Carrier = "FACTURX"
)

// maxAttachments bounds how many embedded files are inspected, guarding
// against pathological PDFs carrying thousands of attachments.
const maxAttachments = 32

var knownNames = []string{
	"factur-x.xml",
	"zugferd-invoice.xml",
	"xrechnung.xml",
}

func classify(filename string) Carrier {
	switch strings.ToLower(filename) {
	case "factur-x.xml", "xrechnung.xml":
		return CarrierFacturX
	case "zugferd-invoice.xml":
		return CarrierZUGFeRD
	default:
		return CarrierFacturX
	}
}

// Extract inspects a PDF/A-3 byte stream for an embedded invoice XML
// attachment. A structurally valid PDF with no matching attachment
// returns (nil, "", nil) — not an error. An unparsable byte stream returns
// a *pipelineerr.ExtractionError, marked transient only when the parse
// error looks like truncation.
func Extract(pdf []byte) (xml []byte, carrier Carrier, err error) {
	attachments, err := api.ExtractAttachmentsRaw(bytes.NewReader(pdf), "", nil, nil)
	if err != nil {
		return nil, "", &pipelineerr.ExtractionError{
			Reason:    fmt.Sprintf("failed to parse PDF attachments: %v", err),
			Transient: looksTruncated(err),
		}
	}
	if len(attachments) == 0 {
		return nil, "", nil
	}
	if len(attachments) > maxAttachments {
		attachments = attachments[:maxAttachments]
	}

	for _, known := range knownNames {
		for _, a := range attachments {
			if strings.EqualFold(a.FileName, known) {
				data, rerr := readAttachment(a)
				if rerr != nil {
					return nil, "", rerr
				}
				return data, classify(a.FileName), nil
			}
		}
	}

	for _, a := range attachments {
		if strings.EqualFold(a.FileName, "order-x.xml") {
			continue
		}
		if strings.HasSuffix(strings.ToLower(a.FileName), ".xml") {
			data, rerr := readAttachment(a)
			if rerr != nil {
				return nil, "", rerr
			}
			return data, classify(a.FileName), nil
		}
	}

	return nil, "", nil
}

func readAttachment(a model.Attachment) ([]byte, error) {
	data, err := io.ReadAll(a)
	if err != nil {
		return nil, &pipelineerr.ExtractionError{
			Reason:    fmt.Sprintf("failed to read attachment %q: %v", a.FileName, err),
			Transient: false,
		}
	}
	return data, nil
}

// looksTruncated is a best-effort heuristic: pdfcpu reports truncated
// input and genuinely malformed input through the same error type, so a
// short textual match is the only signal available without depending on
// pdfcpu's internal error variables.
func looksTruncated(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "eof") || strings.Contains(msg, "unexpected end") || strings.Contains(msg, "truncat")
}
