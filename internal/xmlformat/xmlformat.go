// Package xmlformat classifies an XML byte-stream by root element and
// namespace, and routes a raw upload through the PDF/XML carrier
// detection described in the format router component.
package xmlformat

import (
	"bytes"
	"fmt"

	"github.com/beevik/etree"

	"github.com/einvoice-platform/pipeline/internal/pdfextract"
	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
)

// Syntax is the closed sum type over recognised invoice document shapes.
type Syntax string

const (
	SyntaxUBLInvoice    Syntax = "UBL_INVOICE"
	SyntaxUBLCreditNote Syntax = "UBL_CREDITNOTE"
	SyntaxCII           Syntax = "CII"
)

const (
	nsCII           = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	nsUBLInvoice    = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsUBLCreditNote = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"
)

// newReadSettings returns etree's strict (non-permissive) read settings
// with no entity map. It sets nothing entity- or DTD-specific: external
// entities and DTDs stay unresolved because etree does not resolve them
// in its default configuration.
func newReadSettings() etree.ReadSettings {
	return etree.ReadSettings{
		Permissive: false,
	}
}

// Classify parses xmlBytes and returns the recognised Syntax and its
// parsed root element. Entity resolution and DTD loading are disabled.
func Classify(xmlBytes []byte) (Syntax, *etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = newReadSettings()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return "", nil, &pipelineerr.ExtractionError{Reason: fmt.Sprintf("malformed XML: %v", err)}
	}
	root := doc.Root()
	if root == nil {
		return "", nil, &pipelineerr.ExtractionError{Reason: "XML document has no root element"}
	}

	ns := root.NamespaceURI()
	switch {
	case root.Tag == "CrossIndustryInvoice" && ns == nsCII:
		return SyntaxCII, doc, nil
	case root.Tag == "Invoice" && ns == nsUBLInvoice:
		return SyntaxUBLInvoice, doc, nil
	case root.Tag == "CreditNote" && ns == nsUBLCreditNote:
		return SyntaxUBLCreditNote, doc, nil
	default:
		return "", nil, &pipelineerr.UnknownFormatError{RootElement: root.Tag, Namespace: ns}
	}
}

// Carrier is the physical transport the invoice arrived in.
type Carrier string

const (
	CarrierXML Carrier = "XML"
	CarrierPDF Carrier = "PDF"
)

// DeclaredFormat is the hybrid-PDF profile recognised, when applicable.
type DeclaredFormat string

const (
	DeclaredNone    DeclaredFormat = ""
	DeclaredZUGFeRD DeclaredFormat = "ZUGFERD"
	DeclaredFacturX DeclaredFormat = "FACTURX"
)

// Routed is the outcome of routing one raw upload.
type Routed struct {
	Carrier  Carrier
	Syntax   Syntax
	Declared DeclaredFormat
	XML      []byte
	Doc      *etree.Document
	// NoAttachment is true when the carrier was PDF but no embedded
	// invoice XML was found — not an error, routes to MANUAL_REVIEW.
	NoAttachment bool
}

// Route sniffs raw for PDF or XML shape and, for PDF, extracts and
// classifies the embedded CII document.
func Route(raw []byte) (Routed, error) {
	trimmed := bytes.TrimLeft(raw, "\xef\xbb\xbf \t\r\n")

	switch {
	case bytes.HasPrefix(raw, []byte("%PDF-")):
		xml, carrier, err := pdfextract.Extract(raw)
		if err != nil {
			return Routed{}, err
		}
		if xml == nil {
			return Routed{Carrier: CarrierPDF, NoAttachment: true}, nil
		}
		syntax, doc, err := Classify(xml)
		if err != nil {
			return Routed{}, err
		}
		return Routed{
			Carrier:  CarrierPDF,
			Syntax:   syntax,
			Declared: DeclaredFormat(carrier),
			XML:      xml,
			Doc:      doc,
		}, nil

	case len(trimmed) > 0 && trimmed[0] == '<':
		syntax, doc, err := Classify(raw)
		if err != nil {
			return Routed{}, err
		}
		return Routed{Carrier: CarrierXML, Syntax: syntax, XML: raw, Doc: doc}, nil

	default:
		return Routed{}, &pipelineerr.UnsupportedCarrierError{Reason: "input is neither a PDF nor an XML document"}
	}
}
