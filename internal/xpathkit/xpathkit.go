// Package xpathkit provides namespace-aware scalar extraction over an
// etree document: text, decimal, and date lookups with mandatory/optional
// semantics and typed mapping errors, in the style of the CII/UBL parser
// helpers it replaces.
package xpathkit

import (
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
)

// DateFormat selects which of the two invoice date shapes to parse.
type DateFormat int

const (
	// DateFormatCIIBasic is CII's "20060102" form (qualifier code 102).
	DateFormatCIIBasic DateFormat = iota
	// DateFormatISOExtended is UBL's "2006-01-02" form.
	DateFormatISOExtended
)

func (f DateFormat) layout() string {
	switch f {
	case DateFormatCIIBasic:
		return "20060102"
	default:
		return "2006-01-02"
	}
}

// Find returns the first element in document order matching path under
// el, or nil if none match. Only the first match is ever considered by
// the scalar helpers below, per the toolkit's "unique first match in
// document order" contract.
func Find(el *etree.Element, path string) *etree.Element {
	if el == nil {
		return nil
	}
	return el.FindElement(path)
}

// FindAll returns every element matching path under el, in document
// order.
func FindAll(el *etree.Element, path string) []*etree.Element {
	if el == nil {
		return nil
	}
	return el.FindElements(path)
}

// Text extracts the trimmed text content at path. If mandatory and no
// node matches (or its text is empty), returns a *pipelineerr.MappingError.
// If not mandatory and no node matches, returns def.
func Text(el *etree.Element, path string, def string, mandatory bool) (string, error) {
	node := Find(el, path)
	if node == nil || strings.TrimSpace(node.Text()) == "" {
		if mandatory {
			return "", pipelineerr.MissingField(path)
		}
		return def, nil
	}
	return strings.TrimSpace(node.Text()), nil
}

// Attr extracts a trimmed attribute value at path/@attr.
func Attr(el *etree.Element, path, attr string, def string, mandatory bool) (string, error) {
	node := Find(el, path)
	if node == nil {
		if mandatory {
			return "", pipelineerr.MissingField(path + "/@" + attr)
		}
		return def, nil
	}
	a := node.SelectAttr(attr)
	if a == nil || strings.TrimSpace(a.Value) == "" {
		if mandatory {
			return "", pipelineerr.MissingField(path + "/@" + attr)
		}
		return def, nil
	}
	return strings.TrimSpace(a.Value), nil
}

// Decimal extracts and strictly parses a decimal at path. Mandatory
// absence or malformed text fails. Optional absence returns def;
// optional malformed text returns def with the second result set to
// true. This package emits no finding for that case; surfacing it is
// left to the caller.
func Decimal(el *etree.Element, path string, def decimal.Decimal, mandatory bool) (decimal.Decimal, bool, error) {
	raw, err := Text(el, path, "", mandatory)
	if err != nil {
		return decimal.Zero, false, err
	}
	if raw == "" {
		return def, false, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		if mandatory {
			return decimal.Zero, false, pipelineerr.InvalidValue(path, "not a decimal: "+raw)
		}
		return def, true, nil
	}
	return d, false, nil
}

// Date extracts and parses a date at path in the given format.
func Date(el *etree.Element, path string, format DateFormat, mandatory bool) (time.Time, error) {
	raw, err := Text(el, path, "", mandatory)
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(format.layout(), raw)
	if err != nil {
		if mandatory {
			return time.Time{}, pipelineerr.InvalidValue(path, "not a date in expected format: "+raw)
		}
		return time.Time{}, nil
	}
	return t, nil
}
