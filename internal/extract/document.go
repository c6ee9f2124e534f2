// internal/extract/document.go

// Package extract provides label-anchored access to the document
// summaries produced by the external extraction service. Summaries are
// single-line strings of "Label: value" pairs, e.g.
//
//	"Salary: 4,000.00, Balance: 12,340.00, Identity: Pass"
//
// The validator and feature normalizer read fields only through this
// package so that no other component re-implements string splitting.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe   = regexp.MustCompile(`[\d,]*\.?\d+`)
	nonNumeric = regexp.MustCompile(`[^\d.]`)
)

// Document is one extracted document summary.
type Document struct {
	Kind string
	Text string
}

// Get returns the raw value following "label:" up to the next labeled
// field or end of text. The second return is false when the label is
// absent.
func (d Document) Get(label string) (string, bool) {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `:\s*(.*?)(?:,\s*[A-Z][A-Za-z ]*:|$)`)
	m := re.FindStringSubmatch(d.Text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Number returns the numeric value following "label:", or 0 when the
// label is absent or its value carries no digits. It never fails.
func (d Document) Number(label string) float64 {
	raw, ok := d.Get(label)
	if !ok {
		return 0
	}
	return CleanNumber(raw)
}

// Int is Number truncated to an integer.
func (d Document) Int(label string) int {
	return int(d.Number(label))
}

// Has reports whether the summary contains the given marker anywhere,
// case-insensitively.
func (d Document) Has(marker string) bool {
	return strings.Contains(strings.ToLower(d.Text), strings.ToLower(marker))
}

// IdentityStatus is the intra-document identity check embedded in a
// summary by the extraction service.
type IdentityStatus struct {
	Checked bool
	Passed  bool
	Detail  string
}

// Identity parses the "Identity:" field. Summaries without one (e.g.
// the asset statement) report Checked=false and are treated as passing.
func (d Document) Identity() IdentityStatus {
	raw, ok := d.Get("Identity")
	if !ok {
		return IdentityStatus{}
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "pass") {
		return IdentityStatus{Checked: true, Passed: true}
	}
	detail := raw
	if i := strings.Index(raw, "("); i >= 0 {
		detail = strings.TrimSuffix(raw[i+1:], ")")
	}
	return IdentityStatus{Checked: true, Passed: false, Detail: detail}
}

// Severity parses a "Severity: n/10" field, returning just n.
func (d Document) Severity() int {
	raw, ok := d.Get("Severity")
	if !ok {
		return 0
	}
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return int(CleanNumber(raw))
}

// CleanNumber extracts a number from an arbitrarily formatted string:
// "AED 1,234.56" -> 1234.56. Malformed input yields 0.
func CleanNumber(s string) float64 {
	m := numberRe.FindString(s)
	if m == "" {
		return 0
	}
	clean := nonNumeric.ReplaceAllString(m, "")
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}

// Documents wraps a kind -> summary map for convenient lookup.
type Documents map[string]string

// Doc returns the summary for kind; absent kinds yield an empty
// Document whose every lookup reports the zero value.
func (ds Documents) Doc(kind string) Document {
	return Document{Kind: kind, Text: ds[kind]}
}
