// Package format renders invoice numbers from templates such as
// "CB-{YYYY}{WW}-{SEQ4}".
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultInvoiceNumberTemplate = "INV-{SEQ6}"

type part struct {
	literal string
	token   string
	width   int
}

// NumberTemplate is a parsed invoice number template. Supported tokens are
// {YYYY}, {YY}, {MM}, {DD}, the ISO week {WW}, {SEQ} and zero padded {SEQn}.
type NumberTemplate struct {
	raw   string
	parts []part
}

// ParseNumberTemplate rejects empty templates, unknown tokens and templates
// without a sequence token, since those would repeat numbers.
func ParseNumberTemplate(raw string) (NumberTemplate, error) {
	if strings.TrimSpace(raw) == "" {
		return NumberTemplate{}, fmt.Errorf("invoice number template is empty")
	}

	tpl := NumberTemplate{raw: raw}
	hasSeq := false
	rest := raw
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.ContainsRune(rest, '}') {
				return NumberTemplate{}, fmt.Errorf("unbalanced brace in invoice number template %q", raw)
			}
			tpl.parts = append(tpl.parts, part{literal: rest})
			break
		}
		if open > 0 {
			if strings.ContainsRune(rest[:open], '}') {
				return NumberTemplate{}, fmt.Errorf("unbalanced brace in invoice number template %q", raw)
			}
			tpl.parts = append(tpl.parts, part{literal: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return NumberTemplate{}, fmt.Errorf("unbalanced brace in invoice number template %q", raw)
		}
		p, err := parseToken(rest[open+1 : open+end])
		if err != nil {
			return NumberTemplate{}, fmt.Errorf("invoice number template %q: %w", raw, err)
		}
		hasSeq = hasSeq || p.token == "SEQ"
		tpl.parts = append(tpl.parts, p)
		rest = rest[open+end+1:]
	}
	if !hasSeq {
		return NumberTemplate{}, fmt.Errorf("invoice number template %q has no {SEQ} token", raw)
	}
	return tpl, nil
}

func parseToken(name string) (part, error) {
	switch name {
	case "YYYY", "YY", "MM", "DD", "WW", "SEQ":
		return part{token: name}, nil
	}
	if digits, ok := strings.CutPrefix(name, "SEQ"); ok {
		width, err := strconv.Atoi(digits)
		if err == nil && width > 0 && width <= 18 {
			return part{token: "SEQ", width: width}, nil
		}
	}
	return part{}, fmt.Errorf("unknown token {%s}", name)
}

func (t NumberTemplate) String() string { return t.raw }

// Render formats seq, which must be positive, for an invoice issued at issuedAt.
func (t NumberTemplate) Render(issuedAt time.Time, seq int64) (string, error) {
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	var b strings.Builder
	for _, p := range t.parts {
		switch p.token {
		case "":
			b.WriteString(p.literal)
		case "YYYY":
			b.WriteString(issuedAt.Format("2006"))
		case "YY":
			b.WriteString(issuedAt.Format("06"))
		case "MM":
			b.WriteString(issuedAt.Format("01"))
		case "DD":
			b.WriteString(issuedAt.Format("02"))
		case "WW":
			_, week := issuedAt.ISOWeek()
			fmt.Fprintf(&b, "%02d", week)
		case "SEQ":
			fmt.Fprintf(&b, "%0*d", p.width, seq)
		}
	}
	return b.String(), nil
}

// FormatInvoiceNumber parses template and renders it in one step.
func FormatInvoiceNumber(template string, issuedAt time.Time, seq int64) (string, error) {
	tpl, err := ParseNumberTemplate(template)
	if err != nil {
		return "", err
	}
	return tpl.Render(issuedAt, seq)
}
