// Package masking redacts personal data from audit metadata before it is
// stored. Customer and personnel emails keep their domain, personnel names
// keep their initial, and secrets are replaced outright.
package masking

import (
	"strings"
	"unicode/utf8"
)

const maskToken = "****"

type rule struct {
	match string
	mask  func(string) string
}

// rules are checked in order against the lower cased key.
var rules = []rule{
	{match: "email", mask: MaskEmail},
	{match: "first_name", mask: MaskName},
	{match: "last_name", mask: MaskName},
	{match: "phone", mask: redact},
	{match: "token", mask: redact},
	{match: "password", mask: redact},
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 {
		return maskToken
	}
	first, _ := utf8.DecodeRuneInString(trimmed)
	return string(first) + maskToken + trimmed[at:]
}

// MaskName reduces a name to its initial, e.g. "Dana" becomes "D.".
func MaskName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	first, _ := utf8.DecodeRuneInString(trimmed)
	return string(first) + "."
}

func redact(string) string { return maskToken }

// MaskSensitive returns a masked copy of metadata. Nested maps and slices
// inherit the key of their parent.
func MaskSensitive(input map[string]any) map[string]any {
	masked := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		masked[key] = maskValue(ruleFor(key), value)
	}
	return masked
}

func maskValue(mask func(string) string, value any) any {
	switch v := value.(type) {
	case string:
		if mask == nil {
			return v
		}
		return mask(v)
	case map[string]any:
		return MaskSensitive(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = maskValue(mask, item)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			if mask != nil {
				item = mask(item)
			}
			out[i] = item
		}
		return out
	default:
		return value
	}
}

func ruleFor(key string) func(string) string {
	lower := strings.ToLower(key)
	for _, r := range rules {
		if strings.Contains(lower, r.match) {
			return r.mask
		}
	}
	return nil
}
