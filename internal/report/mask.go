package report

import (
	"strings"
	"unicode"

	"github.com/stepguard/stepguard/pkg/riskengine"
)

// visibleDigits is how many trailing digits of a masked number stay readable.
const visibleDigits = 4

// MaskEvidence returns the evidence of a finding with personal data masked.
// Evidence of other categories is returned unchanged.
func MaskEvidence(f riskengine.Finding) string {
	if !f.Category.IsPII() || f.Evidence == "" {
		return f.Evidence
	}
	if f.Category == riskengine.CategoryPIIEmail {
		return maskEmail(f.Evidence)
	}
	return maskDigits(f.Evidence, visibleDigits)
}

// maskDigits replaces every digit but the last keep with '*', leaving separators.
func maskDigits(s string, keep int) string {
	runes := []rune(s)
	seen := 0
	for i := len(runes) - 1; i >= 0; i-- {
		if !unicode.IsDigit(runes[i]) {
			continue
		}
		seen++
		if seen > keep {
			runes[i] = '*'
		}
	}
	return string(runes)
}

// maskEmail keeps the first character of the local part and the domain.
func maskEmail(s string) string {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return strings.Repeat("*", len([]rune(s)))
	}
	local := []rune(s[:at])
	return string(local[0]) + "***" + s[at:]
}
