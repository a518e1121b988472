package riskengine

import (
	"sort"
	"strings"
)

// Extractor scans step fields against a PatternLibrary.
type Extractor struct {
	lib *PatternLibrary
}

// NewExtractor returns an Extractor bound to lib. A nil lib selects the
// built-in library.
func NewExtractor(lib *PatternLibrary) *Extractor {
	if lib == nil {
		lib = DefaultPatternLibrary()
	}
	return &Extractor{lib: lib}
}

// Extract returns the findings for one step. At most one finding is emitted per
// (category, field) pair; the evidence is the first match in rule order.
// Empty fields produce nothing.
func (e *Extractor) Extract(step Step) []Finding {
	type key struct {
		category Category
		field    Field
	}
	seen := make(map[key]bool)
	var findings []Finding

	for _, field := range fieldOrder {
		values := step.values(field)
		if len(values) == 0 {
			continue
		}
		for _, rule := range e.lib.rules {
			if !rule.spec.appliesTo(field) {
				continue
			}
			k := key{rule.spec.Category, field}
			if seen[k] {
				continue
			}
			for _, v := range values {
				if strings.TrimSpace(v) == "" {
					continue
				}
				if evidence, ok := rule.match(v); ok {
					seen[k] = true
					findings = append(findings, Finding{
						Category:    rule.spec.Category,
						Evidence:    evidence,
						SourceField: field,
					})
					break
				}
			}
		}
	}

	sortFindings(findings)
	return findings
}

func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ci, cj := findings[i].Category.rank(), findings[j].Category.rank()
		if ci != cj {
			return ci < cj
		}
		return findings[i].SourceField.rank() < findings[j].SourceField.rank()
	})
}
