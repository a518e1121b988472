package riskengine

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// MatchKind selects how a rule's terms are turned into a matcher.
type MatchKind string

const (
	// MatchRegexp treats every term as a case-sensitive regular expression.
	MatchRegexp MatchKind = "regexp"
	// MatchKeyword matches terms case-insensitively at word boundaries,
	// allowing common inflections (updates, updated, updating).
	MatchKeyword MatchKind = "keyword"
	// MatchToken matches terms against whole name tokens split on non-alphanumerics.
	MatchToken MatchKind = "token"
	// MatchSubstring matches terms case-insensitively anywhere in the text.
	MatchSubstring MatchKind = "substring"
)

// ParseMatchKind converts a string into a MatchKind.
func ParseMatchKind(raw string) (MatchKind, error) {
	switch k := MatchKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case MatchRegexp, MatchKeyword, MatchToken, MatchSubstring:
		return k, nil
	default:
		return "", fmt.Errorf("unsupported match kind %q", raw)
	}
}

// RuleSpec is the declarative form of one detection rule.
// An empty Fields list means the rule applies to every field.
type RuleSpec struct {
	Name     string    `json:"name" yaml:"name"`
	Category Category  `json:"category" yaml:"category"`
	Kind     MatchKind `json:"kind" yaml:"kind"`
	Fields   []Field   `json:"fields,omitempty" yaml:"fields,omitempty"`
	Terms    []string  `json:"terms" yaml:"terms"`
}

func (s RuleSpec) clone() RuleSpec {
	s.Fields = append([]Field(nil), s.Fields...)
	s.Terms = append([]string(nil), s.Terms...)
	return s
}

func (s RuleSpec) appliesTo(f Field) bool {
	if len(s.Fields) == 0 {
		return true
	}
	for _, field := range s.Fields {
		if field == f {
			return true
		}
	}
	return false
}

// wholeValueEvidence reports whether a match should be evidenced by the full
// value (a tool or database name) rather than the matched fragment.
func (s RuleSpec) wholeValueEvidence() bool {
	return s.Kind == MatchToken || s.Kind == MatchSubstring
}

type compiledRule struct {
	spec    RuleSpec
	pattern *regexp.Regexp
}

// match returns the evidence for the first match of the rule in value.
func (r compiledRule) match(value string) (string, bool) {
	subject := value
	if r.spec.Kind == MatchToken {
		subject = splitCamelCase(value)
	}
	m := r.pattern.FindStringSubmatch(subject)
	if m == nil {
		return "", false
	}
	if r.spec.wholeValueEvidence() {
		return strings.TrimSpace(value), true
	}
	if r.spec.Kind == MatchRegexp {
		return m[0], true
	}
	for _, group := range m[1:] {
		if group != "" {
			return group, true
		}
	}
	return m[0], true
}

// splitCamelCase inserts a space at every camel-case word boundary so that
// "ProdDB" and "ordersLive" split into tokens. Acronyms stay whole: "DBProd"
// becomes "DB Prod".
func splitCamelCase(value string) string {
	runes := []rune(value)
	var b strings.Builder
	b.Grow(len(value) + 4)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PatternLibrary is an immutable, compiled set of detection rules.
type PatternLibrary struct {
	rules []compiledRule
}

// NewPatternLibrary validates and compiles the given rule specs.
func NewPatternLibrary(specs []RuleSpec) (*PatternLibrary, error) {
	lib := &PatternLibrary{}
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate rule name %q", spec.Name)
		}
		rule, err := compileRule(spec)
		if err != nil {
			return nil, err
		}
		seen[spec.Name] = true
		lib.rules = append(lib.rules, rule)
	}
	return lib, nil
}

// DefaultPatternLibrary compiles DefaultRuleSpecs. The built-in specs are known
// to compile, so a failure here is a programming error.
func DefaultPatternLibrary() *PatternLibrary {
	lib, err := NewPatternLibrary(DefaultRuleSpecs())
	if err != nil {
		panic(fmt.Sprintf("built-in pattern library is invalid: %v", err))
	}
	return lib
}

// Extend returns a new library holding the receiver's rules followed by specs.
func (l *PatternLibrary) Extend(specs ...RuleSpec) (*PatternLibrary, error) {
	all := l.Specs()
	all = append(all, specs...)
	return NewPatternLibrary(all)
}

// Specs returns a copy of the rule specs in evaluation order.
func (l *PatternLibrary) Specs() []RuleSpec {
	out := make([]RuleSpec, 0, len(l.rules))
	for _, r := range l.rules {
		out = append(out, r.spec.clone())
	}
	return out
}

// ValidateRuleSpec checks a spec without keeping the compiled result.
func ValidateRuleSpec(spec RuleSpec) error {
	_, err := compileRule(spec)
	return err
}

func compileRule(spec RuleSpec) (compiledRule, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return compiledRule{}, fmt.Errorf("rule name is empty")
	}
	if spec.Category.rank() < 0 {
		return compiledRule{}, fmt.Errorf("rule %q: unsupported category %q", spec.Name, spec.Category)
	}
	for _, f := range spec.Fields {
		if f.rank() < 0 {
			return compiledRule{}, fmt.Errorf("rule %q: unsupported field %q", spec.Name, f)
		}
	}
	terms := make([]string, 0, len(spec.Terms))
	for _, t := range spec.Terms {
		if strings.TrimSpace(t) != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return compiledRule{}, fmt.Errorf("rule %q: no terms", spec.Name)
	}

	var expr string
	switch spec.Kind {
	case MatchRegexp:
		parts := make([]string, len(terms))
		for i, t := range terms {
			if _, err := regexp.Compile(t); err != nil {
				return compiledRule{}, fmt.Errorf("rule %q: invalid pattern %q: %w", spec.Name, t, err)
			}
			parts[i] = "(?:" + t + ")"
		}
		expr = strings.Join(parts, "|")
	case MatchKeyword:
		expr = `(?i)\b(?:` + inflections(terms) + `)\b`
	case MatchToken:
		expr = `(?i)(?:^|[^a-z0-9])(` + alternation(terms) + `)(?:[^a-z0-9]|$)`
	case MatchSubstring:
		expr = `(?i)(` + alternation(terms) + `)`
	default:
		return compiledRule{}, fmt.Errorf("rule %q: unsupported match kind %q", spec.Name, spec.Kind)
	}

	pattern, err := regexp.Compile(expr)
	if err != nil {
		return compiledRule{}, fmt.Errorf("rule %q: %w", spec.Name, err)
	}
	return compiledRule{spec: spec.clone(), pattern: pattern}, nil
}

// alternation quotes terms and lets any run of spaces inside a term match any whitespace.
func alternation(terms []string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		words := strings.Fields(t)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		parts[i] = strings.Join(words, `\s+`)
	}
	return strings.Join(parts, "|")
}

// inflections captures each term in its own group, followed by an optional
// inflection. Terms ending in a consonant also accept the doubled consonant
// before -ed and -ing (dropped, getting).
func inflections(terms []string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		suffix := `s|es|ed|d|ing`
		if c, ok := doublingConsonant(t); ok {
			suffix += `|` + c + `(?:ed|ing)`
		}
		parts[i] = `(` + alternation([]string{t}) + `)(?:` + suffix + `)?`
	}
	return strings.Join(parts, "|")
}

// doublingConsonant returns the final letter of term when it is a consonant
// that English doubles before a vowel suffix.
func doublingConsonant(term string) (string, bool) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return "", false
	}
	last := term[len(term)-1:]
	if strings.Contains("bdgklmnprtz", last) {
		return last, true
	}
	return "", false
}

var (
	operationFields = []Field{FieldDescription, FieldAutomationDetails}
	systemFields    = []Field{FieldTool, FieldDatabases, FieldCompanyResources}
)

// DefaultRuleSpecs returns the built-in detection rules.
func DefaultRuleSpecs() []RuleSpec {
	specs := []RuleSpec{
		{Name: "pii-ssn", Category: CategoryPIISSN, Kind: MatchRegexp,
			Terms: []string{`\b\d{3}-?\d{2}-?\d{4}\b`}},
		{Name: "pii-credit-card", Category: CategoryPIICreditCard, Kind: MatchRegexp,
			Terms: []string{`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`}},
		{Name: "pii-email", Category: CategoryPIIEmail, Kind: MatchRegexp,
			Terms: []string{`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`}},
		{Name: "pii-phone", Category: CategoryPIIPhone, Kind: MatchRegexp,
			Terms: []string{`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`}},

		{Name: "keywords-personal", Category: CategorySensitiveKeyword, Kind: MatchKeyword,
			Terms: []string{"ssn", "social security", "driver license", "drivers license", "passport", "date of birth", "personal data", "personal information"}},
		{Name: "keywords-medical", Category: CategorySensitiveKeyword, Kind: MatchKeyword,
			Terms: []string{"medical", "health record", "health data", "patient", "diagnosis", "diagnoses", "treatment", "prescription"}},
		{Name: "keywords-authentication", Category: CategorySensitiveKeyword, Kind: MatchKeyword,
			Terms: []string{"password", "passwd", "credential", "secret", "api key", "access token", "private key"}},
		{Name: "keywords-financial", Category: CategorySensitiveKeyword, Kind: MatchKeyword,
			Terms: []string{"credit card", "debit card", "card number", "bank account", "account number", "routing number", "cvv"}},

		{Name: "db-read", Category: CategoryDBRead, Kind: MatchKeyword, Fields: operationFields,
			Terms: []string{"select", "query", "queries", "queried", "fetch", "retrieve", "retrieving", "get", "getting", "read", "list", "lookup", "look up", "export"}},
		{Name: "db-write", Category: CategoryDBWrite, Kind: MatchKeyword, Fields: operationFields,
			Terms: []string{"insert", "update", "updating", "create", "creating", "modify", "modifies", "modified", "modifying", "write", "writing", "written", "wrote", "upsert", "patch"}},
		{Name: "db-admin", Category: CategoryDBAdmin, Kind: MatchKeyword, Fields: operationFields,
			Terms: []string{"delete", "deleting", "drop", "dropping", "truncate", "truncating", "alter", "grant", "revoke", "revoking", "purge", "purging", "admin", "administer"}},

		{Name: "system-production", Category: CategoryProductionSystem, Kind: MatchToken, Fields: systemFields,
			Terms: []string{"prod", "production", "prd", "live"}},
		{Name: "system-payment", Category: CategoryPaymentProcessing, Kind: MatchSubstring, Fields: systemFields,
			Terms: []string{"fiserv", "payment", "stripe", "paypal", "adyen", "braintree", "cardholder"}},
		{Name: "system-financial", Category: CategoryFinancialData, Kind: MatchSubstring, Fields: systemFields,
			Terms: []string{"financial", "finance", "accounting", "ledger", "billing", "invoice", "revenue"}},
	}
	for i := range specs {
		specs[i] = specs[i].clone()
	}
	return specs
}
