package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/kostra/pkg/kostra"
)

// RuleSpec describes the format of one column's codes.
type RuleSpec struct {
	Column string `yaml:"column" json:"column"`
	// Scope limits the rule to matching values; empty means every value.
	Scope string `yaml:"scope,omitempty" json:"scope,omitempty"`
	Regex string `yaml:"regex" json:"regex"`
	// Validator names an extra check run after Regex matches.
	Validator string `yaml:"validator,omitempty" json:"validator,omitempty"`
	Message   string `yaml:"message,omitempty" json:"message,omitempty"`
}

// DefaultRules are the fixed-width rules for periode and the region columns.
// Region values that are not all digits (EAK, EKA03, ...) are out of scope.
var DefaultRules = []RuleSpec{
	{Column: kostra.Periode, Regex: `^\d{4}$`, Message: "periode is not four digits"},
	{Column: kostra.Kommuneregion, Scope: `^\d+$`, Regex: `^\d{4}$`, Message: "kommuneregion is not four digits"},
	{Column: kostra.Fylkesregion, Scope: `^\d+$`, Regex: `^\d{4}$`, Message: "fylkesregion is not four digits"},
	{Column: kostra.Bydelsregion, Scope: `^\d+$`, Regex: `^\d{6}$`, Validator: "oslo_borough",
		Message: "bydelsregion must be 6-digit numeric in 030101-039999"},
}

// formatRule is one compiled RuleSpec.
type formatRule struct {
	column    string
	scope     *regexp.Regexp
	re        *regexp.Regexp
	validator func(string) bool
	message   string
}

func compileRules(specs []RuleSpec) (map[string]formatRule, error) {
	out := make(map[string]formatRule, len(specs))
	for _, spec := range specs {
		re, err := regexp.Compile(spec.Regex)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", spec.Column, err)
		}
		r := formatRule{column: spec.Column, re: re, message: spec.Message}
		if spec.Scope != "" {
			if r.scope, err = regexp.Compile(spec.Scope); err != nil {
				return nil, fmt.Errorf("rule %q scope: %w", spec.Column, err)
			}
		}
		switch spec.Validator {
		case "":
		case "oslo_borough":
			r.validator = validateOsloBorough
		default:
			return nil, fmt.Errorf("rule %q: unknown validator %q", spec.Column, spec.Validator)
		}
		if r.message == "" {
			r.message = fmt.Sprintf("%s does not match %s", spec.Column, spec.Regex)
		}
		out[spec.Column] = r
	}
	return out, nil
}

// applies reports whether the rule has an opinion on v.
func (r formatRule) applies(v string) bool {
	return r.scope == nil || r.scope.MatchString(v)
}

func (r formatRule) valid(v string) bool {
	if !r.re.MatchString(v) {
		return false
	}
	return r.validator == nil || r.validator(v)
}

// validateOsloBorough accepts borough numbers 030101 through 039999.
func validateOsloBorough(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 30101 && n <= 39999
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// naTokens are the spellings of a missing value, compared after trimming
// leading zeros and lower-casing.
var naTokens = map[string]bool{
	"nan": true, "<na>": true, "none": true, "nul": true, "null": true,
	"na": true, "n/a": true, "": true,
}

// paddedTokens is naTokens without "n/a"; used by the format checks.
var paddedTokens = map[string]bool{
	"nan": true, "<na>": true, "none": true, "nul": true, "null": true,
	"na": true, "": true,
}

func core(s string) string {
	return strings.ToLower(strings.TrimLeft(s, "0"))
}

func allZeros(s string) bool {
	return s != "" && strings.Trim(s, "0") == ""
}
