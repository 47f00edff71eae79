package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Rule names a single password policy requirement.
type Rule string

// Password rules, reported in this order.
const (
	RuleMinLength Rule = "min_length"
	RuleMaxLength Rule = "max_length"
	RuleUppercase Rule = "uppercase"
	RuleLowercase Rule = "lowercase"
	RuleDigit     Rule = "digit"
	RuleSymbol    Rule = "symbol"
)

// defaultMaxPasswordLength bounds hashing cost for hostile input.
const defaultMaxPasswordLength = 128

// PasswordPolicy validates plaintext secrets before they are hashed.
// The zero value only enforces the maximum length; use DefaultPasswordPolicy
// for the strict variant.
type PasswordPolicy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPasswordPolicy requires 8 characters with an uppercase letter, a
// lowercase letter, a digit and a symbol.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:     8, //nolint:mnd // policy default
		MaxLength:     defaultMaxPasswordLength,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	}
}

// ValidationResult lists every rule a password failed. An empty list means
// the password is acceptable.
type ValidationResult struct {
	Failed []Rule
}

// OK reports whether no rule failed.
func (r ValidationResult) OK() bool {
	return len(r.Failed) == 0
}

// Err returns a *PolicyError when any rule failed, nil otherwise.
func (r ValidationResult) Err(p PasswordPolicy) error {
	if r.OK() {
		return nil
	}
	return &PolicyError{Failed: r.Failed, Messages: r.Messages(p)}
}

// Messages returns one human-readable message per failed rule.
func (r ValidationResult) Messages(p PasswordPolicy) []string {
	msgs := make([]string, 0, len(r.Failed))
	for _, rule := range r.Failed {
		msgs = append(msgs, p.describe(rule))
	}
	return msgs
}

// PolicyError is returned when a password fails the policy. It wraps
// ErrValidation.
type PolicyError struct {
	Failed   []Rule
	Messages []string
}

func (e *PolicyError) Error() string {
	return "password does not meet requirements: " + strings.Join(e.Messages, "; ")
}

func (e *PolicyError) Unwrap() error {
	return ErrValidation
}

// NormalizePassword applies Unicode NFKC so visually identical passwords
// typed on different keyboards hash identically.
func NormalizePassword(plaintext string) string {
	return norm.NFKC.String(plaintext)
}

// Validate checks plaintext against the policy. Length is measured in runes
// after normalisation. It has no side effects.
func (p PasswordPolicy) Validate(plaintext string) ValidationResult {
	normalized := NormalizePassword(plaintext)
	length := utf8.RuneCountInString(normalized)

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range normalized {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || r == ' ':
			hasSymbol = true
		}
	}

	maxLen := p.MaxLength
	if maxLen <= 0 {
		maxLen = defaultMaxPasswordLength
	}

	var res ValidationResult
	if length < p.MinLength {
		res.Failed = append(res.Failed, RuleMinLength)
	}
	if length > maxLen {
		res.Failed = append(res.Failed, RuleMaxLength)
	}
	if p.RequireUpper && !hasUpper {
		res.Failed = append(res.Failed, RuleUppercase)
	}
	if p.RequireLower && !hasLower {
		res.Failed = append(res.Failed, RuleLowercase)
	}
	if p.RequireDigit && !hasDigit {
		res.Failed = append(res.Failed, RuleDigit)
	}
	if p.RequireSymbol && !hasSymbol {
		res.Failed = append(res.Failed, RuleSymbol)
	}
	return res
}

// Check is Validate followed by Err.
func (p PasswordPolicy) Check(plaintext string) error {
	return p.Validate(plaintext).Err(p)
}

func (p PasswordPolicy) describe(rule Rule) string {
	switch rule {
	case RuleMinLength:
		return fmt.Sprintf("must be at least %d characters", p.MinLength)
	case RuleMaxLength:
		maxLen := p.MaxLength
		if maxLen <= 0 {
			maxLen = defaultMaxPasswordLength
		}
		return fmt.Sprintf("must be at most %d characters", maxLen)
	case RuleUppercase:
		return "must contain an uppercase letter"
	case RuleLowercase:
		return "must contain a lowercase letter"
	case RuleDigit:
		return "must contain a digit"
	case RuleSymbol:
		return "must contain a symbol"
	default:
		return string(rule)
	}
}
