// Package phone validates and canonicalizes destination numbers into E.164
// form so every component compares destinations the same way.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidInternational = errors.New("invalid international format (use +{country code}{number})")
	ErrAmbiguous            = errors.New("ambiguous format (use +{country code}{number} for international numbers)")
	ErrInvalidFormat        = errors.New("invalid phone number format (use 10 digits or +{country code}{number})")
)

var (
	e164Re     = regexp.MustCompile(`^\+\d{1,3}\d{4,14}$`)
	tenDigitRe = regexp.MustCompile(`^\d{10}$`)
	digitsRe   = regexp.MustCompile(`^\d{11,}$`)
)

// Normalizer canonicalizes destinations. Service numbers (operator short
// codes) are accepted verbatim and never get a country prefix.
type Normalizer struct {
	DefaultPrefix  string
	ServiceNumbers []string
}

func NewNormalizer(defaultPrefix string, serviceNumbers []string) *Normalizer {
	return &Normalizer{
		DefaultPrefix:  defaultPrefix,
		ServiceNumbers: serviceNumbers,
	}
}

// ValidateAndNormalize returns the canonical form of raw, or an error when the
// input cannot be safely interpreted. Rules, in order: exact service-number
// match is kept as-is; "+" numbers must be valid E.164; bare 10-digit numbers
// get the default country prefix; 11+ digits without "+" are ambiguous.
func (n *Normalizer) ValidateAndNormalize(raw string) (string, error) {
	for _, svc := range n.ServiceNumbers {
		if raw == svc {
			return raw, nil
		}
	}

	clean := strings.NewReplacer(" ", "", "-", "").Replace(raw)

	if strings.HasPrefix(clean, "+") {
		if e164Re.MatchString(clean) {
			return clean, nil
		}
		return "", ErrInvalidInternational
	}

	if tenDigitRe.MatchString(clean) {
		return n.DefaultPrefix + clean, nil
	}

	if digitsRe.MatchString(clean) {
		return "", ErrAmbiguous
	}

	return "", ErrInvalidFormat
}

// Normalize is the best-effort variant used for comparisons only: on
// validation failure it returns raw unchanged, never for outbound sends.
func (n *Normalizer) Normalize(raw string) string {
	canonical, err := n.ValidateAndNormalize(raw)
	if err != nil {
		return raw
	}
	return canonical
}

// Match reports whether two destinations are the same number once normalized.
func (n *Normalizer) Match(a, b string) bool {
	return n.Normalize(a) == n.Normalize(b)
}
