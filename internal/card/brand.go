// Package card normalizes and validates payment card input. Every function is
// pure; callers pass the evaluation time where it matters.
package card

import (
	"regexp"
	"strings"
)

// Brand is the card network inferred from a number's prefix.
type Brand string

const (
	BrandVisa       Brand = "visa"
	BrandMastercard Brand = "mastercard"
	BrandAmex       Brand = "amex"
	BrandDiscover   Brand = "discover"
	BrandDiners     Brand = "diners"
	BrandJCB        Brand = "jcb"
	BrandUnionPay   Brand = "unionpay"
	BrandUnknown    Brand = "unknown"
)

type brandPattern struct {
	brand   Brand
	pattern *regexp.Regexp
}

// brandPatterns are evaluated in order; the first match wins. Discover precedes
// UnionPay, so every 62 prefix resolves to discover.
var brandPatterns = []brandPattern{
	{BrandVisa, regexp.MustCompile(`^4`)},
	{BrandMastercard, regexp.MustCompile(`^(5[1-5]|2[2-7])`)},
	{BrandAmex, regexp.MustCompile(`^3[47]`)},
	{BrandDiscover, regexp.MustCompile(`^6`)},
	{BrandDiners, regexp.MustCompile(`^3[0689]`)},
	{BrandJCB, regexp.MustCompile(`^35`)},
	{BrandUnionPay, regexp.MustCompile(`^62`)},
}

// DetectBrand returns the brand of a possibly partial, possibly formatted number.
func DetectBrand(number string) Brand {
	digits := StripNonDigits(number)
	if digits == "" {
		return BrandUnknown
	}
	for _, p := range brandPatterns {
		if p.pattern.MatchString(digits) {
			return p.brand
		}
	}
	return BrandUnknown
}

// CVVLength is the required security code length for a brand.
func (b Brand) CVVLength() int {
	if b == BrandAmex {
		return 4
	}
	return 3
}

// MaxDigits is the longest number the input mask accepts for a brand.
func (b Brand) MaxDigits() int {
	switch b {
	case BrandAmex:
		return 15
	case BrandDiners:
		return 14
	default:
		return 19
	}
}

// StripNonDigits removes everything except ASCII digits.
func StripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
