package card

import "strings"

var (
	defaultGroups = []int{4, 4, 4, 4}
	amexGroups    = []int{4, 6, 5}
	dinersGroups  = []int{4, 6, 4}
)

func groupsFor(b Brand) []int {
	switch b {
	case BrandAmex:
		return amexGroups
	case BrandDiners:
		return dinersGroups
	default:
		return defaultGroups
	}
}

// FormatNumber groups the digits of number for display. Fewer than four digits
// are returned bare; digits past the brand's pattern extend the last group.
// FormatNumber(FormatNumber(s)) == FormatNumber(s) for every s.
func FormatNumber(number string) string {
	digits := StripNonDigits(number)
	if len(digits) < 4 {
		return digits
	}
	groups := groupsFor(DetectBrand(digits))

	parts := make([]string, 0, len(groups))
	rest := digits
	for i, size := range groups {
		if rest == "" {
			break
		}
		if i == len(groups)-1 || len(rest) <= size {
			parts = append(parts, rest)
			rest = ""
			break
		}
		parts = append(parts, rest[:size])
		rest = rest[size:]
	}
	return strings.Join(parts, " ")
}

// FormatExpiry renders raw expiry digits as MM/YY once two digits are present.
// Digits beyond the fourth are dropped.
func FormatExpiry(expiry string) string {
	digits := StripNonDigits(expiry)
	if len(digits) > 4 {
		digits = digits[:4]
	}
	if len(digits) < 2 {
		return digits
	}
	return digits[:2] + "/" + digits[2:]
}

// Mask hides all but the last four digits, e.g. "**** **** **** 1234".
func Mask(number string) string {
	digits := StripNonDigits(number)
	if len(digits) < 4 {
		return "****"
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

// Last4 returns the final four digits, or all digits when shorter.
func Last4(number string) string {
	digits := StripNonDigits(number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// SanitizeCVV keeps digits only and truncates to the brand's CVV length.
func SanitizeCVV(cvv string, brand Brand) string {
	digits := StripNonDigits(cvv)
	if n := brand.CVVLength(); len(digits) > n {
		digits = digits[:n]
	}
	return digits
}
