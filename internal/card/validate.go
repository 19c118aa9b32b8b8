package card

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Field names a validated input. Card and contact fields share one taxonomy.
type Field string

const (
	FieldNumber   Field = "number"
	FieldName     Field = "name"
	FieldExpiry   Field = "expiry"
	FieldCVV      Field = "cvv"
	FieldFullName Field = "fullName"
	FieldEmail    Field = "email"
	FieldPhone    Field = "phone"
)

// FieldErrors maps each invalid field to a user-facing message. A nil or empty
// map means the input is acceptable.
type FieldErrors map[Field]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return "invalid fields: " + strings.Join(keys, ", ")
}

// FieldMessages exposes the errors keyed by plain strings for transports.
func (fe FieldErrors) FieldMessages() map[string]string {
	out := make(map[string]string, len(fe))
	for k, v := range fe {
		out[string(k)] = v
	}
	return out
}

// Details is the ephemeral card entry. It is never persisted.
type Details struct {
	Number   string `json:"number"`
	Name     string `json:"name"`
	Expiry   string `json:"expiry"`
	CVV      string `json:"cvv"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

var (
	holderNamePattern = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern      = regexp.MustCompile(`^\+?[\d\s\-()]{10,}$`)
)

// Luhn reports whether digits passes the mod-10 checksum. Non-digit input fails.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ValidNumber accepts 13 to 19 digits (spaces allowed) passing Luhn.
func ValidNumber(number string) bool {
	digits := strings.ReplaceAll(number, " ", "")
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	return Luhn(digits)
}

// ValidHolderName requires two or more characters of letters and spaces.
func ValidHolderName(name string) bool {
	name = strings.TrimSpace(name)
	return len(name) >= 2 && holderNamePattern.MatchString(name)
}

// expiryWindowYears bounds how far ahead a two-digit year may land before it
// is read as the previous century.
const expiryWindowYears = 20

// ValidExpiry accepts MMYY (formatted or not) that is not before now's month.
func ValidExpiry(expiry string, now time.Time) bool {
	digits := StripNonDigits(expiry)
	if len(digits) != 4 {
		return false
	}
	month := int(digits[0]-'0')*10 + int(digits[1]-'0')
	if month < 1 || month > 12 {
		return false
	}
	curYear, curMonth := now.Year(), int(now.Month())
	year := expiryYear(int(digits[2]-'0')*10+int(digits[3]-'0'), curYear)
	if year < curYear {
		return false
	}
	return !(year == curYear && month < curMonth)
}

// expiryYear places yy in now's century, or the one before when that would
// put it more than expiryWindowYears ahead.
func expiryYear(yy, curYear int) int {
	year := curYear - curYear%100 + yy
	if year > curYear+expiryWindowYears {
		year -= 100
	}
	return year
}

// ValidCVV requires exactly four digits for amex and three otherwise.
func ValidCVV(cvv string, brand Brand) bool {
	digits := StripNonDigits(cvv)
	return len(digits) == brand.CVVLength()
}

// ValidEmail applies the loose local@domain.tld shape check.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// ValidPhone accepts an optional leading plus and ten or more digits,
// spaces, dashes or parentheses.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(strings.TrimSpace(phone))
}

// ValidateCard checks the card fields of d.
func ValidateCard(d Details, now time.Time) FieldErrors {
	errs := FieldErrors{}
	if !ValidNumber(d.Number) {
		errs[FieldNumber] = "Please enter a valid card number"
	}
	if !ValidHolderName(d.Name) {
		errs[FieldName] = "Please enter a valid cardholder name"
	}
	if !ValidExpiry(d.Expiry, now) {
		errs[FieldExpiry] = "Please enter a valid expiry date"
	}
	if !ValidCVV(d.CVV, DetectBrand(d.Number)) {
		errs[FieldCVV] = "Please enter a valid CVV"
	}
	return errs
}

// ValidateContact checks the contact fields collected alongside the card.
func ValidateContact(d Details) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(d.FullName) == "" {
		errs[FieldFullName] = "Full name is required"
	}
	switch {
	case strings.TrimSpace(d.Email) == "":
		errs[FieldEmail] = "Email is required"
	case !ValidEmail(d.Email):
		errs[FieldEmail] = "Please enter a valid email address"
	}
	switch {
	case strings.TrimSpace(d.Phone) == "":
		errs[FieldPhone] = "Phone number is required"
	case !ValidPhone(d.Phone):
		errs[FieldPhone] = "Please enter a valid phone number"
	}
	return errs
}

// Validate runs card and contact checks together. It returns nil when d is acceptable.
func Validate(d Details, now time.Time) FieldErrors {
	errs := ValidateCard(d, now)
	for k, v := range ValidateContact(d) {
		errs[k] = v
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Inspection is the live feedback for a partially typed card.
type Inspection struct {
	Brand           Brand  `json:"brand"`
	FormattedNumber string `json:"formatted_number"`
	FormattedExpiry string `json:"formatted_expiry"`
	CVVLength       int    `json:"cvv_length"`
}

// Inspect derives brand and display formatting from raw keystroke input.
func Inspect(number, expiry string) Inspection {
	brand := DetectBrand(number)
	return Inspection{
		Brand:           brand,
		FormattedNumber: FormatNumber(number),
		FormattedExpiry: FormatExpiry(expiry),
		CVVLength:       brand.CVVLength(),
	}
}
