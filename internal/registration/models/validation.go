package models

import (
	"regexp"
	"strings"

	"regflow/internal/card"
)

const (
	MinInvestors = 1
	MaxInvestors = 50
)

var passportPattern = regexp.MustCompile(`^[A-Z0-9]{6,9}$`)

// ValidateBrokerSelection checks the broker step inputs against the catalog.
func ValidateBrokerSelection(brokerID, requestTypeID string) card.FieldErrors {
	errs := card.FieldErrors{}
	if strings.TrimSpace(brokerID) == "" {
		errs["brokerId"] = "Please select a broker"
	} else if _, ok := FindBroker(brokerID); !ok {
		errs["brokerId"] = "Unknown broker"
	}
	if strings.TrimSpace(requestTypeID) == "" {
		errs["requestType"] = "Please select a request type"
	} else if _, ok := FindRequestType(requestTypeID); !ok {
		errs["requestType"] = "Unknown request type"
	}
	return nilIfEmpty(errs)
}

// ValidateInvestorCount bounds the number of investors per request.
func ValidateInvestorCount(n int) card.FieldErrors {
	if n < MinInvestors || n > MaxInvestors {
		return card.FieldErrors{"numberOfInvestors": "Number of investors must be between 1 and 50"}
	}
	return nil
}

// ValidateInvestor applies the category-dependent rules to one investor.
func ValidateInvestor(inv Investor) card.FieldErrors {
	errs := card.FieldErrors{}
	if !inv.ClientCategory.IsValid() {
		errs["clientCategory"] = "Please select a client category"
		return errs
	}
	if inv.ClientCategory == ClientCategoryProfessional {
		return nil
	}

	required := []struct {
		field card.Field
		value string
		msg   string
	}{
		{"fullName", inv.FullName, "Full name is required"},
		{"phone", inv.Phone, "Phone number is required"},
		{"passportNumber", inv.PassportNumber, "Passport number is required"},
		{"address", inv.Address, "Address is required"},
		{"countryOfResidence", inv.CountryOfResidence, "Country of residence is required"},
		{"investorId", inv.InvestorID, "Investor ID is required"},
		{"briefExplanation", inv.BriefExplanation, "Brief explanation is required"},
		{"balance", inv.Balance, "Balance is required"},
		{"firstDeposit", inv.FirstDeposit, "First deposit is required"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs[r.field] = r.msg
		}
	}
	switch {
	case strings.TrimSpace(inv.Email) == "":
		errs["email"] = "Email is required"
	case !card.ValidEmail(inv.Email):
		errs["email"] = "Please enter a valid email address"
	}
	return nilIfEmpty(errs)
}

// ValidateVerification checks the identity document number for its type.
func ValidateVerification(v Verification) card.FieldErrors {
	errs := card.FieldErrors{}
	number := strings.TrimSpace(v.DocumentNumber)
	switch v.DocumentType {
	case DocumentTypeNationalID:
		if number == "" {
			errs["documentNumber"] = "National ID number is required"
		} else if len(NormalizeNationalID(number)) != 15 || card.StripNonDigits(number) != NormalizeNationalID(number) {
			errs["documentNumber"] = "National ID must be 15 digits"
		}
	case DocumentTypePassport:
		if number == "" {
			errs["documentNumber"] = "Passport number is required"
		} else if !passportPattern.MatchString(strings.ToUpper(number)) {
			errs["documentNumber"] = "Passport number must be 6-9 letters or digits"
		}
	default:
		errs["documentType"] = "Please select a document type"
	}
	return nilIfEmpty(errs)
}

// NormalizeNationalID removes the spaces and dashes users type between groups.
func NormalizeNationalID(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// FormatNationalID renders a national ID as XXX-XXXX-XXXXXXX-X while typing.
func FormatNationalID(s string) string {
	digits := card.StripNonDigits(s)
	if len(digits) > 15 {
		digits = digits[:15]
	}
	var b strings.Builder
	for i := 0; i < len(digits); i++ {
		if i == 3 || i == 7 || i == 14 {
			b.WriteByte('-')
		}
		b.WriteByte(digits[i])
	}
	return b.String()
}

// NormalizeVerification upper-cases passports and strips national ID separators.
func NormalizeVerification(v Verification) Verification {
	switch v.DocumentType {
	case DocumentTypeNationalID:
		v.DocumentNumber = NormalizeNationalID(strings.TrimSpace(v.DocumentNumber))
	case DocumentTypePassport:
		v.DocumentNumber = strings.ToUpper(strings.TrimSpace(v.DocumentNumber))
	}
	return v
}

func nilIfEmpty(errs card.FieldErrors) card.FieldErrors {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
