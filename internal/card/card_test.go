package card

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regflow/pkg/testutil"
)

func TestLuhn(t *testing.T) {
	assert.True(t, ValidNumber("4539 1488 0343 6467"))
	assert.False(t, ValidNumber("4539 1488 0343 6468"))

	t.Run("length bounds", func(t *testing.T) {
		assert.False(t, ValidNumber("42"), "too short")
		assert.False(t, ValidNumber(strings.Repeat("0", 20)), "too long")
		assert.True(t, ValidNumber("30569309025904"), "14 digit diners")
		assert.True(t, ValidNumber("378282246310005"), "15 digit amex")
	})

	t.Run("non digits fail", func(t *testing.T) {
		assert.False(t, ValidNumber("4539-1488-0343-6467"))
		assert.False(t, Luhn(""))
	})
}

func TestDetectBrand(t *testing.T) {
	cases := []struct {
		input string
		want  Brand
	}{
		{"4", BrandVisa},
		{"4111 1111 1111 1111", BrandVisa},
		{"51", BrandMastercard},
		{"55", BrandMastercard},
		{"22", BrandMastercard},
		{"27", BrandMastercard},
		{"34", BrandAmex},
		{"37", BrandAmex},
		{"6", BrandDiscover},
		{"6011", BrandDiscover},
		{"62", BrandDiscover},
		{"6200 0000 0000 0005", BrandDiscover},
		{"30", BrandDiners},
		{"36", BrandDiners},
		{"38", BrandDiners},
		{"39", BrandDiners},
		{"35", BrandJCB},
		{"3530 1113 3330 0000", BrandJCB},
		{"", BrandUnknown},
		{"5", BrandUnknown},
		{"2", BrandUnknown},
		{"3", BrandUnknown},
		{"56", BrandUnknown},
		{"21", BrandUnknown},
		{"1234", BrandUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectBrand(tc.input))
		})
	}

	t.Run("detection is stable as digits are typed", func(t *testing.T) {
		number := "378282246310005"
		for i := 2; i <= len(number); i++ {
			assert.Equal(t, BrandAmex, DetectBrand(number[:i]), "prefix %q", number[:i])
		}
	})
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "4111 1111 1111 1111", FormatNumber("4111111111111111"))
	assert.Equal(t, "3782 822463 10005", FormatNumber("378282246310005"))
	assert.Equal(t, "3056 930902 5904", FormatNumber("30569309025904"))
	assert.Equal(t, "411", FormatNumber("411"))
	assert.Equal(t, "4111 11", FormatNumber("411111"))
	assert.Equal(t, "4111 1111 1111 1111123", FormatNumber("4111111111111111123"), "overflow joins the last group")
	assert.Equal(t, "4111 1111", FormatNumber("4111-1111"))
}

func TestFormatNumberIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 500; i++ {
		n := rng.IntN(22)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteByte(byte('0' + rng.IntN(10)))
		}
		s := b.String()
		formatted := FormatNumber(s)
		require.Equal(t, StripNonDigits(s), StripNonDigits(formatted), "strip(format(%q))", s)
		require.Equal(t, formatted, FormatNumber(formatted), "format(format(%q))", s)
	}
}

func TestFormatExpiry(t *testing.T) {
	assert.Equal(t, "", FormatExpiry(""))
	assert.Equal(t, "1", FormatExpiry("1"))
	assert.Equal(t, "12/", FormatExpiry("12"))
	assert.Equal(t, "12/2", FormatExpiry("122"))
	assert.Equal(t, "12/29", FormatExpiry("1229"))
	assert.Equal(t, "12/29", FormatExpiry("12/29"))
	assert.Equal(t, "12/29", FormatExpiry("122999"))
}

func TestExpiry(t *testing.T) {
	testutil.Given(t, "a present-day evaluation date", func(t *testing.T) {
		now := time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)

		testutil.Then(t, "December 1999 is expired", func(t *testing.T) {
			assert.False(t, ValidExpiry("1299", now))
			assert.False(t, ValidExpiry("12/99", now))
		})
		testutil.Then(t, "years beyond the twenty year window are read as last century", func(t *testing.T) {
			assert.False(t, ValidExpiry("0150", now))
			assert.True(t, ValidExpiry("1246", now))
		})
		testutil.Then(t, "the current month is still valid", func(t *testing.T) {
			assert.True(t, ValidExpiry("10/26", now))
		})
		testutil.Then(t, "last month is expired", func(t *testing.T) {
			assert.False(t, ValidExpiry("0926", now))
		})
		testutil.Then(t, "month out of range is rejected", func(t *testing.T) {
			assert.False(t, ValidExpiry("1330", now))
			assert.False(t, ValidExpiry("0030", now))
		})
		testutil.Then(t, "partial input is rejected", func(t *testing.T) {
			assert.False(t, ValidExpiry("12/", now))
		})
	})

	testutil.Given(t, "February 2030 expiry", func(t *testing.T) {
		testutil.Then(t, "it is valid through February 2030", func(t *testing.T) {
			assert.True(t, ValidExpiry("0230", time.Date(2030, time.February, 28, 0, 0, 0, 0, time.UTC)))
		})
		testutil.Then(t, "it is invalid from March 2030", func(t *testing.T) {
			assert.False(t, ValidExpiry("0230", time.Date(2030, time.March, 1, 0, 0, 0, 0, time.UTC)))
		})
	})
}

func TestCVVAndName(t *testing.T) {
	assert.True(t, ValidCVV("1234", BrandAmex))
	assert.False(t, ValidCVV("123", BrandAmex))
	assert.True(t, ValidCVV("123", BrandVisa))
	assert.False(t, ValidCVV("1234", BrandVisa))
	assert.Equal(t, "123", SanitizeCVV("12a34", BrandVisa))

	assert.True(t, ValidHolderName("Jo Doe"))
	assert.False(t, ValidHolderName(" J "))
	assert.False(t, ValidHolderName("J0hn"))
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)
	valid := Details{
		Number:   "4539 1488 0343 6467",
		Name:     "Amina Khalid",
		Expiry:   "08/29",
		CVV:      "123",
		FullName: "Amina Khalid",
		Email:    "amina@example.ae",
		Phone:    "+971 50 123 4567",
	}

	t.Run("accepts a complete entry", func(t *testing.T) {
		assert.Nil(t, Validate(valid, now))
	})

	t.Run("reports card and contact fields together", func(t *testing.T) {
		bad := valid
		bad.Number = "4539 1488 0343 6468"
		bad.CVV = "1234"
		bad.Email = "amina@"
		bad.Phone = "12345"
		errs := Validate(bad, now)
		require.NotNil(t, errs)
		assert.Contains(t, errs, FieldNumber)
		assert.Contains(t, errs, FieldCVV)
		assert.Contains(t, errs, FieldEmail)
		assert.Contains(t, errs, FieldPhone)
		assert.NotContains(t, errs, FieldName)
		assert.Equal(t, "invalid fields: cvv, email, number, phone", errs.Error())
	})

	t.Run("missing contact fields are required errors", func(t *testing.T) {
		errs := ValidateContact(Details{})
		assert.Equal(t, "Full name is required", errs[FieldFullName])
		assert.Equal(t, "Email is required", errs[FieldEmail])
		assert.Equal(t, "Phone number is required", errs[FieldPhone])
	})
}

func TestMaskAndInspect(t *testing.T) {
	assert.Equal(t, "**** **** **** 6467", Mask("4539 1488 0343 6467"))
	assert.Equal(t, "6467", Last4("4539148803436467"))

	got := Inspect("37828224", "0829")
	assert.Equal(t, BrandAmex, got.Brand)
	assert.Equal(t, "3782 8224", got.FormattedNumber)
	assert.Equal(t, "08/29", got.FormattedExpiry)
	assert.Equal(t, 4, got.CVVLength)
}
