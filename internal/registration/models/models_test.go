package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retailInvestor() Investor {
	return Investor{
		ClientCategory:     ClientCategoryRetail,
		FullName:           "Omar Saeed",
		Email:              "omar@example.ae",
		Phone:              "+971501234567",
		PassportNumber:     "P1234567",
		Address:            "Downtown, Dubai",
		CountryOfResidence: "AE",
		InvestorID:         "INV-1",
		BriefExplanation:   "Long term equity",
		Balance:            "250000",
		FirstDeposit:       "50000",
	}
}

func TestValidateBrokerSelection(t *testing.T) {
	assert.Nil(t, ValidateBrokerSelection("ib", RequestTypeCategorizeClients))

	errs := ValidateBrokerSelection("", "")
	require.Len(t, errs, 2)
	assert.Equal(t, "Please select a broker", errs["brokerId"])

	errs = ValidateBrokerSelection("nope", "register_new")
	assert.Equal(t, "Unknown broker", errs["brokerId"])
}

func TestValidateInvestor(t *testing.T) {
	t.Run("complete retail investor is valid", func(t *testing.T) {
		assert.Nil(t, ValidateInvestor(retailInvestor()))
	})

	t.Run("professional investor only needs a category", func(t *testing.T) {
		assert.Nil(t, ValidateInvestor(Investor{ClientCategory: ClientCategoryProfessional}))
	})

	t.Run("retail investor reports each missing field", func(t *testing.T) {
		errs := ValidateInvestor(Investor{ClientCategory: ClientCategoryRetail})
		assert.Len(t, errs, 10)
		assert.Equal(t, "Email is required", errs["email"])
	})

	t.Run("malformed email", func(t *testing.T) {
		inv := retailInvestor()
		inv.Email = "omar at example"
		errs := ValidateInvestor(inv)
		assert.Equal(t, "Please enter a valid email address", errs["email"])
	})

	t.Run("missing category", func(t *testing.T) {
		errs := ValidateInvestor(Investor{})
		assert.Equal(t, map[string]string{"clientCategory": "Please select a client category"}, errs.FieldMessages())
	})
}

func TestValidateVerification(t *testing.T) {
	cases := []struct {
		name  string
		v     Verification
		valid bool
	}{
		{"national id with dashes", Verification{DocumentTypeNationalID, "784-1990-1234567-1"}, true},
		{"national id with spaces", Verification{DocumentTypeNationalID, "784 1990 1234567 1"}, true},
		{"national id too short", Verification{DocumentTypeNationalID, "784-1990-123"}, false},
		{"national id with letters", Verification{DocumentTypeNationalID, "784A99012345671"}, false},
		{"passport lower case", Verification{DocumentTypePassport, "ab12345"}, true},
		{"passport too long", Verification{DocumentTypePassport, "AB12345678"}, false},
		{"passport symbols", Verification{DocumentTypePassport, "AB-1234"}, false},
		{"empty number", Verification{DocumentTypePassport, " "}, false},
		{"unknown type", Verification{"driving_license", "123456"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := ValidateVerification(tc.v)
			if tc.valid {
				assert.Nil(t, errs)
			} else {
				assert.NotEmpty(t, errs)
			}
		})
	}
}

func TestFormatNationalID(t *testing.T) {
	assert.Equal(t, "784-1990-1234567-1", FormatNationalID("784199012345671"))
	assert.Equal(t, "784-19", FormatNationalID("78419"))
	assert.Equal(t, "784199012345671", NormalizeVerification(Verification{DocumentTypeNationalID, " 784-1990-1234567-1 "}).DocumentNumber)
	assert.Equal(t, "AB12345", NormalizeVerification(Verification{DocumentTypePassport, "ab12345"}).DocumentNumber)
}

func TestRecord(t *testing.T) {
	t.Run("categorization follows the request type", func(t *testing.T) {
		assert.True(t, Record{RequestTypeID: RequestTypeCategorizeClients}.RequiresCategorization())
		assert.False(t, Record{RequestTypeID: "renew_license"}.RequiresCategorization())
		assert.False(t, Record{}.RequiresCategorization())
	})

	t.Run("resize keeps captured investors", func(t *testing.T) {
		r := Record{}
		r.ResizeInvestors(2)
		r.Investors[0] = retailInvestor()
		r.ResizeInvestors(3)
		assert.Equal(t, 3, r.NumberOfInvestors)
		assert.Equal(t, "Omar Saeed", r.Investors[0].FullName)
		assert.Equal(t, ClientCategoryRetail, r.Investors[2].ClientCategory)
		r.ResizeInvestors(1)
		assert.Len(t, r.Investors, 1)
	})

	t.Run("clone does not share investors", func(t *testing.T) {
		r := Record{Investors: []Investor{retailInvestor()}, Verification: &Verification{DocumentTypePassport, "AB12345"}}
		c := r.Clone()
		c.Investors[0].FullName = "changed"
		c.Verification.DocumentNumber = "changed"
		assert.Equal(t, "Omar Saeed", r.Investors[0].FullName)
		assert.Equal(t, "AB12345", r.Verification.DocumentNumber)
	})

	t.Run("investor count defaults to one", func(t *testing.T) {
		assert.Equal(t, 1, Record{}.InvestorCount())
		assert.Equal(t, 4, Record{NumberOfInvestors: 4}.InvestorCount())
	})

	t.Run("catalog lookups", func(t *testing.T) {
		assert.Len(t, Brokers(), 10)
		assert.Len(t, RequestTypes(), 8)
		b, ok := FindBroker("fal_securities")
		require.True(t, ok)
		assert.Equal(t, RegulatorCEC, b.Regulator)
	})
}
