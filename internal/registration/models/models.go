package models

// ClientCategory classifies an investor for regulatory protections.
type ClientCategory string

const (
	ClientCategoryRetail       ClientCategory = "retail"
	ClientCategoryProfessional ClientCategory = "professional"
)

// IsValid reports whether c is a known category.
func (c ClientCategory) IsValid() bool {
	return c == ClientCategoryRetail || c == ClientCategoryProfessional
}

// DocumentType is the identity document used at verification.
type DocumentType string

const (
	DocumentTypeNationalID DocumentType = "national_id"
	DocumentTypePassport   DocumentType = "passport"
)

// Investor is one client captured at the investors step. Professional investors
// only need a category; retail investors carry full identity, contact and
// financial disclosure.
type Investor struct {
	ClientCategory     ClientCategory `json:"client_category"`
	FullName           string         `json:"full_name,omitempty"`
	Email              string         `json:"email,omitempty"`
	Phone              string         `json:"phone,omitempty"`
	PassportNumber     string         `json:"passport_number,omitempty"`
	Address            string         `json:"address,omitempty"`
	CountryOfResidence string         `json:"country_of_residence,omitempty"`
	InvestorID         string         `json:"investor_id,omitempty"`
	BriefExplanation   string         `json:"brief_explanation,omitempty"`
	Balance            string         `json:"balance,omitempty"`
	FirstDeposit       string         `json:"first_deposit,omitempty"`
}

// Verification is the identity document captured before submission.
type Verification struct {
	DocumentType   DocumentType `json:"document_type"`
	DocumentNumber string       `json:"document_number"`
}

// Record accumulates registration data step by step. It is snapshotted into a
// document record on submission and never mutated afterwards.
type Record struct {
	BrokerID          string        `json:"broker_id,omitempty"`
	RequestTypeID     string        `json:"request_type_id,omitempty"`
	NumberOfInvestors int           `json:"number_of_investors,omitempty"`
	Investors         []Investor    `json:"investors,omitempty"`
	Verification      *Verification `json:"verification,omitempty"`
}

// InvestorCount is the number of investors billed, never less than one.
func (r Record) InvestorCount() int {
	if r.NumberOfInvestors < 1 {
		return 1
	}
	return r.NumberOfInvestors
}

// RequiresCategorization reports whether the selected request type collects investors.
func (r Record) RequiresCategorization() bool {
	rt, ok := FindRequestType(r.RequestTypeID)
	return ok && rt.RequiresCategorization
}

// Clone returns a deep copy safe to hand to another goroutine or store.
func (r Record) Clone() Record {
	out := r
	if r.Investors != nil {
		out.Investors = append([]Investor(nil), r.Investors...)
	}
	if r.Verification != nil {
		v := *r.Verification
		out.Verification = &v
	}
	return out
}

// ResizeInvestors sets the investor count, keeping entries already captured and
// padding with blank retail investors.
func (r *Record) ResizeInvestors(n int) {
	investors := make([]Investor, n)
	copy(investors, r.Investors)
	for i := len(r.Investors); i < n; i++ {
		investors[i] = Investor{ClientCategory: ClientCategoryRetail}
	}
	r.Investors = investors
	r.NumberOfInvestors = n
}
