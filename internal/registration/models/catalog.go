package models

// Regulator is the authority a broker is licensed by.
type Regulator string

const (
	RegulatorSINRAC Regulator = "SINRAC"
	RegulatorCEC    Regulator = "CEC"
)

// Broker is a selectable licensed intermediary.
type Broker struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Regulator Regulator `json:"regulator"`
}

// RequestType is a kind of regulatory request a broker can file.
type RequestType struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Description            string `json:"description"`
	RequiresCategorization bool   `json:"requires_categorization"`
}

const RequestTypeCategorizeClients = "categorize_clients"

var brokers = []Broker{
	{ID: "ib", Name: "Interactive Brokers", Regulator: RegulatorSINRAC},
	{ID: "emirates_nbd", Name: "Emirates NBD Securities", Regulator: RegulatorSINRAC},
	{ID: "adcb_securities", Name: "ADCB Securities", Regulator: RegulatorSINRAC},
	{ID: "fal_securities", Name: "FAL Securities", Regulator: RegulatorCEC},
	{ID: "arqaam_capital", Name: "Arqaam Capital", Regulator: RegulatorCEC},
	{ID: "shuaa_capital", Name: "Shuaa Capital", Regulator: RegulatorCEC},
	{ID: "menacorp", Name: "Menacorp", Regulator: RegulatorSINRAC},
	{ID: "al_ramz_securities", Name: "Al Ramz Securities", Regulator: RegulatorCEC},
	{ID: "mashreq_securities", Name: "Mashreq Securities", Regulator: RegulatorSINRAC},
	{ID: "nbad_securities", Name: "NBAD Securities", Regulator: RegulatorSINRAC},
}

var requestTypes = []RequestType{
	{ID: "register_new", Name: "Register New Investor", Description: "Register a new investor profile"},
	{ID: "renew_license", Name: "Renew License", Description: "Renew existing investment license"},
	{ID: "suspend_license", Name: "Suspend License", Description: "Temporarily suspend investment license"},
	{ID: "request_info", Name: "Request Account Information", Description: "Request detailed account information"},
	{ID: RequestTypeCategorizeClients, Name: "Categorize Clients", Description: "Categorize clients as retail or professional investors", RequiresCategorization: true},
	{ID: "fund_raising_permission", Name: "Request Fund Raising Permission", Description: "Request permission for fund raising activities"},
	{ID: "hedge_fund_registration", Name: "Hedge Fund Registration", Description: "Register a hedge fund"},
	{ID: "private_equity_registration", Name: "Private Equity Registration", Description: "Register a private equity fund"},
}

// Brokers returns the broker catalog.
func Brokers() []Broker {
	return append([]Broker(nil), brokers...)
}

// RequestTypes returns the request type catalog.
func RequestTypes() []RequestType {
	return append([]RequestType(nil), requestTypes...)
}

func FindBroker(id string) (Broker, bool) {
	for _, b := range brokers {
		if b.ID == id {
			return b, true
		}
	}
	return Broker{}, false
}

func FindRequestType(id string) (RequestType, bool) {
	for _, rt := range requestTypes {
		if rt.ID == id {
			return rt, true
		}
	}
	return RequestType{}, false
}
