package checkout

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
	StatusError    Status = "ERROR"
)

// PENDING satu-satunya state non-terminal; terminal tidak boleh keluar lagi.
var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusDeclined: true, StatusError: true},
	StatusApproved: {},
	StatusDeclined: {},
	StatusError:    {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Final() bool {
	return s == StatusApproved || s == StatusDeclined || s == StatusError
}

type StockStatus string

const (
	StockAvailable StockStatus = "AVAILABLE"
	StockReserved  StockStatus = "RESERVED"
	StockSold      StockStatus = "SOLD"
)

type EventStatus string

const (
	EventReceived  EventStatus = "RECEIVED"
	EventProcessed EventStatus = "PROCESSED"
	EventIgnored   EventStatus = "IGNORED"
	EventError     EventStatus = "ERROR"
)

// MapProviderStatus memetakan status provider ke status lokal.
// Return "" kalau belum final (mis. PENDING) -> tidak ada mutasi.
func MapProviderStatus(provider string) Status {
	switch provider {
	case "APPROVED":
		return StatusApproved
	case "DECLINED":
		return StatusDeclined
	case "ERROR", "VOIDED":
		return StatusError
	default:
		return ""
	}
}
