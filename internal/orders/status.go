package orders

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
)

// APPROVED and DECLINED are terminal: no transition leaves either.
var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusDeclined: true},
	StatusApproved: {},
	StatusDeclined: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
