package domain

import "time"

type Status string

const (
	StatusUp      Status = "up"
	StatusDown    Status = "down"
	StatusUnknown Status = "unknown"
)

// Site is a monitored website. URL is its identity.
type Site struct {
	URL                    string    `json:"site"`
	RequiresAuthentication bool      `json:"has_authentication"`
	Status                 Status    `json:"status"`
	CreatedAt              time.Time `json:"date_created"`
}

// StatsRecord holds the cumulative up/down history of one site.
// Both counters only ever grow.
type StatsRecord struct {
	SiteURL   string    `json:"track"`
	UpCount   uint64    `json:"uptime_counts"`
	DownCount uint64    `json:"downtime_counts"`
	CreatedAt time.Time `json:"date_created"`
	UpdatedAt time.Time `json:"date_modified"`
}

// NotifyGroup is a named set of subscribers bound to one site's downtime.
type NotifyGroup struct {
	Name        string    `json:"name"`
	SiteURL     string    `json:"site"`
	Subscribers []string  `json:"emails"`
	CreatedAt   time.Time `json:"date_created"`
}

// Outcome is the classification of one probe.
type Outcome int

const (
	OutcomeAmbiguous Outcome = iota
	OutcomeReachable
	OutcomeUnreachable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReachable:
		return "reachable"
	case OutcomeUnreachable:
		return "unreachable"
	default:
		return "ambiguous"
	}
}

// Status maps an outcome onto the site status it produces. ok is false for
// ambiguous outcomes, which leave the status untouched.
func (o Outcome) Status() (s Status, ok bool) {
	switch o {
	case OutcomeReachable:
		return StatusUp, true
	case OutcomeUnreachable:
		return StatusDown, true
	default:
		return "", false
	}
}
