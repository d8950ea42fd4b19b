package sweep

import (
	"fmt"
	"time"
)

// Summary reports what one sweep observed.
type Summary struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
	Sites         int       `json:"sites"`
	Up            int       `json:"up"`
	Down          int       `json:"down"`
	Ambiguous     int       `json:"ambiguous"`
	Misconfigured int       `json:"misconfigured"`
	Errors        int       `json:"errors"`
	Notified      int       `json:"notified"`
}

func (s Summary) String() string {
	if s.Sites == 0 {
		return fmt.Sprintf("sweep %s: no sites registered", s.ID)
	}
	return fmt.Sprintf(
		"sweep %s: checked %d sites in %dms (up %d, down %d, ambiguous %d, misconfigured %d, errors %d, notified %d)",
		s.ID, s.Sites, s.DurationMS, s.Up, s.Down, s.Ambiguous, s.Misconfigured, s.Errors, s.Notified,
	)
}
