package probe

import (
	"context"
	"net/http"

	"github.com/hamed0406/uptimesweep/internal/domain"
)

// CheckResult is the classified result of a single probe.
//
// Fields:
//   - StatusCode: HTTP status code when available; 0 for transport errors.
//   - NetworkError: true when no HTTP response arrived (timeout, DNS, refused).
type CheckResult struct {
	Outcome      domain.Outcome
	StatusCode   int
	LatencyMS    float64
	Message      string
	NetworkError bool
}

// Prober issues one GET against a site, authenticated with cred when non-nil.
type Prober interface {
	Probe(ctx context.Context, url string, cred domain.Credential) CheckResult
}

// Classify maps a status code onto an outcome: 200 is reachable, the 5xx
// gateway/server family is unreachable, anything else is ambiguous.
func Classify(code int) domain.Outcome {
	switch code {
	case http.StatusOK:
		return domain.OutcomeReachable
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.OutcomeUnreachable
	}
	return domain.OutcomeAmbiguous
}
