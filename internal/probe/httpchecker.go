package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/uptimesweep/internal/domain"
)

type HTTPProber struct {
	Client *http.Client
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{
			Timeout: timeout,
			// a 3xx is classified as it is, not by where it points
			CheckRedirect: noRedirect,
		},
	}
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func (h *HTTPProber) Probe(ctx context.Context, target string, cred domain.Credential) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Outcome: domain.OutcomeUnreachable, Message: err.Error(), NetworkError: true}
	}
	Authorize(req, cred)

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{
			Outcome:      domain.OutcomeUnreachable,
			Message:      err.Error(),
			LatencyMS:    latency,
			NetworkError: true,
		}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return CheckResult{
		Outcome:    Classify(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
		LatencyMS:  latency,
	}
}

// Authorize attaches the credential's cookies or Authorization header.
func Authorize(req *http.Request, cred domain.Credential) {
	switch c := cred.(type) {
	case domain.SessionCredential:
		for name, value := range c.Cookies {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	case domain.TokenCredential:
		req.Header.Set("Authorization", "Token "+c.Token)
	case domain.BearerCredential:
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}
