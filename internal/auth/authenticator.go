package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hamed0406/uptimesweep/internal/domain"
)

var (
	ErrAuthenticationFailed    = errors.New("authentication failed")
	ErrAuthEndpointUnreachable = errors.New("authentication endpoint unreachable")
)

// maxLoginBody caps how much of a login response is read.
const maxLoginBody = 1 << 20

type Authenticator struct {
	Client *http.Client
}

func NewAuthenticator(timeout time.Duration) *Authenticator {
	return &Authenticator{Client: &http.Client{
		Timeout: timeout,
		// exactly one POST; cookies set on a 302 belong to the login response
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}}
}

func (a *Authenticator) Authenticate(ctx context.Context, siteURL string, kind domain.AuthKind, username, password string) (domain.Credential, error) {
	switch kind {
	case domain.KindSession, domain.KindToken, domain.KindBearer:
	default:
		return nil, fmt.Errorf("%w: unsupported kind %s", ErrAuthenticationFailed, kind)
	}

	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, siteURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthEndpointUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthEndpointUnreachable, err)
	}
	defer resp.Body.Close()

	if kind == domain.KindSession {
		cookies := make(map[string]string)
		for _, c := range resp.Cookies() {
			cookies[c.Name] = c.Value
		}
		if len(cookies) == 0 {
			return nil, fmt.Errorf("%w: %s set no cookies (status %d)", ErrAuthenticationFailed, siteURL, resp.StatusCode)
		}
		return domain.SessionCredential{Cookies: cookies}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLoginBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrAuthEndpointUnreachable, err)
	}
	field := "token"
	if kind == domain.KindBearer {
		field = "access"
	}
	tok, ok := lookup(body, field)
	if !ok {
		return nil, fmt.Errorf("%w: no %q in response from %s (status %d)", ErrAuthenticationFailed, field, siteURL, resp.StatusCode)
	}
	if kind == domain.KindBearer {
		return domain.BearerCredential{Token: tok}, nil
	}
	return domain.TokenCredential{Token: tok}, nil
}

// lookup reads data.<field>, falling back to a top-level <field>.
func lookup(body []byte, field string) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	for _, path := range []string{"data." + field, field} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.String() != "" {
			return v.String(), true
		}
	}
	return "", false
}
