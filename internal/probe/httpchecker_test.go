package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/uptimesweep/internal/domain"
)

func statusServer(code int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
}

func TestHTTPProber_StatusOK(t *testing.T) {
	s := statusServer(200)
	defer s.Close()

	out := NewHTTPProber(2*time.Second).Probe(context.Background(), s.URL, nil)
	if out.Outcome != domain.OutcomeReachable {
		t.Fatalf("want reachable, got %+v", out)
	}
	if out.StatusCode != 200 || !strings.HasPrefix(out.Message, "200") {
		t.Fatalf("want status 200, got %+v", out)
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", out.LatencyMS)
	}
}

func TestHTTPProber_Classification(t *testing.T) {
	cases := []struct {
		code int
		want domain.Outcome
	}{
		{200, domain.OutcomeReachable},
		{500, domain.OutcomeUnreachable},
		{502, domain.OutcomeUnreachable},
		{503, domain.OutcomeUnreachable},
		{504, domain.OutcomeUnreachable},
		{201, domain.OutcomeAmbiguous},
		{301, domain.OutcomeAmbiguous},
		{401, domain.OutcomeAmbiguous},
		{404, domain.OutcomeAmbiguous},
		{501, domain.OutcomeAmbiguous},
	}
	prober := NewHTTPProber(2 * time.Second)
	for _, c := range cases {
		s := statusServer(c.code)
		out := prober.Probe(context.Background(), s.URL, nil)
		s.Close()
		if out.Outcome != c.want || out.StatusCode != c.code {
			t.Fatalf("status %d: want %v, got %+v", c.code, c.want, out)
		}
	}
}

func TestNewHTTPProber_RedirectIsAmbiguous(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := NewHTTPProber(2*time.Second).Probe(context.Background(), s.URL+"/", nil)
	if out.Outcome != domain.OutcomeAmbiguous || out.StatusCode != http.StatusFound {
		t.Fatalf("want ambiguous 302, got %+v", out)
	}
}

func TestHTTPProber_TimeoutIsUnreachable(t *testing.T) {
	// Server sleeps longer than client timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := NewHTTPProber(50*time.Millisecond).Probe(context.Background(), s.URL, nil)
	if out.Outcome != domain.OutcomeUnreachable || !out.NetworkError {
		t.Fatalf("want unreachable network error, got %+v", out)
	}
	if out.StatusCode != 0 {
		t.Fatalf("want status 0 on transport error, got %d", out.StatusCode)
	}
	if out.Message == "" {
		t.Fatalf("want non-empty error message")
	}
}

func TestHTTPProber_ConnectionRefusedIsUnreachable(t *testing.T) {
	s := statusServer(200)
	url := s.URL
	s.Close()

	out := NewHTTPProber(time.Second).Probe(context.Background(), url, nil)
	if out.Outcome != domain.OutcomeUnreachable || !out.NetworkError {
		t.Fatalf("want unreachable, got %+v", out)
	}
}

func TestHTTPProber_AttachesCredentials(t *testing.T) {
	var (
		gotAuth   string
		gotCookie string
		gotMethod string
	)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		if c, err := r.Cookie("sessionid"); err == nil {
			gotCookie = c.Value
		} else {
			gotCookie = ""
		}
		w.WriteHeader(200)
	}))
	defer s.Close()
	p := NewHTTPProber(2 * time.Second)
	ctx := context.Background()

	p.Probe(ctx, s.URL, domain.TokenCredential{Token: "abc"})
	if gotMethod != http.MethodGet || gotAuth != "Token abc" {
		t.Fatalf("token: method=%s auth=%q", gotMethod, gotAuth)
	}

	p.Probe(ctx, s.URL, domain.BearerCredential{Token: "jwt.value"})
	if gotAuth != "Bearer jwt.value" {
		t.Fatalf("bearer: auth=%q", gotAuth)
	}

	p.Probe(ctx, s.URL, domain.SessionCredential{Cookies: map[string]string{"sessionid": "s1"}})
	if gotCookie != "s1" || gotAuth != "" {
		t.Fatalf("session: cookie=%q auth=%q", gotCookie, gotAuth)
	}

	p.Probe(ctx, s.URL, nil)
	if gotCookie != "" || gotAuth != "" {
		t.Fatalf("anonymous probe carried credentials: cookie=%q auth=%q", gotCookie, gotAuth)
	}
}

func TestCheckDNS_ShortCircuits(t *testing.T) {
	if got := CheckDNS(context.Background(), "").Class; got != DNSInvalidName {
		t.Fatalf("empty host: %s", got)
	}
	if got := Diagnose(context.Background(), "http://127.0.0.1:8080/x").Class; got != DNSIPLiteral {
		t.Fatalf("ip literal: %s", got)
	}
}
