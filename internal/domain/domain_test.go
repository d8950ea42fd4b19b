package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseAuthKind(t *testing.T) {
	cases := []struct {
		in   string
		want AuthKind
	}{
		{"session", KindSession},
		{"TOKEN", KindToken},
		{"bearer", KindBearer},
		{"jwt", KindBearer},
		{"", KindNone},
	}
	for _, c := range cases {
		got, err := ParseAuthKind(c.in)
		if err != nil {
			t.Fatalf("ParseAuthKind(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseAuthKind(%q)=%v want %v", c.in, got, c.want)
		}
		if c.in != "" && c.in != "jwt" && got.String() != strings.ToLower(c.in) {
			t.Fatalf("String()=%q for %q", got.String(), c.in)
		}
	}
	if _, err := ParseAuthKind("basic"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestScheme_Usable(t *testing.T) {
	var nilScheme *AuthenticationScheme
	if nilScheme.Usable() || nilScheme.Kind() != KindNone {
		t.Fatalf("nil scheme must be unusable with kind none")
	}
	empty := &AuthenticationScheme{SiteURL: "https://a", Credential: TokenCredential{}}
	if empty.Usable() {
		t.Fatalf("empty token slot must be unusable")
	}
	ok := &AuthenticationScheme{SiteURL: "https://a", Credential: BearerCredential{Token: "jwt"}}
	if !ok.Usable() || ok.Kind() != KindBearer {
		t.Fatalf("bearer scheme should be usable: %+v", ok)
	}
}

func TestSlots_RoundTrip(t *testing.T) {
	creds := []Credential{
		SessionCredential{Cookies: map[string]string{"sessionid": "s1"}},
		TokenCredential{Token: "abc"},
		BearerCredential{Token: "jwt"},
	}
	for _, c := range creds {
		cookies, tok, bearer := Slots(c)
		populated := 0
		if len(cookies) > 0 {
			populated++
		}
		if tok != "" {
			populated++
		}
		if bearer != "" {
			populated++
		}
		if populated != 1 {
			t.Fatalf("%s: want exactly one populated slot, got %d", c.Kind(), populated)
		}
		back, err := FromSlots(c.Kind(), cookies, tok, bearer)
		if err != nil {
			t.Fatalf("FromSlots(%s): %v", c.Kind(), err)
		}
		if back.Kind() != c.Kind() || !back.Usable() {
			t.Fatalf("rebuilt %+v from %+v", back, c)
		}
	}
	if _, err := FromSlots(KindNone, nil, "", ""); err == nil {
		t.Fatalf("kind none must not produce a credential")
	}
}

func TestOutcome_Status(t *testing.T) {
	if s, ok := OutcomeReachable.Status(); !ok || s != StatusUp {
		t.Fatalf("reachable -> %v %v", s, ok)
	}
	if s, ok := OutcomeUnreachable.Status(); !ok || s != StatusDown {
		t.Fatalf("unreachable -> %v %v", s, ok)
	}
	if _, ok := OutcomeAmbiguous.Status(); ok {
		t.Fatalf("ambiguous must not map to a status")
	}
}

func TestStatsRecord_JSONNames(t *testing.T) {
	rec := StatsRecord{
		SiteURL:   "https://example.com",
		UpCount:   3,
		DownCount: 1,
		CreatedAt: time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["track"] != "https://example.com" || got["uptime_counts"].(float64) != 3 || got["downtime_counts"].(float64) != 1 {
		t.Fatalf("unexpected json: %s", b)
	}
}
