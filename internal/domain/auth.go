package domain

import (
	"fmt"
	"strings"
	"time"
)

// AuthKind selects how a site is logged into and probed.
type AuthKind int

const (
	KindNone AuthKind = iota
	KindSession
	KindToken
	KindBearer
)

// AuthKinds lists the kinds a scheme can be stored with.
var AuthKinds = []AuthKind{KindSession, KindToken, KindBearer}

func (k AuthKind) String() string {
	switch k {
	case KindSession:
		return "session"
	case KindToken:
		return "token"
	case KindBearer:
		return "bearer"
	default:
		return "none"
	}
}

func ParseAuthKind(s string) (AuthKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return KindNone, nil
	case "session":
		return KindSession, nil
	case "token":
		return KindToken, nil
	case "bearer", "jwt":
		return KindBearer, nil
	}
	return KindNone, fmt.Errorf("unknown auth kind %q", s)
}

// Credential is the secret material of a scheme. Only the variants in this
// package implement it.
type Credential interface {
	Kind() AuthKind
	// Usable reports whether the variant's slot is populated.
	Usable() bool
	sealed()
}

type SessionCredential struct {
	Cookies map[string]string
}

type TokenCredential struct {
	Token string
}

type BearerCredential struct {
	Token string
}

func (SessionCredential) Kind() AuthKind { return KindSession }
func (TokenCredential) Kind() AuthKind   { return KindToken }
func (BearerCredential) Kind() AuthKind  { return KindBearer }

func (c SessionCredential) Usable() bool { return len(c.Cookies) > 0 }
func (c TokenCredential) Usable() bool   { return c.Token != "" }
func (c BearerCredential) Usable() bool  { return c.Token != "" }

func (SessionCredential) sealed() {}
func (TokenCredential) sealed()   {}
func (BearerCredential) sealed()  {}

// AuthenticationScheme binds a credential to a site (1:1). A site without a
// scheme record needs no authentication.
type AuthenticationScheme struct {
	SiteURL    string
	Credential Credential
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s *AuthenticationScheme) Kind() AuthKind {
	if s == nil || s.Credential == nil {
		return KindNone
	}
	return s.Credential.Kind()
}

// Usable is false for a missing scheme, a missing credential or an empty slot.
func (s *AuthenticationScheme) Usable() bool {
	return s != nil && s.Credential != nil && s.Credential.Usable()
}

// Slots flattens a credential into the three storage columns, exactly one of
// which is non-empty for a usable credential.
func Slots(c Credential) (cookies map[string]string, apiToken, bearerToken string) {
	switch v := c.(type) {
	case SessionCredential:
		cookies = v.Cookies
	case TokenCredential:
		apiToken = v.Token
	case BearerCredential:
		bearerToken = v.Token
	}
	return cookies, apiToken, bearerToken
}

// FromSlots rebuilds the variant for kind from storage columns.
func FromSlots(kind AuthKind, cookies map[string]string, apiToken, bearerToken string) (Credential, error) {
	switch kind {
	case KindSession:
		return SessionCredential{Cookies: cookies}, nil
	case KindToken:
		return TokenCredential{Token: apiToken}, nil
	case KindBearer:
		return BearerCredential{Token: bearerToken}, nil
	}
	return nil, fmt.Errorf("no credential variant for kind %s", kind)
}
