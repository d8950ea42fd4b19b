package repo

import (
	"encoding/json"
	"fmt"

	"github.com/hamed0406/uptimesweep/internal/domain"
)

// SchemeRow is the column layout adapters persist a scheme with.
type SchemeRow struct {
	Kind           string
	SessionCookies *string // JSON object, NULL unless kind is session
	APIToken       *string
	BearerToken    *string
}

func EncodeScheme(cred domain.Credential) (SchemeRow, error) {
	cookies, tok, bearer := domain.Slots(cred)
	row := SchemeRow{Kind: cred.Kind().String()}
	switch cred.Kind() {
	case domain.KindSession:
		b, err := json.Marshal(cookies)
		if err != nil {
			return row, fmt.Errorf("encode cookies: %w", err)
		}
		s := string(b)
		row.SessionCookies = &s
	case domain.KindToken:
		row.APIToken = &tok
	case domain.KindBearer:
		row.BearerToken = &bearer
	default:
		return row, fmt.Errorf("cannot store credential of kind %s", cred.Kind())
	}
	return row, nil
}

func (r SchemeRow) Credential() (domain.Credential, error) {
	kind, err := domain.ParseAuthKind(r.Kind)
	if err != nil {
		return nil, err
	}
	var cookies map[string]string
	if r.SessionCookies != nil && *r.SessionCookies != "" {
		if err := json.Unmarshal([]byte(*r.SessionCookies), &cookies); err != nil {
			return nil, fmt.Errorf("decode cookies: %w", err)
		}
	}
	return domain.FromSlots(kind, cookies, deref(r.APIToken), deref(r.BearerToken))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
