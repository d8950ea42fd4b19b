// Package registry owns the write side of the site registry: adding sites
// (authenticating once when a scheme is requested), replacing stored
// credentials and binding notification groups to sites.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesweep/internal/domain"
	"github.com/hamed0406/uptimesweep/internal/repo"
)

var ErrInvalidRequest = errors.New("invalid request")

// Authenticator logs in to a site and returns the credential to store.
type Authenticator interface {
	Authenticate(ctx context.Context, siteURL string, kind domain.AuthKind, username, password string) (domain.Credential, error)
}

type AuthData struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Site       string    `json:"site"`
	AuthScheme string    `json:"auth_scheme,omitempty"`
	AuthData   *AuthData `json:"auth_data,omitempty"`
}

type ReauthRequest struct {
	Site       string    `json:"site"`
	AuthScheme string    `json:"auth_scheme"`
	AuthData   *AuthData `json:"auth_data"`
	Replace    bool      `json:"replace"`
}

type GroupRequest struct {
	Name   string   `json:"name"`
	Site   string   `json:"site"`
	Emails []string `json:"emails"`
}

type Service struct {
	Logger      *zap.Logger
	Auth        Authenticator
	Sites       repo.SiteStore
	Credentials repo.CredentialStore
	Groups      repo.GroupStore
}

func NewService(logger *zap.Logger, auth Authenticator, store repo.Store) *Service {
	return &Service{Logger: logger, Auth: auth, Sites: store, Credentials: store, Groups: store}
}

// Register adds a site. With an auth scheme it logs in first, so a site whose
// credentials are rejected is never stored.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.Site, error) {
	req.Site = NormalizeURL(req.Site)
	kind, err := validateAuth(req.Site, req.AuthScheme, req.AuthData, false)
	if err != nil {
		return nil, err
	}

	var cred domain.Credential
	if kind != domain.KindNone {
		cred, err = s.Auth.Authenticate(ctx, req.Site, kind, req.AuthData.Username, req.AuthData.Password)
		if err != nil {
			s.Logger.Warn("register_auth_failed", zap.String("site", req.Site), zap.String("kind", kind.String()), zap.Error(err))
			return nil, err
		}
	}

	site := &domain.Site{
		URL:                    req.Site,
		RequiresAuthentication: kind != domain.KindNone,
		Status:                 domain.StatusUnknown,
		CreatedAt:              time.Now().UTC(),
	}
	if err := s.Sites.AddSite(ctx, site); err != nil {
		return nil, err
	}
	if cred != nil {
		if err := s.Credentials.UpsertCredential(ctx, site.URL, cred, false); err != nil {
			s.Logger.Error("register_store_credential_failed", zap.String("site", site.URL), zap.Error(err))
			// undo AddSite so a failed registration leaves nothing behind
			if derr := s.Sites.DeleteSite(ctx, site.URL); derr != nil {
				s.Logger.Error("register_rollback_failed", zap.String("site", site.URL), zap.Error(derr))
			}
			return nil, fmt.Errorf("store credential for %s: %w", site.URL, err)
		}
	}
	s.Logger.Info("site_registered", zap.String("site", site.URL), zap.String("kind", kind.String()))
	return site, nil
}

// Reauthenticate logs in again and replaces the stored credential. Switching
// to a different kind needs Replace.
func (s *Service) Reauthenticate(ctx context.Context, req ReauthRequest) (*domain.AuthenticationScheme, error) {
	req.Site = NormalizeURL(req.Site)
	kind, err := validateAuth(req.Site, req.AuthScheme, req.AuthData, true)
	if err != nil {
		return nil, err
	}
	site, err := s.Sites.GetSite(ctx, req.Site)
	if err != nil {
		return nil, err
	}
	if !site.RequiresAuthentication {
		return nil, fmt.Errorf("%w: site %s is monitored without authentication", ErrInvalidRequest, site.URL)
	}
	cred, err := s.Auth.Authenticate(ctx, site.URL, kind, req.AuthData.Username, req.AuthData.Password)
	if err != nil {
		s.Logger.Warn("reauth_failed", zap.String("site", site.URL), zap.Error(err))
		return nil, err
	}
	if err := s.Credentials.UpsertCredential(ctx, site.URL, cred, req.Replace); err != nil {
		return nil, err
	}
	s.Logger.Info("site_reauthenticated", zap.String("site", site.URL), zap.String("kind", kind.String()))
	return s.Credentials.GetScheme(ctx, site.URL)
}

func (s *Service) AddGroup(ctx context.Context, req GroupRequest) (*domain.NotifyGroup, error) {
	req.Site = NormalizeURL(req.Site)
	req.Name = strings.TrimSpace(req.Name)
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&req.Site, validation.Required, is.RequestURL, validation.By(httpScheme)),
		validation.Field(&req.Emails, validation.Required, validation.Each(validation.Required, is.EmailFormat)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	g := &domain.NotifyGroup{Name: req.Name, SiteURL: req.Site, Subscribers: req.Emails, CreatedAt: time.Now().UTC()}
	if err := s.Groups.AddGroup(ctx, g); err != nil {
		return nil, err
	}
	s.Logger.Info("group_added", zap.String("group", g.Name), zap.String("site", g.SiteURL), zap.Int("subscribers", len(g.Subscribers)))
	return g, nil
}

func validateAuth(site, scheme string, data *AuthData, requireScheme bool) (domain.AuthKind, error) {
	kind, kindErr := domain.ParseAuthKind(scheme)
	fields := validation.Errors{
		"site": validation.Validate(site, validation.Required, is.RequestURL, validation.By(httpScheme)),
	}
	switch {
	case kindErr != nil:
		fields["auth_scheme"] = kindErr
	case requireScheme && kind == domain.KindNone:
		fields["auth_scheme"] = errors.New("must be one of session, token, bearer")
	case kind != domain.KindNone:
		if data == nil {
			fields["auth_data"] = errors.New("is required for authenticated sites")
		} else {
			fields["auth_data"] = validation.ValidateStruct(data,
				validation.Field(&data.Username, validation.Required),
				validation.Field(&data.Password, validation.Required),
			)
		}
	}
	if err := fields.Filter(); err != nil {
		return domain.KindNone, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return kind, nil
}

func httpScheme(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

// NormalizeURL trims whitespace, lowercases scheme and host, drops the
// default port and a bare trailing slash so the same site is not registered
// twice under different spellings.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = strings.TrimSuffix(u.Host, ":"+port)
	}
	if u.Path == "/" && u.RawQuery == "" && u.Fragment == "" {
		u.Path = ""
	}
	return u.String()
}

// ValidURL reports whether raw is an absolute http(s) URL with a host.
func ValidURL(raw string) bool {
	return httpScheme(raw) == nil
}
