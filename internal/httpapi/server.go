package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesweep/internal/auth"
	"github.com/hamed0406/uptimesweep/internal/domain"
	apimw "github.com/hamed0406/uptimesweep/internal/httpapi/middleware"
	"github.com/hamed0406/uptimesweep/internal/registry"
	"github.com/hamed0406/uptimesweep/internal/repo"
	"github.com/hamed0406/uptimesweep/internal/sweep"
)

// Sweeper triggers one sweep on demand.
type Sweeper interface {
	RunSweep(ctx context.Context) sweep.Summary
}

type Server struct {
	Logger   *zap.Logger
	Sites    repo.SiteStore
	Ledger   repo.StatsLedger
	Registry *registry.Service
	Sweeper  Sweeper
}

func NewServer(l *zap.Logger, store repo.Store, reg *registry.Service, sw Sweeper) *Server {
	return &Server{Logger: l, Sites: store, Ledger: store, Registry: reg, Sweeper: sw}
}

func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer)
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RequireAny(keys))

		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(pubRPM, pubBurst))
			r.Get("/auth-types", s.handleAuthTypes)
			r.Get("/sites", s.handleListSites)
			r.Get("/sites/{site}", s.handleGetSite)
			r.Get("/historical-stats", s.handleHistoricalStats)
		})

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(keys), apimw.RateLimit(admRPM, admBurst))
			r.Post("/sites", s.handleAddSite)
			r.Post("/sites/credentials", s.handleReauthenticate)
			r.Post("/groups", s.handleAddGroup)
			r.Post("/sweeps", s.handleRunSweep)
		})
	})

	return r
}

func (s *Server) handleAuthTypes(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]string, 0, len(domain.AuthKinds))
	for _, k := range domain.AuthKinds {
		out = append(out, map[string]string{"name": k.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.Sites.ListSites(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sites == nil {
		sites = []domain.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

// handleGetSite expects the site URL path-escaped in {site}.
func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "site"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad site parameter")
		return
	}
	site, err := s.Sites.GetSite(r.Context(), registry.NormalizeURL(raw))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stats, err := s.Ledger.GetStats(r.Context(), site.URL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"site": site, "stats": stats})
}

func (s *Server) handleHistoricalStats(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Ledger.ListStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.StatsRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAddSite(w http.ResponseWriter, r *http.Request) {
	var p registry.RegisterRequest
	if !decode(w, r, &p) {
		return
	}
	site, err := s.Registry.Register(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) handleReauthenticate(w http.ResponseWriter, r *http.Request) {
	var p registry.ReauthRequest
	if !decode(w, r, &p) {
		return
	}
	scheme, err := s.Registry.Reauthenticate(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// never echo the secret back
	writeJSON(w, http.StatusOK, map[string]any{
		"site":          scheme.SiteURL,
		"auth_scheme":   scheme.Kind().String(),
		"date_modified": scheme.UpdatedAt,
	})
}

func (s *Server) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	var p registry.GroupRequest
	if !decode(w, r, &p) {
		return
	}
	g, err := s.Registry.AddGroup(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleRunSweep(w http.ResponseWriter, r *http.Request) {
	// a client hanging up must not cut the sweep short
	sum := s.Sweeper.RunSweep(context.WithoutCancel(r.Context()))
	s.Logger.Info("sweep_triggered",
		zap.String("sweep_id", sum.ID),
		zap.String("role", string(apimw.RoleFrom(r.Context()))),
	)
	writeJSON(w, http.StatusOK, map[string]any{"message": sum.String(), "summary": sum})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return false
	}
	return true
}

// fail maps domain errors onto HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrInvalidRequest):
		code = http.StatusBadRequest
	case errors.Is(err, repo.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, repo.ErrDuplicate), errors.Is(err, repo.ErrSchemeConflict):
		code = http.StatusConflict
	case errors.Is(err, auth.ErrAuthenticationFailed):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrAuthEndpointUnreachable):
		code = http.StatusBadGateway
	}
	if code == http.StatusInternalServerError {
		s.Logger.Error("api_error", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
