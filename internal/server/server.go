package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/funnelcast/funnelcast/internal/database"
	"github.com/funnelcast/funnelcast/internal/geoip"
	"github.com/funnelcast/funnelcast/internal/ratelimit"
	"github.com/funnelcast/funnelcast/internal/session"
	"github.com/funnelcast/funnelcast/internal/webhook"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB               database.DBTX
	Pinger           Pinger
	Storage          session.ObjectStorage
	Registry         *session.Registry
	Notifier         session.Notifier
	WebhookClient    *webhook.Client
	Geo              *geoip.Resolver
	HMACSecret       string
	BaseURL          string
	S3PublicEndpoint string
}

type Server struct {
	router         chi.Router
	pinger         Pinger
	sessionHandler *session.Handler
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.S3PublicEndpoint,
	}))

	s := &Server{router: r, pinger: cfg.Pinger}

	if cfg.DB != nil {
		if cfg.HMACSecret == "" {
			log.Fatal("PLAYBACK_SECRET is required; set the environment variable")
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}

		secureCookies := strings.HasPrefix(baseURL, "https://")
		registry := cfg.Registry
		if registry == nil {
			registry = session.NewRegistry(0)
		}
		s.sessionHandler = session.NewHandler(cfg.DB, cfg.Storage, registry, baseURL, cfg.HMACSecret, secureCookies)
		if cfg.Notifier != nil {
			s.sessionHandler.SetNotifier(cfg.Notifier)
		}
		if cfg.WebhookClient != nil {
			s.sessionHandler.SetWebhookClient(cfg.WebhookClient)
		}
		if cfg.Geo != nil {
			s.sessionHandler.SetGeoIP(cfg.Geo)
		}
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	if s.sessionHandler == nil {
		return
	}

	watchLimiter := ratelimit.NewLimiter(2, 10)
	passwordLimiter := ratelimit.NewLimiter(0.5, 5)
	s.router.Route("/api/watch", func(r chi.Router) {
		r.Use(watchLimiter.Middleware)
		r.Get("/{shareToken}", s.sessionHandler.Watch)
		r.With(passwordLimiter.Middleware).Post("/{shareToken}/verify-password", s.sessionHandler.VerifyWatchPassword)
		r.Post("/{shareToken}/start", s.sessionHandler.StartPlayback)
	})

	// Event traffic is chatty by nature; the report endpoints stay
	// unthrottled so teardown beacons never bounce.
	s.router.Route("/api/play", func(r chi.Router) {
		r.Post("/event", s.sessionHandler.PlayEvent)
		r.Post("/form", s.sessionHandler.PlayForm)
		r.Post("/report", s.sessionHandler.Report)
		r.Post("/visible", s.sessionHandler.Visible)
	})

	s.router.Route("/api/sessions/{id}", func(r chi.Router) {
		r.Get("/analytics", s.sessionHandler.Analytics)
		r.Get("/leads", s.sessionHandler.Leads)
		r.Get("/leads/export", s.sessionHandler.LeadsExport)
	})

	s.router.Get("/watch/{shareToken}", s.sessionHandler.WatchPage)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
