package session

import (
	"context"
	"time"

	"github.com/funnelcast/funnelcast/internal/database"
	"github.com/funnelcast/funnelcast/internal/geoip"
	"github.com/funnelcast/funnelcast/internal/webhook"
)

// ObjectStorage is the subset of the storage layer the playback surface
// needs.
type ObjectStorage interface {
	MediaURL(ctx context.Context, key string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Handler serves the public watch surface and the author-facing analytics
// endpoints for funnel sessions.
type Handler struct {
	db            database.DBTX
	storage       ObjectStorage
	registry      *Registry
	baseURL       string
	hmacSecret    string
	secureCookies bool
	notifier      Notifier
	webhookClient *webhook.Client
	geo           *geoip.Resolver
}

func NewHandler(db database.DBTX, s ObjectStorage, registry *Registry, baseURL, hmacSecret string, secureCookies bool) *Handler {
	return &Handler{
		db:            db,
		storage:       s,
		registry:      registry,
		baseURL:       baseURL,
		hmacSecret:    hmacSecret,
		secureCookies: secureCookies,
	}
}

func (h *Handler) SetNotifier(n Notifier) {
	h.notifier = n
}

func (h *Handler) SetWebhookClient(c *webhook.Client) {
	h.webhookClient = c
}

func (h *Handler) SetGeoIP(g *geoip.Resolver) {
	h.geo = g
}
