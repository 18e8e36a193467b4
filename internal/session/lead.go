package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/funnelcast/funnelcast/internal/database"
	"github.com/funnelcast/funnelcast/internal/geoip"
	"github.com/funnelcast/funnelcast/internal/player"
	"github.com/funnelcast/funnelcast/internal/webhook"
)

// viewerInfo is the request-derived enrichment captured once at playback
// start and attached to everything that playback persists.
type viewerInfo struct {
	Referrer string
	Browser  string
	Device   string
	Country  string
	City     string
}

func viewerInfoFromRequest(r *http.Request, geo *geoip.Resolver) viewerInfo {
	vi := viewerInfo{Referrer: r.Referer()}
	vi.Browser, vi.Device = parseBrowserDevice(r.UserAgent())
	if geo != nil {
		vi.Country, vi.City = geo.Lookup(clientIP(r))
	}
	return vi
}

// leadSink persists submitted forms as lead rows.
type leadSink struct {
	db     database.DBTX
	viewer viewerInfo
}

var _ player.LeadSink = (*leadSink)(nil)

func (s *leadSink) SaveLead(ctx context.Context, lead player.Lead) error {
	fieldsJSON, err := json.Marshal(lead.Fields)
	if err != nil {
		return fmt.Errorf("marshal lead fields: %w", err)
	}
	rawJSON, err := json.Marshal(lead.Raw)
	if err != nil {
		return fmt.Errorf("marshal raw fields: %w", err)
	}
	journeyJSON, err := json.Marshal(lead.Journey)
	if err != nil {
		return fmt.Errorf("marshal journey: %w", err)
	}
	if _, err := s.db.Exec(ctx,
		`INSERT INTO leads (session_id, company_id, form_title, fields, raw_fields,
		        journey, journey_summary, referrer, browser, device, country, city)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		lead.SessionID, lead.CompanyID, lead.FormTitle, fieldsJSON, rawJSON,
		journeyJSON, lead.JourneySummary,
		s.viewer.Referrer, s.viewer.Browser, s.viewer.Device, s.viewer.Country, s.viewer.City,
	); err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// leadDispatcher adapts the company's notification preferences and webhook
// config to the engine's single-method notifier.
type leadDispatcher struct {
	db            database.DBTX
	notifier      Notifier
	webhookClient *webhook.Client
	sessionTitle  string
}

var _ player.LeadNotifier = (*leadDispatcher)(nil)

func (d *leadDispatcher) SendLeadNotification(ctx context.Context, lead player.Lead) error {
	d.notifyChannels(ctx, lead)
	d.dispatchWebhook(lead)
	return nil
}

// notifyChannels applies the company's lead_notification mode before fanning
// out to email and Slack. The webhook fires regardless of mode.
func (d *leadDispatcher) notifyChannels(ctx context.Context, lead player.Lead) {
	if d.notifier == nil {
		return
	}

	mode := "every"
	var notifyEmail, notifyName *string
	err := d.db.QueryRow(ctx,
		`SELECT lead_notification, notify_email, notify_name
		 FROM notification_preferences WHERE company_id = $1`,
		lead.CompanyID,
	).Scan(&mode, &notifyEmail, &notifyName)
	if err != nil {
		// No preferences row means the default mode with no address to send
		// to.
		return
	}
	if mode == "off" || notifyEmail == nil {
		return
	}

	if mode == "first" {
		// Note: small race window — two simultaneous submissions could both
		// see count==1. Acceptable at current scale.
		var count int64
		err := d.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM leads WHERE session_id = $1`,
			lead.SessionID,
		).Scan(&count)
		if err != nil {
			slog.Error("lead: failed to count for first-only notification",
				"session_id", lead.SessionID, "error", err)
			return
		}
		if count != 1 {
			return
		}
	}

	name := ""
	if notifyName != nil {
		name = *notifyName
	}
	if err := d.notifier.SendLeadNotification(ctx, *notifyEmail, name, d.sessionTitle, lead); err != nil {
		slog.Error("lead: notification failed", "session_id", lead.SessionID, "error", err)
	}
}

func (d *leadDispatcher) dispatchWebhook(lead player.Lead) {
	if d.webhookClient == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		wURL, wSecret, err := d.webhookClient.LookupConfig(ctx, lead.CompanyID)
		if err != nil {
			return
		}
		if err := d.webhookClient.Dispatch(ctx, lead.CompanyID, wURL, wSecret, webhook.Event{
			Name:      webhook.EventLeadCreated,
			Timestamp: time.Now().UTC(),
			Data: map[string]any{
				"sessionId":      lead.SessionID,
				"formTitle":      lead.FormTitle,
				"fields":         lead.Fields,
				"journeySummary": lead.JourneySummary,
			},
		}); err != nil {
			slog.Error("webhook: dispatch failed for lead.created",
				"session_id", lead.SessionID, "error", err)
		}
	}()
}
