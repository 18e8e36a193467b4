package session

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"github.com/funnelcast/funnelcast/internal/auth"
	"github.com/funnelcast/funnelcast/internal/database"
	"github.com/funnelcast/funnelcast/internal/geoip"
	"github.com/funnelcast/funnelcast/internal/httputil"
	"github.com/funnelcast/funnelcast/internal/player"
	"github.com/funnelcast/funnelcast/internal/webhook"
)

func viewerHash(ip, userAgent string) string {
	h := sha256.Sum256([]byte(ip + "|" + userAgent))
	return fmt.Sprintf("%x", h[:8])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	return r.RemoteAddr
}

func parseBrowserDevice(uaString string) (browser, device string) {
	ua := useragent.New(uaString)
	name, _ := ua.Browser()
	device = "desktop"
	if ua.Mobile() {
		device = "mobile"
	}
	return name, device
}

// dbFlushTransport persists watch reports to Postgres. It is the sole
// server-side transport in the reporter chain; the playback_id primary key
// makes duplicate flushes harmless.
type dbFlushTransport struct {
	db database.DBTX
}

func NewDBFlushTransport(db database.DBTX) player.FlushTransport {
	return &dbFlushTransport{db: db}
}

func (t *dbFlushTransport) Name() string   { return "database" }
func (t *dbFlushTransport) Blocking() bool { return false }

func (t *dbFlushTransport) Send(ctx context.Context, report player.Report) error {
	journeyJSON, err := json.Marshal(report.Journey)
	if err != nil {
		return fmt.Errorf("marshal journey: %w", err)
	}
	var lastFormJSON []byte
	if report.LastFormData != nil {
		lastFormJSON, err = json.Marshal(report.LastFormData)
		if err != nil {
			return fmt.Errorf("marshal last form data: %w", err)
		}
	}
	var answersJSON []byte
	if report.Answers != nil {
		answersJSON, err = json.Marshal(report.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers: %w", err)
		}
	}
	if _, err := t.db.Exec(ctx,
		`INSERT INTO watch_reports (playback_id, session_id, company_id, watch_time_seconds,
		        last_form_data, journey, answers, journey_summary, completed, solution_id,
		        viewer_hash, referrer, browser, device, country, city)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (playback_id) DO NOTHING`,
		report.PlaybackID, report.SessionID, report.CompanyID, report.WatchTimeSeconds,
		lastFormJSON, journeyJSON, answersJSON, player.SummarizeSteps(report.Journey),
		report.Completed, nullableID(report.SolutionID), report.ViewerHash,
		report.Referrer, report.Browser, report.Device, report.Country, report.City,
	); err != nil {
		return fmt.Errorf("insert watch report: %w", err)
	}
	return nil
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

type reportRequest struct {
	Token   string `json:"token"`
	Trigger string `json:"trigger"`
}

var validTriggers = map[player.Trigger]bool{
	player.TriggerHidden:   true,
	player.TriggerUnload:   true,
	player.TriggerPageHide: true,
	player.TriggerUnmount:  true,
}

// Report handles the watch-time flush sent from every page teardown path.
// The token travels in the body because sendBeacon cannot set headers. The
// endpoint always answers 204: it must never make teardown worse for the
// viewer.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusNoContent)

	var req reportRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		return
	}
	claims, err := auth.ValidatePlaybackToken(h.hmacSecret, req.Token)
	if err != nil {
		return
	}
	trigger := player.Trigger(req.Trigger)
	if !validTriggers[trigger] {
		trigger = player.TriggerUnmount
	}

	pb, ok := h.registry.Get(claims.PlaybackID)
	if !ok {
		return
	}
	rep := pb.Player.Reporter()
	if rep == nil {
		return
	}

	report := pb.Player.WatchReport(pb.ID)
	enrichReport(&report, r, h.geo)

	switch trigger {
	case player.TriggerHidden:
		rep.Pause()
		rep.FlushHidden(context.WithoutCancel(r.Context()), report, func() {
			h.afterReport(report, pb.Bundle)
		})
	default:
		if rep.Flush(context.WithoutCancel(r.Context()), trigger, report) {
			h.afterReport(report, pb.Bundle)
		}
		h.registry.Remove(pb.ID)
	}
}

type visibleRequest struct {
	Token string `json:"token"`
}

// Visible cancels a pending debounced hidden flush when the tab comes back.
func (h *Handler) Visible(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusNoContent)

	var req visibleRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		return
	}
	claims, err := auth.ValidatePlaybackToken(h.hmacSecret, req.Token)
	if err != nil {
		return
	}
	if pb, ok := h.registry.Get(claims.PlaybackID); ok {
		if rep := pb.Player.Reporter(); rep != nil {
			rep.CancelHidden()
			rep.Start()
		}
	}
}

func enrichReport(report *player.Report, r *http.Request, geo *geoip.Resolver) {
	ip := clientIP(r)
	report.ViewerHash = viewerHash(ip, r.UserAgent())
	report.Referrer = r.Referer()
	report.Browser, report.Device = parseBrowserDevice(r.UserAgent())
	if geo != nil {
		report.Country, report.City = geo.Lookup(ip)
	}
}

// solutionLabel renders a solution for notifications; solutions carry no
// title of their own.
func solutionLabel(b *Bundle, solutionID string) string {
	if b == nil || solutionID == "" {
		return ""
	}
	for _, s := range b.Data.Solutions {
		if s.ID != solutionID {
			continue
		}
		switch {
		case s.Form != nil && s.Form.Title != "":
			return s.Form.Title
		case s.URL != "":
			return s.URL
		case s.Email != "":
			return s.Email
		default:
			return string(s.Category)
		}
	}
	return ""
}

// afterReport dispatches the post-flush side effects off the request path:
// the watch_time.recorded webhook always, plus the session.completed webhook
// and author notification when the journey reached a solution.
func (h *Handler) afterReport(report player.Report, b *Bundle) {
	summary := player.SummarizeSteps(report.Journey)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if h.webhookClient != nil {
			wURL, wSecret, err := h.webhookClient.LookupConfig(ctx, report.CompanyID)
			if err == nil {
				if err := h.webhookClient.Dispatch(ctx, report.CompanyID, wURL, wSecret, webhook.Event{
					Name:      webhook.EventWatchTimeRecorded,
					Timestamp: time.Now().UTC(),
					Data: map[string]any{
						"sessionId":        report.SessionID,
						"playbackId":       report.PlaybackID,
						"watchTimeSeconds": report.WatchTimeSeconds,
						"journeySummary":   summary,
					},
				}); err != nil {
					slog.Error("webhook: dispatch failed for watch_time.recorded",
						"session_id", report.SessionID, "error", err)
				}
				if report.Completed {
					if err := h.webhookClient.Dispatch(ctx, report.CompanyID, wURL, wSecret, webhook.Event{
						Name:      webhook.EventSessionCompleted,
						Timestamp: time.Now().UTC(),
						Data: map[string]any{
							"sessionId":      report.SessionID,
							"playbackId":     report.PlaybackID,
							"solutionId":     report.SolutionID,
							"journeySummary": summary,
						},
					}); err != nil {
						slog.Error("webhook: dispatch failed for session.completed",
							"session_id", report.SessionID, "error", err)
					}
				}
			}
		}

		if report.Completed && h.notifier != nil && b != nil {
			var email, name *string
			err := h.db.QueryRow(ctx,
				`SELECT notify_email, notify_name FROM notification_preferences WHERE company_id = $1`,
				report.CompanyID,
			).Scan(&email, &name)
			if err != nil || email == nil {
				return
			}
			toName := ""
			if name != nil {
				toName = *name
			}
			if err := h.notifier.SendSessionCompletedNotification(ctx, *email, toName,
				report.CompanyID, b.Data.Session.Title, solutionLabel(b, report.SolutionID), summary); err != nil {
				slog.Error("notify: session completed notification failed",
					"session_id", report.SessionID, "error", err)
			}
		}
	}()
}
