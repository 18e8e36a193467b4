package session

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/funnelcast/funnelcast/internal/httputil"
)

type analyticsSummary struct {
	TotalPlaybacks    int64   `json:"totalPlaybacks"`
	UniqueViewers     int64   `json:"uniqueViewers"`
	PlaybacksToday    int64   `json:"playbacksToday"`
	TotalLeads        int64   `json:"totalLeads"`
	LeadRate          float64 `json:"leadRate"`
	AvgWatchSeconds   float64 `json:"avgWatchSeconds"`
	CompletedJourneys int64   `json:"completedJourneys"`
	CompletionRate    float64 `json:"completionRate"`
	PeakDay           string  `json:"peakDay"`
	PeakDayPlaybacks  int64   `json:"peakDayPlaybacks"`
}

type dailyPlaybacks struct {
	Date          string `json:"date"`
	Playbacks     int64  `json:"playbacks"`
	UniqueViewers int64  `json:"uniqueViewers"`
	Leads         int64  `json:"leads"`
}

type journeyCount struct {
	Summary    string  `json:"summary"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type breakdownItem struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

type analyticsResponse struct {
	Summary   analyticsSummary `json:"summary"`
	Daily     []dailyPlaybacks `json:"daily"`
	Journeys  []journeyCount   `json:"journeys"`
	Referrers []breakdownItem  `json:"referrers"`
	Browsers  []breakdownItem  `json:"browsers"`
	Devices   []breakdownItem  `json:"devices"`
	Countries []breakdownItem  `json:"countries"`
}

func parseRange(w http.ResponseWriter, r *http.Request) (since time.Time, now time.Time, ok bool) {
	rangeParam := r.URL.Query().Get("range")
	if rangeParam == "" {
		rangeParam = "7d"
	}

	var days int
	switch rangeParam {
	case "7d":
		days = 7
	case "30d":
		days = 30
	case "90d":
		days = 90
	case "all":
		days = 0
	default:
		httputil.WriteError(w, http.StatusBadRequest, "invalid range: must be 7d, 30d, 90d, or all")
		return time.Time{}, time.Time{}, false
	}

	now = time.Now().UTC().Truncate(24 * time.Hour)
	if days > 0 {
		since = now.AddDate(0, 0, -(days - 1))
	}
	return since, now, true
}

func (h *Handler) sessionExists(r *http.Request, w http.ResponseWriter) (string, bool) {
	sessionID := chi.URLParam(r, "id")

	var id string
	err := h.db.QueryRow(r.Context(),
		`SELECT id FROM sessions WHERE id = $1 AND status != 'deleted'`,
		sessionID,
	).Scan(&id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return "", false
	}
	return id, true
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	// Reject a bad range before touching the database.
	since, now, ok := parseRange(w, r)
	if !ok {
		return
	}

	sessionID, ok := h.sessionExists(r, w)
	if !ok {
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT date_trunc('day', created_at) AS day,
		        COUNT(*) AS playbacks,
		        COUNT(DISTINCT viewer_hash) AS unique_viewers
		 FROM watch_reports WHERE session_id = $1 AND created_at >= $2
		 GROUP BY day ORDER BY day`,
		sessionID, since,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to query analytics")
		return
	}
	defer rows.Close()

	dataByDate := make(map[string]dailyPlaybacks)
	for rows.Next() {
		var day time.Time
		var playbacks, unique int64
		if err := rows.Scan(&day, &playbacks, &unique); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan analytics")
			return
		}
		dateStr := day.Format("2006-01-02")
		dataByDate[dateStr] = dailyPlaybacks{
			Date:          dateStr,
			Playbacks:     playbacks,
			UniqueViewers: unique,
		}
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read analytics")
		return
	}

	leadRows, err := h.db.Query(r.Context(),
		`SELECT date_trunc('day', created_at) AS day, COUNT(*) AS leads
		 FROM leads WHERE session_id = $1 AND created_at >= $2
		 GROUP BY day ORDER BY day`,
		sessionID, since,
	)
	if err == nil {
		defer leadRows.Close()
		for leadRows.Next() {
			var day time.Time
			var leads int64
			if err := leadRows.Scan(&day, &leads); err == nil {
				dateStr := day.Format("2006-01-02")
				entry := dataByDate[dateStr]
				entry.Date = dateStr
				entry.Leads = leads
				dataByDate[dateStr] = entry
			}
		}
	}

	daily := fillDaily(dataByDate, since, now)

	summary := computeSummary(daily, now.Format("2006-01-02"))

	err = h.db.QueryRow(r.Context(),
		`SELECT COALESCE(AVG(watch_time_seconds), 0),
		        COUNT(*) FILTER (WHERE completed)
		 FROM watch_reports WHERE session_id = $1 AND created_at >= $2`,
		sessionID, since,
	).Scan(&summary.AvgWatchSeconds, &summary.CompletedJourneys)
	if err != nil {
		summary.AvgWatchSeconds = 0
		summary.CompletedJourneys = 0
	}
	if summary.TotalPlaybacks > 0 {
		summary.LeadRate = math.Round(float64(summary.TotalLeads)/float64(summary.TotalPlaybacks)*1000) / 10
		summary.CompletionRate = math.Round(float64(summary.CompletedJourneys)/float64(summary.TotalPlaybacks)*1000) / 10
	}

	journeys := make([]journeyCount, 0)
	journeyRows, err := h.db.Query(r.Context(),
		`SELECT journey_summary, COUNT(*) AS cnt
		 FROM watch_reports
		 WHERE session_id = $1 AND created_at >= $2 AND journey_summary != ''
		 GROUP BY journey_summary ORDER BY cnt DESC LIMIT 20`,
		sessionID, since,
	)
	if err == nil {
		defer journeyRows.Close()
		var total int64
		for journeyRows.Next() {
			var jc journeyCount
			if err := journeyRows.Scan(&jc.Summary, &jc.Count); err == nil {
				journeys = append(journeys, jc)
				total += jc.Count
			}
		}
		if total > 0 {
			for i := range journeys {
				journeys[i].Percentage = math.Round(float64(journeys[i].Count)/float64(total)*1000) / 10
			}
		}
	}

	httputil.WriteJSON(w, http.StatusOK, analyticsResponse{
		Summary:   summary,
		Daily:     daily,
		Journeys:  journeys,
		Referrers: h.breakdown(r, sessionID, since, "referrer"),
		Browsers:  h.breakdown(r, sessionID, since, "browser"),
		Devices:   h.breakdown(r, sessionID, since, "device"),
		Countries: h.breakdown(r, sessionID, since, "country"),
	})
}

// breakdown aggregates one enrichment column of watch_reports into
// percentage buckets. The column name comes from a fixed caller-side set,
// never from user input.
func (h *Handler) breakdown(r *http.Request, sessionID string, since time.Time, column string) []breakdownItem {
	items := make([]breakdownItem, 0)

	rows, err := h.db.Query(r.Context(),
		`SELECT `+column+`, COUNT(*) AS cnt
		 FROM watch_reports WHERE session_id = $1 AND created_at >= $2 AND `+column+` != ''
		 GROUP BY `+column+` ORDER BY cnt DESC`,
		sessionID, since,
	)
	if err != nil {
		return items
	}
	defer rows.Close()

	type countedItem struct {
		name  string
		count int64
	}
	var counts []countedItem
	var total int64
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err == nil {
			counts = append(counts, countedItem{name, count})
			total += count
		}
	}
	if total > 0 {
		for _, c := range counts {
			items = append(items, breakdownItem{
				Name:       c.name,
				Percentage: math.Round(float64(c.count)/float64(total)*1000) / 10,
			})
		}
	}
	return items
}

func fillDaily(dataByDate map[string]dailyPlaybacks, since, now time.Time) []dailyPlaybacks {
	daily := make([]dailyPlaybacks, 0)
	if !since.IsZero() {
		for d := since; !d.After(now); d = d.AddDate(0, 0, 1) {
			dateStr := d.Format("2006-01-02")
			if entry, ok := dataByDate[dateStr]; ok {
				daily = append(daily, entry)
			} else {
				daily = append(daily, dailyPlaybacks{Date: dateStr})
			}
		}
		return daily
	}
	for _, entry := range dataByDate {
		daily = append(daily, entry)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })
	return daily
}

func computeSummary(daily []dailyPlaybacks, today string) analyticsSummary {
	var s analyticsSummary
	for _, d := range daily {
		s.TotalPlaybacks += d.Playbacks
		s.UniqueViewers += d.UniqueViewers
		s.TotalLeads += d.Leads
		if d.Date == today {
			s.PlaybacksToday = d.Playbacks
		}
		if d.Playbacks > s.PeakDayPlaybacks {
			s.PeakDayPlaybacks = d.Playbacks
			s.PeakDay = d.Date
		}
	}
	return s
}

type leadItem struct {
	ID             string            `json:"id"`
	FormTitle      string            `json:"formTitle"`
	Fields         map[string]string `json:"fields"`
	JourneySummary string            `json:"journeySummary"`
	Referrer       string            `json:"referrer,omitempty"`
	Browser        string            `json:"browser,omitempty"`
	Device         string            `json:"device,omitempty"`
	Country        string            `json:"country,omitempty"`
	City           string            `json:"city,omitempty"`
	CreatedAt      string            `json:"createdAt"`
}

type leadsResponse struct {
	Leads []leadItem `json:"leads"`
	Total int64      `json:"total"`
}

func (h *Handler) Leads(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionExists(r, w)
	if !ok {
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT id, form_title, fields, journey_summary, referrer, browser, device, country, city, created_at
		 FROM leads WHERE session_id = $1
		 ORDER BY created_at DESC LIMIT 500`,
		sessionID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to query leads")
		return
	}
	defer rows.Close()

	leads := make([]leadItem, 0)
	for rows.Next() {
		var li leadItem
		var fieldsJSON []byte
		var createdAt time.Time
		if err := rows.Scan(&li.ID, &li.FormTitle, &fieldsJSON, &li.JourneySummary,
			&li.Referrer, &li.Browser, &li.Device, &li.Country, &li.City, &createdAt); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan leads")
			return
		}
		li.Fields = make(map[string]string)
		if err := json.Unmarshal(fieldsJSON, &li.Fields); err != nil {
			li.Fields = map[string]string{}
		}
		li.CreatedAt = createdAt.Format(time.RFC3339)
		leads = append(leads, li)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read leads")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, leadsResponse{Leads: leads, Total: int64(len(leads))})
}

// LeadsExport streams the session's leads as CSV. Field values can contain
// commas and newlines, so rows go through encoding/csv.
func (h *Handler) LeadsExport(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionExists(r, w)
	if !ok {
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT form_title, fields, journey_summary, referrer, browser, device, country, city, created_at
		 FROM leads WHERE session_id = $1
		 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to query leads")
		return
	}
	defer rows.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=leads.csv")

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Created At", "Form", "Fields", "Journey", "Referrer", "Browser", "Device", "Country", "City"})
	for rows.Next() {
		var formTitle, summary, referrer, browser, device, country, city string
		var fieldsJSON []byte
		var createdAt time.Time
		if err := rows.Scan(&formTitle, &fieldsJSON, &summary, &referrer, &browser, &device, &country, &city, &createdAt); err != nil {
			continue
		}
		fields := make(map[string]string)
		_ = json.Unmarshal(fieldsJSON, &fields)
		_ = cw.Write([]string{
			createdAt.Format("2006-01-02 15:04:05"),
			formTitle,
			formatLeadFieldsLine(fields),
			summary,
			referrer, browser, device, country, city,
		})
	}
	cw.Flush()
}

func formatLeadFieldsLine(fields map[string]string) string {
	labels := make([]string, 0, len(fields))
	for label := range fields {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	line := ""
	for i, label := range labels {
		if i > 0 {
			line += "; "
		}
		line += label + ": " + fields[label]
	}
	return line
}
