package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/funnelcast/funnelcast/internal/httputil"
	"github.com/funnelcast/funnelcast/internal/player"
)

// Wire DTOs for the watch surface. The engine types carry no JSON tags on
// purpose; this is the one place their public shape is decided.

type overlayImageDTO struct {
	URL    string  `json:"url"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type overlayLinkDTO struct {
	ID                 string           `json:"id"`
	TimestampSeconds   float64          `json:"timestampSeconds"`
	DurationMs         int              `json:"durationMs"`
	Label              string           `json:"label"`
	Type               string           `json:"type"`
	PositionX          float64          `json:"positionX"`
	PositionY          float64          `json:"positionY"`
	NormalImage        *overlayImageDTO `json:"normalImage,omitempty"`
	HoverImage         *overlayImageDTO `json:"hoverImage,omitempty"`
	URL                string           `json:"url,omitempty"`
	DestinationVideoID string           `json:"destinationVideoId,omitempty"`
	Form               *formSchemaJSON  `json:"form,omitempty"`
}

type answerDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type questionDTO struct {
	ID      string      `json:"id"`
	Text    string      `json:"text"`
	Answers []answerDTO `json:"answers"`
}

type videoDTO struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	URL             string           `json:"url"`
	DurationSeconds float64          `json:"durationSeconds"`
	FreezeAtEnd     bool             `json:"freezeAtEnd"`
	Links           []overlayLinkDTO `json:"links,omitempty"`
	Questions       []questionDTO    `json:"questions,omitempty"`
}

type solutionDTO struct {
	ID       string          `json:"id"`
	Category string          `json:"category"`
	URL      string          `json:"url,omitempty"`
	Email    string          `json:"email,omitempty"`
	VideoID  string          `json:"videoId,omitempty"`
	Form     *formSchemaJSON `json:"form,omitempty"`
}

type watchResponse struct {
	SessionID                string        `json:"sessionId"`
	Title                    string        `json:"title"`
	Type                     string        `json:"type"`
	ShowPlayButton           bool          `json:"showPlayButton"`
	NavigationVideo          *videoDTO     `json:"navigationVideo,omitempty"`
	NavigationButtonImageURL string        `json:"navigationButtonImageUrl,omitempty"`
	Videos                   []videoDTO    `json:"videos"`
	Solutions                []solutionDTO `json:"solutions,omitempty"`
	PasswordRequired         bool          `json:"passwordRequired"`
}

func encodeFormSchema(fs *player.FormSchema) *formSchemaJSON {
	if fs == nil {
		return nil
	}
	out := &formSchemaJSON{
		ID:                 fs.ID,
		Title:              fs.Title,
		DestinationVideoID: fs.DestinationVideoID,
	}
	for _, f := range fs.Fields {
		field := formFieldJSON{
			ID:       f.ID,
			Label:    f.Label,
			Type:     string(f.Type),
			Required: f.Required,
		}
		for _, o := range f.Options {
			field.Options = append(field.Options, fieldOptionJSON{ID: o.ID, Label: o.Label})
		}
		out.Fields = append(out.Fields, field)
	}
	return out
}

func encodeOverlayLink(l player.OverlayLink) overlayLinkDTO {
	dto := overlayLinkDTO{
		ID:                 l.ID,
		TimestampSeconds:   l.TimestampSeconds,
		DurationMs:         l.DurationMs,
		Label:              l.Label,
		Type:               string(l.Type),
		PositionX:          l.PositionX,
		PositionY:          l.PositionY,
		URL:                l.URL,
		DestinationVideoID: l.DestinationVideoID,
		Form:               encodeFormSchema(l.Form),
	}
	if l.NormalImage != nil {
		dto.NormalImage = &overlayImageDTO{URL: l.NormalImage.URL, Width: l.NormalImage.Width, Height: l.NormalImage.Height}
	}
	if l.HoverImage != nil {
		dto.HoverImage = &overlayImageDTO{URL: l.HoverImage.URL, Width: l.HoverImage.Width, Height: l.HoverImage.Height}
	}
	return dto
}

func encodeVideo(v *player.VideoNode) videoDTO {
	dto := videoDTO{
		ID:              v.ID,
		Title:           v.Title,
		URL:             v.URL,
		DurationSeconds: v.DurationSeconds,
		FreezeAtEnd:     v.FreezeAtEnd,
	}
	for _, l := range v.Links {
		dto.Links = append(dto.Links, encodeOverlayLink(l))
	}
	for _, q := range v.Questions {
		qd := questionDTO{ID: q.ID, Text: q.Text}
		for _, a := range q.Answers {
			qd.Answers = append(qd.Answers, answerDTO{ID: a.ID, Label: a.Label})
		}
		dto.Questions = append(dto.Questions, qd)
	}
	return dto
}

func encodeSolution(s *player.Solution) solutionDTO {
	return solutionDTO{
		ID:       s.ID,
		Category: string(s.Category),
		URL:      s.URL,
		Email:    s.Email,
		VideoID:  s.VideoID,
		Form:     encodeFormSchema(s.Form),
	}
}

// Watch returns the full session bundle for the watch page. A
// password-gated session without a valid cookie returns only the gate
// marker, never the content.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "shareToken")

	b, err := LoadBundle(r.Context(), h.db, h.storage, shareToken)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	if shareExpired(b.ShareExpiresAt) {
		httputil.WriteError(w, http.StatusGone, "link expired")
		return
	}

	if b.SharePassword != nil && !hasValidWatchCookie(r, h.hmacSecret, shareToken, *b.SharePassword) {
		httputil.WriteJSON(w, http.StatusOK, watchResponse{
			SessionID:        b.Data.Session.ID,
			Title:            b.Data.Session.Title,
			PasswordRequired: true,
		})
		return
	}

	resp := watchResponse{
		SessionID:                b.Data.Session.ID,
		Title:                    b.Data.Session.Title,
		Type:                     string(b.Data.Session.Type),
		ShowPlayButton:           b.Data.Session.ShowPlayButton,
		NavigationButtonImageURL: b.Data.Session.NavigationButtonImageURL,
	}
	for _, v := range b.Data.Videos {
		resp.Videos = append(resp.Videos, encodeVideo(v))
	}
	if b.Data.NavigationVideo != nil {
		nav := encodeVideo(b.Data.NavigationVideo)
		resp.NavigationVideo = &nav
	}
	for _, s := range b.Data.Solutions {
		resp.Solutions = append(resp.Solutions, encodeSolution(s))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
