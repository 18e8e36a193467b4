package session

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/funnelcast/funnelcast/internal/auth"
	"github.com/funnelcast/funnelcast/internal/httputil"
	"github.com/funnelcast/funnelcast/internal/player"
)

type startRequest struct {
	AutoplayGranted bool `json:"autoplayGranted"`
}

type startResponse struct {
	Token      string          `json:"token"`
	PlaybackID string          `json:"playbackId"`
	State      player.Snapshot `json:"state"`
}

// StartPlayback creates one live player for a viewer run and hands back the
// bearer token the watch page uses for every subsequent event.
func (h *Handler) StartPlayback(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "shareToken")

	var req startRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

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
		httputil.WriteError(w, http.StatusForbidden, "password required")
		return
	}

	playbackID := uuid.NewString()
	p, err := player.NewPlayer(b.Data, player.Options{
		LeadSink: &leadSink{db: h.db, viewer: viewerInfoFromRequest(r, h.geo)},
		LeadNotifier: &leadDispatcher{
			db:            h.db,
			notifier:      h.notifier,
			webhookClient: h.webhookClient,
			sessionTitle:  b.Data.Session.Title,
		},
		Reporter: player.NewReporter(NewDBFlushTransport(h.db)),
	})
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "session has no videos")
		return
	}
	p.Start(req.AutoplayGranted)

	token, err := auth.GeneratePlaybackToken(h.hmacSecret, b.Data.Session.ID, playbackID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to start playback")
		return
	}

	h.registry.Put(&Playback{ID: playbackID, Player: p, Bundle: b})

	httputil.WriteJSON(w, http.StatusOK, startResponse{
		Token:      token,
		PlaybackID: playbackID,
		State:      p.State(),
	})
}

// playbackFromRequest resolves the live playback for a bearer token.
func (h *Handler) playbackFromRequest(r *http.Request) (*Playback, error) {
	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("missing bearer token")
	}
	claims, err := auth.ValidatePlaybackToken(h.hmacSecret, tokenStr)
	if err != nil {
		return nil, err
	}
	pb, ok := h.registry.Get(claims.PlaybackID)
	if !ok {
		return nil, fmt.Errorf("playback not found")
	}
	return pb, nil
}

type eventRequest struct {
	Type       string  `json:"type"`
	Time       float64 `json:"time,omitempty"`
	LinkID     string  `json:"linkId,omitempty"`
	QuestionID string  `json:"questionId,omitempty"`
	AnswerID   string  `json:"answerId,omitempty"`
}

type eventResponse struct {
	State    player.Snapshot `json:"state"`
	Form     *formSchemaJSON `json:"form,omitempty"`
	Solution *solutionDTO    `json:"solution,omitempty"`
	OpenURL  string          `json:"openUrl,omitempty"`
}

// PlayEvent drives one live player from the watch page: playback controls,
// media ended, overlay clicks, question answers and navigation-video moves.
func (h *Handler) PlayEvent(w http.ResponseWriter, r *http.Request) {
	pb, err := h.playbackFromRequest(r)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid playback")
		return
	}

	var req eventRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := pb.Player
	resp := eventResponse{}

	switch req.Type {
	case "play":
		p.Play()
	case "pause":
		p.Pause()
	case "timeupdate":
		p.TimeUpdate(req.Time)
	case "restart":
		p.Restart()
	case "back":
		p.Back()
	case "ended":
		p.HandleEnded()
	case "link":
		// Capture the link before the click possibly swaps videos, so url
		// links can hand their target back.
		var clicked *player.OverlayLink
		if v := pb.Bundle.Data.VideoByID(p.State().VideoID); v != nil {
			for i := range v.Links {
				if v.Links[i].ID == req.LinkID {
					clicked = &v.Links[i]
					break
				}
			}
		}
		_, form, err := p.ClickLink(req.LinkID)
		if err != nil {
			httputil.WriteError(w, http.StatusUnprocessableEntity, "unknown link")
			return
		}
		resp.Form = encodeFormSchema(form)
		if clicked != nil && clicked.Type == player.LinkURL {
			resp.OpenURL = clicked.URL
		}
	case "answer":
		if _, err := p.Answer(req.QuestionID, req.AnswerID); err != nil {
			httputil.WriteError(w, http.StatusUnprocessableEntity, "unknown answer")
			return
		}
	case "nav_open":
		p.OpenNavigation()
	case "nav_exit":
		p.ExitNavigation()
	default:
		httputil.WriteError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	resp.State = p.State()
	if sol := p.Solution(); sol != nil {
		dto := encodeSolution(sol)
		resp.Solution = &dto
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type formRequest struct {
	Action string              `json:"action"`
	Values map[string][]string `json:"values"`
}

type formResponse struct {
	State       player.Snapshot     `json:"state"`
	FieldErrors []player.FieldError `json:"fieldErrors,omitempty"`
}

// PlayForm submits or closes the open form interlude. Validation failures
// come back as field errors with the form still open.
func (h *Handler) PlayForm(w http.ResponseWriter, r *http.Request) {
	pb, err := h.playbackFromRequest(r)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid playback")
		return
	}

	var req formRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := pb.Player
	switch req.Action {
	case "submit":
		_, fieldErrs, err := p.SubmitForm(r.Context(), req.Values)
		if err != nil {
			httputil.WriteError(w, http.StatusConflict, "no open form")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, formResponse{State: p.State(), FieldErrors: fieldErrs})
	case "close":
		p.CloseForm()
		httputil.WriteJSON(w, http.StatusOK, formResponse{State: p.State()})
	default:
		httputil.WriteError(w, http.StatusBadRequest, "unknown form action")
	}
}
