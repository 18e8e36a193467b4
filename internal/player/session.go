package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownVideo is returned for events referencing ids outside the
// session bundle — a content-integrity problem, fatal to the instance.
var ErrUnknownVideo = errors.New("unknown video")

// ErrNoForm is returned when a form submit arrives with no open form.
var ErrNoForm = errors.New("no open form")

// Options configures a Player beyond its session data.
type Options struct {
	LeadSink     LeadSink
	LeadNotifier LeadNotifier
	Reporter     *Reporter
}

// Player is the composition root: one instance per playback, wiring the
// controller, the session-type branch policy, the journey and the
// interlude around one immutable session bundle. All methods are safe for
// concurrent use; the HTTP host drives a player from multiple requests.
type Player struct {
	mu sync.Mutex

	data       *SessionData
	controller *Controller
	resolver   Resolver
	journey    *Journey
	interlude  *Interlude
	reporter   *Reporter

	history  []*VideoNode
	question *Question
	solution *Solution
	terminal bool

	navReturn     *VideoNode
	navReturnMode Mode
	navVisits     int
}

// NewPlayer validates the bundle and builds a player for its session type.
func NewPlayer(data *SessionData, opts Options) (*Player, error) {
	if data == nil || len(data.Videos) == 0 {
		return nil, fmt.Errorf("session has no videos")
	}
	journey := NewJourney()
	controller := NewController(journey)
	p := &Player{
		data:       data,
		controller: controller,
		resolver:   NewResolver(data),
		journey:    journey,
		reporter:   opts.Reporter,
	}
	p.interlude = NewInterlude(controller, journey, opts.LeadSink, opts.LeadNotifier)
	return p, nil
}

// Start mounts the first video and begins watch-time tracking. Hosts report
// whether autoplay was granted; a rejection falls back to paused controls.
func (p *Player) Start(autoplayGranted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mount(p.data.Videos[0], autoplayGranted)
	if p.reporter != nil {
		p.reporter.Start()
	}
}

// mount loads a video and records the viewed step. Caller holds the lock.
func (p *Player) mount(v *VideoNode, autoplayGranted bool) {
	p.controller.Load(v, autoplayGranted)
	p.question = nil
	p.journey.AddVideo(v)
}

// Journey exposes the live journey log.
func (p *Player) Journey() *Journey { return p.journey }

// Reporter exposes the watch-time reporter, nil when not configured.
func (p *Player) Reporter() *Reporter { return p.reporter }

// Data exposes the immutable session bundle.
func (p *Player) Data() *SessionData { return p.data }

// Snapshot is the host-facing view of playback state.
type Snapshot struct {
	VideoID          string        `json:"videoId"`
	VideoTitle       string        `json:"videoTitle"`
	Mode             Mode          `json:"mode"`
	CurrentTime      float64       `json:"currentTime"`
	ActiveOverlays   []OverlayLink `json:"-"`
	ActiveOverlayIDs []string      `json:"activeOverlayIds"`
	Question         *Question     `json:"-"`
	QuestionID       string        `json:"questionId,omitempty"`
	SolutionID       string        `json:"solutionId,omitempty"`
	Terminal         bool          `json:"terminal"`
	FormOpen         bool          `json:"formOpen"`
	CanGoBack        bool          `json:"canGoBack"`
}

// State returns the current snapshot.
func (p *Player) State() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Player) snapshotLocked() Snapshot {
	s := Snapshot{
		Mode:        p.controller.Mode(),
		CurrentTime: p.controller.CurrentTime(),
		Terminal:    p.terminal,
		FormOpen:    p.interlude.Opened(),
		CanGoBack:   len(p.history) > 0,
		Question:    p.question,
	}
	if v := p.controller.Video(); v != nil {
		s.VideoID = v.ID
		s.VideoTitle = v.Title
	}
	s.ActiveOverlays = p.controller.ActiveOverlays()
	for _, l := range s.ActiveOverlays {
		s.ActiveOverlayIDs = append(s.ActiveOverlayIDs, l.ID)
	}
	if p.question != nil {
		s.QuestionID = p.question.ID
	}
	if p.solution != nil {
		s.SolutionID = p.solution.ID
	}
	return s
}

// Solution returns the resolved terminal solution, nil until one is shown.
func (p *Player) Solution() *Solution {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.solution
}

// Play, Pause and TimeUpdate forward viewer playback controls.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controller.Play()
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controller.Pause()
}

// TimeUpdate records the playback position and returns the active overlay
// set plus whether it changed since the last update.
func (p *Player) TimeUpdate(t float64) ([]OverlayLink, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controller.TimeUpdate(t)
}

// Restart rewinds the current video, logging the restart click.
func (p *Player) Restart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controller.Restart()
}

// HandleEnded processes the media "ended" event: freeze, hold, question or
// a branch resolution applied to the player.
func (p *Player) HandleEnded() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.controller.Video()
	if v == nil {
		return terminalOutcome()
	}
	switch p.controller.HandleEnded(len(v.Questions) > 0) {
	case EndHold:
		return Outcome{Kind: OutcomeTerminal}
	case EndFreeze:
		// Frozen is not terminal: the watch-again affordance stays live.
		return Outcome{Kind: OutcomeTerminal}
	case EndQuestion:
		out := p.resolver.ResolveNext(Event{Kind: EventEnded, Video: v})
		p.apply(out, v)
		return out
	default:
		out := p.resolver.ResolveNext(Event{Kind: EventEnded, Video: v})
		p.apply(out, v)
		return out
	}
}

// ClickLink logs the click and acts on the link: url links only log (the
// host opens the URL), video links branch, form links open the interlude.
// The click is always recorded before any state transition.
func (p *Player) ClickLink(linkID string) (Outcome, *FormSchema, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.controller.Video()
	if v == nil {
		return terminalOutcome(), nil, ErrUnknownVideo
	}
	var link *OverlayLink
	for i := range v.Links {
		if v.Links[i].ID == linkID {
			link = &v.Links[i]
			break
		}
	}
	if link == nil {
		return terminalOutcome(), nil, fmt.Errorf("link %q not on video %q", linkID, v.ID)
	}

	p.journey.AddClick(v, ClickedElement{ID: link.ID, Label: link.Label, Kind: ClickButton})

	switch link.Type {
	case LinkForm:
		return Outcome{}, p.interlude.Open(link), nil
	case LinkVideo:
		out := p.resolver.ResolveNext(Event{Kind: EventLink, Video: v, Link: link})
		p.apply(out, v)
		return out, nil, nil
	default:
		return Outcome{}, nil, nil
	}
}

// Answer logs the answer click and resolves the branch. The click carries
// the answer label verbatim.
func (p *Player) Answer(questionID, answerID string) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.controller.Video()
	if v == nil {
		return terminalOutcome(), ErrUnknownVideo
	}
	var question *Question
	var answer *Answer
	for i := range v.Questions {
		if v.Questions[i].ID == questionID {
			question = &v.Questions[i]
			for a := range question.Answers {
				if question.Answers[a].ID == answerID {
					answer = &question.Answers[a]
					break
				}
			}
			break
		}
	}
	if question == nil || answer == nil {
		return terminalOutcome(), fmt.Errorf("answer %q not on video %q", answerID, v.ID)
	}

	p.journey.AddClick(v, ClickedElement{ID: answer.ID, Label: answer.Label, Kind: ClickButton})

	out := p.resolver.ResolveNext(Event{Kind: EventAnswer, Video: v, Question: question, Answer: answer})
	p.apply(out, v)
	return out, nil
}

// SubmitForm validates and submits the open interlude form, then resumes or
// branches. Field errors keep the form open.
func (p *Player) SubmitForm(ctx context.Context, values map[string][]string) (Outcome, []FieldError, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.interlude.Opened() {
		return Outcome{}, nil, ErrNoForm
	}
	dest, fieldErrs := p.interlude.Submit(ctx, p.data.Session, values)
	if len(fieldErrs) > 0 {
		return Outcome{}, fieldErrs, nil
	}
	if dest != "" {
		if next := p.data.VideoByID(dest); next != nil {
			out := nextOutcome(next)
			p.apply(out, p.controller.Video())
			return out, nil, nil
		}
	}
	return Outcome{}, nil, nil
}

// CloseForm abandons the open form without submitting.
func (p *Player) CloseForm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interlude.Close()
}

// Back pops the history stack. It is a pure UI convenience: no resolution
// runs and nothing is recorded as a forward branching decision.
func (p *Player) Back() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.history)
	if n == 0 {
		return false
	}
	prev := p.history[n-1]
	p.history = p.history[:n-1]
	p.controller.Load(prev, true)
	p.question = nil
	p.terminal = false
	p.solution = nil
	p.journey.AddVideo(prev)
	return true
}

// OpenNavigation suspends the current video and plays the persistent
// navigation video under a per-visit synthetic id. No-op when the session
// has none or one is already open.
func (p *Player) OpenNavigation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	nav := p.data.NavigationVideo
	if nav == nil || p.navReturn != nil {
		return false
	}
	cur := p.controller.Video()
	p.journey.AddClick(cur, ClickedElement{
		ID:    nav.ID,
		Label: NavigationButtonLabel,
		Kind:  ClickButton,
	})
	p.navReturn = cur
	p.navReturnMode = p.controller.Mode()
	p.navVisits++
	p.controller.Load(nav, true)
	p.journey.addNavigationVisit(fmt.Sprintf("%s%d", NavigationInstancePrefix, p.navVisits), nav.Title)
	return true
}

// ExitNavigation logs the synthetic completed click and restores the
// suspended video where it left off.
func (p *Player) ExitNavigation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.navReturn == nil {
		return false
	}
	nav := p.controller.Video()
	p.journey.addNavigationExit(fmt.Sprintf("%s%d", NavigationInstancePrefix, p.navVisits), nav.Title)
	back := p.navReturn
	mode := p.navReturnMode
	p.navReturn = nil
	p.controller.Load(back, mode == ModePlaying)
	p.journey.AddVideo(back)
	return true
}

// apply mutates player state for a branch outcome. Caller holds the lock.
func (p *Player) apply(out Outcome, from *VideoNode) {
	switch out.Kind {
	case OutcomeNext:
		if from != nil && !from.IsNavigationVideo {
			p.history = append(p.history, from)
		}
		p.mount(out.Video, true)
	case OutcomeQuestion:
		p.question = out.Question
		p.controller.PauseExternal()
	case OutcomeSolution:
		p.solution = out.Solution
		p.terminal = true
	case OutcomeTerminal:
		p.terminal = true
	}
}

// WatchReport builds the flush payload from live state, capturing an
// abandoned open form's title when present.
func (p *Player) WatchReport(playbackID string) Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	rep := Report{
		SessionID:  p.data.Session.ID,
		CompanyID:  p.data.Session.CompanyID,
		PlaybackID: playbackID,
		Journey:    p.journey.Steps(),
	}
	if form := p.interlude.LastOpenForm(); form != nil {
		rep.LastFormData = map[string]string{"openForm": form.Title}
	}
	if log, ok := p.resolver.(AnswerLog); ok {
		if answers := log.Selected(); len(answers) > 0 {
			rep.Answers = answers
		}
	}
	if p.solution != nil {
		rep.Completed = true
		rep.SolutionID = p.solution.ID
	}
	return rep
}
