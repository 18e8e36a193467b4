package player

// Mode is the playback state of the currently mounted video.
type Mode string

const (
	ModePlaying  Mode = "playing"
	ModePaused   Mode = "paused_by_user"
	ModeFrozen   Mode = "frozen_at_end"
	ModeExternal Mode = "paused_external" // form open or navigation handoff
)

// EndDisposition is the controller's verdict when the media element fires
// "ended". The branching layer owns what happens next.
type EndDisposition string

const (
	// EndAdvance means the branch resolver should be asked for the next
	// step.
	EndAdvance EndDisposition = "advance"
	// EndQuestion means the video carries an unanswered question; present
	// it before resolving.
	EndQuestion EndDisposition = "question"
	// EndFreeze means the video holds its last frame behind a "watch
	// again" affordance.
	EndFreeze EndDisposition = "freeze"
	// EndHold means playback simply stops: navigation videos are dead-ends
	// until the viewer explicitly exits.
	EndHold EndDisposition = "hold"
)

// Controller owns play/pause/restart/freeze state for the currently mounted
// video. It is the single writer of playback state; the form interlude and
// the branch layer go through Pause/Resume instead of touching the element.
type Controller struct {
	video       *VideoNode
	mode        Mode
	currentTime float64
	muted       bool
	tracker     ActivationTracker
	journey     *Journey
}

// NewController creates a controller that logs restart clicks to journey.
func NewController(journey *Journey) *Controller {
	return &Controller{mode: ModePaused, journey: journey}
}

// Load mounts a video and attempts autoplay. Hosts report whether the
// environment granted autoplay; a rejected autoplay must not error, the
// controller just falls back to paused with manual controls visible.
func (c *Controller) Load(v *VideoNode, autoplayGranted bool) {
	c.video = v
	c.currentTime = 0
	c.tracker = ActivationTracker{}
	if autoplayGranted {
		c.mode = ModePlaying
	} else {
		c.mode = ModePaused
	}
}

// Video returns the currently mounted video, nil before the first Load.
func (c *Controller) Video() *VideoNode { return c.video }

// Mode returns the current playback mode.
func (c *Controller) Mode() Mode { return c.mode }

// CurrentTime returns the last reported playback position in seconds.
func (c *Controller) CurrentTime() float64 { return c.currentTime }

// Play resumes viewer-initiated playback. It does not override an external
// pause; the interlude that paused must resume.
func (c *Controller) Play() {
	if c.mode == ModePaused || c.mode == ModeFrozen {
		c.mode = ModePlaying
	}
}

// Pause is the viewer-initiated pause.
func (c *Controller) Pause() {
	if c.mode == ModePlaying {
		c.mode = ModePaused
	}
}

// PauseExternal suspends playback on behalf of a form interlude or the
// navigation handoff.
func (c *Controller) PauseExternal() {
	c.mode = ModeExternal
}

// Resume ends an external pause and continues playing.
func (c *Controller) Resume() {
	if c.mode == ModeExternal {
		c.mode = ModePlaying
	}
}

// Restart rewinds to zero, re-enters playing and logs a restart click.
func (c *Controller) Restart() {
	if c.video == nil {
		return
	}
	if c.journey != nil {
		c.journey.AddClick(c.video, ClickedElement{
			ID:    c.video.ID + "-restart",
			Label: "Watch again",
			Kind:  ClickRestart,
		})
	}
	c.currentTime = 0
	c.tracker = ActivationTracker{}
	c.mode = ModePlaying
}

// SetMuted records the mute toggle.
func (c *Controller) SetMuted(muted bool) { c.muted = muted }

// Muted reports the mute state.
func (c *Controller) Muted() bool { return c.muted }

// TimeUpdate records the playback position and recomputes the active
// overlay set, reporting whether it changed.
func (c *Controller) TimeUpdate(t float64) ([]OverlayLink, bool) {
	c.currentTime = t
	if c.video == nil {
		return nil, false
	}
	return c.tracker.Update(t, c.video.Links)
}

// ActiveOverlays returns the memoized active set.
func (c *Controller) ActiveOverlays() []OverlayLink {
	return c.tracker.Active()
}

// HandleEnded maps the media "ended" event to a disposition. Navigation
// videos never advance and never show the completed-freeze panel; videos
// with a pending question surface it; freeze-at-end videos hold their last
// frame with the watch-again affordance.
func (c *Controller) HandleEnded(questionPending bool) EndDisposition {
	if c.video == nil {
		return EndHold
	}
	c.currentTime = c.video.DurationSeconds
	if c.video.IsNavigationVideo {
		c.mode = ModePaused
		return EndHold
	}
	if questionPending {
		c.mode = ModeExternal
		return EndQuestion
	}
	if c.video.FreezeAtEnd {
		c.mode = ModeFrozen
		return EndFreeze
	}
	return EndAdvance
}
