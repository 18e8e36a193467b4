package player

import (
	"fmt"
	"strings"
	"time"
)

// Synthetic identifiers used for the navigation-video interlude. Instances
// of the navigation video get a prefixed id per visit so the journey can
// tell visits apart from the authored sequence.
const (
	NavigationInstancePrefix = "navigation-video-"
	NavigationCompletedID    = "navigation-video-completed"
	NavigationButtonLabel    = "Navigation Button"
)

const formStepPrefix = "Submitted form: "

// Journey is the append-only, deduplicating log of videos viewed and
// elements clicked during one playback. It lives exactly as long as the
// player that owns it.
type Journey struct {
	steps []JourneyStep
	now   func() time.Time
}

// NewJourney creates an empty journey.
func NewJourney() *Journey {
	return &Journey{now: time.Now}
}

// AddVideo appends a "viewed" step unless the immediately preceding step is
// already for the same video; re-entering a video without an intervening
// click never duplicates.
func (j *Journey) AddVideo(v *VideoNode) {
	if v == nil {
		return
	}
	if n := len(j.steps); n > 0 && j.steps[n-1].VideoID == v.ID {
		return
	}
	j.steps = append(j.steps, JourneyStep{
		VideoID:    v.ID,
		VideoTitle: v.Title,
		Timestamp:  j.now(),
	})
}

// AddClick appends a click step, inserting an implicit "viewed" step first
// when the last step belongs to a different video.
func (j *Journey) AddClick(v *VideoNode, el ClickedElement) {
	if v == nil {
		return
	}
	if n := len(j.steps); n == 0 || j.steps[n-1].VideoID != v.ID {
		j.AddVideo(v)
	}
	j.steps = append(j.steps, JourneyStep{
		VideoID:    v.ID,
		VideoTitle: v.Title,
		Clicked:    &el,
		Timestamp:  j.now(),
	})
}

// addNavigationVisit records a visit to the navigation video under its
// per-visit synthetic id.
func (j *Journey) addNavigationVisit(instanceID, title string) {
	if n := len(j.steps); n > 0 && j.steps[n-1].VideoID == instanceID {
		return
	}
	j.steps = append(j.steps, JourneyStep{
		VideoID:    instanceID,
		VideoTitle: title,
		Timestamp:  j.now(),
	})
}

// addNavigationExit logs the completed click under the visit's synthetic
// instance id. Logging it under the navigation video's real id would make
// AddClick insert a stray implicit viewed step for the real video.
func (j *Journey) addNavigationExit(instanceID, title string) {
	j.addNavigationVisit(instanceID, title)
	j.steps = append(j.steps, JourneyStep{
		VideoID:    instanceID,
		VideoTitle: title,
		Clicked: &ClickedElement{
			ID:    NavigationCompletedID,
			Label: NavigationButtonLabel,
			Kind:  ClickButton,
		},
		Timestamp: j.now(),
	})
}

// Steps returns a copy of the log in append order.
func (j *Journey) Steps() []JourneyStep {
	out := make([]JourneyStep, len(j.steps))
	copy(out, j.steps)
	return out
}

// Len reports the number of recorded steps.
func (j *Journey) Len() int { return len(j.steps) }

// Summarize renders the journey as a deterministic arrow-joined string. It
// is side-effect-free; the same log always produces the same summary. The
// result goes verbatim into lead records and notification emails.
func (j *Journey) Summarize() string {
	return SummarizeSteps(j.steps)
}

// SummarizeSteps renders any step slice; exported so persisted journeys can
// be re-summarized outside a live player.
func SummarizeSteps(steps []JourneyStep) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, renderStep(s))
	}
	return strings.Join(parts, " -> ")
}

func renderStep(s JourneyStep) string {
	if s.Clicked == nil {
		if strings.HasPrefix(s.VideoID, NavigationInstancePrefix) {
			return s.VideoTitle + " [Navigation video]"
		}
		return s.VideoTitle
	}
	c := s.Clicked
	switch {
	case strings.HasPrefix(c.Label, formStepPrefix):
		return c.Label
	case c.Kind == ClickRestart:
		return fmt.Sprintf("%s (%s)", s.VideoTitle, c.Label)
	case c.ID == NavigationCompletedID:
		return "Returned from navigation video"
	case c.Label == NavigationButtonLabel:
		return "Opened navigation video"
	default:
		return fmt.Sprintf("%s (clicked %q)", s.VideoTitle, c.Label)
	}
}
