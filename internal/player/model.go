// Package player implements the playback and branching engine for
// interactive video sessions: geometry for timed overlays, the playback
// state machine, per-session-type branch resolution, journey recording and
// best-effort watch-time reporting. The package has no I/O of its own; all
// side effects go through the small interfaces declared next to their
// consumers.
package player

import "time"

// SessionType selects the branch policy wired into a Player.
type SessionType string

const (
	SessionLinear      SessionType = "linear"
	SessionInteractive SessionType = "interactive"
	SessionSelection   SessionType = "selection"
)

// Session is the immutable header of one authored funnel.
type Session struct {
	ID                       string
	CompanyID                string
	Title                    string
	Type                     SessionType
	NavigationVideoID        string
	NavigationButtonImageURL string
	ShowPlayButton           bool
}

// VideoNode is one playable step of a session. Authored order is the order
// of SessionData.Videos; the navigation video is kept outside that order.
type VideoNode struct {
	ID                 string
	Title              string
	URL                string
	DurationSeconds    float64
	FreezeAtEnd        bool
	IsNavigationVideo  bool
	DestinationVideoID string
	SolutionID         string
	Links              []OverlayLink
	Questions          []Question
}

// LinkType discriminates the payload of an OverlayLink.
type LinkType string

const (
	LinkURL   LinkType = "url"
	LinkVideo LinkType = "video"
	LinkForm  LinkType = "form"
)

// DefaultLinkDurationMs is the visibility window used when the author did
// not set one.
const DefaultLinkDurationMs = 3000

// OverlayLink is a clickable image shown on top of the video during the
// window [TimestampSeconds, TimestampSeconds+DurationMs/1000]. Exactly one
// of URL, DestinationVideoID or Form is set, matching Type.
type OverlayLink struct {
	ID               string
	TimestampSeconds float64
	DurationMs       int
	Label            string
	Type             LinkType
	PositionX        float64 // percent of video frame, 0..100
	PositionY        float64
	NormalImage      *OverlayImage
	HoverImage       *OverlayImage

	URL                string
	DestinationVideoID string
	Form               *FormSchema
}

// WindowSeconds returns the visibility window length in seconds, applying
// the default when the authored value is missing.
func (l OverlayLink) WindowSeconds() float64 {
	ms := l.DurationMs
	if ms <= 0 {
		ms = DefaultLinkDurationMs
	}
	return float64(ms) / 1000
}

// OverlayImage is an authored overlay asset with its native pixel size.
type OverlayImage struct {
	URL    string
	Width  float64
	Height float64
}

// FieldType enumerates the supported form field kinds.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldTextarea FieldType = "textarea"
	FieldDropdown FieldType = "dropdown"
	FieldCheckbox FieldType = "checkbox"
	FieldRadio    FieldType = "radio"
)

// FormSchema describes an inline lead form rendered as an interlude.
// DestinationVideoID, when set, is the post-submit branch target.
type FormSchema struct {
	ID                 string
	Title              string
	Fields             []FormField
	DestinationVideoID string
}

// FormField is one ordered field of a FormSchema. Options are only
// meaningful for dropdown, checkbox and radio fields.
type FormField struct {
	ID       string
	Label    string
	Type     FieldType
	Required bool
	Options  []FieldOption
}

// FieldOption is a selectable choice; Raw values carry the ID, formatted
// values resolve to the Label.
type FieldOption struct {
	ID    string
	Label string
}

// Question is shown when its video ends; answers drive branching.
type Question struct {
	ID      string
	Text    string
	Answers []Answer
}

// Answer is one choice of a Question. In interactive sessions
// DestinationVideoID, when set, wins over every video-level destination.
type Answer struct {
	ID                 string
	Label              string
	DestinationVideoID string
}

// AnswerCombination maps a set of answer IDs (one per question) to a
// solution, for selection sessions.
type AnswerCombination struct {
	AnswerIDs  []string
	SolutionID string
}

// SolutionCategory discriminates the payload of a Solution.
type SolutionCategory string

const (
	SolutionForm  SolutionCategory = "form"
	SolutionEmail SolutionCategory = "email"
	SolutionLink  SolutionCategory = "link"
	SolutionVideo SolutionCategory = "video"
)

// Solution is a terminal state of a session.
type Solution struct {
	ID       string
	Category SolutionCategory
	URL      string
	Email    string
	VideoID  string
	Form     *FormSchema
}

// SessionData is the already-fetched, immutable bundle a Player runs on.
type SessionData struct {
	Session         Session
	Videos          []*VideoNode
	NavigationVideo *VideoNode
	Solutions       []*Solution
	Combinations    []AnswerCombination
}

// VideoByID looks up a video in the main sequence or the navigation video.
func (d *SessionData) VideoByID(id string) *VideoNode {
	for _, v := range d.Videos {
		if v.ID == id {
			return v
		}
	}
	if d.NavigationVideo != nil && d.NavigationVideo.ID == id {
		return d.NavigationVideo
	}
	return nil
}

// SolutionByID returns nil when the id is unknown.
func (d *SessionData) SolutionByID(id string) *Solution {
	for _, s := range d.Solutions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// solutionFor resolves the terminal solution for a video: the video's own
// solution if authored, else the session's single default.
func (d *SessionData) solutionFor(v *VideoNode) *Solution {
	if v != nil && v.SolutionID != "" {
		if s := d.SolutionByID(v.SolutionID); s != nil {
			return s
		}
	}
	if len(d.Solutions) == 1 {
		return d.Solutions[0]
	}
	return nil
}

// videoAfter returns the next video in authored order, or nil.
func (d *SessionData) videoAfter(v *VideoNode) *VideoNode {
	for i, cur := range d.Videos {
		if cur.ID == v.ID {
			if i+1 < len(d.Videos) {
				return d.Videos[i+1]
			}
			return nil
		}
	}
	return nil
}

// ClickKind tags a clicked element in the journey.
type ClickKind string

const (
	ClickButton  ClickKind = "button"
	ClickForm    ClickKind = "form"
	ClickRestart ClickKind = "restart"
)

// ClickedElement identifies what the viewer clicked.
type ClickedElement struct {
	ID    string
	Label string
	Kind  ClickKind
}

// JourneyStep is one entry of the append-only journey log.
type JourneyStep struct {
	VideoID    string
	VideoTitle string
	Clicked    *ClickedElement
	Timestamp  time.Time
}
