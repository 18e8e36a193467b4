package player

// EventKind discriminates what triggered a branch resolution.
type EventKind string

const (
	EventEnded  EventKind = "ended"
	EventAnswer EventKind = "answer"
	EventLink   EventKind = "link"
)

// Event is a video-end or user-click handed to a Resolver.
type Event struct {
	Kind     EventKind
	Video    *VideoNode
	Question *Question
	Answer   *Answer
	Link     *OverlayLink
}

// OutcomeKind tags a branch decision.
type OutcomeKind string

const (
	OutcomeNext     OutcomeKind = "next"
	OutcomeQuestion OutcomeKind = "question"
	OutcomeSolution OutcomeKind = "solution"
	OutcomeTerminal OutcomeKind = "terminal"
)

// Outcome is the tagged union a Resolver produces. Exactly the field
// matching Kind is set; Terminal carries nothing.
type Outcome struct {
	Kind     OutcomeKind
	Video    *VideoNode
	Question *Question
	Solution *Solution
}

func nextOutcome(v *VideoNode) Outcome { return Outcome{Kind: OutcomeNext, Video: v} }

func questionOutcome(q *Question) Outcome {
	return Outcome{Kind: OutcomeQuestion, Question: q}
}

func terminalOutcome() Outcome { return Outcome{Kind: OutcomeTerminal} }

func solutionOutcome(s *Solution) Outcome {
	if s == nil {
		return terminalOutcome()
	}
	return Outcome{Kind: OutcomeSolution, Solution: s}
}

// Resolver decides, per session type, which video or terminal state follows
// an event. Implementations are pure state machines over the immutable
// session data plus their own accumulated answers; they never touch
// playback or the journey.
type Resolver interface {
	ResolveNext(ev Event) Outcome
}

// AnswerLog is implemented by resolvers that accumulate question->answer
// choices worth persisting with the watch report.
type AnswerLog interface {
	Selected() map[string]string
}

// NewResolver picks the branch policy for a session type.
func NewResolver(data *SessionData) Resolver {
	switch data.Session.Type {
	case SessionInteractive:
		return newInteractiveResolver(data)
	case SessionSelection:
		return newSelectionResolver(data)
	default:
		return newLinearResolver(data)
	}
}
