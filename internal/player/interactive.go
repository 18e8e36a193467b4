package player

// interactiveResolver implements per-answer branching. Precedence on video
// end, one rule for the whole engine: an answer's own destination always
// wins; the video-level destination and the authored next video apply only
// while freezeAtEnd is false; otherwise the session's solution is terminal.
type interactiveResolver struct {
	data *SessionData
}

func newInteractiveResolver(data *SessionData) *interactiveResolver {
	return &interactiveResolver{data: data}
}

func (r *interactiveResolver) ResolveNext(ev Event) Outcome {
	switch ev.Kind {
	case EventEnded:
		if ev.Video == nil {
			return terminalOutcome()
		}
		if len(ev.Video.Questions) > 0 {
			return questionOutcome(&ev.Video.Questions[0])
		}
		return r.afterVideo(ev.Video)

	case EventAnswer:
		if ev.Answer != nil && ev.Answer.DestinationVideoID != "" {
			if dest := r.data.VideoByID(ev.Answer.DestinationVideoID); dest != nil {
				return nextOutcome(dest)
			}
		}
		return r.afterVideo(ev.Video)

	case EventLink:
		if ev.Link != nil && ev.Link.Type == LinkVideo {
			if dest := r.data.VideoByID(ev.Link.DestinationVideoID); dest != nil {
				return nextOutcome(dest)
			}
		}
		return terminalOutcome()
	}
	return terminalOutcome()
}

func (r *interactiveResolver) afterVideo(v *VideoNode) Outcome {
	if v == nil {
		return terminalOutcome()
	}
	if !v.FreezeAtEnd {
		if v.DestinationVideoID != "" {
			if dest := r.data.VideoByID(v.DestinationVideoID); dest != nil {
				return nextOutcome(dest)
			}
		}
		if next := r.data.videoAfter(v); next != nil {
			return nextOutcome(next)
		}
	}
	return solutionOutcome(r.data.solutionFor(v))
}
