package player

// linearResolver walks the authored order with no branching. A video is
// unlocked only once every prior video has been watched to its end.
type linearResolver struct {
	data    *SessionData
	watched map[string]bool
}

func newLinearResolver(data *SessionData) *linearResolver {
	return &linearResolver{data: data, watched: make(map[string]bool)}
}

func (r *linearResolver) ResolveNext(ev Event) Outcome {
	switch ev.Kind {
	case EventEnded:
		if ev.Video == nil {
			return terminalOutcome()
		}
		r.watched[ev.Video.ID] = true
		if next := r.data.videoAfter(ev.Video); next != nil {
			return nextOutcome(next)
		}
		return terminalOutcome()

	case EventLink:
		// A video link is a jump, not a branch: it may only land on an
		// unlocked video. A locked destination leaves playback where it is.
		if ev.Link != nil && ev.Link.Type == LinkVideo && r.Unlocked(ev.Link.DestinationVideoID) {
			if dest := r.data.VideoByID(ev.Link.DestinationVideoID); dest != nil {
				return nextOutcome(dest)
			}
		}
		return Outcome{}
	}
	return terminalOutcome()
}

// Unlocked reports whether the viewer may jump to the given video: all
// videos before it in authored order must have been watched.
func (r *linearResolver) Unlocked(videoID string) bool {
	for _, v := range r.data.Videos {
		if v.ID == videoID {
			return true
		}
		if !r.watched[v.ID] {
			return false
		}
	}
	return false
}
