package player

// selectionResolver accumulates one answer per question across the session
// and resolves a solution from the combination table. Combination rows are
// scanned in authored order; the first row whose answer set is a subset of
// the accumulated answers wins.
type selectionResolver struct {
	data     *SessionData
	selected map[string]string // question id -> answer id
}

func newSelectionResolver(data *SessionData) *selectionResolver {
	return &selectionResolver{data: data, selected: make(map[string]string)}
}

func (r *selectionResolver) ResolveNext(ev Event) Outcome {
	switch ev.Kind {
	case EventEnded:
		if ev.Video == nil {
			return terminalOutcome()
		}
		if len(ev.Video.Questions) > 0 {
			return questionOutcome(&ev.Video.Questions[0])
		}
		if next := r.nextQuestionVideo(ev.Video); next != nil {
			return nextOutcome(next)
		}
		return r.resolveCombination()

	case EventAnswer:
		if ev.Question != nil && ev.Answer != nil {
			r.selected[ev.Question.ID] = ev.Answer.ID
		}
		if !r.allAnswered() {
			if next := r.nextQuestionVideo(ev.Video); next != nil {
				return nextOutcome(next)
			}
			// No questioned video remains; resolve on what we have.
		}
		return r.resolveCombination()

	case EventLink:
		if ev.Link != nil && ev.Link.Type == LinkVideo {
			if dest := r.data.VideoByID(ev.Link.DestinationVideoID); dest != nil {
				return nextOutcome(dest)
			}
		}
	}
	return terminalOutcome()
}

// nextQuestionVideo finds the next video after v in authored order that
// itself carries a question.
func (r *selectionResolver) nextQuestionVideo(v *VideoNode) *VideoNode {
	if v == nil {
		return nil
	}
	seen := false
	for _, cur := range r.data.Videos {
		if seen && len(cur.Questions) > 0 {
			return cur
		}
		if cur.ID == v.ID {
			seen = true
		}
	}
	return nil
}

func (r *selectionResolver) allAnswered() bool {
	for _, v := range r.data.Videos {
		for _, q := range v.Questions {
			if _, ok := r.selected[q.ID]; !ok {
				return false
			}
		}
	}
	return true
}

// resolveCombination scans the combination table top to bottom and returns
// the solution of the first row fully covered by the accumulated answers.
// An unmatched answer set has no solution and ends the session.
func (r *selectionResolver) resolveCombination() Outcome {
	chosen := make(map[string]bool, len(r.selected))
	for _, answerID := range r.selected {
		chosen[answerID] = true
	}
	for _, combo := range r.data.Combinations {
		if len(combo.AnswerIDs) == 0 {
			continue
		}
		match := true
		for _, id := range combo.AnswerIDs {
			if !chosen[id] {
				match = false
				break
			}
		}
		if match {
			return solutionOutcome(r.data.SolutionByID(combo.SolutionID))
		}
	}
	return terminalOutcome()
}

// Selected exposes the accumulated question->answer choices, for
// persistence in the journey payload.
func (r *selectionResolver) Selected() map[string]string {
	out := make(map[string]string, len(r.selected))
	for k, v := range r.selected {
		out[k] = v
	}
	return out
}
