package player

// ActiveAt returns the overlays whose visibility window contains t. Both
// window boundaries are inclusive.
func ActiveAt(t float64, links []OverlayLink) []OverlayLink {
	var active []OverlayLink
	for _, l := range links {
		if t >= l.TimestampSeconds && t <= l.TimestampSeconds+l.WindowSeconds() {
			active = append(active, l)
		}
	}
	return active
}

// ActivationTracker memoizes the active overlay set across playback time
// updates so hosts only re-render when membership or order actually changed.
type ActivationTracker struct {
	active []OverlayLink
}

// Update recomputes the active set for t and reports whether it differs
// from the previous one. The returned slice is the tracker's current set.
func (tr *ActivationTracker) Update(t float64, links []OverlayLink) ([]OverlayLink, bool) {
	next := ActiveAt(t, links)
	if sameLinkSet(tr.active, next) {
		return tr.active, false
	}
	tr.active = next
	return tr.active, true
}

// Active returns the current set without recomputing.
func (tr *ActivationTracker) Active() []OverlayLink {
	return tr.active
}

func sameLinkSet(a, b []OverlayLink) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
