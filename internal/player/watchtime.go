package player

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MinWatchSeconds is the shortest session worth reporting; anything under
// it is discarded silently.
const MinWatchSeconds = 3

// hiddenDebounce delays the visibility-hidden flush so a quick tab switch
// does not count as teardown.
const hiddenDebounce = 100 * time.Millisecond

// Trigger classifies the teardown path that asked for a flush. Blocking
// transports are only reachable from unload-class triggers, never from the
// async unmount path.
type Trigger string

const (
	TriggerHidden   Trigger = "visibility_hidden"
	TriggerUnload   Trigger = "beforeunload"
	TriggerPageHide Trigger = "pagehide"
	TriggerUnmount  Trigger = "unmount"
)

func (t Trigger) unloadClass() bool {
	return t == TriggerUnload || t == TriggerPageHide
}

// Report is the watch-time payload flushed exactly once per playback. The
// viewer fields are opaque to the engine; hosts fill them from the request.
type Report struct {
	SessionID        string            `json:"sessionId"`
	CompanyID        string            `json:"companyId"`
	PlaybackID       string            `json:"playbackId"`
	WatchTimeSeconds int64             `json:"watchTimeSeconds"`
	LastFormData     map[string]string `json:"lastFormData,omitempty"`
	Journey          []JourneyStep     `json:"journey"`
	Answers          map[string]string `json:"answers,omitempty"`
	Completed        bool              `json:"completed"`
	SolutionID       string            `json:"solutionId,omitempty"`

	ViewerHash string `json:"viewerHash,omitempty"`
	Referrer   string `json:"referrer,omitempty"`
	Browser    string `json:"browser,omitempty"`
	Device     string `json:"device,omitempty"`
	Country    string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
}

// FlushTransport is one delivery strategy in the ordered chain. Blocking
// transports synchronously hold teardown and are the last resort.
type FlushTransport interface {
	Name() string
	Blocking() bool
	Send(ctx context.Context, report Report) error
}

// Reporter tracks elapsed foreground time and guarantees a best-effort,
// at-most-once flush across every teardown path. The single saved flag is
// the only guard against the four trigger paths racing each other.
type Reporter struct {
	mu         sync.Mutex
	start      time.Time
	elapsed    time.Duration
	running    bool
	saved      bool
	transports []FlushTransport
	now        func() time.Time

	hiddenTimer *time.Timer
}

// NewReporter creates a reporter with the given ordered delivery chain.
func NewReporter(transports ...FlushTransport) *Reporter {
	return &Reporter{transports: transports, now: time.Now}
}

// SetNow swaps the clock source. Call before Start; tests use it to make
// elapsed time deterministic.
func (r *Reporter) SetNow(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Start begins counting foreground time. Safe to call once per mount.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		r.start = r.now()
		r.running = true
	}
}

// Pause stops accumulating, e.g. while the page is hidden but not torn
// down.
func (r *Reporter) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.elapsed += r.now().Sub(r.start)
		r.running = false
	}
}

// ElapsedSeconds returns whole seconds of accumulated foreground time.
func (r *Reporter) ElapsedSeconds() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(r.elapsedLocked().Seconds())
}

func (r *Reporter) elapsedLocked() time.Duration {
	e := r.elapsed
	if r.running {
		e += r.now().Sub(r.start)
	}
	return e
}

// Saved reports whether a flush already succeeded.
func (r *Reporter) Saved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved
}

// Flush attempts delivery through the chain, first success wins. It
// returns true when this call performed the save. Sessions under
// MinWatchSeconds are discarded without marking saved, so a later trigger
// with enough watch time still reports.
func (r *Reporter) Flush(ctx context.Context, trigger Trigger, report Report) bool {
	r.mu.Lock()
	if r.saved {
		r.mu.Unlock()
		return false
	}
	elapsed := r.elapsedLocked()
	if elapsed < MinWatchSeconds*time.Second {
		r.mu.Unlock()
		return false
	}
	// Claim the flush before releasing the lock; concurrent triggers in
	// the same tick must not double-send.
	r.saved = true
	r.mu.Unlock()

	report.WatchTimeSeconds = int64(elapsed.Seconds())

	for _, tr := range r.transports {
		if tr.Blocking() && !trigger.unloadClass() {
			continue
		}
		if err := tr.Send(ctx, report); err != nil {
			slog.Error("watchtime: transport failed",
				"transport", tr.Name(), "trigger", string(trigger), "error", err)
			continue
		}
		return true
	}

	// Every transport failed; losing the report is acceptable, blocking
	// the viewer is not.
	slog.Error("watchtime: all transports failed, report dropped",
		"session_id", report.SessionID, "trigger", string(trigger))
	return true
}

// FlushHidden debounces the visibility-hidden trigger; CancelHidden undoes
// it when the tab becomes visible again before the timer fires. When the
// deferred flush performs the save, onSaved runs so hosts can fire their
// post-save side effects; a later unload-class trigger finds saved set and
// must not repeat them.
func (r *Reporter) FlushHidden(ctx context.Context, report Report, onSaved func()) {
	r.mu.Lock()
	if r.hiddenTimer != nil {
		r.hiddenTimer.Stop()
	}
	r.hiddenTimer = time.AfterFunc(hiddenDebounce, func() {
		if r.Flush(ctx, TriggerHidden, report) && onSaved != nil {
			onSaved()
		}
	})
	r.mu.Unlock()
}

// CancelHidden aborts a pending debounced hidden flush.
func (r *Reporter) CancelHidden() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hiddenTimer != nil {
		r.hiddenTimer.Stop()
		r.hiddenTimer = nil
	}
}
