package player

import "testing"

func TestController_AutoplayRejectionFallsBackToPaused(t *testing.T) {
	c := NewController(NewJourney())
	c.Load(video("a", "Intro"), false)
	if c.Mode() != ModePaused {
		t.Errorf("expected paused fallback on autoplay rejection, got %s", c.Mode())
	}
	c.Play()
	if c.Mode() != ModePlaying {
		t.Errorf("manual play should enter playing, got %s", c.Mode())
	}
}

func TestController_PlayPauseToggle(t *testing.T) {
	c := NewController(NewJourney())
	c.Load(video("a", "Intro"), true)

	c.Pause()
	if c.Mode() != ModePaused {
		t.Errorf("expected paused, got %s", c.Mode())
	}
	c.Play()
	if c.Mode() != ModePlaying {
		t.Errorf("expected playing, got %s", c.Mode())
	}
}

func TestController_ViewerPlayDoesNotOverrideExternalPause(t *testing.T) {
	c := NewController(NewJourney())
	c.Load(video("a", "Intro"), true)
	c.PauseExternal()

	c.Play()
	if c.Mode() != ModeExternal {
		t.Errorf("viewer play must not break an external pause, got %s", c.Mode())
	}
	c.Resume()
	if c.Mode() != ModePlaying {
		t.Errorf("resume should continue playing, got %s", c.Mode())
	}
}

func TestController_RestartLogsJourneyClickAndRewinds(t *testing.T) {
	j := NewJourney()
	c := NewController(j)
	v := video("a", "Intro")
	c.Load(v, true)
	j.AddVideo(v)
	c.TimeUpdate(42)

	c.Restart()

	if c.CurrentTime() != 0 {
		t.Errorf("expected rewind to 0, got %f", c.CurrentTime())
	}
	if c.Mode() != ModePlaying {
		t.Errorf("expected playing after restart, got %s", c.Mode())
	}
	steps := j.Steps()
	last := steps[len(steps)-1]
	if last.Clicked == nil || last.Clicked.Kind != ClickRestart {
		t.Fatalf("expected restart click logged, got %+v", last)
	}
}

func TestController_EndedDispositions(t *testing.T) {
	cases := []struct {
		name            string
		video           *VideoNode
		questionPending bool
		want            EndDisposition
		wantMode        Mode
	}{
		{
			name:     "plain video advances",
			video:    &VideoNode{ID: "a", Title: "A"},
			want:     EndAdvance,
			wantMode: ModePlaying,
		},
		{
			name:     "freeze at end holds last frame",
			video:    &VideoNode{ID: "a", Title: "A", FreezeAtEnd: true},
			want:     EndFreeze,
			wantMode: ModeFrozen,
		},
		{
			name:            "question wins over freeze",
			video:           &VideoNode{ID: "a", Title: "A", FreezeAtEnd: true},
			questionPending: true,
			want:            EndQuestion,
			wantMode:        ModeExternal,
		},
		{
			name:     "navigation video is a dead end without freeze panel",
			video:    &VideoNode{ID: "nav", Title: "Nav", IsNavigationVideo: true, FreezeAtEnd: true},
			want:     EndHold,
			wantMode: ModePaused,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewController(NewJourney())
			c.Load(tc.video, true)
			got := c.HandleEnded(tc.questionPending)
			if got != tc.want {
				t.Errorf("disposition: expected %s, got %s", tc.want, got)
			}
			if c.Mode() != tc.wantMode {
				t.Errorf("mode: expected %s, got %s", tc.wantMode, c.Mode())
			}
		})
	}
}

func TestController_TimeUpdateDrivesOverlayActivation(t *testing.T) {
	c := NewController(NewJourney())
	v := &VideoNode{ID: "a", Title: "A", Links: []OverlayLink{overlayAt("l1", 5, 2000)}}
	c.Load(v, true)

	if active, changed := c.TimeUpdate(1); changed || len(active) != 0 {
		t.Errorf("no overlay expected at t=1, changed=%v", changed)
	}
	if active, changed := c.TimeUpdate(5.5); !changed || len(active) != 1 {
		t.Errorf("overlay expected at t=5.5, changed=%v active=%d", changed, len(active))
	}
	// Load resets the tracker for the next video.
	c.Load(video("b", "B"), true)
	if len(c.ActiveOverlays()) != 0 {
		t.Error("overlay set should reset on load")
	}
}
