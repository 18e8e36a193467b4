package player

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFitRect_Letterbox(t *testing.T) {
	// 1920x1080 video in a 800x800 container: width-constrained.
	r := FitRect(1920, 1080, 800, 800)

	if !almostEqual(r.Width, 800) {
		t.Errorf("expected width 800, got %f", r.Width)
	}
	if !almostEqual(r.Height, 450) {
		t.Errorf("expected height 450, got %f", r.Height)
	}
	if !almostEqual(r.Left, 0) {
		t.Errorf("expected left 0, got %f", r.Left)
	}
	if !almostEqual(r.Top, 175) {
		t.Errorf("expected top 175 (centered), got %f", r.Top)
	}
	if !almostEqual(r.ScaleX, 800.0/1920.0) {
		t.Errorf("unexpected scale %f", r.ScaleX)
	}
}

func TestFitRect_Pillarbox(t *testing.T) {
	// Portrait video in a landscape container: height-constrained.
	r := FitRect(1080, 1920, 1000, 500)

	if !almostEqual(r.Height, 500) {
		t.Errorf("expected height 500, got %f", r.Height)
	}
	if !almostEqual(r.Width, 281.25) {
		t.Errorf("expected width 281.25, got %f", r.Width)
	}
	if !almostEqual(r.Top, 0) {
		t.Errorf("expected top 0, got %f", r.Top)
	}
	if !almostEqual(r.Left, (1000-281.25)/2) {
		t.Errorf("expected horizontal centering, got left %f", r.Left)
	}
}

func TestFitRect_NeverUpscales(t *testing.T) {
	cases := []struct {
		name           string
		nw, nh, cw, ch float64
	}{
		{"huge container", 640, 360, 4000, 4000},
		{"exact fit", 640, 360, 640, 360},
		{"wider container", 640, 360, 1000, 360},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := FitRect(tc.nw, tc.nh, tc.cw, tc.ch)
			if r.Width > tc.nw || r.Height > tc.nh {
				t.Errorf("upscaled past native: %fx%f > %fx%f", r.Width, r.Height, tc.nw, tc.nh)
			}
			if r.ScaleX > 1 || r.ScaleY > 1 {
				t.Errorf("scale above 1: %f/%f", r.ScaleX, r.ScaleY)
			}
			// Centered on both axes within the container.
			if !almostEqual(r.Left*2+r.Width, tc.cw) {
				t.Errorf("not horizontally centered: left=%f width=%f container=%f", r.Left, r.Width, tc.cw)
			}
			if !almostEqual(r.Top*2+r.Height, tc.ch) {
				t.Errorf("not vertically centered: top=%f height=%f container=%f", r.Top, r.Height, tc.ch)
			}
		})
	}
}

func TestFitRect_FallbackBeforeMetadata(t *testing.T) {
	r := FitRect(0, 0, 640, 480)
	if !almostEqual(r.Width, 640) || !almostEqual(r.Height, 480) {
		t.Errorf("expected container passthrough, got %fx%f", r.Width, r.Height)
	}
	if !almostEqual(r.ScaleX, 1) || !almostEqual(r.ScaleY, 1) {
		t.Errorf("expected unit scale fallback, got %f/%f", r.ScaleX, r.ScaleY)
	}
	if !almostEqual(r.Left, 0) || !almostEqual(r.Top, 0) {
		t.Errorf("expected origin placement, got %f/%f", r.Left, r.Top)
	}
}

func TestMapOverlay_PercentToPixels(t *testing.T) {
	rect := Rect{Width: 800, Height: 450, Left: 0, Top: 175, ScaleX: 0.5, ScaleY: 0.5}
	link := OverlayLink{
		PositionX:   50,
		PositionY:   10,
		NormalImage: &OverlayImage{Width: 200, Height: 100},
	}

	box := MapOverlay(rect, link)

	if !almostEqual(box.X, 400) {
		t.Errorf("expected x 400, got %f", box.X)
	}
	if !almostEqual(box.Y, 175+45) {
		t.Errorf("expected y 220, got %f", box.Y)
	}
	if !almostEqual(box.Width, 100) || !almostEqual(box.Height, 50) {
		t.Errorf("expected image scaled 200x100 -> 100x50, got %fx%f", box.Width, box.Height)
	}
}

func TestMapOverlay_NoImage(t *testing.T) {
	rect := FitRect(1920, 1080, 800, 800)
	box := MapOverlay(rect, OverlayLink{PositionX: 0, PositionY: 0})
	if !almostEqual(box.X, rect.Left) || !almostEqual(box.Y, rect.Top) {
		t.Errorf("expected rect origin, got %f/%f", box.X, box.Y)
	}
	if box.Width != 0 || box.Height != 0 {
		t.Errorf("expected zero size without image, got %fx%f", box.Width, box.Height)
	}
}
