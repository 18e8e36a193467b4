package player

// Rect is the box a video occupies inside its container after aspect-ratio
// preserving fit, in container-local pixels.
type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
}

// OverlayBox is an overlay's computed pixel placement inside the container.
type OverlayBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FitRect computes the letterboxed/pillarboxed rectangle a video of the
// given native resolution occupies inside a container, never upscaling past
// native size and centering on the non-constrained axis.
//
// Before media metadata is available native dimensions are unknown; callers
// pass zero and get the whole container back with unit scale, so overlay
// percentages degrade to container percentages instead of failing.
func FitRect(nativeW, nativeH, containerW, containerH float64) Rect {
	if nativeW <= 0 || nativeH <= 0 || containerW <= 0 || containerH <= 0 {
		return Rect{Width: containerW, Height: containerH, ScaleX: 1, ScaleY: 1}
	}

	scale := containerW / nativeW
	if s := containerH / nativeH; s < scale {
		scale = s
	}
	if scale > 1 {
		scale = 1
	}

	w := nativeW * scale
	h := nativeH * scale
	return Rect{
		Width:  w,
		Height: h,
		Left:   (containerW - w) / 2,
		Top:    (containerH - h) / 2,
		ScaleX: scale,
		ScaleY: scale,
	}
}

// MapOverlay converts an overlay's percentage position and authored pixel
// size into container-local pixels inside the fitted rect. Links without an
// image keep a zero size; the host sizes those from their label.
func MapOverlay(rect Rect, link OverlayLink) OverlayBox {
	box := OverlayBox{
		X: rect.Left + link.PositionX/100*rect.Width,
		Y: rect.Top + link.PositionY/100*rect.Height,
	}
	if img := link.NormalImage; img != nil {
		box.Width = img.Width * rect.ScaleX
		box.Height = img.Height * rect.ScaleY
	}
	return box
}
