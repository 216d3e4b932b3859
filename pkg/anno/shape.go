package anno

import "math"

// Package anno holds the annotation working state for the image currently
// being labeled: the shapes reported by the browser drawing surface, the
// reconciler that turns snapshots of those shapes into annotation records,
// and the ordered record set itself.

const (
	ShapeRect   = "rect"
	ShapeCircle = "circle"
)

// Shape is one drawn object as the drawing surface reports it.
// Coordinates are canvas pixels; the surface reports fractional values.
type Shape struct {
	Type   string  `json:"type"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
}

// Snapshot is the full current object list of the drawing surface.
// It is not a delta: the surface re-sends every object on each interaction.
// CanvasKey identifies the canvas session; the server changes the key on
// image navigation, so a snapshot with a stale key must be discarded.
type Snapshot struct {
	CanvasKey string  `json:"canvasKey"`
	Objects   []Shape `json:"objects"`
}

// BoundingRect rounds the shape to an integer box.
func (s Shape) BoundingRect() Rect {
	return Rect{
		X:      int(math.Round(s.Left)),
		Y:      int(math.Round(s.Top)),
		Width:  int(math.Round(s.Width)),
		Height: int(math.Round(s.Height)),
	}.Normalized()
}

// PromptPoint returns the center of a circle shape, which is the click
// position used as a segmentation prompt.
func (s Shape) PromptPoint() Point {
	return Point{
		X: int(math.Round(s.Left + s.Radius)),
		Y: int(math.Round(s.Top + s.Radius)),
	}
}
