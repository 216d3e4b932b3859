package anno

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	require.Equal(t, float32(0), Point{X: 7, Y: 9}.Distance(Point{X: 7, Y: 9}))
	require.Equal(t, float32(5), Point{X: 0, Y: 0}.Distance(Point{X: 3, Y: 4}))
	require.Equal(t, float32(5), Point{X: 3, Y: 4}.Distance(Point{X: 0, Y: 0}))
}

func TestIOU(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}

	// Half-offset overlap: intersection 25, union 175
	b := Rect{X: 5, Y: 5, Width: 10, Height: 10}
	require.Equal(t, float32(25.0/175.0), a.IOU(b))
	require.Equal(t, a.IOU(b), b.IOU(a))

	// Identical boxes
	require.Equal(t, float32(1), a.IOU(a))

	// Disjoint boxes
	require.Equal(t, float32(0), a.IOU(Rect{X: 20, Y: 20, Width: 10, Height: 10}))

	// Containment: IOU is the area ratio
	inner := Rect{X: 2, Y: 2, Width: 5, Height: 5}
	require.Equal(t, float32(25.0/100.0), a.IOU(inner))
}

func TestNormalized(t *testing.T) {
	// Dragging up-left produces negative width/height
	r := Rect{X: 100, Y: 80, Width: -30, Height: -20}
	n := r.Normalized()
	expect := Rect{X: 70, Y: 60, Width: 30, Height: 20}
	require.Equal(t, expect, n)
	require.Equal(t, n, n.Normalized())
}

func TestClamp(t *testing.T) {
	cases := []struct {
		in     Rect
		expect Rect
	}{
		{Rect{X: -10, Y: -10, Width: 50, Height: 50}, Rect{X: 0, Y: 0, Width: 40, Height: 40}},
		{Rect{X: 480, Y: 480, Width: 50, Height: 50}, Rect{X: 480, Y: 480, Width: 20, Height: 20}},
		{Rect{X: 10, Y: 10, Width: 20, Height: 20}, Rect{X: 10, Y: 10, Width: 20, Height: 20}},
		{Rect{X: 600, Y: 10, Width: 20, Height: 20}, Rect{X: 600, Y: 10, Width: 0, Height: 20}},
	}
	for _, c := range cases {
		require.Equal(t, c.expect, c.in.Clamp(500, 500))
	}
}
