package anno

import (
	"fmt"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func rect(left, top, width, height float64) Shape {
	return Shape{Type: ShapeRect, Left: left, Top: top, Width: width, Height: height}
}

func circle(left, top, radius float64) Shape {
	return Shape{Type: ShapeCircle, Left: left, Top: top, Radius: radius}
}

func newTestReconciler(t *testing.T) (*Reconciler, *Set) {
	set := NewSet()
	return NewReconciler(logs.NewTestingLog(t), set, 500, 500), set
}

func TestSuffixSkip(t *testing.T) {
	r, set := newTestReconciler(t)

	snapshot := []Shape{rect(10, 10, 50, 50)}
	require.Equal(t, 1, r.ApplySnapshot(snapshot, 3, nil))
	require.Equal(t, 1, r.ProcessedCount())

	// Re-sending the identical snapshot is a no-op
	require.Equal(t, 0, r.ApplySnapshot(snapshot, 3, nil))
	require.Equal(t, 1, set.Len())

	// Only the suffix beyond ProcessedCount is examined
	snapshot = append(snapshot, rect(100, 100, 50, 50), rect(200, 200, 50, 50))
	require.Equal(t, 2, r.ApplySnapshot(snapshot, 4, nil))
	require.Equal(t, 3, r.ProcessedCount())
	require.Equal(t, 3, set.Len())

	// Labels are captured at reconcile time, per record
	require.Equal(t, 3, set.At(0).Label)
	require.Equal(t, 4, set.At(1).Label)
}

func TestGeometricDedup(t *testing.T) {
	r, set := newTestReconciler(t)

	// The same geometry appearing twice in the unseen suffix is added once,
	// but ProcessedCount still advances over both entries.
	snapshot := []Shape{rect(10, 10, 50, 50), rect(10, 10, 50, 50)}
	require.Equal(t, 1, r.ApplySnapshot(snapshot, 1, nil))
	require.Equal(t, 2, r.ProcessedCount())
	require.Equal(t, 1, set.Len())
}

func TestSnapshotShrinkReanchors(t *testing.T) {
	r, set := newTestReconciler(t)
	require.Equal(t, 2, r.ApplySnapshot([]Shape{rect(10, 10, 5, 5), rect(20, 20, 5, 5)}, 1, nil))

	// A shorter snapshot should not happen within one canvas session, but if
	// it does, the reconciler re-anchors instead of reading a bogus suffix.
	require.Equal(t, 0, r.ApplySnapshot([]Shape{rect(30, 30, 5, 5)}, 1, nil))
	require.Equal(t, 1, r.ProcessedCount())
	require.Equal(t, 2, set.Len())

	// From the new anchor, fresh suffix entries flow again
	require.Equal(t, 1, r.ApplySnapshot([]Shape{rect(30, 30, 5, 5), rect(40, 40, 5, 5)}, 1, nil))
	require.Equal(t, 3, set.Len())
}

func TestDegenerateAndOffCanvasBoxes(t *testing.T) {
	r, set := newTestReconciler(t)

	snapshot := []Shape{
		rect(10, 10, 0, 50),      // zero width
		rect(10, 10, 50, 0),      // zero height
		rect(600, 600, 50, 50),   // entirely off canvas
		rect(-20, -20, 40, 40),   // partially off canvas: clamped
		rect(120, 80, -50, -30),  // dragged right-to-left: normalized
	}
	require.Equal(t, 2, r.ApplySnapshot(snapshot, 1, nil))
	require.Equal(t, 5, r.ProcessedCount())
	require.Equal(t, Rect{X: 0, Y: 0, Width: 20, Height: 20}, set.At(0).Box)
	require.Equal(t, Rect{X: 70, Y: 50, Width: 50, Height: 30}, set.At(1).Box)
}

func TestPromptPoints(t *testing.T) {
	r, set := newTestReconciler(t)

	snapshot := []Shape{
		circle(97, 197, 3),
		rect(10, 10, 50, 50),
		circle(97, 197, 3), // exact duplicate click
		circle(98, 198, 3), // re-click within the merge radius
		circle(200, 300, 3),
	}
	require.Equal(t, 1, r.ApplySnapshot(snapshot, 1, nil))
	require.Equal(t, 1, set.Len())
	require.Equal(t, []Point{{X: 100, Y: 200}, {X: 203, Y: 303}}, r.Prompts())

	r.Reset()
	require.Empty(t, r.Prompts())
	require.Equal(t, 0, r.ProcessedCount())
	require.Equal(t, 0, set.Len())
}

func TestNearDuplicateBoxesKept(t *testing.T) {
	r, set := newTestReconciler(t)

	// Off-by-one geometry is not an exact duplicate: both boxes are kept
	// (the overlap is flagged in the log, the operator resolves it).
	snapshot := []Shape{rect(10, 10, 50, 50), rect(11, 10, 50, 50)}
	require.Equal(t, 2, r.ApplySnapshot(snapshot, 1, nil))
	require.Equal(t, 2, set.Len())
}

func TestReanchorAfterSurfaceRestart(t *testing.T) {
	r, set := newTestReconciler(t)
	require.Equal(t, 2, r.ApplySnapshot([]Shape{rect(10, 10, 5, 5), rect(20, 20, 5, 5)}, 1, nil))

	// The surface restarted with an empty object list; processed restarts
	// at zero but the records survive.
	r.Reanchor()
	require.Equal(t, 0, r.ProcessedCount())
	require.Equal(t, 2, set.Len())

	// The first shape after the restart is consumed, not swallowed by the
	// shrunk-snapshot guard, and a re-sent old shape dedups away.
	require.Equal(t, 1, r.ApplySnapshot([]Shape{rect(30, 30, 5, 5)}, 1, nil))
	require.Equal(t, 0, r.ApplySnapshot([]Shape{rect(30, 30, 5, 5), rect(10, 10, 5, 5)}, 1, nil))
	require.Equal(t, 3, set.Len())
}

func TestThumbnailCrop(t *testing.T) {
	r, set := newTestReconciler(t)

	crop := func(box Rect) (string, error) {
		return fmt.Sprintf("thumb:%v,%v", box.X, box.Y), nil
	}
	require.Equal(t, 1, r.ApplySnapshot([]Shape{rect(10, 20, 50, 50)}, 1, crop))
	require.Equal(t, "thumb:10,20", set.At(0).Thumbnail)

	// A failing crop must not lose the annotation
	failing := func(box Rect) (string, error) {
		return "", fmt.Errorf("boom")
	}
	require.Equal(t, 1, r.ApplySnapshot([]Shape{rect(10, 20, 50, 50), rect(100, 100, 50, 50)}, 1, failing))
	require.Equal(t, 2, set.Len())
	require.Equal(t, "", set.At(1).Thumbnail)
}
