package anno

import (
	"github.com/cyclopcam/logs"
)

// Cropper produces an inline thumbnail (data URL) for a box on the current
// canonical image.
type Cropper func(box Rect) (string, error)

// Prompt clicks closer together than this (canvas pixels) are treated as
// the same point. The surface draws a small circle at the click position,
// so re-clicking the same spot lands within the circle, not on the exact
// pixel.
const promptMergeRadius = 3

// A new box overlapping an existing record by at least this IOU is almost
// certainly the same tooth drawn twice. Exact duplicates are dropped
// silently; near duplicates are kept but flagged in the log so the
// operator can delete one.
const overlapWarnIOU = 0.8

// Reconciler maps the drawing surface's full-state snapshots onto the Set.
//
// The surface re-sends every object on each interaction, so the reconciler
// keeps a count of how many snapshot entries it has already consumed and
// only looks at the suffix beyond that count. This assumes the snapshot is
// append-only for the lifetime of one canvas session; the session key is
// changed on image navigation precisely so that this assumption holds.
// If the surface ever starts deleting or reordering in-flight objects,
// suffix skipping desyncs. See the note on ApplySnapshot.
type Reconciler struct {
	log          logs.Log
	canvasWidth  int
	canvasHeight int

	processed int
	set       *Set
	prompts   []Point
}

func NewReconciler(log logs.Log, set *Set, canvasWidth, canvasHeight int) *Reconciler {
	return &Reconciler{
		log:          log,
		canvasWidth:  canvasWidth,
		canvasHeight: canvasHeight,
		set:          set,
	}
}

// ProcessedCount is the number of snapshot entries already reconciled,
// including entries that were rejected as duplicates or degenerate.
func (r *Reconciler) ProcessedCount() int {
	return r.processed
}

// Prompts returns the accumulated segmentation prompt points.
func (r *Reconciler) Prompts() []Point {
	return r.prompts
}

// Reset clears all per-image state. Called on every image transition.
func (r *Reconciler) Reset() {
	r.processed = 0
	r.prompts = nil
	r.set.Reset()
}

// Reanchor restarts suffix consumption from zero while keeping the set and
// prompts. Used when the drawing surface restarts (page reload) and its
// object list is empty again; without this, the shrunk-snapshot guard would
// swallow the first shape drawn after the reload. Geometric dedup absorbs
// any shapes the surface happens to re-send.
func (r *Reconciler) Reanchor() {
	r.processed = 0
}

// ApplySnapshot consumes the unseen suffix of a snapshot, appending new
// records (rect shapes) and prompt points (circle shapes). Returns the
// number of records appended.
//
// Duplicate geometry is skipped silently: the surface re-emits completed
// shapes across re-renders, and the same shape can arrive again before
// ProcessedCount catches up. ProcessedCount advances to len(objects)
// unconditionally, so a rejected entry is never re-evaluated.
//
// If the snapshot is shorter than ProcessedCount the surface has truncated
// its history underneath us (it should not, within one canvas session); we
// log and re-anchor rather than corrupt the suffix arithmetic.
func (r *Reconciler) ApplySnapshot(objects []Shape, label int, crop Cropper) int {
	if len(objects) < r.processed {
		r.log.Warnf("Shape snapshot shrank from %v to %v objects. Re-anchoring; some shapes may be lost.", r.processed, len(objects))
		r.processed = len(objects)
		return 0
	}

	added := 0
	for _, shape := range objects[r.processed:] {
		switch shape.Type {
		case ShapeCircle:
			r.addPrompt(shape.PromptPoint())
		default:
			if r.addRect(shape, label, crop) {
				added++
			}
		}
	}
	r.processed = len(objects)
	return added
}

func (r *Reconciler) addRect(shape Shape, label int, crop Cropper) bool {
	box := shape.BoundingRect().Clamp(r.canvasWidth, r.canvasHeight)
	if box.Area() == 0 {
		r.log.Debugf("Ignoring degenerate box %vx%v at %v,%v", box.Width, box.Height, box.X, box.Y)
		return false
	}
	if r.set.Exists(box) {
		return false
	}
	for _, existing := range r.set.Records() {
		if iou := box.IOU(existing.Box); iou >= overlapWarnIOU {
			r.log.Warnf("Box %v,%v %vx%v overlaps an existing annotation (IOU %.2f)", box.X, box.Y, box.Width, box.Height, iou)
			break
		}
	}
	rec := Record{
		Label: label,
		Box:   box,
	}
	if crop != nil {
		thumb, err := crop(box)
		if err != nil {
			// The thumbnail is presentation only, so a failed crop
			// must not lose the annotation.
			r.log.Warnf("Failed to crop thumbnail for box %v,%v %vx%v: %v", box.X, box.Y, box.Width, box.Height, err)
		} else {
			rec.Thumbnail = thumb
		}
	}
	r.set.Append(rec)
	return true
}

func (r *Reconciler) addPrompt(p Point) {
	for _, existing := range r.prompts {
		if existing.Distance(p) <= promptMergeRadius {
			return
		}
	}
	r.prompts = append(r.prompts, p)
}
