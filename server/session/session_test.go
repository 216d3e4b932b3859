package session

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/dentamark/dentamark/pkg/anno"
	"github.com/dentamark/dentamark/pkg/coco"
	"github.com/dentamark/dentamark/pkg/imagestore"
	"github.com/dentamark/dentamark/server/taskdb"
)

func writeTestImages(t *testing.T, dir string, count int) {
	for i := 0; i < count; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 64, 64))
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				img.Set(x, y, color.RGBA{R: uint8(40 * i), G: uint8(x * 4), B: uint8(y * 4), A: 255})
			}
		}
		f, err := os.Create(filepath.Join(dir, "xray_"+string(rune('a'+i))+".png"))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
}

func newTestSession(t *testing.T, imageCount int) (*Session, string) {
	log := logs.NewTestingLog(t)
	imageDir := t.TempDir()
	writeTestImages(t, imageDir, imageCount)
	store, err := imagestore.NewStore(log, imageDir)
	require.NoError(t, err)
	tdb, err := taskdb.NewTaskDB(log, filepath.Join(t.TempDir(), "task.sqlite"))
	require.NoError(t, err)
	exporter := coco.NewExporter(log, coco.ToothNumbers())
	saveRoot := t.TempDir()
	s, err := NewSession(log, store, exporter, tdb, saveRoot)
	require.NoError(t, err)
	return s, saveRoot
}

func rectShape(left, top, width, height float64) anno.Shape {
	return anno.Shape{Type: anno.ShapeRect, Left: left, Top: top, Width: width, Height: height}
}

func TestSnapshotReconciliation(t *testing.T) {
	s, _ := newTestSession(t, 3)
	st := s.Status()
	require.Equal(t, "canvas_0", st.CanvasKey)
	require.Equal(t, 0, st.ImageIndex)
	require.Equal(t, 3, st.ImageCount)

	added, err := s.ApplySnapshot(anno.Snapshot{
		CanvasKey: "canvas_0",
		Objects:   []anno.Shape{rectShape(10, 20, 30, 40)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, added)

	// The surface re-sends the whole snapshot; only the suffix is new.
	added, err = s.ApplySnapshot(anno.Snapshot{
		CanvasKey: "canvas_0",
		Objects:   []anno.Shape{rectShape(10, 20, 30, 40), rectShape(100, 100, 50, 50)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, added)
	require.Equal(t, 2, len(s.Annotations()))
	require.Equal(t, anno.Rect{X: 10, Y: 20, Width: 30, Height: 40}, s.Annotations()[0].Box)
	require.NotEqual(t, "", s.Annotations()[0].Thumbnail)
}

func TestStaleCanvasSnapshotDiscarded(t *testing.T) {
	s, _ := newTestSession(t, 3)
	added, err := s.ApplySnapshot(anno.Snapshot{
		CanvasKey: "canvas_7",
		Objects:   []anno.Shape{rectShape(10, 20, 30, 40)},
	})
	require.NoError(t, err)
	require.Equal(t, 0, added)
	require.Equal(t, 0, len(s.Annotations()))
}

func TestNavigationResetsPerImageState(t *testing.T) {
	s, _ := newTestSession(t, 3)
	_, err := s.ApplySnapshot(anno.Snapshot{
		CanvasKey: "canvas_0",
		Objects: []anno.Shape{
			rectShape(10, 20, 30, 40),
			{Type: anno.ShapeCircle, Left: 100, Top: 100, Radius: 5},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, len(s.Annotations()))
	require.Equal(t, 1, len(s.Prompts()))

	require.NoError(t, s.Skip())
	st := s.Status()
	require.Equal(t, 1, st.ImageIndex)
	require.Equal(t, "canvas_1", st.CanvasKey)
	require.Equal(t, 0, st.ProcessedCount)
	require.Equal(t, 0, len(s.Annotations()))
	require.Equal(t, 0, len(s.Prompts()))

	require.NoError(t, s.Previous())
	require.Equal(t, 0, s.Status().ImageIndex)
	// Skipping discards: nothing survives the round trip.
	require.Equal(t, 0, len(s.Annotations()))
}

func TestCanvasResyncAfterPageReload(t *testing.T) {
	s, _ := newTestSession(t, 2)
	_, err := s.ApplySnapshot(anno.Snapshot{
		CanvasKey: "canvas_0",
		Objects:   []anno.Shape{rectShape(10, 20, 30, 40), rectShape(100, 100, 50, 50)},
	})
	require.NoError(t, err)
	require.Equal(t, 2, len(s.Annotations()))

	// A page reload empties the client's object list while our annotations
	// survive. Resync rotates the canvas key and restarts suffix
	// consumption, so the first shape drawn afterwards is not swallowed.
	s.ResyncCanvas()
	st := s.Status()
	require.NotEqual(t, "canvas_0", st.CanvasKey)
	require.Equal(t, 0, st.ProcessedCount)
	require.Equal(t, 2, len(s.Annotations()))

	added, err := s.ApplySnapshot(anno.Snapshot{
		CanvasKey: st.CanvasKey,
		Objects:   []anno.Shape{rectShape(200, 200, 40, 40)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, added)
	require.Equal(t, 3, len(s.Annotations()))

	// A snapshot still in flight from the old surface is dropped.
	added, err = s.ApplySnapshot(anno.Snapshot{
		CanvasKey: "canvas_0",
		Objects:   []anno.Shape{rectShape(1, 1, 5, 5)},
	})
	require.NoError(t, err)
	require.Equal(t, 0, added)

	// Navigation goes back to the plain per-image key.
	require.NoError(t, s.Skip())
	require.Equal(t, "canvas_1", s.Status().CanvasKey)
}

func TestPreviousAtFirstImageIsNoop(t *testing.T) {
	s, _ := newTestSession(t, 2)
	require.NoError(t, s.Previous())
	require.Equal(t, 0, s.Status().ImageIndex)
}

func TestSubmitFlushesAndAdvances(t *testing.T) {
	s, saveRoot := newTestSession(t, 2)
	_, err := s.ApplySnapshot(anno.Snapshot{
		CanvasKey: "canvas_0",
		Objects:   []anno.Shape{rectShape(1, 2, 3, 4), rectShape(5, 6, 7, 8)},
	})
	require.NoError(t, err)
	require.NoError(t, s.Submit())

	st := s.Status()
	require.Equal(t, 1, st.ImageIndex)
	require.Equal(t, 0, st.Annotations)

	raw, err := os.ReadFile(filepath.Join(saveRoot, "tooth_numbers", "annotations.json"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"image_1.jpg"`)
	require.Contains(t, string(raw), `"bbox"`)

	// Submit the second image too: IDs keep counting across images.
	_, err = s.ApplySnapshot(anno.Snapshot{
		CanvasKey: "canvas_1",
		Objects:   []anno.Shape{rectShape(10, 10, 10, 10)},
	})
	require.NoError(t, err)
	require.NoError(t, s.Submit())
	require.True(t, s.Status().Complete)

	raw, err = os.ReadFile(filepath.Join(saveRoot, "tooth_numbers", "annotations.json"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"image_2.jpg"`)

	// The session is complete: everything image-bound now refuses.
	require.ErrorIs(t, s.Submit(), ErrComplete)
	_, err = s.Canonical()
	require.ErrorIs(t, err, ErrComplete)
}

func TestSubmitBlockedOnSaveFailure(t *testing.T) {
	log := logs.NewTestingLog(t)
	imageDir := t.TempDir()
	writeTestImages(t, imageDir, 2)
	store, err := imagestore.NewStore(log, imageDir)
	require.NoError(t, err)
	tdb, err := taskdb.NewTaskDB(log, filepath.Join(t.TempDir(), "task.sqlite"))
	require.NoError(t, err)
	exporter := coco.NewExporter(log, coco.ToothNumbers())

	// A regular file as the save root makes every Save fail.
	saveRoot := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(saveRoot, []byte("x"), 0644))

	s, err := NewSession(log, store, exporter, tdb, saveRoot)
	require.NoError(t, err)
	_, err = s.ApplySnapshot(anno.Snapshot{
		CanvasKey: "canvas_0",
		Objects:   []anno.Shape{rectShape(1, 2, 3, 4)},
	})
	require.NoError(t, err)

	require.Error(t, s.Submit())
	require.Equal(t, 0, s.Status().ImageIndex)
	require.Equal(t, 1, len(s.Annotations()))

	// Unblock the save root: the retry succeeds without duplicating records
	require.NoError(t, os.Remove(saveRoot))
	require.NoError(t, os.MkdirAll(saveRoot, 0755))
	require.NoError(t, s.Submit())
	require.Equal(t, 1, s.Status().ImageIndex)
	require.Equal(t, 1, len(exporter.Document().Images))
	require.Equal(t, 1, len(exporter.Document().Annotations))
}

func TestProgressRestoredAcrossSessions(t *testing.T) {
	log := logs.NewTestingLog(t)
	imageDir := t.TempDir()
	writeTestImages(t, imageDir, 3)
	store, err := imagestore.NewStore(log, imageDir)
	require.NoError(t, err)
	dbFile := filepath.Join(t.TempDir(), "task.sqlite")
	tdb, err := taskdb.NewTaskDB(log, dbFile)
	require.NoError(t, err)
	saveRoot := t.TempDir()

	s, err := NewSession(log, store, coco.NewExporter(log, coco.ToothNumbers()), tdb, saveRoot)
	require.NoError(t, err)
	require.NoError(t, s.Skip())
	require.NoError(t, s.Skip())

	tdb2, err := taskdb.NewTaskDB(log, dbFile)
	require.NoError(t, err)
	s2, err := NewSession(log, store, coco.NewExporter(log, coco.ToothNumbers()), tdb2, saveRoot)
	require.NoError(t, err)
	require.Equal(t, 2, s2.Status().ImageIndex)
	require.Equal(t, "canvas_2", s2.Status().CanvasKey)
}

func TestSetLabelValidation(t *testing.T) {
	s, _ := newTestSession(t, 1)
	require.NoError(t, s.SetLabel(17))
	require.Error(t, s.SetLabel(0))  // tooth categories are 1-based
	require.Error(t, s.SetLabel(33))
	require.Equal(t, 17, s.Status().Label)
}
