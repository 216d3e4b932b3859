package session

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/cyclopcam/logs"

	"github.com/dentamark/dentamark/pkg/anno"
	"github.com/dentamark/dentamark/pkg/coco"
	"github.com/dentamark/dentamark/pkg/imagestore"
	"github.com/dentamark/dentamark/pkg/segment"
	"github.com/dentamark/dentamark/server/taskdb"
)

// Package session owns all mutable state of one annotation session: which
// image is current, the working annotation set for that image, the
// reconciler consuming canvas snapshots, and the COCO document being
// accumulated. All session state lives here, behind one mutex, and is
// passed explicitly to whoever needs it. Per-image state is replaced, not
// merged, on every navigation.

var ErrComplete = fmt.Errorf("session complete: all images have been annotated")

// Segmenter generates a mask from prompt points on an image.
type Segmenter interface {
	Predict(ctx context.Context, img image.Image, points []anno.Point) (*image.Gray, error)
}

type Session struct {
	log      logs.Log
	store    *imagestore.Store
	exporter *coco.Exporter
	taskDB   *taskdb.TaskDB
	saveRoot string

	lock      sync.Mutex
	index     int
	complete  bool
	set       *anno.Set
	rec       *anno.Reconciler
	label     int
	canvasKey string
	resyncSeq int
	mask      *image.Gray
}

// NewSession restores the task's image index from the task DB and starts
// with fresh per-image state.
func NewSession(log logs.Log, store *imagestore.Store, exporter *coco.Exporter, taskDB *taskdb.TaskDB, saveRoot string) (*Session, error) {
	set := anno.NewSet()
	s := &Session{
		log:      log,
		store:    store,
		exporter: exporter,
		taskDB:   taskDB,
		saveRoot: saveRoot,
		set:      set,
		rec:      anno.NewReconciler(log, set, imagestore.CanonicalSize, imagestore.CanonicalSize),
	}
	index, err := taskDB.Progress(exporter.Vocabulary().DocType())
	if err != nil {
		return nil, err
	}
	s.index = index
	if index >= store.Count() {
		s.complete = true
	}
	s.resetPerImage()
	log.Infof("Session for task %v: image %v of %v", exporter.Vocabulary().DocType(), s.index+1, store.Count())
	return s, nil
}

// resetPerImage replaces all per-image working state.
// Callers must hold the lock (or be the constructor).
func (s *Session) resetPerImage() {
	s.rec.Reset() // also resets the set
	s.label = s.exporter.Vocabulary().DefaultCategory()
	s.mask = nil
	s.resyncSeq = 0
	s.canvasKey = fmt.Sprintf("canvas_%v", s.index)
}

// ResyncCanvas tells the session that the drawing surface has restarted
// (typically a page reload), so the client's object list is empty again
// while our annotations survive. We rotate the canvas key so any snapshot
// still in flight from the old surface is discarded, and re-anchor the
// reconciler so the fresh surface's objects are consumed from position
// zero instead of being swallowed by the stale processed count.
func (s *Session) ResyncCanvas() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.complete {
		return
	}
	s.resyncSeq++
	s.canvasKey = fmt.Sprintf("canvas_%v_%v", s.index, s.resyncSeq)
	s.rec.Reanchor()
	s.log.Infof("Canvas resync: new key %v, %v annotations retained", s.canvasKey, s.set.Len())
}

// Status is a snapshot of the session for the UI.
type Status struct {
	Task           string `json:"task"`
	ImageIndex     int    `json:"imageIndex"`
	ImageCount     int    `json:"imageCount"`
	ImageName      string `json:"imageName,omitempty"`
	Complete       bool   `json:"complete"`
	Label          int    `json:"label"`
	CanvasKey      string `json:"canvasKey"`
	ProcessedCount int    `json:"processedCount"`
	Annotations    int    `json:"annotations"`
	Prompts        int    `json:"prompts"`
	HasMask        bool   `json:"hasMask"`
}

func (s *Session) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	st := Status{
		Task:           s.exporter.Vocabulary().DocType(),
		ImageIndex:     s.index,
		ImageCount:     s.store.Count(),
		Complete:       s.complete,
		Label:          s.label,
		CanvasKey:      s.canvasKey,
		ProcessedCount: s.rec.ProcessedCount(),
		Annotations:    s.set.Len(),
		Prompts:        len(s.rec.Prompts()),
		HasMask:        s.mask != nil,
	}
	if !s.complete {
		st.ImageName = s.store.Name(s.index)
	}
	return st
}

func (s *Session) Vocabulary() coco.Vocabulary {
	return s.exporter.Vocabulary()
}

// Canonical returns the current image at canvas resolution.
func (s *Session) Canonical() (image.Image, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.complete {
		return nil, ErrComplete
	}
	return s.store.Canonical(s.index)
}

// SetLabel selects the active category for subsequently drawn boxes.
func (s *Session) SetLabel(categoryID int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.exporter.Vocabulary().ValidCategory(categoryID) {
		return fmt.Errorf("category %v is not in the %v vocabulary", categoryID, s.exporter.Vocabulary().DocType())
	}
	s.label = categoryID
	return nil
}

// ApplySnapshot reconciles a drawing-surface snapshot into the annotation
// set. Snapshots carrying a canvas key other than the current one are
// leftovers from before a navigation, and are dropped.
// Returns the number of annotations added.
func (s *Session) ApplySnapshot(snap anno.Snapshot) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.complete {
		return 0, ErrComplete
	}
	if snap.CanvasKey != s.canvasKey {
		s.log.Infof("Discarding snapshot for stale canvas %v (current %v)", snap.CanvasKey, s.canvasKey)
		return 0, nil
	}
	canonical, err := s.store.Canonical(s.index)
	if err != nil {
		return 0, err
	}
	crop := func(box anno.Rect) (string, error) {
		return imagestore.DataURL(imagestore.Crop(canonical, box))
	}
	return s.rec.ApplySnapshot(snap.Objects, s.label, crop), nil
}

// Annotations returns a copy of the current records.
func (s *Session) Annotations() []anno.Record {
	s.lock.Lock()
	defer s.lock.Unlock()
	records := make([]anno.Record, s.set.Len())
	copy(records, s.set.Records())
	return records
}

func (s *Session) DeleteAnnotationAt(pos int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.set.DeleteAt(pos)
}

// DeleteLastAnnotation removes the most recent annotation.
// Returns false if there was nothing to remove.
func (s *Session) DeleteLastAnnotation() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.set.DeleteLast()
}

// Next advances to the next image, discarding un-submitted work.
// Advancing past the last image completes the session.
func (s *Session) Next() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.advance(1)
}

// Previous steps back one image. A no-op at the first image.
func (s *Session) Previous() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.complete {
		return ErrComplete
	}
	if s.index == 0 {
		s.log.Infof("Previous at first image: ignored")
		return nil
	}
	return s.advance(-1)
}

// Skip is Next without flushing; the distinction only matters for reading
// the API surface.
func (s *Session) Skip() error {
	return s.Next()
}

// advance must be called with the lock held.
func (s *Session) advance(delta int) error {
	if s.complete {
		return ErrComplete
	}
	s.index += delta
	if s.index >= s.store.Count() {
		s.complete = true
		s.log.Infof("All images have been annotated")
	}
	s.resetPerImage()
	if err := s.taskDB.SetProgress(s.exporter.Vocabulary().DocType(), s.index); err != nil {
		// Progress persistence is best-effort; the session itself is intact.
		s.log.Warnf("Failed to persist session progress: %v", err)
	}
	return nil
}

// Submit flushes the current annotation set into the COCO document, writes
// the document to disk, and advances to the next image. If the write fails
// the flushed records are rolled back out of the document and the session
// does not advance, so a retry starts clean. Allocated ids are burned on
// failure, which is fine: they only need to be unique.
func (s *Session) Submit() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.complete {
		return ErrComplete
	}

	tx := s.taskDB.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	imageID, err := s.taskDB.GenerateNewID(tx, "image")
	if err != nil {
		tx.Rollback()
		return err
	}
	annotationIDs := make([]int64, s.set.Len())
	for i := range annotationIDs {
		id, err := s.taskDB.GenerateNewID(tx, "annotation")
		if err != nil {
			tx.Rollback()
			return err
		}
		annotationIDs[i] = id
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	imagesMark, annotationsMark := s.exporter.Mark()
	s.exporter.AddImage(imageID, fmt.Sprintf("image_%v.jpg", imageID), imagestore.CanonicalSize, imagestore.CanonicalSize)
	for i, rec := range s.set.Records() {
		s.exporter.AddAnnotation(annotationIDs[i], imageID, rec.Label, [4]int{rec.Box.X, rec.Box.Y, rec.Box.Width, rec.Box.Height})
	}
	if err := s.exporter.Save(s.saveRoot); err != nil {
		s.exporter.RollbackTo(imagesMark, annotationsMark)
		return fmt.Errorf("annotations were not saved: %w", err)
	}
	return s.advance(1)
}

// Prompts returns the collected segmentation prompt points.
func (s *Session) Prompts() []anno.Point {
	s.lock.Lock()
	defer s.lock.Unlock()
	prompts := make([]anno.Point, len(s.rec.Prompts()))
	copy(prompts, s.rec.Prompts())
	return prompts
}

// ShowMask runs the segmentation model over the current prompts and stores
// the resulting mask for overlay.
func (s *Session) ShowMask(ctx context.Context, seg Segmenter) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.complete {
		return ErrComplete
	}
	if seg == nil {
		return fmt.Errorf("segmentation is not configured")
	}
	if len(s.rec.Prompts()) == 0 {
		return fmt.Errorf("no prompt points: click on the structure first")
	}
	canonical, err := s.store.Canonical(s.index)
	if err != nil {
		return err
	}
	mask, err := seg.Predict(ctx, canonical, s.rec.Prompts())
	if err != nil {
		return err
	}
	s.mask = mask
	return nil
}

// MaskOverlay returns the current image with the mask painted in the
// active label's color, or an error if no mask has been generated.
func (s *Session) MaskOverlay() (image.Image, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.complete {
		return nil, ErrComplete
	}
	if s.mask == nil {
		return nil, fmt.Errorf("no mask: generate one first")
	}
	canonical, err := s.store.Canonical(s.index)
	if err != nil {
		return nil, err
	}
	return segment.Overlay(canonical, s.mask, s.exporter.Vocabulary().LabelColor(s.label)), nil
}

// Mask returns the current mask, or nil.
func (s *Session) Mask() *image.Gray {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.mask
}
