package coco

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
)

// Package coco accumulates annotations across a whole session into one
// COCO-style document (images, annotations, categories) and writes it out
// as JSON.

type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

type Image struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

type Annotation struct {
	ID         int64  `json:"id"`
	ImageID    int64  `json:"image_id"`
	CategoryID int    `json:"category_id"`
	BBox       [4]int `json:"bbox"` // x, y, width, height
	Area       int    `json:"area"`
	IsCrowd    int    `json:"iscrowd"`
}

// Document is the serialized form.
type Document struct {
	Images      []Image      `json:"images"`
	Annotations []Annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`
}

// Exporter owns a Document for the lifetime of a session.
// The category list is fixed at construction and never changes afterwards.
type Exporter struct {
	log   logs.Log
	vocab Vocabulary
	doc   Document
}

func NewExporter(log logs.Log, vocab Vocabulary) *Exporter {
	return &Exporter{
		log:   log,
		vocab: vocab,
		doc: Document{
			Images:      []Image{},
			Annotations: []Annotation{},
			Categories:  vocab.Categories(),
		},
	}
}

func (e *Exporter) Vocabulary() Vocabulary {
	return e.vocab
}

func (e *Exporter) Document() *Document {
	return &e.doc
}

// AddImage appends an image record. ID uniqueness is the caller's
// responsibility (the session draws ids from the task DB allocator).
// Pass zero width/height to omit the size.
func (e *Exporter) AddImage(id int64, fileName string, width, height int) {
	e.doc.Images = append(e.doc.Images, Image{
		ID:       id,
		FileName: fileName,
		Width:    width,
		Height:   height,
	})
}

func (e *Exporter) AddAnnotation(id, imageID int64, categoryID int, bbox [4]int) {
	e.doc.Annotations = append(e.doc.Annotations, Annotation{
		ID:         id,
		ImageID:    imageID,
		CategoryID: categoryID,
		BBox:       bbox,
		Area:       bbox[2] * bbox[3],
		IsCrowd:    0,
	})
}

// Mark returns the current document lengths, for RollbackTo.
func (e *Exporter) Mark() (images, annotations int) {
	return len(e.doc.Images), len(e.doc.Annotations)
}

// RollbackTo truncates the document to a previous Mark. Used when a save
// fails after records were appended, so a retry does not duplicate them.
func (e *Exporter) RollbackTo(images, annotations int) {
	e.doc.Images = e.doc.Images[:images]
	e.doc.Annotations = e.doc.Annotations[:annotations]
}

// Save writes the document to <root>/<docType>/annotations.json.
// I/O failures are logged and returned; callers surface them as warnings
// and must not treat them as fatal to the session.
func (e *Exporter) Save(root string) error {
	dir := filepath.Join(root, e.vocab.DocType())
	if err := os.MkdirAll(dir, 0770); err != nil {
		e.log.Errorf("Failed to create annotation directory %v: %v", dir, err)
		return err
	}
	b, err := json.MarshalIndent(&e.doc, "", "    ")
	if err != nil {
		e.log.Errorf("Failed to serialize annotations: %v", err)
		return err
	}
	filename := filepath.Join(dir, "annotations.json")
	if err := os.WriteFile(filename, b, 0660); err != nil {
		e.log.Errorf("Failed to write %v: %v", filename, err)
		return err
	}
	return nil
}

func toothName(id int) string {
	return fmt.Sprintf("tooth_%v", id)
}
