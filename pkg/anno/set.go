package anno

import "fmt"

// Record is one labeled region on the current image.
type Record struct {
	Label     int    `json:"label"` // Category ID in the active vocabulary
	Box       Rect   `json:"box"`
	Thumbnail string `json:"thumbnail,omitempty"` // Inline data URL of the cropped region. Presentational only.
}

// Set is the ordered collection of records for the image currently open.
// It is replaced wholesale (never merged) when the current image changes.
type Set struct {
	records []Record
}

func NewSet() *Set {
	return &Set{}
}

func (s *Set) Len() int {
	return len(s.records)
}

func (s *Set) Append(rec Record) {
	s.records = append(s.records, rec)
}

// Records returns the live record slice. Callers must not mutate it.
func (s *Set) Records() []Record {
	return s.records
}

func (s *Set) At(pos int) Record {
	return s.records[pos]
}

// DeleteAt removes the record at pos, shifting subsequent records down.
func (s *Set) DeleteAt(pos int) error {
	if pos < 0 || pos >= len(s.records) {
		return fmt.Errorf("annotation index %v out of range (have %v)", pos, len(s.records))
	}
	s.records = append(s.records[:pos], s.records[pos+1:]...)
	return nil
}

// DeleteLast removes the most recent record.
// Returns false (and does nothing) if the set is empty.
func (s *Set) DeleteLast() bool {
	if len(s.records) == 0 {
		return false
	}
	s.records = s.records[:len(s.records)-1]
	return true
}

// Exists reports whether a record with exactly this geometry is present.
// Linear scan; sets are tens of records at most.
func (s *Set) Exists(box Rect) bool {
	for _, rec := range s.records {
		if rec.Box == box {
			return true
		}
	}
	return false
}

func (s *Set) Reset() {
	s.records = nil
}
