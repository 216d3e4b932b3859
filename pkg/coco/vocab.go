package coco

import "strings"

// VocabKind is the closed set of label vocabularies.
type VocabKind int

const (
	VocabToothNumbers VocabKind = iota
	VocabAnomalies
)

// Category ID bases differ between the two vocabularies. Tooth numbers are
// 1-based (tooth_1 .. tooth_32); anomaly categories are 0-based. This
// inconsistency is inherited from the export consumers, so we keep it, but
// as named constants rather than an indexing accident.
const (
	ToothCategoryBase   = 1
	AnomalyCategoryBase = 0
)

const ToothCount = 32

// Tooth display labels, top row left-to-right then bottom row, in the
// Danish and international (FDI) conventions. Display labels are what the
// operator sees; exported category names are always tooth_{1..32}.
var DanishToothLabels = []string{
	"8+", "7+", "6+", "5+", "4+", "3+", "2+", "1+",
	"+1", "+2", "+3", "+4", "+5", "+6", "+7", "+8",
	"8-", "7-", "6-", "5-", "4-", "3-", "2-", "1-",
	"-1", "-2", "-3", "-4", "-5", "-6", "-7", "-8",
}

var InternationalToothLabels = []string{
	"18", "17", "16", "15", "14", "13", "12", "11",
	"21", "22", "23", "24", "25", "26", "27", "28",
	"48", "47", "46", "45", "44", "43", "42", "41",
	"31", "32", "33", "34", "35", "36", "37", "38",
}

var DanishAnomalyLabels = []string{
	"Tandkrone", "Protese", "Plastfylding", "Plastisk Opbygning", "Støbt opbygning",
}

var InternationalAnomalyLabels = []string{
	"Crown", "Denture", "Filling", "Composite Build-up", "Cast Build-up",
}

// Vocabulary is the fixed category set of one annotation task.
// Immutable once constructed.
type Vocabulary struct {
	kind  VocabKind
	names []string // anomaly category names; unused for tooth numbers
}

func ToothNumbers() Vocabulary {
	return Vocabulary{kind: VocabToothNumbers}
}

// Anomalies builds an anomaly vocabulary with the given category names.
// If names is nil, the standard five dental anomaly categories are used.
func Anomalies(names []string) Vocabulary {
	if names == nil {
		names = InternationalAnomalyLabels
	}
	owned := make([]string, len(names))
	copy(owned, names)
	return Vocabulary{kind: VocabAnomalies, names: owned}
}

func (v Vocabulary) Kind() VocabKind {
	return v.kind
}

// DocType names the subdirectory this vocabulary's document is saved under.
func (v Vocabulary) DocType() string {
	if v.kind == VocabToothNumbers {
		return "tooth_numbers"
	}
	return "anomalies"
}

func (v Vocabulary) CategoryBase() int {
	if v.kind == VocabToothNumbers {
		return ToothCategoryBase
	}
	return AnomalyCategoryBase
}

// Size is the number of categories.
func (v Vocabulary) Size() int {
	if v.kind == VocabToothNumbers {
		return ToothCount
	}
	return len(v.names)
}

// ValidCategory reports whether id falls inside this vocabulary.
func (v Vocabulary) ValidCategory(id int) bool {
	return id >= v.CategoryBase() && id < v.CategoryBase()+v.Size()
}

// DefaultCategory is the label selected after every per-image reset.
func (v Vocabulary) DefaultCategory() int {
	return v.CategoryBase()
}

// Categories produces the category records for the export document.
func (v Vocabulary) Categories() []Category {
	cats := make([]Category, 0, v.Size())
	if v.kind == VocabToothNumbers {
		for i := 0; i < ToothCount; i++ {
			cats = append(cats, Category{
				ID:            ToothCategoryBase + i,
				Name:          toothName(ToothCategoryBase + i),
				Supercategory: "tooth",
			})
		}
		return cats
	}
	for i, name := range v.names {
		cats = append(cats, Category{
			ID:            AnomalyCategoryBase + i,
			Name:          name,
			Supercategory: "anomaly",
		})
	}
	return cats
}

// DisplayLabels returns the operator-facing label names, in category order.
// language is "Danish" or "International" (case-insensitive); anything else
// falls back to international.
func (v Vocabulary) DisplayLabels(language string) []string {
	danish := strings.EqualFold(language, "Danish")
	if v.kind == VocabToothNumbers {
		if danish {
			return DanishToothLabels
		}
		return InternationalToothLabels
	}
	if danish && len(v.names) == len(DanishAnomalyLabels) {
		return DanishAnomalyLabels
	}
	return v.names
}
