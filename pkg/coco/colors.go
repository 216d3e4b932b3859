package coco

import (
	"github.com/lucasb-eyer/go-colorful"
)

// LabelColors assigns each category a deterministic color by walking the
// HSV hue wheel, so tooth 1 is always the same red and neighboring teeth
// get visually distinct hues. Returned as #rrggbb hex strings in category
// order.
func (v Vocabulary) LabelColors() []string {
	n := v.Size()
	colors := make([]string, n)
	for i := 0; i < n; i++ {
		colors[i] = colorful.Hsv(float64(i)*360.0/float64(n), 0.85, 0.95).Hex()
	}
	return colors
}

// LabelColor returns the color for one category id, or white for an id
// outside the vocabulary.
func (v Vocabulary) LabelColor(categoryID int) string {
	if !v.ValidCategory(categoryID) {
		return "#ffffff"
	}
	return v.LabelColors()[categoryID-v.CategoryBase()]
}
