package segment

import (
	"image"

	"github.com/fogleman/gg"
)

// MaskOn reports whether the mask marks (x, y) as part of the object.
func MaskOn(mask *image.Gray, x, y int) bool {
	return mask.GrayAt(x, y).Y >= 128
}

// Overlay paints the masked region of img in the given color (a #rrggbb
// hex string, typically the active label's color). Mask pixels replace the
// image pixels outright, matching how the annotation UI highlights the
// predicted tooth.
func Overlay(img image.Image, mask *image.Gray, hexColor string) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetHexColor(hexColor)
	bounds := img.Bounds()
	maskBounds := mask.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if (image.Point{x, y}).In(maskBounds) && MaskOn(mask, x, y) {
				dc.SetPixel(x, y)
			}
		}
	}
	return dc.Image()
}
