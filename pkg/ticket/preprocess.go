package ticket

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/otiai10/gosseract/v2"
)

// Preprocessing for ticket-sourced radiographs before classification:
// crop away the black framing that viewers export around the X-ray, and
// black out any burned-in text (patient names, dates) located by OCR.

// DefaultTextConfidence is the minimum OCR confidence (0..100) for a word
// to be treated as real text and removed.
const DefaultTextConfidence = 50

// borderLuminance is the mean row/column luminance below which we consider
// the row/column part of the black frame.
const borderLuminance = 16

// TextRegion is one OCR-detected word.
type TextRegion struct {
	Box        image.Rectangle `json:"box"`
	Word       string          `json:"word"`
	Confidence float64         `json:"confidence"` // 0..100
}

// CropBlackBorders trims rows and columns of near-black pixels from every
// edge. If the whole image is dark (a very underexposed radiograph), the
// image is returned unchanged rather than cropped to nothing.
func CropBlackBorders(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := imaging.Grayscale(img)

	rowDark := func(y int) bool {
		sum := 0
		for x := 0; x < bounds.Dx(); x++ {
			sum += int(gray.Pix[gray.PixOffset(x, y)])
		}
		return sum/bounds.Dx() < borderLuminance
	}
	colDark := func(x int) bool {
		sum := 0
		for y := 0; y < bounds.Dy(); y++ {
			sum += int(gray.Pix[gray.PixOffset(x, y)])
		}
		return sum/bounds.Dy() < borderLuminance
	}

	top, bottom := 0, bounds.Dy()
	for top < bottom && rowDark(top) {
		top++
	}
	for bottom > top && rowDark(bottom-1) {
		bottom--
	}
	left, right := 0, bounds.Dx()
	for left < right && colDark(left) {
		left++
	}
	for right > left && colDark(right-1) {
		right--
	}
	if top >= bottom || left >= right {
		return img
	}
	return imaging.Crop(img, image.Rect(bounds.Min.X+left, bounds.Min.Y+top, bounds.Min.X+right, bounds.Min.Y+bottom))
}

// DetectText runs OCR over the image and returns word-level bounding boxes.
// Requires a working Tesseract installation; an OCR failure is returned to
// the caller, who decides whether to proceed without text removal.
func DetectText(img image.Image) ([]TextRegion, error) {
	buf := bytes.Buffer{}
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, err
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}
	regions := []TextRegion{}
	for _, box := range boxes {
		regions = append(regions, TextRegion{
			Box:        box.Box,
			Word:       box.Word,
			Confidence: box.Confidence,
		})
	}
	return regions, nil
}

// RemoveText blacks out every region whose word is non-empty and whose
// confidence clears the threshold.
func RemoveText(img image.Image, regions []TextRegion, confidenceThreshold float64) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetColor(color.Black)
	for _, region := range regions {
		if !removable(region, confidenceThreshold) {
			continue
		}
		dc.DrawRectangle(float64(region.Box.Min.X), float64(region.Box.Min.Y), float64(region.Box.Dx()), float64(region.Box.Dy()))
		dc.Fill()
	}
	return dc.Image()
}

// AnnotateTextRegions draws a box around each removable region, for
// inspecting what the OCR pass found (the --debug output of ticketfetch).
func AnnotateTextRegions(img image.Image, regions []TextRegion, confidenceThreshold float64) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetHexColor("#ff9600")
	dc.SetLineWidth(3)
	for _, region := range regions {
		if !removable(region, confidenceThreshold) {
			continue
		}
		dc.DrawRectangle(float64(region.Box.Min.X), float64(region.Box.Min.Y), float64(region.Box.Dx()), float64(region.Box.Dy()))
		dc.Stroke()
	}
	return dc.Image()
}

func removable(region TextRegion, confidenceThreshold float64) bool {
	return strings.TrimSpace(region.Word) != "" && region.Confidence > confidenceThreshold
}
