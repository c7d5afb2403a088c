// Package frame holds the pure capture-surface operations: decoding a JPEG
// still, drawing detection overlays, and re-encoding. It is independent of
// any camera or HTTP machinery so the drawing rules stay testable.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/okume/camassist/pkg/types"
)

// JPEGQuality is the fixed encode quality for captured and annotated frames.
const JPEGQuality = 85

// Boxes closer than this to the top edge get their label drawn inside the
// box instead of above it.
const topEdgeThreshold = 20

const strokeWidth = 3

var (
	boxColor       = color.RGBA{R: 0, G: 200, B: 83, A: 255}
	labelTextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelBackColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// Annotate draws bounding boxes and labels for the given objects onto the
// JPEG frame and returns a re-encoded JPEG. With no objects the input is
// returned unchanged, byte for byte.
func Annotate(jpegData []byte, objects []types.DetectedObject) ([]byte, error) {
	if len(objects) == 0 {
		return jpegData, nil
	}

	src, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	canvas := image.NewRGBA(src.Bounds())
	draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, obj := range objects {
		strokeRect(canvas, obj.Box)
		x, y := labelOrigin(obj.Box)
		drawLabel(canvas, x, y, Label(obj))
	}

	return Encode(canvas)
}

// Encode encodes an image as JPEG at the fixed quality.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Label renders the overlay text for one object. A missing or "Unknown"
// class falls back to the object id with the raw confidence value.
func Label(obj types.DetectedObject) string {
	if obj.Class == "" || strings.EqualFold(obj.Class, "unknown") {
		return fmt.Sprintf("Object %d %.2f%%", obj.ID, obj.Confidence)
	}
	pct := int(math.Round(obj.Confidence * 100))
	return fmt.Sprintf("%s %d%%", obj.Class, pct)
}

// labelOrigin returns the text anchor for a box label: above the box, or
// inside the box top when the box is too close to the image's top edge.
func labelOrigin(box types.Box) (int, int) {
	x := int(box.X1)
	if box.Y1 < topEdgeThreshold {
		return x, int(box.Y1) + topEdgeThreshold
	}
	return x, int(box.Y1) - 5
}

func strokeRect(img *image.RGBA, box types.Box) {
	bounds := img.Bounds()
	x1 := clamp(int(box.X1), bounds.Min.X, bounds.Max.X-1)
	y1 := clamp(int(box.Y1), bounds.Min.Y, bounds.Max.Y-1)
	x2 := clamp(int(box.X2), bounds.Min.X, bounds.Max.X-1)
	y2 := clamp(int(box.Y2), bounds.Min.Y, bounds.Max.Y-1)
	if x2 < x1 || y2 < y1 {
		return
	}

	for w := 0; w < strokeWidth; w++ {
		for x := x1; x <= x2; x++ {
			setPixel(img, x, y1+w)
			setPixel(img, x, y2-w)
		}
		for y := y1; y <= y2; y++ {
			setPixel(img, x1+w, y)
			setPixel(img, x2-w, y)
		}
	}
}

func setPixel(img *image.RGBA, x, y int) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, boxColor)
	}
}

// drawLabel paints text with a filled background so it stays readable on
// any frame content. (x, y) anchors the text baseline.
func drawLabel(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	descent := face.Metrics().Descent.Ceil()

	back := image.Rect(x-1, y-ascent, x+width+1, y+descent)
	draw.Draw(img, back.Intersect(img.Bounds()), image.NewUniform(labelBackColor), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelTextColor),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
