package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"

	"github.com/nerrad567/cadbridge/internal/engine"
)

// View names a fixed orthographic projection.
type View string

// Supported views.
const (
	ViewIsometric View = "Isometric"
	ViewFront     View = "Front"
	ViewTop       View = "Top"
	ViewRight     View = "Right"
)

// Size limits for a snapshot, in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
	MaxDimension  = 4096
	margin        = 0.1
)

var (
	// ErrUnknownView is returned for a view name that is not supported.
	ErrUnknownView = errors.New("render: unknown view")

	// ErrBadSize is returned when a requested dimension is out of range.
	ErrBadSize = errors.New("render: image size out of range")
)

// ParseView resolves a view name case-insensitively. The empty name selects
// the isometric view.
func ParseView(name string) (View, error) {
	if name == "" {
		return ViewIsometric, nil
	}
	for _, v := range []View{ViewIsometric, ViewFront, ViewTop, ViewRight} {
		if strings.EqualFold(name, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, name)
}

// box edges as corner index pairs, see Capture for the corner numbering.
var edges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// project maps a model-space point to 2D, with y pointing up.
func project(view View, p engine.Vector) (float64, float64) {
	switch view {
	case ViewFront:
		return p.X, p.Z
	case ViewTop:
		return p.X, p.Y
	case ViewRight:
		return p.Y, p.Z
	default:
		const c30, s30 = 0.8660254037844386, 0.5
		return (p.X - p.Y) * c30, p.Z + (p.X+p.Y)*s30
	}
}

// Image draws the scene. An empty scene is a blank canvas.
func (s *Scene) Image(view View, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadSize, width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	background := color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = background.R, background.G, background.B, background.A
	}
	if len(s.Items) == 0 {
		return img, nil
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, item := range s.Items {
		for _, c := range item.Corners {
			x, y := project(view, c)
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
	}

	spanX, spanY := math.Max(maxX-minX, 1e-9), math.Max(maxY-minY, 1e-9)
	usableW, usableH := float64(width)*(1-2*margin), float64(height)*(1-2*margin)
	scale := math.Min(usableW/spanX, usableH/spanY)
	offX := (float64(width) - spanX*scale) / 2
	offY := (float64(height) - spanY*scale) / 2

	toPixel := func(p engine.Vector) (int, int) {
		x, y := project(view, p)
		px := offX + (x-minX)*scale
		py := float64(height) - (offY + (y-minY)*scale)
		return int(math.Round(px)), int(math.Round(py))
	}

	for _, item := range s.Items {
		ink := rgba(item.Color)
		for _, e := range edges {
			x0, y0 := toPixel(item.Corners[e[0]])
			x1, y1 := toPixel(item.Corners[e[1]])
			line(img, x0, y0, x1, y1, ink)
		}
	}
	return img, nil
}

// PNG draws the scene and encodes it.
func (s *Scene) PNG(view View, width, height int) ([]byte, error) {
	img, err := s.Image(view, width, height)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func rgba(c engine.Color) color.RGBA {
	ch := func(f float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
	}
	return color.RGBA{R: ch(c[0]), G: ch(c[1]), B: ch(c[2]), A: 0xff}
}

// line draws with Bresenham's algorithm, clipping per pixel.
func line(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	bounds := img.Bounds()
	errAcc := dx + dy
	for {
		if (image.Point{X: x0, Y: y0}).In(bounds) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x0 += sx
		}
		if e2 <= dx {
			errAcc += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
