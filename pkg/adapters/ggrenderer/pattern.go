package ggrenderer

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/user/camlab/pkg/ports"
)

// SMPTE-like color bars, left to right.
var barColors = []color.RGBA{
	{R: 192, G: 192, B: 192, A: 255},
	{R: 192, G: 192, B: 0, A: 255},
	{R: 0, G: 192, B: 192, A: 255},
	{R: 0, G: 192, B: 0, A: 255},
	{R: 192, G: 0, B: 192, A: 255},
	{R: 192, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 192, A: 255},
}

// DrawTestPattern paints a camera test card into img: color bars, a ball that
// moves with the frame sequence, and the frame timestamp.
func DrawTestPattern(r ports.Renderer, img *image.RGBA, label string, seq uint64, ts time.Duration) {
	c := r.CanvasFor(img)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	barW := w / len(barColors)
	if barW == 0 {
		barW = 1
	}
	for i, col := range barColors {
		x := i * barW
		bw := barW
		if i == len(barColors)-1 {
			bw = w - x
		}
		c.DrawRect(x, 0, bw, h*2/3, col)
	}
	c.DrawRect(0, h*2/3, w, h-h*2/3, color.RGBA{R: 16, G: 16, B: 16, A: 255})

	radius := h / 12
	if radius < 2 {
		radius = 2
	}
	span := w - 2*radius
	if span < 1 {
		span = 1
	}
	pos := int(seq*8) % (2 * span)
	if pos >= span {
		pos = 2*span - pos
	}
	c.DrawCircle(radius+pos, h*5/6, radius, color.White)

	if h >= 32 {
		c.DrawText(fmt.Sprintf("%s #%d %.3fs", label, seq, ts.Seconds()), 8, h/12, ports.TextStyle{
			FontSize: 13,
			Color:    color.Black,
			Align:    ports.AlignLeft,
		})
	}
}
