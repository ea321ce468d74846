package softgpu

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// shader fills dst from the sampled texture. frame counts the draws of the queue.
type shader func(dst xdraw.Image, src image.Image, frame uint64, op xdraw.Op)

var (
	scanlineColor = color.RGBA{A: 0x60}
	bandColor     = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0x20}
)

const (
	scanlinePitch = 3
	chromaOffset  = 2
	bandSpeed     = 7
)

// display maps the texture onto the whole target.
func (d *Device) display(dst xdraw.Image, src image.Image, frame uint64, op xdraw.Op) {
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), op, nil)
}

// vhs maps the texture, shifts the red channel, darkens every third row and
// rolls a bright tracking band down the picture.
func (d *Device) vhs(dst xdraw.Image, src image.Image, frame uint64, op xdraw.Op) {
	b := dst.Bounds()
	img, direct := dst.(*image.RGBA)
	if !direct || b.Min != (image.Point{}) {
		img = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		if op == xdraw.Over {
			xdraw.Copy(img, image.Point{}, dst, b, xdraw.Src, nil)
		}
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}

	xdraw.ApproxBiLinear.Scale(img, img.Rect, src, src.Bounds(), op, nil)
	shiftRed(img, chromaOffset)

	c := d.renderer.CanvasFor(img)
	for y := 0; y < h; y += scanlinePitch {
		c.DrawLine(0, y, w, y, scanlineColor, 1)
	}
	bandHeight := h / 12
	if bandHeight > 0 {
		y := int(frame*bandSpeed) % h
		c.DrawRect(0, y, w, bandHeight, bandColor)
	}

	if img != dst {
		xdraw.Copy(dst, b.Min, img, img.Rect, xdraw.Src, nil)
	}
}

// shiftRed moves the red channel right by n pixels.
func shiftRed(img *image.RGBA, n int) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if n <= 0 || n >= w {
		return
	}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := w - 1; x >= n; x-- {
			row[x*4] = row[(x-n)*4]
		}
	}
}
