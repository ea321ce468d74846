package pipeline

import (
	"image"
	"image/color"
)

// bgraImage is a zero-copy image.Image over a packed BGRA plane.
type bgraImage struct {
	plane Plane
}

func (im *bgraImage) ColorModel() color.Model { return color.RGBAModel }

func (im *bgraImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, im.plane.Width, im.plane.Height)
}

func (im *bgraImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= im.plane.Width || y >= im.plane.Height {
		return color.RGBA{}
	}
	i := y*im.plane.Stride + x*4
	p := im.plane.Data[i : i+4 : i+4]
	return color.RGBA{R: p[2], G: p[1], B: p[0], A: p[3]}
}

// nv12Image is a zero-copy image.Image over NV12 planes.
// Conversion to RGB happens per sample.
type nv12Image struct {
	luma   Plane
	chroma Plane
}

func (im *nv12Image) ColorModel() color.Model { return color.YCbCrModel }

func (im *nv12Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, im.luma.Width, im.luma.Height)
}

func (im *nv12Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= im.luma.Width || y >= im.luma.Height {
		return color.YCbCr{}
	}
	yy := im.luma.Data[y*im.luma.Stride+x]
	ci := (y/2)*im.chroma.Stride + (x/2)*2
	return color.YCbCr{Y: yy, Cb: im.chroma.Data[ci], Cr: im.chroma.Data[ci+1]}
}

// rgbaImage wraps a packed RGBA plane as *image.RGBA without copying.
func rgbaImage(p Plane) *image.RGBA {
	return &image.RGBA{
		Pix:    p.Data,
		Stride: p.Stride,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// Image returns a zero-copy view of the buffer pixels.
// The view shares memory with the buffer and must not outlive its references.
func (b *PixelBuffer) Image() image.Image {
	switch b.format {
	case PixelFormatBGRA32:
		return &bgraImage{plane: b.planes[0]}
	case PixelFormatRGBA32:
		return rgbaImage(b.planes[0])
	case PixelFormatNV12:
		return &nv12Image{luma: b.planes[0], chroma: b.planes[1]}
	default:
		return nil
	}
}

// WriteRGBA fills the buffer from an RGBA image, converting to the buffer's
// own format. Pixels outside the overlap of both bounds are left untouched.
func (b *PixelBuffer) WriteRGBA(src *image.RGBA) {
	w, h := b.width, b.height
	sb := src.Bounds()
	if sb.Dx() < w {
		w = sb.Dx()
	}
	if sb.Dy() < h {
		h = sb.Dy()
	}

	switch b.format {
	case PixelFormatRGBA32:
		dst := b.planes[0]
		for y := 0; y < h; y++ {
			so := src.PixOffset(sb.Min.X, sb.Min.Y+y)
			copy(dst.Data[y*dst.Stride:y*dst.Stride+w*4], src.Pix[so:so+w*4])
		}
	case PixelFormatBGRA32:
		dst := b.planes[0]
		for y := 0; y < h; y++ {
			so := src.PixOffset(sb.Min.X, sb.Min.Y+y)
			row := dst.Data[y*dst.Stride:]
			for x := 0; x < w; x++ {
				s := src.Pix[so+x*4 : so+x*4+4]
				row[x*4+0] = s[2]
				row[x*4+1] = s[1]
				row[x*4+2] = s[0]
				row[x*4+3] = s[3]
			}
		}
	case PixelFormatNV12:
		luma, chroma := b.planes[0], b.planes[1]
		for y := 0; y < h; y++ {
			so := src.PixOffset(sb.Min.X, sb.Min.Y+y)
			for x := 0; x < w; x++ {
				s := src.Pix[so+x*4 : so+x*4+4]
				yy, cb, cr := color.RGBToYCbCr(s[0], s[1], s[2])
				luma.Data[y*luma.Stride+x] = yy
				if y%2 == 0 && x%2 == 0 {
					ci := (y/2)*chroma.Stride + (x/2)*2
					chroma.Data[ci] = cb
					chroma.Data[ci+1] = cr
				}
			}
		}
	}
}
