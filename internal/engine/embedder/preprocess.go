package embedder

import (
	"image"

	"golang.org/x/image/draw"
)

// CLIP pixel normalization constants.
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// pixelValues converts img to a flat CHW float32 tensor of shape
// [3, size, size]: the shorter side is resized to size with CatmullRom,
// the center is cropped, and each channel is normalized with clipMean/clipStd.
func pixelValues(img image.Image, size int) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	nw, nh := size, size
	if w < h {
		nh = max(size, (h*size+w/2)/w)
	} else {
		nw = max(size, (w*size+h/2)/h)
	}

	resized := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, b, draw.Src, nil)

	x0 := (nw - size) / 2
	y0 := (nh - size) / 2
	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := resized.PixOffset(x0+x, y0+y)
			px := resized.Pix[off : off+3]
			i := y*size + x
			for c := 0; c < 3; c++ {
				out[c*plane+i] = (float32(px[c])/255 - clipMean[c]) / clipStd[c]
			}
		}
	}
	return out
}
