package embedder

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func TestPixelValuesShapeAndNormalization(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 255, G: 0, B: 128, A: 255}), image.Point{}, draw.Src)

	const size = 32
	out := pixelValues(img, size)
	if len(out) != 3*size*size {
		t.Fatalf("len = %d, want %d", len(out), 3*size*size)
	}

	plane := size * size
	center := (size/2)*size + size/2
	want := [3]float32{
		(1 - clipMean[0]) / clipStd[0],
		(0 - clipMean[1]) / clipStd[1],
		(128.0/255 - clipMean[2]) / clipStd[2],
	}
	for c := 0; c < 3; c++ {
		got := out[c*plane+center]
		if d := got - want[c]; d > 0.02 || d < -0.02 {
			t.Errorf("channel %d = %f, want %f", c, got, want[c])
		}
	}
}

func TestPixelValuesCenterCrop(t *testing.T) {
	// Left half black, right half white, in a wide image: the crop keeps the
	// middle, so the left edge of the crop is dark and the right edge light.
	img := image.NewRGBA(image.Rect(0, 0, 400, 100))
	draw.Draw(img, image.Rect(200, 0, 400, 100), image.NewUniform(color.White), image.Point{}, draw.Src)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}

	const size = 10
	out := pixelValues(img, size)
	row := size / 2
	left := out[row*size]
	right := out[row*size+size-1]
	if left >= right {
		t.Errorf("expected dark left edge and light right edge, got %f and %f", left, right)
	}
}
