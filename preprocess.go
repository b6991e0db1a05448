package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// inputImage is an RGB picture already resized to the model input,
// stored interleaved (HWC) one byte per channel.
type inputImage struct {
	Width  int
	Height int
	Pixels []uint8
}

// decodeError marks a payload that could not be decoded as an image.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

type Preprocessor interface {
	Prepare(data []byte, width, height int) (*inputImage, error)
}

func newPreprocessor(name string) (Preprocessor, error) {
	switch name {
	case "opencv", "":
		return gocvPreprocessor{}, nil
	case "native":
		return nativePreprocessor{}, nil
	}
	return nil, fmt.Errorf("unknown decoder %q", name)
}

type gocvPreprocessor struct{}

func (gocvPreprocessor) Prepare(data []byte, width, height int) (*inputImage, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, &decodeError{err}
	}
	defer img.Close()
	if img.Empty() {
		return nil, &decodeError{fmt.Errorf("cannot identify image (%d bytes)", len(data))}
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(img, &rgb, gocv.ColorBGRToRGB)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationCubic)

	v, err := resized.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("read resized pixels: %w", err)
	}
	pixels := make([]uint8, len(v))
	copy(pixels, v)
	return &inputImage{Width: width, Height: height, Pixels: pixels}, nil
}

type nativePreprocessor struct{}

func (nativePreprocessor) Prepare(data []byte, width, height int) (*inputImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &decodeError{err}
	}

	resized := resize.Resize(uint(width), uint(height), img, resize.Bicubic)
	bounds := resized.Bounds()

	pixels := make([]uint8, 0, 3*width*height)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// alpha is dropped, not premultiplied, to match the opencv decoder
			c := color.NRGBAModel.Convert(resized.At(x, y)).(color.NRGBA)
			pixels = append(pixels, c.R, c.G, c.B)
		}
	}
	return &inputImage{Width: bounds.Dx(), Height: bounds.Dy(), Pixels: pixels}, nil
}

type tensorLayout int

const (
	layoutNHWC tensorLayout = iota
	layoutNCHW
)

func (l tensorLayout) String() string {
	if l == layoutNCHW {
		return "NCHW"
	}
	return "NHWC"
}

func checkNormalization(mode string) error {
	switch mode {
	case "unit", "signed", "":
		return nil
	}
	return fmt.Errorf("unknown normalization %q", mode)
}

// normalize converts pixels to float32 in the range selected by mode:
// "unit" gives [0,1], "signed" gives [-1,1].
func normalize(img *inputImage, mode string, layout tensorLayout) []float32 {
	out := make([]float32, len(img.Pixels))
	plane := img.Width * img.Height
	for i, p := range img.Pixels {
		var v float32
		if mode == "signed" {
			v = (float32(p) - 127.5) / 127.5
		} else {
			v = float32(p) / 255
		}
		if layout == layoutNCHW {
			out[(i%3)*plane+i/3] = v
		} else {
			out[i] = v
		}
	}
	return out
}
