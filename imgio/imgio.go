// Package imgio reads images into network-ready tensors and turns predicted
// maps back into images.
package imgio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ts "github.com/sugarme/gotch/tensor"
	"golang.org/x/image/draw"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrSizeMismatch      = errors.New("images differ in size")
	ErrNoImage           = errors.New("no image given")
)

// ReadImage reads image from file.
func ReadImage(filename string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", filename)
	}
	defer f.Close()

	var img image.Image
	switch ext {
	case ".tif", ".tiff":
		img, err = tiff.Decode(f)
	default:
		img, err = imaging.Decode(f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode %s", filename)
	}

	return img, nil
}

// SnapSize rounds width and height down to the nearest multiple of divisor,
// never below divisor itself.
func SnapSize(w, h, divisor int) (int, int) {
	snap := func(v int) int {
		v -= v % divisor
		if v < divisor {
			return divisor
		}
		return v
	}

	return snap(w), snap(h)
}

// Resize scales img to w x h with Lanczos3.
func Resize(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}

	return resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
}

// Fit resizes img to the closest size the network accepts.
func Fit(img image.Image, divisor int) image.Image {
	b := img.Bounds()
	w, h := SnapSize(b.Dx(), b.Dy(), divisor)

	return Resize(img, w, h)
}

// ToCHW flattens img into channel-major RGB values scaled to [0, 1].
func ToCHW(img image.Image) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := y*w + x
			out[i] = float32(c.R) / 255
			out[plane+i] = float32(c.G) / 255
			out[2*plane+i] = float32(c.B) / 255
		}
	}

	return out
}

// ToTensor stacks same-sized images into a [B 3 H W] float tensor.
func ToTensor(imgs ...image.Image) (*ts.Tensor, error) {
	if len(imgs) == 0 {
		return nil, ErrNoImage
	}

	size := imgs[0].Bounds().Size()
	data := make([]float32, 0, len(imgs)*3*size.X*size.Y)
	for i, img := range imgs {
		if img.Bounds().Size() != size {
			return nil, errors.Wrapf(ErrSizeMismatch, "image %d is %v, want %v", i, img.Bounds().Size(), size)
		}
		data = append(data, ToCHW(img)...)
	}

	x, err := ts.OfSlice(data)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create tensor")
	}

	return x.MustView([]int64{int64(len(imgs)), 3, int64(size.Y), int64(size.X)}, true), nil
}

// MaskImage converts a row-major map of values in [0, 1] to a grayscale image.
func MaskImage(values []float64, w, h int) (*image.Gray, error) {
	if len(values) != w*h {
		return nil, errors.Wrapf(ErrSizeMismatch, "got %d values for %dx%d", len(values), w, h)
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range values {
		switch {
		case v <= 0:
			img.Pix[i] = 0
		case v >= 1:
			img.Pix[i] = 255
		default:
			img.Pix[i] = uint8(v*255 + 0.5)
		}
	}

	return img, nil
}

// Overlay paints mask over img in c, scaled by alpha (0-255). Mask and image
// are aligned at their top-left corners.
func Overlay(img image.Image, mask *image.Gray, c color.Color, alpha uint8) *image.RGBA {
	rect := image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy())
	dst := image.NewRGBA(rect)
	draw.Draw(dst, rect, img, img.Bounds().Min, draw.Src)

	mb := mask.Bounds()
	weight := image.NewAlpha(mb)
	for y := 0; y < mb.Dy(); y++ {
		src := mask.Pix[y*mask.Stride : y*mask.Stride+mb.Dx()]
		dst := weight.Pix[y*weight.Stride : y*weight.Stride+mb.Dx()]
		for x, p := range src {
			dst[x] = uint8(uint16(p) * uint16(alpha) / 255)
		}
	}

	draw.DrawMask(dst, rect, image.NewUniform(c), image.Point{}, weight, mask.Bounds().Min, draw.Over)

	return dst
}
