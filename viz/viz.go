// Package viz renders feature maps of a forward pass into a single grid image
// for eyeballing what each stage of the network produces.
package viz

import (
	"context"
	"image"
	"image/color"
	"runtime"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	ts "github.com/sugarme/gotch/tensor"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrTileSize    = errors.New("tile values do not match its size")
	ErrUnknownTile = errors.New("tile has no place in layout")
)

// Tile is a single 2-D map in row-major order. A Mask tile holds values
// already in [0, 1] and is drawn without min-max scaling.
type Tile struct {
	Name   string
	Width  int
	Height int
	Values []float64
	Mask   bool
}

// NewTile creates a Tile, checking len(values) == w*h.
func NewTile(name string, w, h int, values []float64) (Tile, error) {
	if w <= 0 || h <= 0 || len(values) != w*h {
		return Tile{}, errors.Wrapf(ErrTileSize, "%s: %d values for %dx%d", name, len(values), w, h)
	}

	return Tile{Name: name, Width: w, Height: h, Values: values}, nil
}

// TileFromTensor extracts channel `channel` of batch item `item` from a
// [B C H W] tensor.
func TileFromTensor(name string, x *ts.Tensor, item, channel int64) (Tile, error) {
	size := x.MustSize()
	if len(size) != 4 {
		return Tile{}, errors.Errorf("%s: expected [B C H W], got %v", name, size)
	}
	if item < 0 || item >= size[0] || channel < 0 || channel >= size[1] {
		return Tile{}, errors.Errorf("%s: index [%d %d] out of range for %v", name, item, channel, size)
	}

	plane := x.MustSelect(0, item, false).MustSelect(0, channel, true).MustContiguous(true)
	values := plane.Float64Values()
	plane.MustDrop()

	return NewTile(name, int(size[3]), int(size[2]), values)
}

// Normalize min-max scales values into [0, 1]. A constant map becomes zeros.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := floats.Min(values), floats.Max(values)
	if hi == lo {
		return out
	}

	copy(out, values)
	floats.AddConst(-lo, out)
	floats.Scale(1/(hi-lo), out)

	return out
}

// Stats returns mean and standard deviation of values.
func Stats(values []float64) (mean, std float64) {
	return stat.MeanStdDev(values, nil)
}

// Image returns the tile as a grayscale image, normalised unless the tile is
// a mask.
func (t Tile) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, t.Width, t.Height))
	values := t.Values
	if !t.Mask {
		values = Normalize(values)
	}
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

	return img
}

// Layout places named tiles on a Rows x Cols grid. Cells maps a tile name to
// its (column, row).
type Layout struct {
	Rows  int
	Cols  int
	Cells map[string]image.Point
}

// Place returns the grid cell of a tile.
func (l Layout) Place(name string) (image.Point, error) {
	p, ok := l.Cells[name]
	if !ok {
		return image.Point{}, errors.Wrapf(ErrUnknownTile, "%q", name)
	}

	return p, nil
}

// StageLayout is the 3x5 grid used for a full forward pass: the input and
// encoder maps on the top row, the bottleneck in the middle, decoder maps and
// the thresholded output at the bottom.
func StageLayout() Layout {
	return Layout{
		Rows: 3,
		Cols: 5,
		Cells: map[string]image.Point{
			"input":  {0, 0},
			"s1":     {1, 0},
			"s2":     {2, 0},
			"s3":     {3, 0},
			"s4":     {4, 0},
			"b":      {1, 1},
			"d1":     {0, 2},
			"d2":     {1, 2},
			"d3":     {2, 2},
			"d4":     {3, 2},
			"output": {4, 2},
		},
	}
}

// Render draws tiles onto a grid with cells of cell x cell pixels. Tiles are
// scaled with nearest-neighbour so individual activations stay visible.
func Render(ctx context.Context, tiles []Tile, layout Layout, cell int) (*image.NRGBA, error) {
	if cell <= 0 {
		return nil, errors.Errorf("invalid cell size %d", cell)
	}

	places := make([]image.Point, len(tiles))
	for i, t := range tiles {
		p, err := layout.Place(t.Name)
		if err != nil {
			return nil, err
		}
		places[i] = p
	}

	scaled := make([]image.Image, len(tiles))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range tiles {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t := tiles[i]
			if t.Width >= t.Height {
				scaled[i] = imaging.Resize(t.Image(), cell, 0, imaging.NearestNeighbor)
			} else {
				scaled[i] = imaging.Resize(t.Image(), 0, cell, imaging.NearestNeighbor)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "unable to render tiles")
	}

	canvas := imaging.New(layout.Cols*cell, layout.Rows*cell, color.White)
	for i, img := range scaled {
		canvas = imaging.Paste(canvas, img, image.Pt(places[i].X*cell, places[i].Y*cell))
	}

	return canvas, nil
}
