package main

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/arch"
	"github.com/sugarme/unetseg/base"
	"github.com/sugarme/unetseg/imgio"
	"github.com/sugarme/unetseg/unet"
	"github.com/sugarme/unetseg/viz"
)

type visualizeOptions struct {
	image      string
	size       int64
	classes    int64
	channel    int64
	cell       int
	threshold  float64
	activation string
	grid       string
	overlay    string
	rle        string
}

func newVisualizeCmd() *cobra.Command {
	var opts visualizeOptions

	cmd := &cobra.Command{
		Use:   "visualize",
		Short: "Render every feature map of one forward pass into a grid image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisualize(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.image, "image", "", "Input image `file` (.png, .jpg, .tif); random input when empty")
	cmd.Flags().Int64Var(&opts.size, "size", 128, "Height and width of the random input")
	cmd.Flags().Int64Var(&opts.classes, "classes", 1, "Number of classes")
	cmd.Flags().Int64Var(&opts.channel, "channel", 1, "Feature channel shown for every stage")
	cmd.Flags().IntVar(&opts.cell, "cell", 128, "Grid cell size in pixels")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0.5, "Foreground probability threshold")
	cmd.Flags().StringVar(&opts.activation, "activation", "", "Activation applied to the logits (none, sigmoid, softmax); chosen from --classes when empty")
	cmd.Flags().StringVar(&opts.grid, "out", "features.png", "Grid image output `file`")
	cmd.Flags().StringVar(&opts.overlay, "overlay", "overlay.png", "Mask overlay output `file`, written only with --image")
	cmd.Flags().StringVar(&opts.rle, "rle", "", "Write the predicted mask as run-length encoded CSV to `file`")

	return cmd
}

func loadInput(opts visualizeOptions) (image.Image, *ts.Tensor, error) {
	if opts.image == "" {
		return nil, ts.MustRandn([]int64{1, 3, opts.size, opts.size}, gotch.Float, gotch.CPU), nil
	}

	img, err := imgio.ReadImage(opts.image)
	if err != nil {
		return nil, nil, err
	}
	img = imgio.Fit(img, arch.SpatialDivisor)

	x, err := imgio.ToTensor(img)
	if err != nil {
		return nil, nil, err
	}

	return img, x, nil
}

func runVisualize(ctx context.Context, opts visualizeOptions) error {
	act := base.ActivationFor(opts.classes)
	if opts.activation != "" {
		var err error
		if act, err = base.ParseActivation(opts.activation); err != nil {
			return err
		}
	}

	vs := nn.NewVarStore(gotch.CPU)
	net, err := unet.NewUNet(vs.Root(), opts.classes)
	if err != nil {
		return err
	}

	img, x, err := loadInput(opts)
	if err != nil {
		return err
	}
	defer x.MustDrop()
	slog.Info("input", "shape", x.MustSize(), "activation", act)

	var (
		f      *unet.Features
		fwdErr error
	)
	ts.NoGrad(func() {
		f, fwdErr = net.ForwardFeatures(x, false)
	})
	if fwdErr != nil {
		return fwdErr
	}
	defer f.Drop()

	prob := act.Apply(f.Logits)
	fg := base.Foreground(prob)
	prob.MustDrop()
	mask := base.Threshold(fg, opts.threshold)
	fg.MustDrop()
	defer mask.MustDrop()

	tiles, err := featureTiles(x, f, mask, opts.channel)
	if err != nil {
		return err
	}
	for _, t := range tiles {
		mean, std := viz.Stats(t.Values)
		slog.Debug("tile", "name", t.Name, "mean", mean, "std", std)
	}

	grid, err := viz.Render(ctx, tiles, viz.StageLayout(), opts.cell)
	if err != nil {
		return err
	}
	if err := imaging.Save(grid, opts.grid); err != nil {
		return errors.Wrapf(err, "unable to save %s", opts.grid)
	}
	slog.Info("wrote", "file", opts.grid)

	out := tiles[len(tiles)-1]
	m, err := imgio.MaskImage(out.Values, out.Width, out.Height)
	if err != nil {
		return err
	}

	if opts.rle != "" {
		if err := writeMaskRLE(opts, m); err != nil {
			return err
		}
	}

	if img == nil {
		return nil
	}

	overlay := imgio.Overlay(img, m, color.RGBA{255, 0, 0, 255}, 128)
	if err := imaging.Save(overlay, opts.overlay); err != nil {
		return errors.Wrapf(err, "unable to save %s", opts.overlay)
	}
	slog.Info("wrote", "file", opts.overlay)

	return nil
}

func writeMaskRLE(opts visualizeOptions, m *image.Gray) error {
	id := "random"
	if opts.image != "" {
		base := filepath.Base(opts.image)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return createFile(opts.rle, func(f *os.File) error {
		return imgio.WriteRLE(f, []string{id}, []string{imgio.EncodeRLE(m)})
	})
}

// featureTiles collects one channel of every stage for the first batch item,
// ending with the thresholded output mask.
func featureTiles(x *ts.Tensor, f *unet.Features, mask *ts.Tensor, channel int64) ([]viz.Tile, error) {
	const item = 0

	in, err := viz.TileFromTensor("input", x, item, channel)
	if err != nil {
		return nil, err
	}
	tiles := []viz.Tile{in}

	for _, name := range f.Names() {
		if name == "output" {
			continue
		}
		t, ok := f.Get(name)
		if !ok {
			return nil, errors.Errorf("missing feature %s", name)
		}
		tile, err := viz.TileFromTensor(name, t, item, channel)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, tile)
	}

	out, err := viz.TileFromTensor("output", mask, item, 0)
	if err != nil {
		return nil, err
	}
	out.Mask = true

	return append(tiles, out), nil
}
