package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/unet"
)

type selftestOptions struct {
	batch    int64
	size     int64
	classes  int64
	features bool
}

func newSelftestCmd() *cobra.Command {
	var opts selftestOptions

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run a random batch through a fresh network and report shapes and time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelftest(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().Int64Var(&opts.batch, "batch", 2, "Batch size")
	cmd.Flags().Int64Var(&opts.size, "size", 128, "Input height and width, a multiple of 16")
	cmd.Flags().Int64Var(&opts.classes, "classes", 1, "Number of classes")
	cmd.Flags().BoolVar(&opts.features, "features", false, "Also print every intermediate feature shape")

	return cmd
}

func runSelftest(w io.Writer, opts selftestOptions) error {
	start := time.Now()

	vs := nn.NewVarStore(gotch.CPU)
	net, err := unet.NewUNet(vs.Root(), opts.classes)
	if err != nil {
		return err
	}
	slog.Debug("network built", "classes", opts.classes, "params", unet.NumParams(vs))

	x := ts.MustRandn([]int64{opts.batch, 3, opts.size, opts.size}, gotch.Float, gotch.CPU)
	defer x.MustDrop()

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

	elapsed := time.Since(start)

	fmt.Fprintf(w, "input:  %v\n", x.MustSize())
	fmt.Fprintf(w, "output: %v\n", f.Logits.MustSize())
	if opts.features {
		for _, s := range f.Shapes() {
			fmt.Fprintf(w, "  %-6s %v\n", s.Name, s.Shape)
		}
	}
	fmt.Fprintf(w, "elapsed: %v\n", elapsed)

	return nil
}
