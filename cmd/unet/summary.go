package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/sugarme/unetseg/arch"
	"github.com/sugarme/unetseg/report"
)

type summaryOptions struct {
	batch   int64
	size    int64
	classes int64
	csv     string
	chart   string
	dot     string
}

func newSummaryCmd() *cobra.Command {
	var opts summaryOptions

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the stage table of the network for a given input size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := arch.NewPlan(opts.batch, opts.size, opts.size, opts.classes)
			if err != nil {
				return err
			}

			report.Table(cmd.OutOrStdout(), plan)

			return writeSummaryFiles(plan, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.batch, "batch", 2, "Batch size")
	cmd.Flags().Int64Var(&opts.size, "size", 128, "Input height and width, a multiple of 16")
	cmd.Flags().Int64Var(&opts.classes, "classes", 1, "Number of classes")
	cmd.Flags().StringVar(&opts.csv, "csv", "", "Write the stage table as CSV to `file`")
	cmd.Flags().StringVar(&opts.chart, "chart", "", "Write a parameter bar chart to `file` (.png, .svg, .pdf)")
	cmd.Flags().StringVar(&opts.dot, "dot", "", "Write the stage graph in DOT format to `file`")

	return cmd
}

func createFile(name string, write func(f *os.File) error) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", name)
	}

	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "unable to close %s", name)
	}
	slog.Info("wrote", "file", name)

	return nil
}

func writeSummaryFiles(plan *arch.Plan, opts summaryOptions) error {
	if opts.csv != "" {
		err := createFile(opts.csv, func(f *os.File) error {
			return report.WriteCSV(f, plan)
		})
		if err != nil {
			return err
		}
	}

	if opts.chart != "" {
		format := strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.chart)), ".")
		chart, err := report.ParamChart(plan, 8*vg.Inch, 4*vg.Inch, format)
		if err != nil {
			return err
		}
		err = createFile(opts.chart, func(f *os.File) error {
			_, err := chart.WriteTo(f)
			return errors.Wrap(err, "unable to write chart")
		})
		if err != nil {
			return err
		}
	}

	if opts.dot != "" {
		err := createFile(opts.dot, func(f *os.File) error {
			return plan.WriteDOT(f)
		})
		if err != nil {
			return err
		}
	}

	return nil
}
