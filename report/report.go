// Package report prints and exports the stage breakdown of a network plan.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sugarme/unetseg/arch"
)

// Header names the columns of Rows, Table and WriteCSV.
var Header = []string{"STAGE", "KIND", "INPUT", "OUTPUT", "SKIP", "PARAMS"}

func skipCell(s arch.Stage) string {
	switch s.Kind {
	case arch.KindDown:
		return s.Skip.String()
	case arch.KindUp:
		return fmt.Sprintf("%v <- %s", s.Skip, s.SkipFrom)
	default:
		return ""
	}
}

// Rows returns one row per stage of the plan.
func Rows(plan *arch.Plan) [][]string {
	rows := make([][]string, 0, len(plan.Stages))
	for _, s := range plan.Stages {
		rows = append(rows, []string{
			s.Name,
			s.Kind.String(),
			s.In.String(),
			s.Out.String(),
			skipCell(s),
			strconv.FormatInt(s.Params, 10),
		})
	}

	return rows
}

// Table writes the stage table followed by the parameter total.
func Table(w io.Writer, plan *arch.Plan) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(Header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(Rows(plan))
	table.Render()

	fmt.Fprintf(w, "\ntotal params: %d\n", plan.TotalParams())
}

// DataFrame holds the stage rows as a dataframe.
func DataFrame(plan *arch.Plan) dataframe.DataFrame {
	n := len(plan.Stages)
	names := make([]string, n)
	kinds := make([]string, n)
	ins := make([]string, n)
	outs := make([]string, n)
	skips := make([]string, n)
	params := make([]int, n)
	for i, s := range plan.Stages {
		names[i] = s.Name
		kinds[i] = s.Kind.String()
		ins[i] = s.In.String()
		outs[i] = s.Out.String()
		skips[i] = skipCell(s)
		params[i] = int(s.Params)
	}

	return dataframe.New(
		series.New(names, series.String, "stage"),
		series.New(kinds, series.String, "kind"),
		series.New(ins, series.String, "input"),
		series.New(outs, series.String, "output"),
		series.New(skips, series.String, "skip"),
		series.New(params, series.Int, "params"),
	)
}

// WriteCSV writes the stage rows as CSV with a header line.
func WriteCSV(w io.Writer, plan *arch.Plan) error {
	df := DataFrame(plan)
	if df.Err != nil {
		return errors.Wrap(df.Err, "unable to build dataframe")
	}

	return errors.Wrap(df.WriteCSV(w), "unable to write csv")
}

// ParamChart draws a bar chart of parameters per stage. Stages without
// parameters are left out. format is an image extension such as "png" or
// "svg".
func ParamChart(plan *arch.Plan, width, height vg.Length, format string) (io.WriterTo, error) {
	var (
		names  []string
		values plotter.Values
	)
	for _, s := range plan.Stages {
		if s.Params == 0 {
			continue
		}
		names = append(names, s.Name)
		values = append(values, float64(s.Params))
	}
	if len(values) == 0 {
		return nil, errors.New("plan has no parameters")
	}

	p, err := plot.New()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create plot")
	}
	p.Title.Text = fmt.Sprintf("Parameters per stage (total %d)", plan.TotalParams())
	p.Y.Label.Text = "params"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, errors.Wrap(err, "unable to create bar chart")
	}
	p.Add(bars)
	p.NominalX(names...)

	w, err := p.WriterTo(width, height, format)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to render %s chart", format)
	}

	return w, nil
}
