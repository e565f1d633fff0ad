package main

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/unetseg/arch"
	"github.com/sugarme/unetseg/imgio"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCLI()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestSelftest(t *testing.T) {
	out, err := execute(t, "selftest", "--batch", "1", "--size", "32", "--features")
	require.NoError(t, err)

	assert.Contains(t, out, "input:  [1 3 32 32]")
	assert.Contains(t, out, "output: [1 1 32 32]")
	assert.Contains(t, out, "[1 1024 2 2]")
	assert.Contains(t, out, "elapsed:")
}

func TestSelftestTwoClasses(t *testing.T) {
	out, err := execute(t, "selftest", "--batch", "1", "--size", "16", "--classes", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "output: [1 2 16 16]")
}

func TestSummary(t *testing.T) {
	dir := t.TempDir()
	csvFile := filepath.Join(dir, "stages.csv")
	dotFile := filepath.Join(dir, "stages.dot")
	chartFile := filepath.Join(dir, "params.svg")

	out, err := execute(t, "summary", "--csv", csvFile, "--dot", dotFile, "--chart", chartFile)
	require.NoError(t, err)
	assert.Contains(t, out, "total params: 31043521")

	b, err := os.ReadFile(csvFile)
	require.NoError(t, err)
	assert.Equal(t, 12, strings.Count(string(b), "\n"))

	b, err = os.ReadFile(dotFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "digraph")

	_, err = os.Stat(chartFile)
	assert.NoError(t, err)
}

func TestSummaryIndivisible(t *testing.T) {
	_, err := execute(t, "summary", "--size", "100")
	require.Error(t, err)
	assert.True(t, errors.Is(err, arch.ErrIndivisible))
}

func TestVisualize(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	require.NoError(t, imaging.Save(imaging.New(40, 36, color.NRGBA{90, 120, 200, 255}), in))

	grid := filepath.Join(dir, "grid.png")
	overlay := filepath.Join(dir, "overlay.png")
	rle := filepath.Join(dir, "mask.csv")
	_, err := execute(t, "visualize", "--image", in, "--cell", "16", "--out", grid, "--overlay", overlay, "--rle", rle)
	require.NoError(t, err)

	f, err := os.Open(rle)
	require.NoError(t, err)
	defer f.Close()
	masks, err := imgio.ReadRLE(f)
	require.NoError(t, err)
	_, ok := masks["in"]
	assert.True(t, ok)

	img, err := imaging.Open(grid)
	require.NoError(t, err)
	assert.Equal(t, 5*16, img.Bounds().Dx())
	assert.Equal(t, 3*16, img.Bounds().Dy())

	img, err = imaging.Open(overlay)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestVisualizeRandom(t *testing.T) {
	dir := t.TempDir()
	grid := filepath.Join(dir, "grid.png")
	overlay := filepath.Join(dir, "overlay.png")

	_, err := execute(t, "visualize", "--size", "32", "--classes", "2", "--cell", "8", "--out", grid, "--overlay", overlay)
	require.NoError(t, err)

	_, err = os.Stat(grid)
	assert.NoError(t, err)
	_, err = os.Stat(overlay)
	assert.True(t, os.IsNotExist(err))
}

func TestVisualizeBadActivation(t *testing.T) {
	_, err := execute(t, "visualize", "--activation", "tanh")
	assert.Error(t, err)
}
