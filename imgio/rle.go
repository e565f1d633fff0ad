package imgio

import (
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

var ErrBadRLE = errors.New("malformed run-length encoding")

// EncodeRLE encodes a binary mask as space separated "start length" pairs.
// Pixels are numbered from 1, top to bottom then left to right. Any non-zero
// pixel is foreground.
func EncodeRLE(mask *image.Gray) string {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()

	var (
		parts []string
		start int
		run   int
	)
	flush := func() {
		if run > 0 {
			parts = append(parts, strconv.Itoa(start), strconv.Itoa(run))
			run = 0
		}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			i := x*h + y + 1
			if mask.GrayAt(b.Min.X+x, b.Min.Y+y).Y == 0 {
				flush()
				continue
			}
			if run == 0 {
				start = i
			}
			run++
		}
	}
	flush()

	return strings.Join(parts, " ")
}

// DecodeRLE builds a w x h mask (0 or 255) from an EncodeRLE string.
func DecodeRLE(rle string, w, h int) (*image.Gray, error) {
	fields := strings.Fields(rle)
	if len(fields)%2 != 0 {
		return nil, errors.Wrapf(ErrBadRLE, "odd number of values (%d)", len(fields))
	}

	mask := image.NewGray(image.Rect(0, 0, w, h))
	for i := 0; i < len(fields); i += 2 {
		start, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, errors.Wrapf(ErrBadRLE, "start %q", fields[i])
		}
		n, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return nil, errors.Wrapf(ErrBadRLE, "length %q", fields[i+1])
		}
		if start < 1 || start > w*h || n < 0 || n > w*h-(start-1) {
			return nil, errors.Wrapf(ErrBadRLE, "run %d+%d outside %dx%d", start, n, w, h)
		}

		for p := start - 1; p < start-1+n; p++ {
			x, y := p/h, p%h
			mask.Pix[y*mask.Stride+x] = 255
		}
	}

	return mask, nil
}

// WriteRLE writes id,encoding rows as CSV.
func WriteRLE(w io.Writer, ids, encodings []string) error {
	if len(ids) != len(encodings) {
		return errors.Errorf("%d ids for %d encodings", len(ids), len(encodings))
	}

	df := dataframe.New(
		series.New(ids, series.String, "id"),
		series.New(encodings, series.String, "encoding"),
	)
	if df.Err != nil {
		return errors.Wrap(df.Err, "unable to build dataframe")
	}

	return errors.Wrap(df.WriteCSV(w), "unable to write rle csv")
}

// ReadRLE reads an id,encoding CSV into a map keyed by id.
func ReadRLE(r io.Reader) (map[string]string, error) {
	df := dataframe.ReadCSV(r, dataframe.HasHeader(true), dataframe.DetectTypes(false), dataframe.DefaultType(series.String))
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "unable to read rle csv")
	}

	ids := df.Col("id")
	encodings := df.Col("encoding")
	if ids.Err != nil || encodings.Err != nil {
		return nil, errors.Wrap(ErrBadRLE, "csv needs id and encoding columns")
	}

	out := make(map[string]string, ids.Len())
	for i, id := range ids.Records() {
		out[id] = encodings.Elem(i).String()
	}

	return out, nil
}
