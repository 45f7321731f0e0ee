package rawresult

import (
	"fmt"
	"io"
	"math"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/shotboundary/internal/sbd"
)

const objectDescr = "|O"

// DecodeNPY reads one video's record from a .npy file. Two layouts are
// accepted:
//
//   - an object array [start_frame, end_frame, distances] of shape (1, 3)
//     or (3,), where distances is a list or a numeric array;
//   - a numeric array [start_frame, end_frame, d0, d1, ...] of shape
//     (1, K+2) or (K+2,).
//
// The video name is not stored in the array and is supplied by the caller.
func DecodeNPY(r io.Reader, video string) (sbd.RawResult, error) {
	rec := sbd.RawResult{VideoName: video}

	nr, err := npyio.NewReader(r)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", sbd.ErrMalformedRecord, err)
	}
	shape := nr.Header.Descr.Shape
	switch {
	case len(shape) == 1 && shape[0] >= 2:
	case len(shape) == 2 && shape[0] == 1 && shape[1] >= 2:
	default:
		return rec, fmt.Errorf("%w: npy shape %v, want a single row", sbd.ErrMalformedRecord, shape)
	}

	if nr.Header.Descr.Type == objectDescr {
		// The reader stops at the end of the header; the rest of r is
		// the pickled array.
		items, err := unpickleRow(r)
		if err != nil {
			return rec, fmt.Errorf("%w: %v", sbd.ErrMalformedRecord, err)
		}
		return decodeObjectRow(rec, items)
	}

	var vals []float64
	if err := nr.Read(&vals); err != nil {
		return rec, fmt.Errorf("%w: npy data (%s): %v", sbd.ErrMalformedRecord, nr.Header.Descr.Type, err)
	}
	if len(vals) < 2 {
		return rec, fmt.Errorf("%w: npy holds %d values", sbd.ErrMalformedRecord, len(vals))
	}
	if err := setFrames(&rec, vals[0], vals[1]); err != nil {
		return rec, err
	}
	if len(vals) > 2 {
		rec.Distances = append([]float64(nil), vals[2:]...)
	}
	return rec, nil
}

// decodeObjectRow reads [start, end, distances] or [start, end, d0, ...].
func decodeObjectRow(rec sbd.RawResult, items []any) (sbd.RawResult, error) {
	if len(items) < 2 {
		return rec, fmt.Errorf("%w: npy row holds %d items", sbd.ErrMalformedRecord, len(items))
	}
	start, err := pyNumber(items[0])
	if err != nil {
		return rec, fmt.Errorf("%w: start_frame: %v", sbd.ErrMalformedRecord, err)
	}
	end, err := pyNumber(items[1])
	if err != nil {
		return rec, fmt.Errorf("%w: end_frame: %v", sbd.ErrMalformedRecord, err)
	}
	if err := setFrames(&rec, start, end); err != nil {
		return rec, err
	}

	rest := items[2:]
	if len(rest) == 1 {
		seq, ok, err := pySequence(rest[0])
		if err != nil {
			return rec, fmt.Errorf("%w: distances: %v", sbd.ErrMalformedRecord, err)
		}
		if ok {
			rest = seq
		}
	}
	for i, v := range rest {
		d, err := pyNumber(v)
		if err != nil {
			return rec, fmt.Errorf("%w: distance %d: %v", sbd.ErrMalformedRecord, i, err)
		}
		rec.Distances = append(rec.Distances, d)
	}
	return rec, nil
}

func setFrames(rec *sbd.RawResult, start, end float64) error {
	var err error
	if rec.StartFrame, err = floatFrame(start); err != nil {
		return fmt.Errorf("%w: start_frame: %v", sbd.ErrMalformedRecord, err)
	}
	if rec.EndFrame, err = floatFrame(end); err != nil {
		return fmt.Errorf("%w: end_frame: %v", sbd.ErrMalformedRecord, err)
	}
	if rec.EndFrame < rec.StartFrame {
		return fmt.Errorf("%w: end_frame %d before start_frame %d",
			sbd.ErrMalformedRecord, rec.EndFrame, rec.StartFrame)
	}
	return nil
}

// WriteNPY encodes rec as a (1, K+2) float64 array.
func WriteNPY(w io.Writer, rec sbd.RawResult) error {
	row := make([]float64, 0, len(rec.Distances)+2)
	row = append(row, float64(rec.StartFrame), float64(rec.EndFrame))
	row = append(row, rec.Distances...)
	return npyio.Write(w, mat.NewDense(1, len(row), row))
}

func floatFrame(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("frame index %v is not an integer", v)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative frame %v", v)
	}
	return int(v), nil
}
