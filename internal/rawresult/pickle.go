package rawresult

import (
	"fmt"
	"io"
	"math/big"

	"github.com/nlpodyssey/gopickle/pickle"
	py "github.com/nlpodyssey/gopickle/types"
	"github.com/sbinet/npyio/npy"
)

// unpickleRow loads the pickled ndarray of an object .npy file and returns
// its items in C order.
func unpickleRow(r io.Reader) (items []any, err error) {
	// npy panics on some malformed dtypes and truncated payloads.
	defer func() {
		if p := recover(); p != nil {
			items, err = nil, fmt.Errorf("unpickle: %v", p)
		}
	}()

	u := pickle.NewUnpickler(r)
	u.FindClass = loadClass
	v, err := u.Load()
	if err != nil {
		return nil, fmt.Errorf("unpickle: %w", err)
	}
	arr, ok := v.(*npy.Array)
	if !ok {
		return nil, fmt.Errorf("pickle holds %T, want an array", v)
	}
	items, _, err = pySequence(arr)
	return items, err
}

// loadClass extends npy.ClassLoader with the numpy 2 module path, numpy
// scalars and the latin1 bytes of protocol 2 pickles. Anything else is
// refused so a raw-result file cannot name arbitrary globals.
func loadClass(module, name string) (any, error) {
	switch module + "." + name {
	case "numpy._core.multiarray._reconstruct":
		return npy.ClassLoader("numpy.core.multiarray", name)
	case "numpy.core.multiarray.scalar", "numpy._core.multiarray.scalar":
		return callFunc(newScalar), nil
	case "_codecs.encode":
		return callFunc(latin1), nil
	}
	return npy.ClassLoader(module, name)
}

type callFunc func(args ...any) (any, error)

var _ py.Callable = callFunc(nil)

func (f callFunc) Call(args ...any) (any, error) { return f(args...) }

// newScalar rebuilds a numpy scalar from (dtype, raw bytes) by decoding it
// as a one-element array.
func newScalar(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("scalar takes 2 arguments, got %d", len(args))
	}
	descr, ok := args[0].(*npy.ArrayDescr)
	if !ok {
		return nil, fmt.Errorf("scalar dtype is %T", args[0])
	}
	raw, ok := args[1].([]byte)
	if !ok {
		return nil, fmt.Errorf("scalar payload is %T", args[1])
	}
	arr := new(npy.Array)
	state := py.NewTupleFromSlice([]any{1, py.NewTupleFromSlice(nil), descr, false, raw})
	if err := arr.PySetState(state); err != nil {
		return nil, fmt.Errorf("scalar: %w", err)
	}
	vals, _, err := pySequence(arr)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("scalar of %d bytes holds %d values", len(raw), len(vals))
	}
	return vals[0], nil
}

// latin1 rebuilds bytes that protocol 2 pickles as _codecs.encode(s, "latin1").
func latin1(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("encode needs a string")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("encode argument is %T", args[0])
	}
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return nil, fmt.Errorf("rune %U outside latin1", r)
		}
		b = append(b, byte(r))
	}
	return b, nil
}

// pyNumber converts an unpickled scalar to float64.
func pyNumber(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	case *npy.Array:
		vals, _, err := pySequence(n)
		if err != nil {
			return 0, err
		}
		if len(vals) != 1 {
			return 0, fmt.Errorf("array of %d items is not a scalar", len(vals))
		}
		return pyNumber(vals[0])
	}
	return 0, fmt.Errorf("%T is not a number", v)
}

// pySequence unpacks lists, tuples and arrays; ok is false for scalars.
// Numeric array elements are widened to int or float64.
func pySequence(v any) ([]any, bool, error) {
	switch s := v.(type) {
	case *py.List:
		return []any(*s), true, nil
	case *py.Tuple:
		return []any(*s), true, nil
	case *npy.Array:
		out, err := arrayItems(s.Data())
		return out, true, err
	}
	return nil, false, nil
}

func arrayItems(data any) ([]any, error) {
	var out []any
	switch d := data.(type) {
	case *py.List:
		return []any(*d), nil
	case []float64:
		for _, x := range d {
			out = append(out, x)
		}
	case []float32:
		for _, x := range d {
			out = append(out, float64(x))
		}
	case []int64:
		for _, x := range d {
			out = append(out, int(x))
		}
	case []int32:
		for _, x := range d {
			out = append(out, int(x))
		}
	case []int16:
		for _, x := range d {
			out = append(out, int(x))
		}
	case []int8:
		for _, x := range d {
			out = append(out, int(x))
		}
	case []uint8:
		for _, x := range d {
			out = append(out, int(x))
		}
	case []uint16:
		for _, x := range d {
			out = append(out, int(x))
		}
	case []uint32:
		for _, x := range d {
			out = append(out, int(x))
		}
	case []uint64:
		for _, x := range d {
			out = append(out, float64(x))
		}
	case []bool:
		for _, x := range d {
			out = append(out, x)
		}
	default:
		return nil, fmt.Errorf("array data %T not supported", data)
	}
	return out, nil
}
