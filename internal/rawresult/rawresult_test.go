package rawresult

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/monitoring"
	"github.com/banshee-data/shotboundary/internal/sbd"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want sbd.RawResult
	}{
		{
			name: "plain",
			in:   "clip_01;0;4;0.1;0.25;3;0\n",
			want: sbd.RawResult{VideoName: "clip_01", StartFrame: 0, EndFrame: 4, Distances: []float64{0.1, 0.25, 3, 0}},
		},
		{
			name: "decorated list with decimal commas",
			in:   "clip_02;10;13;['0,5'; '1,25'; (2,0)]\n",
			want: sbd.RawResult{VideoName: "clip_02", StartFrame: 10, EndFrame: 13, Distances: []float64{0.5, 1.25, 2}},
		},
		{
			name: "continuation lines",
			in:   "clip_03;0;5;0.1;0.2\n0.3;0.4\n\n0.5\n",
			want: sbd.RawResult{VideoName: "clip_03", StartFrame: 0, EndFrame: 5, Distances: []float64{0.1, 0.2, 0.3, 0.4, 0.5}},
		},
		{
			name: "no distances",
			in:   "clip_04;0;0;\n",
			want: sbd.RawResult{VideoName: "clip_04", StartFrame: 0, EndFrame: 0},
		},
		{
			name: "float frame columns",
			in:   "clip_05;3.0;4.0;1e-07\r\n",
			want: sbd.RawResult{VideoName: "clip_05", StartFrame: 3, EndFrame: 4, Distances: []float64{1e-7}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSV([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCSV_Malformed(t *testing.T) {
	for name, in := range map[string]string{
		"empty":             "",
		"blank lines":       "\n\n",
		"too few fields":    "clip;0\n",
		"bad start":         "clip;x;4;0.1\n",
		"negative start":    "clip;-1;4;0.1\n",
		"end before start":  "clip;5;4;0.1\n",
		"bad distance":      "clip;0;4;0.1;abc\n",
		"empty inner token": "clip;0;4;0.1;;0.2\n",
		"fractional frame":  "clip;0.5;4;0.1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCSV([]byte(in))
			assert.ErrorIs(t, err, sbd.ErrMalformedRecord)
		})
	}
}

func TestNPY_AcceptsFlatArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, npyio.Write(&buf, []float64{100, 104, 0.5, 0.1, 0.9, 0.2}))

	rec, err := DecodeNPY(&buf, "clip")
	require.NoError(t, err)
	assert.Equal(t, sbd.RawResult{VideoName: "clip", StartFrame: 100, EndFrame: 104, Distances: []float64{0.5, 0.1, 0.9, 0.2}}, rec)
}

func TestNPY_Malformed(t *testing.T) {
	t.Run("not npy", func(t *testing.T) {
		_, err := DecodeNPY(bytes.NewReader([]byte("clip;0;1;0.5")), "clip")
		assert.ErrorIs(t, err, sbd.ErrMalformedRecord)
	})
	t.Run("too short", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, npyio.Write(&buf, []float64{3}))
		_, err := DecodeNPY(&buf, "clip")
		assert.ErrorIs(t, err, sbd.ErrMalformedRecord)
	})
	t.Run("fractional frame", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, npyio.Write(&buf, []float64{0.5, 3, 1}))
		_, err := DecodeNPY(&buf, "clip")
		assert.ErrorIs(t, err, sbd.ErrMalformedRecord)
	})
}

func TestNPY_ObjectArray(t *testing.T) {
	tests := []struct {
		file string
		want sbd.RawResult
	}{
		{
			file: "object_list.npy",
			want: sbd.RawResult{VideoName: "clip", StartFrame: 100, EndFrame: 104, Distances: []float64{0.5, 0.1, 0.9, 0.2}},
		},
		{
			file: "object_ndarray.npy",
			want: sbd.RawResult{VideoName: "clip", StartFrame: 7, EndFrame: 9, Distances: []float64{0.25, 0.75, 1e-9}},
		},
		{
			file: "object_scalars.npy",
			want: sbd.RawResult{VideoName: "clip", StartFrame: 1, EndFrame: 10, Distances: []float64{0.125, 0.5, 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("testdata", tt.file))
			require.NoError(t, err)

			rec, err := DecodeNPY(bytes.NewReader(data), "clip")
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec)
		})
	}
}

func TestStore_LoadObjectNPY(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "object_list.npy"))
	require.NoError(t, err)
	mfs := newMemFS(t)
	require.NoError(t, mfs.WriteFile("/raw/results_raw_film_01.npy", data, 0644))

	s, err := NewStore(mfs, "/raw", "results_raw_", "npy")
	require.NoError(t, err)
	rec, err := s.Load("film_01")
	require.NoError(t, err)
	assert.Equal(t, "film_01", rec.VideoName)
	assert.Equal(t, 100, rec.StartFrame)
	assert.Equal(t, 104, rec.EndFrame)
	assert.Len(t, rec.Distances, 4)
}

func TestNPY_ObjectArrayRejectsForeignGlobals(t *testing.T) {
	payload := []byte("\x80\x03cos\nsystem\n.")
	_, err := DecodeNPY(bytes.NewReader(objectNPY(payload)), "clip")
	assert.ErrorIs(t, err, sbd.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "os.system")
}

func TestNPY_ObjectArrayTruncated(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "object_list.npy"))
	require.NoError(t, err)
	_, err = DecodeNPY(bytes.NewReader(data[:len(data)-20]), "clip")
	assert.ErrorIs(t, err, sbd.ErrMalformedRecord)
}

func TestCSVAndNPYLoadIdentically(t *testing.T) {
	mfs := newMemFS(t)
	rec := sbd.RawResult{
		VideoName:  "film_07",
		StartFrame: 0,
		EndFrame:   6,
		Distances:  []float64{0.013, 0.5, 1.0 / 3.0, 12.75, 0, 1e-9},
	}

	csvStore, err := NewStore(mfs, "/raw", "results_raw_", "csv")
	require.NoError(t, err)
	npyStore, err := NewStore(mfs, "/raw", "results_raw_", "npy")
	require.NoError(t, err)

	require.NoError(t, csvStore.Save(rec))
	require.NoError(t, npyStore.Save(rec))

	fromCSV, err := csvStore.Load("film_07")
	require.NoError(t, err)
	fromNPY, err := npyStore.Load("film_07")
	require.NoError(t, err)

	assert.Equal(t, rec, fromCSV)
	assert.Equal(t, rec, fromNPY)
	assert.True(t, mfs.Exists("/raw/results_raw_film_07.csv"))
	assert.True(t, mfs.Exists("/raw/results_raw_film_07.npy"))
}

func TestStore_ListVideos(t *testing.T) {
	mfs := newMemFS(t)
	for _, name := range []string{
		"/raw/results_raw_b.csv",
		"/raw/results_raw_a.csv",
		"/raw/results_raw_a.npy",
		"/raw/other_c.csv",
		"/raw/results_raw_.csv",
		"/raw/results_raw_...csv",
		"/raw/notes.txt",
	} {
		require.NoError(t, mfs.WriteFile(name, []byte("x;0;0"), 0644))
	}

	s, err := NewStore(mfs, "/raw", "results_raw_", "csv")
	require.NoError(t, err)
	videos, err := s.ListVideos()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, videos)

	missing, err := NewStore(mfs, "/nowhere", "results_raw_", "csv")
	require.NoError(t, err)
	_, err = missing.ListVideos()
	assert.ErrorIs(t, err, sbd.ErrNotFound)
}

func TestStore_LoadErrors(t *testing.T) {
	mfs := newMemFS(t)
	require.NoError(t, mfs.WriteFile("/raw/results_raw_bad.csv", []byte("bad;0;4;zz\n"), 0644))
	s, err := NewStore(mfs, "/raw", "results_raw_", "csv")
	require.NoError(t, err)

	_, err = s.Load("absent")
	assert.ErrorIs(t, err, sbd.ErrNotFound)

	_, err = s.Load("bad")
	assert.ErrorIs(t, err, sbd.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "results_raw_bad.csv")
}

func TestStore_FilenameNameWins(t *testing.T) {
	mfs := newMemFS(t)
	require.NoError(t, mfs.WriteFile("/raw/results_raw_clip.csv", []byte("clip.m4v;0;2;0.1;0.2\n"), 0644))
	s, err := NewStore(mfs, "/raw", "results_raw_", "csv")
	require.NoError(t, err)

	rec, err := s.Load("clip")
	require.NoError(t, err)
	assert.Equal(t, "clip", rec.VideoName)
}

func TestNewStore_UnknownEncoding(t *testing.T) {
	_, err := NewStore(fsutil.NewMemoryFileSystem(), "/raw", "results_raw_", "pkl")
	assert.ErrorIs(t, err, sbd.ErrInvalidConfiguration)
}

// newMemFS returns an in-memory filesystem with an empty /raw directory.
func newMemFS(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/raw", 0755))
	return mfs
}

// objectNPY wraps a pickle payload in a version 1.0 header for a (1, 3)
// object array.
func objectNPY(payload []byte) []byte {
	header := "{'descr': '|O', 'fortran_order': False, 'shape': (1, 3), }\n"
	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(payload)
	return buf.Bytes()
}
