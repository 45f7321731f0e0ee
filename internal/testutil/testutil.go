// Package testutil builds synthetic evaluation corpora for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/groundtruth"
	"github.com/banshee-data/shotboundary/internal/rawresult"
	"github.com/banshee-data/shotboundary/internal/sbd"
)

// Video is one synthetic corpus entry. The raw record covers frames
// 0..Frames-1 with zero distances except at Peaks. Cuts lists the frames a
// new shot starts at; a nil Cuts writes no annotation file.
type Video struct {
	Name   string
	Frames int
	Peaks  map[int]float64
	Cuts   []int
}

// Record returns the raw detector record of v.
func (v Video) Record() sbd.RawResult {
	d := make([]float64, v.Frames-1)
	for i, p := range v.Peaks {
		d[i] = p
	}
	return sbd.RawResult{VideoName: v.Name, StartFrame: 0, EndFrame: v.Frames - 1, Distances: d}
}

// Shots returns the annotated shots of v.
func (v Video) Shots() []sbd.Shot {
	var shots []sbd.Shot
	start := 0
	for _, cut := range append(append([]int(nil), v.Cuts...), v.Frames) {
		shots = append(shots, sbd.Shot{ID: len(shots) + 1, VideoName: v.Name, StartFrame: start, EndFrame: cut - 1})
		start = cut
	}
	return shots
}

// WriteCorpus stores the raw records of videos under rawDir with the
// "results_raw_" prefix and their annotations under gtDir.
func WriteCorpus(t *testing.T, fsys fsutil.FileSystem, rawDir, gtDir, encoding string, videos ...Video) *rawresult.Store {
	t.Helper()
	AssertNoError(t, fsys.MkdirAll(rawDir, 0755))
	raw, err := rawresult.NewStore(fsys, rawDir, "results_raw_", encoding)
	AssertNoError(t, err)

	for _, v := range videos {
		AssertNoError(t, raw.Save(v.Record()))
		if v.Cuts == nil {
			continue
		}
		AssertNoError(t, groundtruth.Write(fsys, filepath.Join(gtDir, v.Name+".csv"), v.Shots()))
	}
	return raw
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
