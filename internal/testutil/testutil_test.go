package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/groundtruth"
	"github.com/banshee-data/shotboundary/internal/monitoring"
	"github.com/banshee-data/shotboundary/internal/sbd"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestVideoShots(t *testing.T) {
	v := Video{Name: "a", Frames: 10, Cuts: []int{5}}
	want := []sbd.Shot{
		{ID: 1, VideoName: "a", StartFrame: 0, EndFrame: 4},
		{ID: 2, VideoName: "a", StartFrame: 5, EndFrame: 9},
	}
	if diff := cmp.Diff(want, v.Shots()); diff != "" {
		t.Errorf("Shots() mismatch (-want +got):\n%s", diff)
	}

	single := Video{Name: "b", Frames: 4, Cuts: []int{}}
	if got := single.Shots(); len(got) != 1 || got[0].EndFrame != 3 {
		t.Errorf("Shots() without cuts = %+v", got)
	}
}

func TestVideoRecord(t *testing.T) {
	rec := Video{Name: "a", Frames: 5, Peaks: map[int]float64{2: 0.7}}.Record()
	if rec.EndFrame != 4 || len(rec.Distances) != 4 || rec.Distances[2] != 0.7 {
		t.Errorf("Record() = %+v", rec)
	}
}

func TestWriteCorpus(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	raw := WriteCorpus(t, mfs, "/raw", "/gt", "csv",
		Video{Name: "a", Frames: 10, Peaks: map[int]float64{4: 0.9}, Cuts: []int{5}},
		Video{Name: "c", Frames: 10},
	)

	videos, err := raw.ListVideos()
	AssertNoError(t, err)
	if diff := cmp.Diff([]string{"a", "c"}, videos); diff != "" {
		t.Errorf("ListVideos mismatch (-want +got):\n%s", diff)
	}

	gt := groundtruth.NewStore(mfs, "/gt")
	shots, err := gt.Load("a")
	AssertNoError(t, err)
	if len(shots) != 2 {
		t.Errorf("expected 2 shots, got %d", len(shots))
	}
	if mfs.Exists("/gt/c.csv") {
		t.Error("video without cuts should have no annotation")
	}
}
