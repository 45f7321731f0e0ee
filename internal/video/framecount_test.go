package video

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/sbd"
)

func fakeRunner(out string, err error, calls *[]string) CommandRunner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, args[len(args)-1])
		return []byte(out), err
	}
}

func TestFFProbe_FrameCount(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/videos/clip.m4v", []byte("..."), 0644))

	tests := []struct {
		name string
		out  string
		want int
		ok   bool
	}{
		{"nb_frames", `{"streams":[{"nb_frames":"1500","nb_read_packets":"1499"}]}`, 1500, true},
		{"fallback to packets", `{"streams":[{"nb_frames":"N/A","nb_read_packets":"842"}]}`, 842, true},
		{"no stream", `{"streams":[]}`, 0, false},
		{"garbage", `not json`, 0, false},
		{"zero frames", `{"streams":[{"nb_frames":"0"}]}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			p := NewFFProbe(mfs, "ffprobe", "/videos", ".m4v", fakeRunner(tt.out, nil, &calls))
			n, err := p.FrameCount(context.Background(), "clip")
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
			assert.Equal(t, []string{"/videos/clip.m4v"}, calls)
		})
	}
}

func TestFFProbe_MissingVideo(t *testing.T) {
	var calls []string
	p := NewFFProbe(fsutil.NewMemoryFileSystem(), "ffprobe", "/videos", ".m4v", fakeRunner("", nil, &calls))
	_, err := p.FrameCount(context.Background(), "absent")
	assert.ErrorIs(t, err, sbd.ErrNotFound)
	assert.Empty(t, calls, "ffprobe must not run for a missing file")
}

func TestFFProbe_CommandFails(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/videos/clip.m4v", nil, 0644))
	var calls []string
	p := NewFFProbe(mfs, "ffprobe", "/videos", ".m4v", fakeRunner("", errors.New("exit status 1"), &calls))
	_, err := p.FrameCount(context.Background(), "clip")
	assert.ErrorContains(t, err, "exit status 1")
}

func TestStatic(t *testing.T) {
	s := Static{"a": 10}
	n, err := s.FrameCount(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = s.FrameCount(context.Background(), "b")
	assert.ErrorIs(t, err, sbd.ErrNotFound)
}

type shotTable map[string][]sbd.Shot

func (t shotTable) Load(video string) ([]sbd.Shot, error) {
	shots, ok := t[video]
	if !ok {
		return nil, sbd.ErrNotFound
	}
	return shots, nil
}

func TestFromGroundTruth(t *testing.T) {
	g := FromGroundTruth{Shots: shotTable{
		"v":     {{ID: 1, StartFrame: 0, EndFrame: 4}, {ID: 2, StartFrame: 5, EndFrame: 9}},
		"empty": nil,
	}}

	n, err := g.FrameCount(context.Background(), "v")
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = g.FrameCount(context.Background(), "empty")
	assert.ErrorIs(t, err, sbd.ErrBadGroundTruth)

	_, err = g.FrameCount(context.Background(), "missing")
	assert.ErrorIs(t, err, sbd.ErrNotFound)
}

type countingCounter struct {
	calls int
	n     int
}

func (c *countingCounter) FrameCount(context.Context, string) (int, error) {
	c.calls++
	if c.n == 0 {
		return 0, sbd.ErrNotFound
	}
	return c.n, nil
}

func TestCached(t *testing.T) {
	inner := &countingCounter{n: 25}
	c := NewCached(inner)
	for i := 0; i < 3; i++ {
		n, err := c.FrameCount(context.Background(), "v")
		require.NoError(t, err)
		assert.Equal(t, 25, n)
	}
	assert.Equal(t, 1, inner.calls)

	failing := &countingCounter{}
	c = NewCached(failing)
	_, _ = c.FrameCount(context.Background(), "v")
	_, _ = c.FrameCount(context.Background(), "v")
	assert.Equal(t, 2, failing.calls)
}
