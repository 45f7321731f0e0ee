// Package video discovers the frame count of source videos, the only video
// property the evaluator needs.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/sbd"
)

// FrameCounter returns the number of frames of a named video.
type FrameCounter interface {
	FrameCount(ctx context.Context, video string) (int, error)
}

// CommandRunner runs an external program and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// FFProbe counts frames of <Dir>/<video><Ext> with ffprobe.
type FFProbe struct {
	Binary string
	Dir    string
	Ext    string

	fs  fsutil.FileSystem
	run CommandRunner
}

// NewFFProbe returns an FFProbe that executes binary. A nil runner uses os/exec.
func NewFFProbe(fsys fsutil.FileSystem, binary, dir, ext string, runner CommandRunner) *FFProbe {
	if runner == nil {
		runner = execRunner
	}
	return &FFProbe{Binary: binary, Dir: dir, Ext: ext, fs: fsys, run: runner}
}

// Path returns the file ffprobe reads for video.
func (p *FFProbe) Path(video string) string {
	return filepath.Join(p.Dir, video+p.Ext)
}

// FrameCount prefers the container's nb_frames and falls back to counting
// packets when the container does not record it.
func (p *FFProbe) FrameCount(ctx context.Context, video string) (int, error) {
	path := p.Path(video)
	if !p.fs.Exists(path) {
		return 0, fmt.Errorf("%w: video %s", sbd.ErrNotFound, path)
	}

	out, err := p.run(ctx, p.Binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_frames,nb_read_packets",
		"-of", "json",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	n, err := parseProbe(out)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return n, nil
}

type probeResult struct {
	Streams []struct {
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
}

func parseProbe(out []byte) (int, error) {
	var probe probeResult
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return 0, errors.New("no video stream")
	}
	s := probe.Streams[0]
	for _, v := range []string{s.NbFrames, s.NbReadPackets} {
		if v == "" || v == "N/A" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("no frame count in %q/%q", s.NbFrames, s.NbReadPackets)
}

// Static serves frame counts from a fixed table.
type Static map[string]int

// FrameCount returns sbd.ErrNotFound for unknown videos.
func (s Static) FrameCount(_ context.Context, video string) (int, error) {
	n, ok := s[video]
	if !ok {
		return 0, fmt.Errorf("%w: frame count of %s", sbd.ErrNotFound, video)
	}
	return n, nil
}

// ShotLoader loads the annotated shots of a video.
type ShotLoader interface {
	Load(video string) ([]sbd.Shot, error)
}

// FromGroundTruth takes the frame count as the end of the last annotated
// shot plus one. Use it when the source videos are not available.
type FromGroundTruth struct {
	Shots ShotLoader
}

func (g FromGroundTruth) FrameCount(_ context.Context, video string) (int, error) {
	shots, err := g.Shots.Load(video)
	if err != nil {
		return 0, err
	}
	last := -1
	for _, s := range shots {
		last = max(last, s.EndFrame)
	}
	if last < 0 {
		return 0, fmt.Errorf("%w: %s has no annotated shots to derive a frame count from",
			sbd.ErrBadGroundTruth, video)
	}
	return last + 1, nil
}

// Cached memoizes a FrameCounter. Errors are not cached.
type Cached struct {
	inner  FrameCounter
	counts map[string]int
}

// NewCached wraps inner.
func NewCached(inner FrameCounter) *Cached {
	return &Cached{inner: inner, counts: make(map[string]int)}
}

func (c *Cached) FrameCount(ctx context.Context, video string) (int, error) {
	if n, ok := c.counts[video]; ok {
		return n, nil
	}
	n, err := c.inner.FrameCount(ctx, video)
	if err != nil {
		return 0, err
	}
	c.counts[video] = n
	return n, nil
}
