// Package groundtruth reads annotated shot lists. Each video has one
// semicolon-delimited file <dir>/<video>.csv whose first line is a header;
// columns 3 and 4 of every later line hold the 0-based inclusive start and
// end frame of a shot.
package groundtruth

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/sbd"
	"github.com/banshee-data/shotboundary/internal/security"
)

// Store resolves video names to annotation files.
type Store struct {
	fs  fsutil.FileSystem
	dir string
}

// NewStore returns a Store reading from dir.
func NewStore(fsys fsutil.FileSystem, dir string) *Store {
	return &Store{fs: fsys, dir: dir}
}

// Path returns the annotation file of a video.
func (s *Store) Path(video string) string {
	return filepath.Join(s.dir, video+".csv")
}

// Load returns the annotated shots of a video in file order. A missing file
// wraps sbd.ErrNotFound; an unreadable line wraps sbd.ErrBadGroundTruth.
func (s *Store) Load(video string) ([]sbd.Shot, error) {
	if err := security.ValidateVideoName(video); err != nil {
		return nil, err
	}
	path := s.Path(video)
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: ground truth %s", sbd.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read ground truth %s: %w", path, err)
	}
	shots, err := Parse(video, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return shots, nil
}

// Parse decodes an annotation file. Shot IDs are assigned 1..n in line order;
// blank lines are skipped.
func Parse(video string, data []byte) ([]sbd.Shot, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	var shots []sbd.Shot
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo == 1 {
			continue
		}
		line := strings.TrimSpace(strings.ReplaceAll(sc.Text(), `\`, "/"))
		if line == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < 4 {
			return nil, fmt.Errorf("%w: line %d has %d columns, want at least 4",
				sbd.ErrBadGroundTruth, lineNo, len(fields))
		}
		start, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d start: %v", sbd.ErrBadGroundTruth, lineNo, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(fields[3]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d end: %v", sbd.ErrBadGroundTruth, lineNo, err)
		}
		if start < 0 || end < start {
			return nil, fmt.Errorf("%w: line %d shot [%d,%d]", sbd.ErrBadGroundTruth, lineNo, start, end)
		}
		shots = append(shots, sbd.Shot{
			ID:         len(shots) + 1,
			VideoName:  video,
			StartFrame: start,
			EndFrame:   end,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", sbd.ErrBadGroundTruth, err)
	}
	return shots, nil
}

// Write encodes shots in the layout Parse reads, with the header
// "vid_name;shot_id;start;end". It is also the export format of
// reconstructed shot lists.
func Write(fsys fsutil.FileSystem, path string, shots []sbd.Shot) error {
	var buf bytes.Buffer
	buf.WriteString("vid_name;shot_id;start;end\n")
	for _, s := range shots {
		buf.WriteString(s.String())
		buf.WriteByte('\n')
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
