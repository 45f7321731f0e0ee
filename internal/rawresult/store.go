// Package rawresult loads and writes the per-video detector output that the
// evaluator scores. Two encodings are supported: a semicolon CSV and a
// NumPy .npy file holding either a pickled object row or a float row.
package rawresult

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/monitoring"
	"github.com/banshee-data/shotboundary/internal/sbd"
	"github.com/banshee-data/shotboundary/internal/security"
)

var logger = monitoring.NewLogger("rawresult")

// Store resolves video names to raw-result files named
// <dir>/<prefix><video>.<encoding>.
type Store struct {
	fs       fsutil.FileSystem
	dir      string
	prefix   string
	encoding string
}

// NewStore returns a Store for encoding "csv" or "npy".
func NewStore(fsys fsutil.FileSystem, dir, prefix, encoding string) (*Store, error) {
	switch encoding {
	case "csv", "npy":
	default:
		return nil, fmt.Errorf("%w: unknown raw-result encoding %q", sbd.ErrInvalidConfiguration, encoding)
	}
	return &Store{fs: fsys, dir: dir, prefix: prefix, encoding: encoding}, nil
}

// Path returns the file a video's record lives in.
func (s *Store) Path(video string) string {
	return filepath.Join(s.dir, s.prefix+video+"."+s.encoding)
}

// ListVideos returns the names of all videos with a record in the store,
// sorted lexically. Files with another extension or without the prefix are
// ignored.
func (s *Store) ListVideos() ([]string, error) {
	names, err := s.fs.ListFiles(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: raw-result directory %s", sbd.ErrNotFound, s.dir)
		}
		return nil, fmt.Errorf("list raw results in %s: %w", s.dir, err)
	}
	ext := "." + s.encoding
	var videos []string
	for _, name := range names {
		if !strings.HasSuffix(name, ext) || !strings.HasPrefix(name, s.prefix) {
			continue
		}
		video := strings.TrimSuffix(strings.TrimPrefix(name, s.prefix), ext)
		if err := security.ValidateVideoName(video); err != nil {
			logger.Warnf("skipping %s: %v", name, err)
			continue
		}
		videos = append(videos, video)
	}
	return videos, nil
}

// Load reads the record of one video. A missing file wraps sbd.ErrNotFound;
// an unparsable file wraps sbd.ErrMalformedRecord. The returned VideoName is
// always the requested name.
func (s *Store) Load(video string) (sbd.RawResult, error) {
	path := s.Path(video)
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sbd.RawResult{}, fmt.Errorf("%w: raw result %s", sbd.ErrNotFound, path)
		}
		return sbd.RawResult{}, fmt.Errorf("read raw result %s: %w", path, err)
	}

	var rec sbd.RawResult
	switch s.encoding {
	case "csv":
		rec, err = ParseCSV(data)
	case "npy":
		rec, err = DecodeNPY(bytes.NewReader(data), video)
	}
	if err != nil {
		return sbd.RawResult{}, fmt.Errorf("%s: %w", path, err)
	}
	if rec.VideoName != video {
		logger.Warnf("%s names video %q, using %q from the filename", path, rec.VideoName, video)
		rec.VideoName = video
	}
	return rec, nil
}

// Save writes rec in the store's encoding, creating the directory if needed.
func (s *Store) Save(rec sbd.RawResult) error {
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	path := s.Path(rec.VideoName)
	w, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	switch s.encoding {
	case "csv":
		err = WriteCSV(w, rec)
	case "npy":
		err = WriteNPY(w, rec)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
