// Package security guards the file names the evaluator derives from its
// inputs. Video names come from raw-result file names and are joined into
// ground-truth, video and export paths.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafeName is returned for a name or path that would resolve outside
// its directory.
var ErrUnsafeName = errors.New("unsafe name")

// ValidateVideoName rejects names that cannot be used as a single path
// element: empty, "." or "..", or containing a separator or NUL.
func ValidateVideoName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: video name %q", ErrUnsafeName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: video name %q contains a separator", ErrUnsafeName, name)
	}
	return nil
}

// ValidatePathWithinDirectory checks lexically that filePath stays inside
// dir once both are cleaned. Symlinks are not resolved: the paths may live
// on an in-memory filesystem.
func ValidatePathWithinDirectory(filePath, dir string) error {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("%w: %s is not under %s: %v", ErrUnsafeName, filePath, dir, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: path traversal detected: %s attempts to escape %s", ErrUnsafeName, filePath, dir)
	}
	return nil
}
