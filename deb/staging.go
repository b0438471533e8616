package deb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Staging is the private scratch filesystem of a single build. It holds two
// subtrees: "data", mirroring absolute paths as they will appear on the
// installed system, and "control", holding the package metadata files.
type Staging struct {
	root    string
	data    string
	control string
}

// newStaging allocates a process-unique scratch root under the OS temp
// directory and creates the data and control subtrees.
func newStaging() (*Staging, error) {
	root := filepath.Join(os.TempDir(), "debwrap-"+uuid.New().String())
	s := &Staging{
		root:    root,
		data:    filepath.Join(root, "data"),
		control: filepath.Join(root, "control"),
	}
	for _, dir := range []string{s.root, s.data, s.control} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating staging directory: %w", err)
		}
	}
	return s, nil
}

// Root returns the scratch root. It is retained on build failure so the
// partially staged trees can be inspected.
func (s *Staging) Root() string { return s.root }

// DataRoot returns the root of the staged data tree.
func (s *Staging) DataRoot() string { return s.data }

// ControlRoot returns the root of the staged control tree.
func (s *Staging) ControlRoot() string { return s.control }

// ControlPath joins filename under the control subtree. No existence check
// is performed.
func (s *Staging) ControlPath(filename string) string {
	return filepath.Join(s.control, filename)
}

// DataPath resolves an absolute installation-root path under the data tree
// and creates every missing ancestor directory of the leaf, applying perm to
// each walked component (last write wins for directories created earlier at
// a different mode). It returns the absolute staging path for the leaf.
func (s *Staging) DataPath(path string, perm os.FileMode) (string, error) {
	abs := s.join(path)
	if err := s.mkdirAll(filepath.Dir(abs), perm); err != nil {
		return "", err
	}
	return abs, nil
}

// DataDirPath resolves an absolute installation-root directory path under
// the data tree. With makeIfMissing the directory itself (and its ancestors)
// is created with perm; without it the path is returned for read-only
// inspection.
func (s *Staging) DataDirPath(path string, perm os.FileMode, makeIfMissing bool) (string, error) {
	abs := s.join(path)
	if makeIfMissing {
		if err := s.mkdirAll(abs, perm); err != nil {
			return "", err
		}
	}
	return abs, nil
}

func (s *Staging) join(path string) string {
	return filepath.Join(s.data, strings.TrimPrefix(path, "/"))
}

// mkdirAll creates every missing component between the data root and abs,
// chmodding each walked component to perm. Mkdir is followed by an explicit
// Chmod since the process umask masks the mode argument.
func (s *Staging) mkdirAll(abs string, perm os.FileMode) error {
	rel, err := filepath.Rel(s.data, abs)
	if err != nil {
		return fmt.Errorf("resolving staging path %s: %w", abs, err)
	}
	if rel == "." {
		return nil
	}
	cur := s.data
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		if err := os.Mkdir(cur, perm); err != nil && !os.IsExist(err) {
			return fmt.Errorf("creating directory %s: %w", cur, err)
		}
		if err := os.Chmod(cur, perm); err != nil {
			return fmt.Errorf("setting mode on %s: %w", cur, err)
		}
	}
	return nil
}
