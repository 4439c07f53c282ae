package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"kitcat/internal/kcerr"
	"kitcat/internal/logging"
)

const gotDirName = ".kitcat"

func packDir(gotDir string) string { return filepath.Join(gotDir, "objects", "pack") }

// Init creates a new repository at path: the .kitcat/ directory structure,
// a symbolic HEAD pointing at the default branch, and empty object/ref
// trees. It fails if a .kitcat/ directory already exists.
func Init(path string, log *logging.Logger) (*Repo, error) {
	gotDir := filepath.Join(path, gotDirName)

	if _, err := os.Stat(gotDir); err == nil {
		return nil, kcerr.NewInvalidArgument(fmt.Sprintf("init: repository already exists at %s", gotDir))
	}

	dirs := []string{
		filepath.Join(gotDir, "objects"),
		filepath.Join(gotDir, "objects", "pack"),
		filepath.Join(gotDir, "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, kcerr.NewIo(fmt.Sprintf("init: mkdir %s", d), err)
		}
	}

	r := newRepo(path, gotDir, log)
	if err := r.Refs.InitDefault("main"); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r.log.Op("init").Sugar().Debugw("repository initialized", "path", gotDir)
	return r, nil
}

// Open searches upward from path for a .kitcat/ directory and opens the
// repository rooted there.
func Open(path string, log *logging.Logger) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, kcerr.NewIo("open: abs path", err)
	}

	cur := abs
	for {
		gotDir := filepath.Join(cur, gotDirName)
		info, err := os.Stat(gotDir)
		if err == nil && info.IsDir() {
			return newRepo(cur, gotDir, log), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, kcerr.NewNotRepository("open: not a kitcat repository (or any parent up to /)")
		}
		cur = parent
	}
}
