package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"kitcat/pkg/index"
	"kitcat/pkg/object"
)

// Add stages the given paths: each file's content is written as a blob,
// and an index entry records its blob hash and filesystem metadata (the
// stat-cache fields the status tri-comparison uses as a shortcut).
//
// A directory path is expanded to every regular file beneath it that is
// not excluded by the ignore checker.
func (r *Repo) Add(paths []string) error {
	idx, err := r.Index()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	ic := NewIgnoreChecker(r.RootDir)

	var files []string
	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: resolve path %q: %w", p, err)
		}
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))

		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("add: stat %q: %w", relPath, err)
		}
		if info.IsDir() {
			expanded, err := r.expandDir(relPath, ic)
			if err != nil {
				return fmt.Errorf("add: expand %q: %w", relPath, err)
			}
			files = append(files, expanded...)
			continue
		}
		files = append(files, relPath)
	}

	for _, relPath := range files {
		if err := r.stageFile(idx, relPath); err != nil {
			return fmt.Errorf("add: %w", err)
		}
	}

	if err := r.SaveIndex(idx); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	r.log.Op("add").Sugar().Debugw("staged files", "count", len(files))
	return nil
}

func (r *Repo) stageFile(idx *index.Index, relPath string) error {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %q: %w", relPath, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", relPath, err)
	}

	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return fmt.Errorf("write blob %q: %w", relPath, err)
	}

	e := index.EntryFromFileInfo(relPath, blobHash, uint32(modeBitsFromFileInfo(info)), info.Size(), info.ModTime())
	e.CtimeSec = e.MtimeSec
	e.CtimeNsec = e.MtimeNsec
	idx.Put(e)
	return nil
}

func (r *Repo) expandDir(relDir string, ic *IgnoreChecker) ([]string, error) {
	absDir := filepath.Join(r.RootDir, filepath.FromSlash(relDir))
	var files []string
	err := filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}

// repoRelPath converts p (absolute, or relative to the process's working
// directory) into a path relative to the repository root.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		return filepath.ToSlash(rel), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	abs := filepath.Join(cwd, p)
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	if len(rel) >= 2 && rel[:2] == ".." {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	return filepath.ToSlash(rel), nil
}
