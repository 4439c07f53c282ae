package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"kitcat/internal/kcerr"
	"kitcat/pkg/diff"
	"kitcat/pkg/index"
	"kitcat/pkg/object"
)

// Diff computes the file pairs to compare for one of four modes:
//
//   - no commit-ish given: working tree vs index
//   - cached, no commit-ish: index vs HEAD
//   - one commit-ish c1: working tree vs c1
//   - two commit-ish c1, c2: c1 vs c2
func (r *Repo) Diff(cached bool, c1, c2 string) ([]diff.FilePair, error) {
	var before, after map[string][]byte
	var err error

	switch {
	case c1 != "" && c2 != "":
		before, err = r.commitFiles(c1)
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		after, err = r.commitFiles(c2)
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	case c1 != "":
		before, err = r.commitFiles(c1)
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		after, err = r.worktreeFiles()
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	case cached:
		before, err = r.headFiles()
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		after, err = r.indexFiles()
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	default:
		before, err = r.indexFiles()
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		after, err = r.worktreeFiles()
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	}

	return pairFiles(before, after), nil
}

func pairFiles(before, after map[string][]byte) []diff.FilePair {
	paths := make(map[string]bool, len(before)+len(after))
	for p := range before {
		paths[p] = true
	}
	for p := range after {
		paths[p] = true
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	pairs := make([]diff.FilePair, 0, len(sorted))
	for _, p := range sorted {
		b, hasB := before[p]
		a, hasA := after[p]
		if hasB && hasA && string(b) == string(a) {
			continue
		}
		fp := diff.FilePair{Path: p}
		if hasB {
			fp.Before = b
		}
		if hasA {
			fp.After = a
		}
		pairs = append(pairs, fp)
	}
	return pairs
}

func (r *Repo) worktreeFiles() (map[string][]byte, error) {
	ic := NewIgnoreChecker(r.RootDir)
	files := make(map[string][]byte)
	err := filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = content
		return nil
	})
	return files, err
}

func (r *Repo) indexFiles() (map[string][]byte, error) {
	idx, err := r.Index()
	if err != nil {
		return nil, err
	}
	return r.blobsForEntries(idx)
}

func (r *Repo) blobsForEntries(idx *index.Index) (map[string][]byte, error) {
	files := make(map[string][]byte)
	for _, p := range idx.Paths() {
		e, ok := idx.Get(p)
		if !ok {
			continue // conflicted path, no normal stage to diff against
		}
		blob, err := r.Store.ReadBlob(string(e.Hash))
		if err != nil {
			return nil, fmt.Errorf("read blob for %q: %w", p, err)
		}
		files[p] = blob.Data
	}
	return files, nil
}

func (r *Repo) headFiles() (map[string][]byte, error) {
	headHash, err := r.Refs.Resolve("HEAD")
	if err != nil {
		if kcerr.Is(err, kcerr.NotFound) {
			return map[string][]byte{}, nil
		}
		return nil, err
	}
	commit, err := r.Store.ReadCommit(string(headHash))
	if err != nil {
		if kcerr.Is(err, kcerr.NotFound) {
			return map[string][]byte{}, nil
		}
		return nil, err
	}
	return r.treeFiles(commit.TreeHash)
}

func (r *Repo) commitFiles(commitIsh string) (map[string][]byte, error) {
	h, err := r.resolveCommitIsh(commitIsh)
	if err != nil {
		return nil, err
	}
	commit, err := r.Store.ReadCommit(string(h))
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", h, err)
	}
	return r.treeFiles(commit.TreeHash)
}

func (r *Repo) treeFiles(treeHash object.Hash) (map[string][]byte, error) {
	entries, err := r.FlattenTree(treeHash)
	if err != nil {
		return nil, err
	}
	files := make(map[string][]byte, len(entries))
	for _, e := range entries {
		blob, err := r.Store.ReadBlob(string(e.Hash))
		if err != nil {
			return nil, fmt.Errorf("read blob for %q: %w", e.Path, err)
		}
		files[e.Path] = blob.Data
	}
	return files, nil
}

// resolveCommitIsh resolves name as a branch/HEAD first, falling back to a
// raw (possibly abbreviated) commit hash.
func (r *Repo) resolveCommitIsh(name string) (object.Hash, error) {
	if h, err := r.Refs.Resolve(name); err == nil {
		return h, nil
	}
	return r.Store.Resolve(name)
}
