package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kitcat/internal/kcerr"
	"kitcat/pkg/index"
	"kitcat/pkg/object"
)

// shortHashMinLen is the minimum prefix length accepted when resolving a
// detached-checkout target as a raw commit hash.
const shortHashMinLen = 7

// Checkout switches the working directory to the state of target, which
// may be a branch name or a (possibly abbreviated) commit hash.
//
// Algorithm:
//  1. Resolve target to a commit, trying branch name then raw hash.
//  2. Flatten the target tree and compare it against the index and working
//     tree; refuse (WouldOverwrite) unless force is set when a path would
//     lose data that isn't already reflected in the target.
//  3. Remove tracked files no longer present in the target, write every
//     target file atomically, then rewrite the index from the target tree.
//  4. Update HEAD: symbolic if target was a branch, detached otherwise.
func (r *Repo) Checkout(target string, force bool) error {
	targetHash, isBranch, err := r.resolveCheckoutTarget(target)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	commit, err := r.Store.ReadCommit(string(targetHash))
	if err != nil {
		return fmt.Errorf("checkout: read commit %s: %w", targetHash, err)
	}
	targetFiles, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("checkout: flatten target tree: %w", err)
	}
	targetMap := make(map[string]TreeFileEntry, len(targetFiles))
	for _, f := range targetFiles {
		targetMap[f.Path] = f
	}

	idx, err := r.Index()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	currentTree, err := r.headTreeEntries()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	if !force {
		if err := r.checkWouldOverwrite(idx, currentTree, targetMap); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
	}

	tracked := r.trackedPaths(idx, currentTree)
	for path := range tracked {
		if _, stays := targetMap[path]; stays {
			continue
		}
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("checkout: remove %q: %w", path, err)
		}
		removeEmptyParents(r.RootDir, filepath.Dir(absPath))
	}

	newIdx := index.New()
	for _, f := range targetFiles {
		if err := r.writeWorkingFile(f.Path, f.Hash, f.Mode); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		e, err := r.statEntry(f.Path, f.Hash, f.Mode)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		newIdx.Put(e)
	}
	if err := r.SaveIndex(newIdx); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	if isBranch {
		if err := r.Refs.SetHeadSymbolic("refs/heads/" + target); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
	} else {
		if err := r.Refs.SetHeadDetached(targetHash, nil); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
	}
	return nil
}

// CheckoutFile restores a single path from the index without touching HEAD
// or the rest of the index. side selects which conflict stage to pull from
// ("ours", "theirs", or "" for the normal stage).
func (r *Repo) CheckoutFile(path string, side string) error {
	idx, err := r.Index()
	if err != nil {
		return fmt.Errorf("checkout --file: %w", err)
	}
	stages, ok := idx.Entries[path]
	if !ok {
		return kcerr.NewNotFound(fmt.Sprintf("checkout --file: %q not in index", path))
	}

	var e index.Entry
	switch side {
	case "ours":
		e, ok = stages[index.StageOurs]
	case "theirs":
		e, ok = stages[index.StageTheirs]
	default:
		e, ok = stages[index.StageNormal]
	}
	if !ok {
		return kcerr.NewNotFound(fmt.Sprintf("checkout --file: %q has no %q side", path, side))
	}

	mode := treeModeFromBits(e.Mode)
	if err := r.writeWorkingFile(path, e.Hash, mode); err != nil {
		return fmt.Errorf("checkout --file: %w", err)
	}
	return nil
}

func (r *Repo) resolveCheckoutTarget(target string) (object.Hash, bool, error) {
	if h, err := r.Refs.Resolve(target); err == nil {
		return h, true, nil
	}
	if len(target) < shortHashMinLen {
		return "", false, kcerr.NewInvalidArgument(fmt.Sprintf("%q is not a branch and too short to be a commit hash", target))
	}
	full, err := r.Store.Resolve(target)
	if err != nil {
		return "", false, err
	}
	if _, err := r.Store.ReadCommit(string(full)); err != nil {
		return "", false, err
	}
	return full, false, nil
}

// checkWouldOverwrite refuses the checkout when a path's worktree/index
// state diverges from both its current tree entry and its target tree
// entry: switching would silently discard work not present on either side.
func (r *Repo) checkWouldOverwrite(idx *index.Index, currentTree map[string]TreeFileEntry, targetMap map[string]TreeFileEntry) error {
	for _, path := range idx.Paths() {
		if idx.IsConflicted(path) {
			return kcerr.NewWouldOverwrite(fmt.Sprintf("checkout: %q has unresolved conflicts", path))
		}
		e, _ := idx.Get(path)
		cur, inCurrent := currentTree[path]
		tgt, inTarget := targetMap[path]

		indexDiffersFromCurrent := !inCurrent || e.Hash != cur.Hash
		indexDiffersFromTarget := !inTarget || e.Hash != tgt.Hash
		if indexDiffersFromCurrent && indexDiffersFromTarget {
			return kcerr.NewWouldOverwrite(fmt.Sprintf("checkout: %q has staged changes that would be lost", path))
		}

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		if _, err := os.Stat(absPath); err != nil {
			continue
		}
		content, err := os.ReadFile(absPath)
		if err != nil {
			continue
		}
		workHash := object.HashObject(object.TypeBlob, content)
		if workHash == e.Hash {
			continue
		}
		if inTarget && workHash == tgt.Hash {
			continue
		}
		return kcerr.NewWouldOverwrite(fmt.Sprintf("checkout: %q has uncommitted changes that would be lost", path))
	}
	return nil
}

func (r *Repo) trackedPaths(idx *index.Index, currentTree map[string]TreeFileEntry) map[string]bool {
	files := make(map[string]bool)
	for path := range currentTree {
		files[path] = true
	}
	for _, path := range idx.Paths() {
		files[path] = true
	}
	return files
}

func (r *Repo) writeWorkingFile(relPath string, h object.Hash, mode string) error {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("mkdir for %q: %w", relPath, err)
	}
	blob, err := r.Store.ReadBlob(string(h))
	if err != nil {
		return fmt.Errorf("read blob for %q: %w", relPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(absPath), ".kitcat-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %q: %w", relPath, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(blob.Data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %q: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %q: %w", relPath, err)
	}
	if err := os.Chmod(tmpPath, filePermFromMode(mode)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %q: %w", relPath, err)
	}
	if err := os.Rename(tmpPath, absPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place %q: %w", relPath, err)
	}
	return nil
}

func (r *Repo) statEntry(relPath string, h object.Hash, mode string) (index.Entry, error) {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
	info, err := os.Stat(absPath)
	if err != nil {
		return index.Entry{}, fmt.Errorf("stat %q: %w", relPath, err)
	}
	bits := uint32(0o100644)
	if mode == object.TreeModeExecutable {
		bits = 0o100755
	}
	e := index.EntryFromFileInfo(relPath, h, bits, info.Size(), info.ModTime())
	e.CtimeSec, e.CtimeNsec = e.MtimeSec, e.MtimeNsec
	return e, nil
}

func removeEmptyParents(rootDir, dir string) {
	for {
		if dir == rootDir || !strings.HasPrefix(dir, rootDir) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}
