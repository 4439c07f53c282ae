// Package refs implements HEAD and branch-ref storage: the symbolic/detached
// HEAD pointer, refs/heads/<name> files, and the transient state files
// (MERGE_HEAD, CHERRY_PICK_HEAD) used mid-merge and mid-cherry-pick.
package refs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"kitcat/internal/kcerr"
	"kitcat/pkg/object"
)

const (
	lockRetryDelay = 5 * time.Millisecond
	lockWaitLimit  = 2 * time.Second

	headsDir = "refs/heads"
)

// Store reads and writes HEAD, branch refs, and merge/cherry-pick state
// files rooted at gotDir (a repository's ".kitcat" directory).
type Store struct {
	gotDir string
}

// New returns a Store rooted at gotDir.
func New(gotDir string) *Store {
	return &Store{gotDir: gotDir}
}

// InitDefault writes a fresh HEAD pointing at refs/heads/<defaultBranch>
// (refs/heads/main when defaultBranch is empty), for use by repository
// initialization.
func (s *Store) InitDefault(defaultBranch string) error {
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	return s.SetHeadSymbolic("refs/heads/" + defaultBranch)
}

func (s *Store) headPath() string { return filepath.Join(s.gotDir, "HEAD") }

func (s *Store) refPath(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return filepath.Join(s.gotDir, filepath.FromSlash(name))
	}
	return filepath.Join(s.gotDir, headsDir, filepath.FromSlash(name))
}

// Head reports HEAD's current target: if symbolic, target holds the ref
// name (e.g. "refs/heads/main") and detached is false; if detached, target
// holds the raw commit hash and detached is true.
func (s *Store) Head() (target string, detached bool, err error) {
	data, err := os.ReadFile(s.headPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, kcerr.NewNotRepository("refs: HEAD not found")
		}
		return "", false, kcerr.NewIo("refs: read HEAD", err)
	}
	content := strings.TrimRight(string(data), "\n")
	if rest, ok := strings.CutPrefix(content, "ref: "); ok {
		return rest, false, nil
	}
	return content, true, nil
}

// CurrentBranch returns the branch name HEAD points at, or "" if detached.
func (s *Store) CurrentBranch() (string, error) {
	target, detached, err := s.Head()
	if err != nil {
		return "", err
	}
	if detached {
		return "", nil
	}
	return strings.TrimPrefix(target, headsDir+"/"), nil
}

// SetHeadSymbolic points HEAD at a branch ref name (e.g. "refs/heads/main").
func (s *Store) SetHeadSymbolic(refName string) error {
	return atomicWrite(s.headPath(), []byte("ref: "+refName+"\n"))
}

// SetHeadDetached points HEAD directly at a commit hash, using lock +
// atomic rename semantics like Update. If expectedOld is non-nil, the
// write only proceeds when HEAD is currently detached at that exact hash
// (compare-and-swap), so a concurrent detached-HEAD advance is rejected
// rather than silently overwritten.
func (s *Store) SetHeadDetached(h object.Hash, expectedOld *object.Hash) error {
	path := s.headPath()
	lockPath := path + ".lock"
	lockFile, err := acquireLock(lockPath)
	if err != nil {
		return kcerr.NewIndexLocked(fmt.Sprintf("refs: HEAD is locked: %v", err))
	}
	cleanup := true
	defer func() {
		_ = lockFile.Close()
		if cleanup {
			_ = os.Remove(lockPath)
		}
	}()

	if expectedOld != nil {
		target, detached, err := s.Head()
		if err != nil {
			return err
		}
		if !detached || object.Hash(target) != *expectedOld {
			return kcerr.NewInvalidArgument(fmt.Sprintf("refs: compare-and-swap failed for detached HEAD: expected %s, found %s", *expectedOld, target))
		}
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return kcerr.NewIo("refs: write HEAD", err)
	}
	if err := lockFile.Sync(); err != nil {
		return kcerr.NewIo("refs: sync HEAD", err)
	}
	if err := lockFile.Close(); err != nil {
		return kcerr.NewIo("refs: close HEAD", err)
	}
	if err := os.Rename(lockPath, path); err != nil {
		return kcerr.NewIo("refs: rename HEAD", err)
	}
	cleanup = false
	return nil
}

// Resolve resolves a ref expression to a commit hash. "HEAD" follows the
// symbolic/detached indirection; "refs/..." and bare branch names resolve
// directly.
func (s *Store) Resolve(name string) (object.Hash, error) {
	if name == "HEAD" {
		target, detached, err := s.Head()
		if err != nil {
			return "", err
		}
		if detached {
			return object.Hash(target), nil
		}
		return s.Resolve(target)
	}

	data, err := os.ReadFile(s.refPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", kcerr.NewNotFound(fmt.Sprintf("refs: %q not found", name))
		}
		return "", kcerr.NewIo(fmt.Sprintf("refs: read %q", name), err)
	}
	return object.Hash(strings.TrimRight(string(data), "\n")), nil
}

// Update writes h to the named ref using lock + atomic rename semantics. If
// expectedOld is non-nil, the update only proceeds when the ref's current
// value matches it (compare-and-swap).
func (s *Store) Update(name string, h object.Hash, expectedOld *object.Hash) error {
	path := s.refPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kcerr.NewIo(fmt.Sprintf("refs: mkdir for %q", name), err)
	}

	lockPath := path + ".lock"
	lockFile, err := acquireLock(lockPath)
	if err != nil {
		return kcerr.NewIndexLocked(fmt.Sprintf("refs: %q is locked: %v", name, err))
	}
	cleanup := true
	defer func() {
		_ = lockFile.Close()
		if cleanup {
			_ = os.Remove(lockPath)
		}
	}()

	if expectedOld != nil {
		current, err := s.Resolve(name)
		if err != nil && !kcerr.Is(err, kcerr.NotFound) {
			return err
		}
		if current != *expectedOld {
			return kcerr.NewInvalidArgument(fmt.Sprintf("refs: compare-and-swap failed for %q: expected %s, found %s", name, *expectedOld, current))
		}
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return kcerr.NewIo(fmt.Sprintf("refs: write %q", name), err)
	}
	if err := lockFile.Sync(); err != nil {
		return kcerr.NewIo(fmt.Sprintf("refs: sync %q", name), err)
	}
	if err := lockFile.Close(); err != nil {
		return kcerr.NewIo(fmt.Sprintf("refs: close %q", name), err)
	}
	if err := os.Rename(lockPath, path); err != nil {
		return kcerr.NewIo(fmt.Sprintf("refs: rename %q", name), err)
	}
	cleanup = false
	return nil
}

// CreateBranch creates refs/heads/<name> pointing at h. It fails if the
// branch already exists.
func (s *Store) CreateBranch(name string, h object.Hash) error {
	path := s.refPath("refs/heads/" + name)
	if _, err := os.Stat(path); err == nil {
		return kcerr.NewInvalidArgument(fmt.Sprintf("refs: branch %q already exists", name))
	}
	return s.Update("refs/heads/"+name, h, nil)
}

// DeleteBranch removes refs/heads/<name>. Deleting the branch HEAD is
// currently checked out on is refused.
func (s *Store) DeleteBranch(name string) error {
	current, err := s.CurrentBranch()
	if err != nil {
		return err
	}
	if current == name {
		return kcerr.NewCurrentBranch(fmt.Sprintf("refs: cannot delete checked-out branch %q", name))
	}
	path := s.refPath("refs/heads/" + name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return kcerr.NewNotFound(fmt.Sprintf("refs: branch %q not found", name))
		}
		return kcerr.NewIo(fmt.Sprintf("refs: delete branch %q", name), err)
	}
	return nil
}

// ListBranches returns every branch name under refs/heads, sorted.
func (s *Store) ListBranches() ([]string, error) {
	dir := filepath.Join(s.gotDir, headsDir)
	var names []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, kcerr.NewIo("refs: list branches", err)
	}
	sort.Strings(names)
	return names, nil
}

// --- transient operation state (MERGE_HEAD, CHERRY_PICK_HEAD) ---

func (s *Store) statePath(name string) string { return filepath.Join(s.gotDir, name) }

// WriteState records h as the value of a transient state file such as
// MERGE_HEAD or CHERRY_PICK_HEAD.
func (s *Store) WriteState(name string, h object.Hash) error {
	return atomicWrite(s.statePath(name), []byte(string(h)+"\n"))
}

// ReadState reads a transient state file's hash, and whether it exists.
func (s *Store) ReadState(name string) (object.Hash, bool, error) {
	data, err := os.ReadFile(s.statePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, kcerr.NewIo(fmt.Sprintf("refs: read %s", name), err)
	}
	return object.Hash(strings.TrimRight(string(data), "\n")), true, nil
}

// RemoveState deletes a transient state file if present.
func (s *Store) RemoveState(name string) error {
	if err := os.Remove(s.statePath(name)); err != nil && !os.IsNotExist(err) {
		return kcerr.NewIo(fmt.Sprintf("refs: remove %s", name), err)
	}
	return nil
}

// WriteStateText records freeform text for a transient state file such as
// MERGE_MSG.
func (s *Store) WriteStateText(name, text string) error {
	return atomicWrite(s.statePath(name), []byte(text))
}

func acquireLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(lockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(lockRetryDelay)
			continue
		}
		return nil, err
	}
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kcerr.NewIo("refs: mkdir", err)
	}
	tmp := path + ".lock"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return kcerr.NewIndexLocked(fmt.Sprintf("refs: %s is locked by another operation", tmp))
		}
		return kcerr.NewIo("refs: create lock", err)
	}
	cleanup := true
	defer func() {
		_ = f.Close()
		if cleanup {
			_ = os.Remove(tmp)
		}
	}()
	if _, err := f.Write(data); err != nil {
		return kcerr.NewIo("refs: write", err)
	}
	if err := f.Sync(); err != nil {
		return kcerr.NewIo("refs: sync", err)
	}
	if err := f.Close(); err != nil {
		return kcerr.NewIo("refs: close", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return kcerr.NewIo("refs: rename", err)
	}
	cleanup = false
	return nil
}
