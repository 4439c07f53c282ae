package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"kitcat/internal/kcerr"
	"kitcat/pkg/index"
	"kitcat/pkg/object"
)

// MergeReport summarizes the outcome of a merge attempt.
type MergeReport struct {
	FastForward bool
	UpToDate    bool
	Conflicts   []string // repo-relative paths left conflicted
	CommitHash  object.Hash
}

// Merge merges branchName into the current branch.
//
//  1. Fast-forward when HEAD is an ancestor of the target.
//  2. No-op when the target is already an ancestor of HEAD.
//  3. Otherwise run a full three-way merge: find the merge base, resolve
//     every path via pkg/merge, write the results, and either produce a
//     two-parent merge commit (no conflicts) or leave MERGE_HEAD and a
//     conflicted index in place for `merge --continue`/`--abort`.
func (r *Repo) Merge(branchName string) (*MergeReport, error) {
	oursHash, err := r.Refs.Resolve("HEAD")
	if err != nil {
		return nil, fmt.Errorf("merge: resolve HEAD: %w", err)
	}
	theirsHash, err := r.resolveCommitIsh(branchName)
	if err != nil {
		return nil, fmt.Errorf("merge: resolve %q: %w", branchName, err)
	}

	if oursHash == theirsHash {
		return &MergeReport{UpToDate: true}, nil
	}

	baseHash, err := r.baseFinder.Find(oursHash, theirsHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if baseHash == oursHash {
		if err := r.fastForward(theirsHash); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		return &MergeReport{FastForward: true, CommitHash: theirsHash}, nil
	}
	if baseHash == theirsHash {
		return &MergeReport{UpToDate: true}, nil
	}

	return r.threeWayMerge(baseHash, oursHash, theirsHash, branchName)
}

// MergeContinue finishes a merge after conflicts have been staged as
// resolved (no remaining conflict stages in the index).
func (r *Repo) MergeContinue() (*MergeReport, error) {
	theirsHash, ok, err := r.Refs.ReadState("MERGE_HEAD")
	if err != nil {
		return nil, fmt.Errorf("merge --continue: %w", err)
	}
	if !ok {
		return nil, kcerr.NewInvalidArgument("merge --continue: no merge in progress")
	}

	idx, err := r.Index()
	if err != nil {
		return nil, fmt.Errorf("merge --continue: %w", err)
	}
	if idx.HasConflicts() {
		return nil, kcerr.NewConflictsPending("merge --continue: unresolved conflicts remain")
	}

	oursHash, err := r.Refs.Resolve("HEAD")
	if err != nil {
		return nil, fmt.Errorf("merge --continue: %w", err)
	}

	commitHash, err := r.completeMergeCommit(idx, oursHash, theirsHash, "merge --continue")
	if err != nil {
		return nil, err
	}
	return &MergeReport{CommitHash: commitHash}, nil
}

// MergeAbort discards an in-progress merge, restoring HEAD's tree to the
// working directory and index and clearing MERGE_HEAD.
func (r *Repo) MergeAbort() error {
	if _, ok, err := r.Refs.ReadState("MERGE_HEAD"); err != nil {
		return fmt.Errorf("merge --abort: %w", err)
	} else if !ok {
		return kcerr.NewInvalidArgument("merge --abort: no merge in progress")
	}

	branch, err := r.Refs.CurrentBranch()
	if err != nil {
		return fmt.Errorf("merge --abort: %w", err)
	}
	target := branch
	if target == "" {
		head, _, err := r.Refs.Head()
		if err != nil {
			return fmt.Errorf("merge --abort: %w", err)
		}
		target = head
	}
	if err := r.Checkout(target, true); err != nil {
		return fmt.Errorf("merge --abort: %w", err)
	}
	r.Refs.RemoveState("MERGE_HEAD")
	r.Refs.RemoveState("MERGE_MSG")
	return r.Refs.RemoveState("MERGE_MODE")
}

func (r *Repo) fastForward(theirsHash object.Hash) error {
	branch, err := r.Refs.CurrentBranch()
	if err != nil {
		return err
	}
	if branch == "" {
		if err := r.Refs.SetHeadDetached(theirsHash, nil); err != nil {
			return err
		}
	} else if err := r.Refs.Update("refs/heads/"+branch, theirsHash, nil); err != nil {
		return err
	}
	return r.syncWorktreeToCommit(theirsHash)
}

// syncWorktreeToCommit rewrites the working tree and index to match commit,
// without touching HEAD (the caller has already moved the branch ref).
func (r *Repo) syncWorktreeToCommit(commitHash object.Hash) error {
	commit, err := r.Store.ReadCommit(string(commitHash))
	if err != nil {
		return err
	}
	files, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return err
	}
	targetMap := make(map[string]TreeFileEntry, len(files))
	for _, f := range files {
		targetMap[f.Path] = f
	}

	idx, err := r.Index()
	if err != nil {
		return err
	}
	for _, path := range idx.Paths() {
		if _, stays := targetMap[path]; stays {
			continue
		}
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		os.Remove(absPath)
		removeEmptyParents(r.RootDir, filepath.Dir(absPath))
	}

	newIdx := index.New()
	for _, f := range files {
		if err := r.writeWorkingFile(f.Path, f.Hash, f.Mode); err != nil {
			return err
		}
		e, err := r.statEntry(f.Path, f.Hash, f.Mode)
		if err != nil {
			return err
		}
		newIdx.Put(e)
	}
	return r.SaveIndex(newIdx)
}

func (r *Repo) threeWayMerge(baseHash, oursHash, theirsHash object.Hash, theirsLabel string) (*MergeReport, error) {
	baseFiles, err := r.commitFileEntries(baseHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	oursFiles, err := r.commitFileEntries(oursHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	theirsFiles, err := r.commitFileEntries(theirsHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	idx, conflicts, err := r.resolveThreeWay(baseFiles, oursFiles, theirsFiles, theirsLabel)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if err := r.SaveIndex(idx); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.Refs.WriteState("MERGE_HEAD", theirsHash); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.Refs.WriteStateText("MERGE_MODE", "merge\n"); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	mergeMsg := fmt.Sprintf("Merge branch '%s' into %s", theirsLabel, currentBranchOrDetached(r))
	if err := r.Refs.WriteStateText("MERGE_MSG", mergeMsg+"\n"); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return &MergeReport{Conflicts: conflicts}, kcerr.NewConflictsPending(
			fmt.Sprintf("merge: %d file(s) have conflicts", len(conflicts)))
	}

	commitHash, err := r.completeMergeCommit(idx, oursHash, theirsHash, mergeMsg)
	if err != nil {
		return nil, err
	}
	return &MergeReport{CommitHash: commitHash}, nil
}

// completeMergeCommit builds a tree from idx and writes a two-parent merge
// commit, advances the current ref, and clears merge state.
func (r *Repo) completeMergeCommit(idx *index.Index, oursHash, theirsHash object.Hash, message string) (object.Hash, error) {
	cfg, err := r.Config()
	if err != nil {
		return "", fmt.Errorf("%s: %w", message, err)
	}
	if cfg.User.Name == "" || cfg.User.Email == "" {
		return "", kcerr.NewInvalidArgument(message + ": identity required (set user.name and user.email)")
	}

	treeHash, err := r.BuildTree(idx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", message, err)
	}

	identity := identityNow(cfg.User.Name, cfg.User.Email)
	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   []object.Hash{oursHash, theirsHash},
		Author:    identity,
		Committer: identity,
		Message:   message,
	}
	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("%s: write commit: %w", message, err)
	}

	if err := r.advanceHead(commitHash, oursHash); err != nil {
		return "", fmt.Errorf("%s: %w", message, err)
	}
	r.Refs.RemoveState("MERGE_HEAD")
	r.Refs.RemoveState("MERGE_MSG")
	r.Refs.RemoveState("MERGE_MODE")
	return commitHash, nil
}

func (r *Repo) commitFileEntries(h object.Hash) (map[string]TreeFileEntry, error) {
	if h == "" {
		return map[string]TreeFileEntry{}, nil
	}
	commit, err := r.Store.ReadCommit(string(h))
	if err != nil {
		return nil, err
	}
	files, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return nil, err
	}
	out := make(map[string]TreeFileEntry, len(files))
	for _, f := range files {
		out[f.Path] = f
	}
	return out, nil
}

func unionPaths(maps ...map[string]TreeFileEntry) []string {
	seen := make(map[string]bool)
	for _, m := range maps {
		for p := range m {
			seen[p] = true
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func conflictStage(present bool, f TreeFileEntry) *index.Entry {
	if !present {
		return nil
	}
	bits := uint32(0o100644)
	if f.Mode == object.TreeModeExecutable {
		bits = 0o100755
	}
	return &index.Entry{Hash: f.Hash, Mode: bits}
}

func (r *Repo) writeMergedFile(path string, content []byte, oursMode, theirsMode string) error {
	mode := oursMode
	if mode == "" {
		mode = theirsMode
	}
	if mode == "" {
		mode = object.TreeModeFile
	}
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("mkdir for %q: %w", path, err)
	}
	return os.WriteFile(absPath, content, filePermFromMode(mode))
}

func currentBranchOrDetached(r *Repo) string {
	branch, err := r.Refs.CurrentBranch()
	if err != nil || branch == "" {
		return "HEAD"
	}
	return branch
}
