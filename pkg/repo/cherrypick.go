package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"kitcat/internal/kcerr"
	"kitcat/pkg/index"
	"kitcat/pkg/merge"
	"kitcat/pkg/object"
)

// CherryPickReport summarizes the outcome of a cherry-pick attempt.
type CherryPickReport struct {
	Conflicts  []string
	CommitHash object.Hash
}

// CherryPick reapplies commitHash's changes onto HEAD. It reuses the same
// three-way file merge used by Merge, comparing (commit's first-parent
// tree, HEAD tree, commit tree) instead of a merge base. On success it
// writes a single-parent commit carrying the original message plus a
// "(cherry picked from commit ...)" trailer; on conflicts it leaves
// CHERRY_PICK_HEAD and a conflicted index for --continue/--abort.
func (r *Repo) CherryPick(commitHash object.Hash) (*CherryPickReport, error) {
	commit, err := r.Store.ReadCommit(string(commitHash))
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: read %s: %w", commitHash, err)
	}
	var parentHash object.Hash
	if len(commit.Parents) > 0 {
		parentHash = commit.Parents[0]
	}

	oursHash, err := r.Refs.Resolve("HEAD")
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: resolve HEAD: %w", err)
	}

	baseFiles, err := r.commitFileEntries(parentHash)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: %w", err)
	}
	oursFiles, err := r.commitFileEntries(oursHash)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: %w", err)
	}
	theirsFiles, err := r.commitFileEntries(commitHash)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: %w", err)
	}

	label := fmt.Sprintf("%.12s", commitHash)
	idx, conflicts, err := r.resolveThreeWay(baseFiles, oursFiles, theirsFiles, label)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: %w", err)
	}

	if err := r.SaveIndex(idx); err != nil {
		return nil, fmt.Errorf("cherry-pick: %w", err)
	}
	if err := r.Refs.WriteState("CHERRY_PICK_HEAD", commitHash); err != nil {
		return nil, fmt.Errorf("cherry-pick: %w", err)
	}
	if err := r.Refs.WriteStateText("MERGE_MODE", "cherry-pick\n"); err != nil {
		return nil, fmt.Errorf("cherry-pick: %w", err)
	}
	message := commit.Message + fmt.Sprintf("\n\n(cherry picked from commit %s)\n", commitHash)
	if err := r.Refs.WriteStateText("MERGE_MSG", message); err != nil {
		return nil, fmt.Errorf("cherry-pick: %w", err)
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return &CherryPickReport{Conflicts: conflicts}, kcerr.NewConflictsPending(
			fmt.Sprintf("cherry-pick: %d file(s) have conflicts", len(conflicts)))
	}

	newHash, err := r.completeCherryPickCommit(idx, oursHash, message)
	if err != nil {
		return nil, err
	}
	return &CherryPickReport{CommitHash: newHash}, nil
}

// CherryPickContinue finishes a cherry-pick after conflicts have been
// resolved and re-staged.
func (r *Repo) CherryPickContinue() (*CherryPickReport, error) {
	if _, ok, err := r.Refs.ReadState("CHERRY_PICK_HEAD"); err != nil {
		return nil, fmt.Errorf("cherry-pick --continue: %w", err)
	} else if !ok {
		return nil, kcerr.NewInvalidArgument("cherry-pick --continue: no cherry-pick in progress")
	}

	idx, err := r.Index()
	if err != nil {
		return nil, fmt.Errorf("cherry-pick --continue: %w", err)
	}
	if idx.HasConflicts() {
		return nil, kcerr.NewConflictsPending("cherry-pick --continue: unresolved conflicts remain")
	}

	oursHash, err := r.Refs.Resolve("HEAD")
	if err != nil {
		return nil, fmt.Errorf("cherry-pick --continue: %w", err)
	}
	message, err := r.mergeMsgOrDefault()
	if err != nil {
		return nil, fmt.Errorf("cherry-pick --continue: %w", err)
	}

	newHash, err := r.completeCherryPickCommit(idx, oursHash, message)
	if err != nil {
		return nil, err
	}
	return &CherryPickReport{CommitHash: newHash}, nil
}

// CherryPickAbort discards an in-progress cherry-pick.
func (r *Repo) CherryPickAbort() error {
	if _, ok, err := r.Refs.ReadState("CHERRY_PICK_HEAD"); err != nil {
		return fmt.Errorf("cherry-pick --abort: %w", err)
	} else if !ok {
		return kcerr.NewInvalidArgument("cherry-pick --abort: no cherry-pick in progress")
	}

	branch, err := r.Refs.CurrentBranch()
	if err != nil {
		return fmt.Errorf("cherry-pick --abort: %w", err)
	}
	target := branch
	if target == "" {
		head, _, err := r.Refs.Head()
		if err != nil {
			return fmt.Errorf("cherry-pick --abort: %w", err)
		}
		target = head
	}
	if err := r.Checkout(target, true); err != nil {
		return fmt.Errorf("cherry-pick --abort: %w", err)
	}
	r.Refs.RemoveState("CHERRY_PICK_HEAD")
	r.Refs.RemoveState("MERGE_MSG")
	return r.Refs.RemoveState("MERGE_MODE")
}

func (r *Repo) completeCherryPickCommit(idx *index.Index, oursHash object.Hash, message string) (object.Hash, error) {
	cfg, err := r.Config()
	if err != nil {
		return "", fmt.Errorf("cherry-pick: %w", err)
	}
	if cfg.User.Name == "" || cfg.User.Email == "" {
		return "", kcerr.NewInvalidArgument("cherry-pick: identity required (set user.name and user.email)")
	}

	treeHash, err := r.BuildTree(idx)
	if err != nil {
		return "", fmt.Errorf("cherry-pick: %w", err)
	}

	identity := identityNow(cfg.User.Name, cfg.User.Email)
	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   []object.Hash{oursHash},
		Author:    identity,
		Committer: identity,
		Message:   message,
	}
	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("cherry-pick: write commit: %w", err)
	}
	if err := r.advanceHead(commitHash, oursHash); err != nil {
		return "", fmt.Errorf("cherry-pick: %w", err)
	}
	r.Refs.RemoveState("CHERRY_PICK_HEAD")
	r.Refs.RemoveState("MERGE_MSG")
	r.Refs.RemoveState("MERGE_MODE")
	return commitHash, nil
}

func (r *Repo) mergeMsgOrDefault() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.GotDir, "MERGE_MSG"))
	if err != nil {
		return "cherry-pick", nil
	}
	return string(data), nil
}

// resolveThreeWay runs pkg/merge.MergeFile over the union of base/ours/
// theirs paths, writing results to the working tree and returning the
// resulting index plus the list of conflicted paths. Shared by Merge's
// full three-way path and CherryPick.
func (r *Repo) resolveThreeWay(baseFiles, oursFiles, theirsFiles map[string]TreeFileEntry, theirsLabel string) (*index.Index, []string, error) {
	paths := unionPaths(baseFiles, oursFiles, theirsFiles)
	idx := index.New()
	var conflicts []string

	for _, path := range paths {
		b, inBase := baseFiles[path]
		o, inOurs := oursFiles[path]
		t, inTheirs := theirsFiles[path]

		sides := merge.FileSides{
			InBase: inBase, InOurs: inOurs, InTheirs: inTheirs,
			BaseHash: string(b.Hash), OursHash: string(o.Hash), TheirsHash: string(t.Hash),
		}
		if inBase {
			blob, err := r.Store.ReadBlob(string(b.Hash))
			if err != nil {
				return nil, nil, fmt.Errorf("read base blob %q: %w", path, err)
			}
			sides.BaseData = blob.Data
		}
		if inOurs {
			blob, err := r.Store.ReadBlob(string(o.Hash))
			if err != nil {
				return nil, nil, fmt.Errorf("read ours blob %q: %w", path, err)
			}
			sides.OursData = blob.Data
		}
		if inTheirs {
			blob, err := r.Store.ReadBlob(string(t.Hash))
			if err != nil {
				return nil, nil, fmt.Errorf("read theirs blob %q: %w", path, err)
			}
			sides.TheirsData = blob.Data
		}

		result := merge.MergeFile(sides, theirsLabel)
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))

		switch result.Status {
		case merge.StatusDeleted:
			os.Remove(absPath)
			removeEmptyParents(r.RootDir, filepath.Dir(absPath))
			continue

		case merge.StatusConflict:
			conflicts = append(conflicts, path)
			if err := r.writeMergedFile(path, result.Content, o.Mode, t.Mode); err != nil {
				return nil, nil, err
			}
			idx.PutConflict(path, conflictStage(inBase, b), conflictStage(inOurs, o), conflictStage(inTheirs, t))
			continue

		default:
			mode := o.Mode
			if mode == "" {
				mode = t.Mode
			}
			if err := r.writeMergedFile(path, result.Content, mode, mode); err != nil {
				return nil, nil, err
			}
			blobHash, err := r.Store.WriteBlob(&object.Blob{Data: result.Content})
			if err != nil {
				return nil, nil, fmt.Errorf("write blob %q: %w", path, err)
			}
			e, err := r.statEntry(path, blobHash, mode)
			if err != nil {
				return nil, nil, err
			}
			idx.Put(e)
		}
	}

	return idx, conflicts, nil
}
