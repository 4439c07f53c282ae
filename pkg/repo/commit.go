package repo

import (
	"fmt"
	"time"

	"kitcat/internal/kcerr"
	"kitcat/pkg/object"
)

// Commit creates a new commit from the current staging area.
//
//  1. Read the repository identity from config, rejecting an unset one.
//  2. Refuse while the index has unresolved conflicts.
//  3. Build a tree from the index.
//  4. Resolve HEAD to find the parent commit, if any.
//  5. Write the commit object and advance the current branch (or detached
//     HEAD) with a compare-and-swap ref update.
func (r *Repo) Commit(message string) (object.Hash, error) {
	cfg, err := r.Config()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if cfg.User.Name == "" || cfg.User.Email == "" {
		return "", kcerr.NewInvalidArgument("commit: identity required (set user.name and user.email)")
	}

	idx, err := r.Index()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if idx.HasConflicts() {
		return "", kcerr.NewConflictsPending("commit: index has unresolved conflicts")
	}
	if len(idx.Entries) == 0 {
		return "", kcerr.NewInvalidArgument("commit: nothing staged")
	}

	treeHash, err := r.BuildTree(idx)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	var parents []object.Hash
	parentHash, err := r.Refs.Resolve("HEAD")
	if err == nil && parentHash != "" {
		parents = append(parents, parentHash)
	}

	identity := identityNow(cfg.User.Name, cfg.User.Email)
	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    identity,
		Committer: identity,
		Message:   message,
	}

	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	if err := r.advanceHead(commitHash, parentHash); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return commitHash, nil
}

// advanceHead moves the current branch (or, if detached, HEAD itself) to
// newHash, using a compare-and-swap against the old parent hash so a
// concurrent update is detected rather than silently overwritten.
func (r *Repo) advanceHead(newHash, oldHash object.Hash) error {
	branch, err := r.Refs.CurrentBranch()
	if err != nil {
		return err
	}
	var expected *object.Hash
	if oldHash != "" {
		expected = &oldHash
	}
	if branch != "" {
		return r.Refs.Update("refs/heads/"+branch, newHash, expected)
	}
	return r.Refs.SetHeadDetached(newHash, expected)
}

func identityNow(name, email string) object.Identity {
	now := time.Now()
	return object.Identity{
		Name:     name,
		Email:    email,
		Seconds:  now.Unix(),
		TZOffset: now.Format("-0700"),
	}
}

// Log walks the commit history starting from start, visiting every parent
// depth-first (first parent first), returning up to limit commits in visit
// order: start first, and past a merge the first parent's unvisited history
// before the later parents'. limit <= 0 means no limit.
func (r *Repo) Log(start object.Hash, limit int) ([]*object.CommitObj, error) {
	var commits []*object.CommitObj
	visited := make(map[object.Hash]bool)
	stack := []object.Hash{start}

	for len(stack) > 0 {
		if limit > 0 && len(commits) >= limit {
			break
		}
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == "" || visited[current] {
			continue
		}
		visited[current] = true

		c, err := r.Store.ReadCommit(string(current))
		if err != nil {
			if kcerr.Is(err, kcerr.NotFound) {
				continue
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		commits = append(commits, c)

		// Push in reverse so the first parent is popped (and thus visited)
		// before later parents, keeping the walk first-parent-first.
		for i := len(c.Parents) - 1; i >= 0; i-- {
			stack = append(stack, c.Parents[i])
		}
	}

	return commits, nil
}
