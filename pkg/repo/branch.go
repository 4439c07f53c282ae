package repo

import (
	"fmt"

	"kitcat/pkg/object"
)

// CreateBranch creates a new branch pointing at target.
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	if err := r.Refs.CreateBranch(name, target); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes a branch. Refuses if it is the current branch or
// does not exist.
func (r *Repo) DeleteBranch(name string) error {
	if err := r.Refs.DeleteBranch(name); err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches returns every local branch name, sorted.
func (r *Repo) ListBranches() ([]string, error) {
	names, err := r.Refs.ListBranches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return names, nil
}

// CurrentBranch returns the checked-out branch name, or "" when HEAD is
// detached.
func (r *Repo) CurrentBranch() (string, error) {
	name, err := r.Refs.CurrentBranch()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	return name, nil
}
