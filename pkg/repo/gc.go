package repo

import (
	"fmt"

	"kitcat/pkg/object"
)

// GCSummary reports what GC packed.
type GCSummary struct {
	PackedObjects int
	PackID        string
}

// GC compacts every loose object reachable from a ref (any branch, plus a
// detached HEAD) into a single pack file under objects/pack/, per the pack
// format's whole-object + index layout.
func (r *Repo) GC() (*GCSummary, error) {
	roots, err := r.collectRoots()
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}

	reachable, err := r.reachableObjects(roots)
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}
	if len(reachable) == 0 {
		return &GCSummary{}, nil
	}

	hashes := make([]object.Hash, 0, len(reachable))
	for h := range reachable {
		hashes = append(hashes, h)
	}

	packID := string(hashes[0])[:12]
	readFn := func(h object.Hash) (object.ObjectType, []byte, error) {
		return r.Store.Read(string(h))
	}
	if err := object.WritePack(packDir(r.GotDir), packID, hashes, readFn); err != nil {
		return nil, fmt.Errorf("gc: write pack: %w", err)
	}

	for h := range reachable {
		if err := r.Store.RemoveLoose(h); err != nil {
			r.log.Op("gc").Sugar().Warnw("failed to remove loose object after packing", "hash", h, "error", err)
		}
	}

	if packs, err := object.LoadPackSet(packDir(r.GotDir)); err == nil {
		r.Store.UsePacks(packs)
	}

	r.log.Op("gc").Sugar().Debugw("packed objects", "count", len(reachable), "pack", packID)
	return &GCSummary{PackedObjects: len(reachable), PackID: packID}, nil
}

func (r *Repo) collectRoots() ([]object.Hash, error) {
	var roots []object.Hash
	branches, err := r.Refs.ListBranches()
	if err != nil {
		return nil, err
	}
	for _, b := range branches {
		h, err := r.Refs.Resolve(b)
		if err != nil {
			continue
		}
		roots = append(roots, h)
	}
	if _, detached, err := r.Refs.Head(); err == nil && detached {
		if h, err := r.Refs.Resolve("HEAD"); err == nil {
			roots = append(roots, h)
		}
	}
	return roots, nil
}

// reachableObjects walks every commit reachable from roots (via all
// parents, not just first), along with each commit's full tree (including
// subtrees and blobs), returning the complete reachable hash set.
func (r *Repo) reachableObjects(roots []object.Hash) (map[object.Hash]bool, error) {
	seen := make(map[object.Hash]bool)
	var visitCommit func(h object.Hash) error
	visitCommit = func(h object.Hash) error {
		if h == "" || seen[h] {
			return nil
		}
		seen[h] = true
		commit, err := r.Store.ReadCommit(string(h))
		if err != nil {
			return err
		}
		if err := r.visitTree(commit.TreeHash, seen); err != nil {
			return err
		}
		for _, p := range commit.Parents {
			if err := visitCommit(p); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := visitCommit(root); err != nil {
			return nil, err
		}
	}
	return seen, nil
}

func (r *Repo) visitTree(h object.Hash, seen map[object.Hash]bool) error {
	if h == "" || seen[h] {
		return nil
	}
	seen[h] = true
	tree, err := r.Store.ReadTree(string(h))
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		if e.IsDir {
			if err := r.visitTree(e.Hash, seen); err != nil {
				return err
			}
		} else {
			seen[e.Hash] = true
		}
	}
	return nil
}
