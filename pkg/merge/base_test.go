package merge

import (
	"errors"
	"testing"

	"kitcat/pkg/object"
)

var errCommitNotFound = errors.New("commit not found")

type fakeCommits map[object.Hash]*object.CommitObj

func (f fakeCommits) ReadCommit(hashOrPrefix string) (*object.CommitObj, error) {
	h := object.Hash(hashOrPrefix)
	c, ok := f[h]
	if !ok {
		return nil, errCommitNotFound
	}
	return c, nil
}

// linear: a -> b -> c, branch: b -> d
func buildLinearHistory() fakeCommits {
	return fakeCommits{
		"a": {TreeHash: "t", Parents: nil},
		"b": {TreeHash: "t", Parents: []object.Hash{"a"}},
		"c": {TreeHash: "t", Parents: []object.Hash{"b"}},
		"d": {TreeHash: "t", Parents: []object.Hash{"b"}},
	}
}

func TestBaseFinderCommonAncestor(t *testing.T) {
	bf := NewBaseFinder(buildLinearHistory(), 8)
	base, err := bf.Find("c", "d")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if base != "b" {
		t.Errorf("got base %q, want %q", base, "b")
	}
}

func TestBaseFinderSameCommit(t *testing.T) {
	bf := NewBaseFinder(buildLinearHistory(), 8)
	base, err := bf.Find("c", "c")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if base != "c" {
		t.Errorf("got base %q, want %q", base, "c")
	}
}

func TestBaseFinderDirectAncestor(t *testing.T) {
	bf := NewBaseFinder(buildLinearHistory(), 8)
	base, err := bf.Find("c", "a")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if base != "a" {
		t.Errorf("got base %q, want %q", base, "a")
	}
}

func TestBaseFinderNoCommonAncestor(t *testing.T) {
	commits := fakeCommits{
		"x": {TreeHash: "t"},
		"y": {TreeHash: "t"},
	}
	bf := NewBaseFinder(commits, 8)
	_, err := bf.Find("x", "y")
	if err == nil {
		t.Fatal("expected error for disjoint histories")
	}
}

func TestBaseFinderCachesResult(t *testing.T) {
	history := buildLinearHistory()
	bf := NewBaseFinder(history, 8)
	if _, err := bf.Find("c", "d"); err != nil {
		t.Fatalf("Find: %v", err)
	}
	delete(history, "b")
	base, err := bf.Find("c", "d")
	if err != nil {
		t.Fatalf("Find (cached): %v", err)
	}
	if base != "b" {
		t.Errorf("cached lookup got %q, want %q", base, "b")
	}
}

// A cached Find(ours, theirs) result must not be served back for the
// swapped call Find(theirs, ours): the search is directional, so caching by
// an order-independent key could silently hand one call the other's answer
// in histories where they legitimately differ. Deleting "b" after the first
// call means a swapped lookup that wrongly reused the cache would still
// succeed; here it correctly has to recompute and fails since "b" is gone.
func TestBaseFinderDoesNotShareCacheAcrossSwappedArgs(t *testing.T) {
	history := buildLinearHistory()
	bf := NewBaseFinder(history, 8)
	if _, err := bf.Find("c", "d"); err != nil {
		t.Fatalf("Find: %v", err)
	}
	delete(history, "b")
	if _, err := bf.Find("d", "c"); err == nil {
		t.Error("expected swapped-argument lookup to recompute (and fail) rather than reuse the cached entry")
	}
}

// criss-cross: a -> b1, a -> b2, then two merges each combining b1 and b2 in
// opposite parent order. Both b1 and b2 are valid common ancestors of the
// two merges, so which one Find returns legitimately depends on which side
// it's asked to search from first.
func buildCrissCrossHistory() fakeCommits {
	return fakeCommits{
		"a":  {TreeHash: "t"},
		"b1": {TreeHash: "t", Parents: []object.Hash{"a"}},
		"b2": {TreeHash: "t", Parents: []object.Hash{"a"}},
		"m1": {TreeHash: "t", Parents: []object.Hash{"b1", "b2"}},
		"m2": {TreeHash: "t", Parents: []object.Hash{"b2", "b1"}},
	}
}

func TestBaseFinderCrissCrossDirectionDependent(t *testing.T) {
	bf := NewBaseFinder(buildCrissCrossHistory(), 8)

	forward, err := bf.Find("m1", "m2")
	if err != nil {
		t.Fatalf("Find(m1, m2): %v", err)
	}
	if forward != "b2" {
		t.Fatalf("Find(m1, m2) = %q, want %q", forward, "b2")
	}

	backward, err := bf.Find("m2", "m1")
	if err != nil {
		t.Fatalf("Find(m2, m1): %v", err)
	}
	if backward != "b1" {
		t.Fatalf("Find(m2, m1) = %q, want %q", backward, "b1")
	}
}

func TestBaseFinderIsAncestor(t *testing.T) {
	bf := NewBaseFinder(buildLinearHistory(), 8)
	ok, err := bf.IsAncestor("a", "c")
	if err != nil {
		t.Fatalf("IsAncestor: %v", err)
	}
	if !ok {
		t.Error("expected a to be an ancestor of c")
	}
	ok, err = bf.IsAncestor("d", "c")
	if err != nil {
		t.Fatalf("IsAncestor: %v", err)
	}
	if ok {
		t.Error("expected d not to be an ancestor of c")
	}
}
