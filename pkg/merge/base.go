package merge

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"kitcat/internal/kcerr"
	"kitcat/pkg/object"
)

// CommitReader resolves a commit hash to its object; the merge-base search
// depends only on this, not on a concrete store, so it can be exercised by
// repo.Repo or by a test double.
type CommitReader interface {
	ReadCommit(hashOrPrefix string) (*object.CommitObj, error)
}

// BaseFinder finds lowest-common-ancestor commits, memoizing results across
// calls in a bounded LRU so repeated merges of the same two branches skip
// the graph walk entirely.
type BaseFinder struct {
	reader CommitReader
	cache  *lru.Cache[basePairKey, object.Hash]
}

// basePairKey caches by exact (ours, theirs) call order, not by an
// order-independent canonical pair: Find's BFS is directional (it collects
// everything reachable from ours, then searches from theirs), so in a
// criss-cross history with two valid common ancestors, Find(A, B) and
// Find(B, A) can legitimately return different commits. Canonicalizing the
// key would let whichever call runs first silently answer the other.
type basePairKey struct{ ours, theirs object.Hash }

// NewBaseFinder builds a BaseFinder backed by reader, memoizing up to
// cacheSize distinct commit pairs.
func NewBaseFinder(reader CommitReader, cacheSize int) *BaseFinder {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, _ := lru.New[basePairKey, object.Hash](cacheSize)
	return &BaseFinder{reader: reader, cache: cache}
}

// Find returns the lowest common ancestor of ours and theirs. BFS from ours
// collects every reachable commit; BFS from theirs stops at the first
// commit already seen from ours.
func (bf *BaseFinder) Find(ours, theirs object.Hash) (object.Hash, error) {
	if ours == theirs {
		return ours, nil
	}
	key := basePairKey{ours: ours, theirs: theirs}
	if h, ok := bf.cache.Get(key); ok {
		return h, nil
	}

	reachableFromOurs, err := bf.reachable(ours)
	if err != nil {
		return "", err
	}

	visited := map[object.Hash]bool{}
	queue := []object.Hash{theirs}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == "" || visited[h] {
			continue
		}
		visited[h] = true
		if reachableFromOurs[h] {
			bf.cache.Add(key, h)
			return h, nil
		}
		c, err := bf.reader.ReadCommit(string(h))
		if err != nil {
			return "", fmt.Errorf("find merge base: read commit %s: %w", h, err)
		}
		queue = append(queue, c.Parents...)
	}

	return "", kcerr.NewNoCommonAncestor(fmt.Sprintf("no common ancestor between %s and %s", ours, theirs))
}

func (bf *BaseFinder) reachable(start object.Hash) (map[object.Hash]bool, error) {
	seen := map[object.Hash]bool{}
	queue := []object.Hash{start}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		c, err := bf.reader.ReadCommit(string(h))
		if err != nil {
			return nil, fmt.Errorf("find merge base: read commit %s: %w", h, err)
		}
		queue = append(queue, c.Parents...)
	}
	return seen, nil
}

// IsAncestor reports whether candidate is reachable from start by following
// parent links (candidate == start counts as an ancestor).
func (bf *BaseFinder) IsAncestor(candidate, start object.Hash) (bool, error) {
	reachable, err := bf.reachable(start)
	if err != nil {
		return false, err
	}
	return reachable[candidate], nil
}
