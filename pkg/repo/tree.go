package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"kitcat/internal/kcerr"
	"kitcat/pkg/index"
	"kitcat/pkg/object"
)

// TreeFileEntry is a single file within a flattened tree.
type TreeFileEntry struct {
	Path string
	Hash object.Hash
	Mode string
}

// BuildTree converts the index's flat, path-sorted entries into a nested
// tree, writing every TreeObj level to the store and returning the root
// hash. Conflicted paths (no normal-stage entry) are skipped; commit,
// merge and cherry-pick only build a tree once the index has no conflicts
// left.
func (r *Repo) BuildTree(idx *index.Index) (object.Hash, error) {
	entries := make(map[string]index.Entry)
	for _, p := range idx.Paths() {
		if e, ok := idx.Get(p); ok {
			entries[p] = e
		}
	}
	return r.buildTreeDir(entries, "")
}

func (r *Repo) buildTreeDir(entries map[string]index.Entry, prefix string) (object.Hash, error) {
	files := make(map[string]index.Entry)
	subdirs := make(map[string]struct{})

	for p, e := range entries {
		var rel string
		if prefix == "" {
			rel = p
		} else {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}

		if slash := strings.IndexByte(rel, '/'); slash < 0 {
			files[rel] = e
		} else {
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	names := make([]string, 0, len(files)+len(subdirs))
	for name := range files {
		names = append(names, name)
	}
	for name := range subdirs {
		if _, isFile := files[name]; !isFile {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return treeSortKey(names[i], isDir(names[i], files)) < treeSortKey(names[j], isDir(names[j], files))
	})

	var treeEntries []object.TreeEntry
	for _, name := range names {
		if e, ok := files[name]; ok {
			treeEntries = append(treeEntries, object.TreeEntry{
				Name:  name,
				Mode:  treeModeFromBits(e.Mode),
				IsDir: false,
				Hash:  e.Hash,
			})
			continue
		}
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		subHash, err := r.buildTreeDir(entries, childPrefix)
		if err != nil {
			return "", fmt.Errorf("build tree %q: %w", childPrefix, err)
		}
		treeEntries = append(treeEntries, object.TreeEntry{
			Name:  name,
			Mode:  object.TreeModeDir,
			IsDir: true,
			Hash:  subHash,
		})
	}

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: treeEntries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

func isDir(name string, files map[string]index.Entry) bool {
	_, ok := files[name]
	return !ok
}

func treeSortKey(name string, dir bool) string {
	if dir {
		return name + "/"
	}
	return name
}

// FlattenTree recursively walks a tree object, returning every file entry
// with its full slash-joined path.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	return r.flattenTreeRec(h, "")
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	if h == "" {
		return nil, nil
	}
	treeObj, err := r.Store.ReadTree(string(h))
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, e := range treeObj.Entries {
		fullPath := e.Name
		if prefix != "" {
			fullPath = path.Join(prefix, e.Name)
		}
		if e.IsDir {
			sub, err := r.flattenTreeRec(e.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
		} else {
			result = append(result, TreeFileEntry{Path: fullPath, Hash: e.Hash, Mode: e.Mode})
		}
	}
	return result, nil
}

// IndexFromTree builds a fresh index whose entries mirror tree h: each
// entry is the one statOf returns for its path, with the tree's blob hash
// filled in.
func (r *Repo) IndexFromTree(h object.Hash, statOf func(path string) (index.Entry, error)) (*index.Index, error) {
	files, err := r.FlattenTree(h)
	if err != nil {
		return nil, err
	}
	idx := index.New()
	for _, f := range files {
		e, err := statOf(f.Path)
		if err != nil {
			return nil, fmt.Errorf("index from tree: stat %q: %w", f.Path, err)
		}
		e.Hash = f.Hash
		idx.Put(e)
	}
	return idx, nil
}

// headTreeEntries flattens the HEAD commit's tree into path -> (hash,mode),
// returning an empty map when there is no HEAD yet.
func (r *Repo) headTreeEntries() (map[string]TreeFileEntry, error) {
	headHash, err := r.Refs.Resolve("HEAD")
	if err != nil {
		if kcerr.Is(err, kcerr.NotFound) {
			return map[string]TreeFileEntry{}, nil
		}
		return nil, err
	}
	commit, err := r.Store.ReadCommit(string(headHash))
	if err != nil {
		if kcerr.Is(err, kcerr.NotFound) {
			return map[string]TreeFileEntry{}, nil
		}
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
