package object

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	lru "github.com/hashicorp/golang-lru/v2"

	"kitcat/internal/kcerr"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123... Each file holds the zlib-
// compressed canonical envelope "<type> <len>\0<content>".
type Store struct {
	root  string
	cache *lru.Cache[Hash, cachedObject]
	// packs, when non-nil, is consulted after a loose-object miss.
	packs *PackSet
}

type cachedObject struct {
	typ      ObjectType
	body     []byte
	size     int64
	modTime  int64
	fromPack bool
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write. cacheSize <= 0 disables
// the read cache.
func NewStore(root string, cacheSize int) *Store {
	var cache *lru.Cache[Hash, cachedObject]
	if cacheSize > 0 {
		cache, _ = lru.New[Hash, cachedObject](cacheSize)
	}
	return &Store{root: root, cache: cache}
}

// UsePacks attaches an (optional) pack set consulted on loose-object misses.
func (s *Store) UsePacks(p *PackSet) { s.packs = p }

func (s *Store) shardDir(prefix2 string) string {
	return filepath.Join(s.root, "objects", prefix2)
}

func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given full hash.
func (s *Store) Has(h Hash) bool {
	if _, err := os.Stat(s.objectPath(h)); err == nil {
		return true
	}
	if s.packs != nil && s.packs.Has(h) {
		return true
	}
	return false
}

// Write stores an object and returns its content hash, compressing the
// canonical envelope with zlib. Writing an existing object is a no-op.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)
	if s.Has(h) {
		return h, nil
	}

	envelope := append([]byte(fmt.Sprintf("%s %d\x00", objType, len(data))), data...)
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(envelope); err != nil {
		zw.Close()
		return "", kcerr.NewIo("compress object", err)
	}
	if err := zw.Close(); err != nil {
		return "", kcerr.NewIo("compress object", err)
	}

	dir := s.shardDir(string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", kcerr.NewIo("mkdir object shard", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", kcerr.NewIo("create temp object", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", kcerr.NewIo("write object", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", kcerr.NewIo("close temp object", err)
	}

	dest := s.objectPath(h)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", kcerr.NewIo("rename object into place", err)
	}

	if s.cache != nil {
		if size, modTime, statErr := statSig(dest); statErr == nil {
			s.cache.Add(h, cachedObject{typ: objType, body: data, size: size, modTime: modTime})
		}
	}
	return h, nil
}

// statSig returns a (size, mtime) pair used to detect whether a loose object
// file on disk still matches what a cache entry was populated from.
func statSig(path string) (int64, int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return fi.Size(), fi.ModTime().UnixNano(), nil
}

// Read retrieves an object by full hash or unambiguous hex prefix (>= 4
// chars), verifying content integrity against the hash. A cached entry is
// only served when the backing loose-object file's size and mtime still
// match what was cached; otherwise the file is re-read and re-verified from
// disk, so tampering with an object after it has been cached is still
// detected. Pack-sourced entries (fromPack) have no loose file to drift out
// from under the cache and are always served as cached.
func (s *Store) Read(hashOrPrefix string) (ObjectType, []byte, error) {
	h, err := s.Resolve(hashOrPrefix)
	if err != nil {
		return "", nil, err
	}

	objPath := s.objectPath(h)
	if s.cache != nil {
		if co, ok := s.cache.Get(h); ok {
			if co.fromPack {
				return co.typ, co.body, nil
			}
			if size, modTime, statErr := statSig(objPath); statErr == nil && size == co.size && modTime == co.modTime {
				return co.typ, co.body, nil
			}
			s.cache.Remove(h)
		}
	}

	raw, err := os.ReadFile(objPath)
	if err != nil {
		if os.IsNotExist(err) && s.packs != nil {
			typ, body, perr := s.packs.Read(h)
			if perr == nil {
				if HashObject(typ, body) != h {
					return "", nil, kcerr.NewCorrupt(fmt.Sprintf("object %s: hash mismatch on pack read", h), nil)
				}
				if s.cache != nil {
					s.cache.Add(h, cachedObject{typ: typ, body: body, fromPack: true})
				}
				return typ, body, nil
			}
		}
		return "", nil, kcerr.NewNotFound(fmt.Sprintf("object %s not found", h))
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", nil, kcerr.NewCorrupt(fmt.Sprintf("object %s: decompress", h), err)
	}
	envelope, err := io.ReadAll(zr)
	zr.Close()
	if err != nil {
		return "", nil, kcerr.NewCorrupt(fmt.Sprintf("object %s: decompress", h), err)
	}

	nulIdx := bytes.IndexByte(envelope, 0)
	if nulIdx < 0 {
		return "", nil, kcerr.NewCorrupt(fmt.Sprintf("object %s: missing header terminator", h), nil)
	}
	header := string(envelope[:nulIdx])
	content := envelope[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, kcerr.NewCorrupt(fmt.Sprintf("object %s: invalid header %q", h, header), nil)
	}
	objType := ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil || len(content) != length {
		return "", nil, kcerr.NewCorrupt(fmt.Sprintf("object %s: length mismatch", h), err)
	}

	if HashObject(objType, content) != h {
		return "", nil, kcerr.NewCorrupt(fmt.Sprintf("object %s: hash mismatch on read", h), nil)
	}

	if s.cache != nil {
		if size, modTime, statErr := statSig(objPath); statErr == nil {
			s.cache.Add(h, cachedObject{typ: objType, body: content, size: size, modTime: modTime})
		}
	}
	return objType, content, nil
}

// Resolve expands a full hash or an unambiguous hex prefix (>= 4 chars) into
// a full 40-character Hash, scanning only the matching shard directory.
func (s *Store) Resolve(hashOrPrefix string) (Hash, error) {
	if len(hashOrPrefix) == 40 {
		h := Hash(strings.ToLower(hashOrPrefix))
		if !h.Valid() {
			return "", kcerr.NewInvalidArgument(fmt.Sprintf("malformed hash %q", hashOrPrefix))
		}
		return h, nil
	}
	if !ValidPrefix(hashOrPrefix) {
		return "", kcerr.NewInvalidArgument(fmt.Sprintf("hash prefix %q must be >= 4 hex characters", hashOrPrefix))
	}
	prefix := strings.ToLower(hashOrPrefix)

	var candidates []Hash
	shard2 := prefix[:2]
	entries, err := os.ReadDir(s.shardDir(shard2))
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			full := shard2 + e.Name()
			if strings.HasPrefix(full, prefix) {
				candidates = append(candidates, Hash(full))
			}
		}
	}
	if s.packs != nil {
		candidates = append(candidates, s.packs.ResolvePrefix(prefix)...)
	}

	switch len(dedupHashes(candidates)) {
	case 0:
		return "", kcerr.NewNotFound(fmt.Sprintf("no object matches prefix %q", hashOrPrefix))
	case 1:
		return dedupHashes(candidates)[0], nil
	default:
		return "", kcerr.NewAmbiguousHash(fmt.Sprintf("prefix %q is ambiguous", hashOrPrefix))
	}
}

func dedupHashes(hs []Hash) []Hash {
	seen := make(map[Hash]struct{}, len(hs))
	out := hs[:0:0]
	for _, h := range hs {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

func (s *Store) WriteBlob(b *Blob) (Hash, error) { return s.Write(TypeBlob, MarshalBlob(b)) }

func (s *Store) ReadBlob(hashOrPrefix string) (*Blob, error) {
	objType, data, err := s.Read(hashOrPrefix)
	if err != nil {
		return nil, err
	}
	if objType != TypeBlob {
		return nil, kcerr.NewCorrupt(fmt.Sprintf("object %s: expected blob, got %s", hashOrPrefix, objType), nil)
	}
	return UnmarshalBlob(data)
}

func (s *Store) WriteTree(tr *TreeObj) (Hash, error) { return s.Write(TypeTree, MarshalTree(tr)) }

func (s *Store) ReadTree(hashOrPrefix string) (*TreeObj, error) {
	objType, data, err := s.Read(hashOrPrefix)
	if err != nil {
		return nil, err
	}
	if objType != TypeTree {
		return nil, kcerr.NewCorrupt(fmt.Sprintf("object %s: expected tree, got %s", hashOrPrefix, objType), nil)
	}
	return UnmarshalTree(data)
}

func (s *Store) WriteCommit(c *CommitObj) (Hash, error) { return s.Write(TypeCommit, MarshalCommit(c)) }

func (s *Store) ReadCommit(hashOrPrefix string) (*CommitObj, error) {
	objType, data, err := s.Read(hashOrPrefix)
	if err != nil {
		return nil, err
	}
	if objType != TypeCommit {
		return nil, kcerr.NewCorrupt(fmt.Sprintf("object %s: expected commit, got %s", hashOrPrefix, objType), nil)
	}
	return UnmarshalCommit(data)
}

// AllHashes lists every loose object hash in the store (used by gc/pack).
func (s *Store) AllHashes() ([]Hash, error) {
	objectsDir := filepath.Join(s.root, "objects")
	shards, err := os.ReadDir(objectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, kcerr.NewIo("list object shards", err)
	}
	var out []Hash
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(objectsDir, shard.Name()))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			h := Hash(shard.Name() + e.Name())
			if h.Valid() {
				out = append(out, h)
			}
		}
	}
	return out, nil
}

// RemoveLoose deletes the loose file for h (used after packing).
func (s *Store) RemoveLoose(h Hash) error {
	err := os.Remove(s.objectPath(h))
	if err != nil && !os.IsNotExist(err) {
		return kcerr.NewIo("remove loose object", err)
	}
	return nil
}
