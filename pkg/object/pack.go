package object

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zlib"

	"kitcat/internal/kcerr"
)

// Pack files are an optional compaction of the loose object store (§4.15):
// a sequence of whole-object records concatenated into objects/pack/<id>.pack,
// with a companion objects/pack/<id>.idx mapping hash -> byte offset.

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

const packIndexVersion = 1

// encodePackEntry builds one whole-object record: "<type> <len>\0" + raw
// content, zlib-compressed as a unit (mirroring the loose object envelope).
func encodePackEntry(typ ObjectType, body []byte) ([]byte, error) {
	envelope := append([]byte(fmt.Sprintf("%s %d\x00", typ, len(body))), body...)
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(envelope); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePack writes a pack file plus its index for the given hashes, reading
// each object's canonical form via read. The files are named <id>.pack and
// <id>.idx under dir, with id chosen by the caller; only an error is returned.
func WritePack(dir string, id string, hashes []Hash, read func(Hash) (ObjectType, []byte, error)) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kcerr.NewIo("mkdir pack dir", err)
	}

	sorted := append([]Hash(nil), hashes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var packBuf bytes.Buffer
	packBuf.Write(packMagic[:])
	var numBuf [4]byte
	binary.BigEndian.PutUint32(numBuf[:], uint32(len(sorted)))
	packBuf.Write(numBuf[:])

	type offsetEntry struct {
		hash   Hash
		offset uint32
	}
	offsets := make([]offsetEntry, 0, len(sorted))

	for _, h := range sorted {
		typ, body, err := read(h)
		if err != nil {
			return err
		}
		rec, err := encodePackEntry(typ, body)
		if err != nil {
			return kcerr.NewIo("encode pack entry", err)
		}
		offsets = append(offsets, offsetEntry{hash: h, offset: uint32(packBuf.Len())})
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(rec)))
		packBuf.Write(lenBuf[:])
		packBuf.Write(rec)
	}

	packPath := filepath.Join(dir, id+".pack")
	if err := os.WriteFile(packPath, packBuf.Bytes(), 0o644); err != nil {
		return kcerr.NewIo("write pack file", err)
	}

	var idxBuf bytes.Buffer
	var verBuf [4]byte
	binary.BigEndian.PutUint32(verBuf[:], packIndexVersion)
	idxBuf.Write(verBuf[:])
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(offsets)))
	idxBuf.Write(countBuf[:])
	for _, e := range offsets {
		raw, err := hex.DecodeString(string(e.hash))
		if err != nil || len(raw) != 20 {
			return kcerr.NewCorrupt("pack index: bad hash", err)
		}
		idxBuf.Write(raw)
		var off [4]byte
		binary.BigEndian.PutUint32(off[:], e.offset)
		idxBuf.Write(off[:])
	}
	idxPath := filepath.Join(dir, id+".idx")
	if err := os.WriteFile(idxPath, idxBuf.Bytes(), 0o644); err != nil {
		return kcerr.NewIo("write pack index", err)
	}
	return nil
}

// PackSet is a read-only view over every pack under a directory, consulted
// by Store on loose-object misses.
type PackSet struct {
	dir   string
	packs []*openPack
}

type openPack struct {
	path    string
	entries []packIdxEntry
}

type packIdxEntry struct {
	hash   Hash
	offset uint32
}

// LoadPackSet opens every *.idx/*.pack pair found under dir (objects/pack/).
func LoadPackSet(dir string) (*PackSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &PackSet{dir: dir}, nil
		}
		return nil, kcerr.NewIo("list pack dir", err)
	}

	ps := &PackSet{dir: dir}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".idx") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".idx")
		idxData, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		if len(idxData) < 8 {
			continue
		}
		count := binary.BigEndian.Uint32(idxData[4:8])
		op := &openPack{path: filepath.Join(dir, base+".pack")}
		pos := 8
		for i := uint32(0); i < count; i++ {
			if pos+24 > len(idxData) {
				break
			}
			h := Hash(hex.EncodeToString(idxData[pos : pos+20]))
			off := binary.BigEndian.Uint32(idxData[pos+20 : pos+24])
			op.entries = append(op.entries, packIdxEntry{hash: h, offset: off})
			pos += 24
		}
		ps.packs = append(ps.packs, op)
	}
	return ps, nil
}

func (ps *PackSet) find(h Hash) (*openPack, uint32, bool) {
	if ps == nil {
		return nil, 0, false
	}
	for _, p := range ps.packs {
		for _, e := range p.entries {
			if e.hash == h {
				return p, e.offset, true
			}
		}
	}
	return nil, 0, false
}

// Has reports whether h is present in any loaded pack.
func (ps *PackSet) Has(h Hash) bool {
	_, _, ok := ps.find(h)
	return ok
}

// ResolvePrefix returns every hash across all packs matching the given
// lowercase hex prefix.
func (ps *PackSet) ResolvePrefix(prefix string) []Hash {
	if ps == nil {
		return nil
	}
	var out []Hash
	for _, p := range ps.packs {
		for _, e := range p.entries {
			if strings.HasPrefix(string(e.hash), prefix) {
				out = append(out, e.hash)
			}
		}
	}
	return out
}

// Read decodes the object stored at h within any loaded pack.
func (ps *PackSet) Read(h Hash) (ObjectType, []byte, error) {
	p, offset, ok := ps.find(h)
	if !ok {
		return "", nil, kcerr.NewNotFound(fmt.Sprintf("object %s not in any pack", h))
	}
	f, err := os.Open(p.path)
	if err != nil {
		return "", nil, kcerr.NewIo("open pack file", err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return "", nil, kcerr.NewIo("seek pack file", err)
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return "", nil, kcerr.NewCorrupt("pack entry length", err)
	}
	recLen := binary.BigEndian.Uint32(lenBuf[:])
	rec := make([]byte, recLen)
	if _, err := io.ReadFull(f, rec); err != nil {
		return "", nil, kcerr.NewCorrupt("pack entry body", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(rec))
	if err != nil {
		return "", nil, kcerr.NewCorrupt("pack entry decompress", err)
	}
	defer zr.Close()
	envelope, err := io.ReadAll(zr)
	if err != nil {
		return "", nil, kcerr.NewCorrupt("pack entry decompress", err)
	}

	nulIdx := bytes.IndexByte(envelope, 0)
	if nulIdx < 0 {
		return "", nil, kcerr.NewCorrupt("pack entry: missing header terminator", nil)
	}
	header := string(envelope[:nulIdx])
	content := envelope[nulIdx+1:]
	fields := strings.SplitN(header, " ", 2)
	if len(fields) != 2 {
		return "", nil, kcerr.NewCorrupt("pack entry: malformed header", nil)
	}
	return ObjectType(fields[0]), content, nil
}
