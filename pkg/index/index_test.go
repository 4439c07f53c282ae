package index

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kitcat/pkg/object"
)

func sampleHash(b byte) object.Hash {
	raw := bytes.Repeat([]byte{b}, 20)
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 40)
	for i, v := range raw {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return object.Hash(out)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	idx := New()
	idx.Put(EntryFromFileInfo("a.txt", sampleHash(0x01), 0o100644, 12, time.Unix(1000, 0)))
	idx.Put(EntryFromFileInfo("b/c.txt", sampleHash(0x02), 0o100644, 34, time.Unix(2000, 0)))

	data, err := idx.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.HasPrefix(data, []byte(magic)) {
		t.Fatalf("expected DIRC magic prefix, got %q", data[:4])
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Entries))
	}
	e, ok := got.Get("a.txt")
	if !ok || e.Hash != sampleHash(0x01) || e.Size != 12 {
		t.Errorf("unexpected entry for a.txt: %+v", e)
	}
}

func TestUnmarshalRejectsBadMagic(t *testing.T) {
	_, err := Unmarshal([]byte("NOTDIRC....................................."))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestUnmarshalRejectsBadChecksum(t *testing.T) {
	idx := New()
	idx.Put(EntryFromFileInfo("x", sampleHash(0x03), 0o100644, 1, time.Unix(1, 0)))
	data, _ := idx.Marshal()
	data[len(data)-1] ^= 0xFF
	_, err := Unmarshal(data)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestPathsSorted(t *testing.T) {
	idx := New()
	idx.Put(EntryFromFileInfo("z", sampleHash(1), 0o100644, 0, time.Unix(0, 0)))
	idx.Put(EntryFromFileInfo("a", sampleHash(2), 0o100644, 0, time.Unix(0, 0)))
	paths := idx.Paths()
	if paths[0] != "a" || paths[1] != "z" {
		t.Errorf("expected sorted paths, got %v", paths)
	}
}

func TestConflictStaging(t *testing.T) {
	idx := New()
	base := EntryFromFileInfo("f", sampleHash(1), 0o100644, 1, time.Unix(0, 0))
	ours := EntryFromFileInfo("f", sampleHash(2), 0o100644, 1, time.Unix(0, 0))
	theirs := EntryFromFileInfo("f", sampleHash(3), 0o100644, 1, time.Unix(0, 0))
	idx.PutConflict("f", &base, &ours, &theirs)

	if !idx.IsConflicted("f") {
		t.Error("expected path to be conflicted")
	}
	if !idx.HasConflicts() {
		t.Error("expected index to report conflicts")
	}
	if _, ok := idx.Get("f"); ok {
		t.Error("conflicted path should have no normal-stage entry")
	}

	data, err := idx.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !got.IsConflicted("f") {
		t.Error("round-tripped index lost conflict state")
	}
	if len(got.Entries["f"]) != 3 {
		t.Errorf("expected 3 staged sides, got %d", len(got.Entries["f"]))
	}
}

func TestResolvingConflictReplacesStages(t *testing.T) {
	idx := New()
	base := EntryFromFileInfo("f", sampleHash(1), 0o100644, 1, time.Unix(0, 0))
	idx.PutConflict("f", &base, &base, &base)
	idx.Put(EntryFromFileInfo("f", sampleHash(4), 0o100644, 1, time.Unix(0, 0)))
	if idx.IsConflicted("f") {
		t.Error("expected conflict to be cleared by Put")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := New()
	idx.Put(EntryFromFileInfo("a", sampleHash(9), 0o100644, 5, time.Unix(42, 0)))
	if err := idx.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.lock")); !os.IsNotExist(err) {
		t.Error("expected lockfile to be renamed away after Save")
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, ok := loaded.Get("a")
	if !ok || e.Hash != sampleHash(9) {
		t.Errorf("unexpected loaded entry: %+v", e)
	}
}

func TestLoadMissingIndexReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	idx, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(idx.Entries) != 0 {
		t.Errorf("expected empty index, got %d entries", len(idx.Entries))
	}
}

func TestSaveTimesOutWhenLockHeld(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "index.lock")
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		t.Fatalf("create lock: %v", err)
	}
	defer f.Close()

	idx := New()
	if err := idx.Save(dir); err == nil {
		t.Fatal("expected Save to fail once the lock wait deadline elapses")
	}
}
