package repo

import (
	"os"
	"path/filepath"
	"testing"

	"kitcat/pkg/object"
)

// initRepoWithFile creates a temp repo, writes a file, and stages it.
func initRepoWithFile(t *testing.T, name string, content []byte) *Repo {
	t.Helper()
	dir := t.TempDir()
	r, err := initRepo(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	parent := filepath.Dir(filepath.Join(dir, name))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := r.Add([]string{name}); err != nil {
		t.Fatalf("Add(%s): %v", name, err)
	}
	return r
}

func TestCommit_CreatesObject(t *testing.T) {
	r := initRepoWithFile(t, "main.go", []byte("package main\n\nfunc main() {}\n"))

	h, err := r.Commit("initial commit")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if h == "" {
		t.Fatal("Commit returned empty hash")
	}

	c, err := r.Store.ReadCommit(string(h))
	if err != nil {
		t.Fatalf("ReadCommit(%s): %v", h, err)
	}
	if c.Message != "initial commit" {
		t.Errorf("Message = %q, want %q", c.Message, "initial commit")
	}
	if c.Author.Name == "" {
		t.Error("Author.Name is empty")
	}
	if c.TreeHash == "" {
		t.Error("TreeHash is empty")
	}
	if c.Author.Seconds == 0 {
		t.Error("Author.Seconds is zero")
	}
	if len(c.Parents) != 0 {
		t.Errorf("first commit should have no parents, got %d", len(c.Parents))
	}
}

func TestCommit_RequiresIdentity(t *testing.T) {
	r := initRepoWithFile(t, "main.go", []byte("package main\n"))

	cfg, err := r.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	cfg.User.Name = ""
	cfg.User.Email = ""
	if err := writeConfig(t, r, cfg); err != nil {
		t.Fatalf("writeConfig: %v", err)
	}

	_, err = r.Commit("should fail")
	if err == nil {
		t.Fatal("Commit should fail without an identity")
	}
}

func TestCommit_RejectsEmptyIndex(t *testing.T) {
	dir := t.TempDir()
	r, err := initRepo(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := r.Commit("nothing staged"); err == nil {
		t.Fatal("Commit should fail with nothing staged")
	}
}

func TestCommit_UpdatesHEAD(t *testing.T) {
	r := initRepoWithFile(t, "main.go", []byte("package main\n\nfunc main() {}\n"))

	h, err := r.Commit("initial commit")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	headHash, err := r.Refs.Resolve("HEAD")
	if err != nil {
		t.Fatalf("Refs.Resolve(HEAD): %v", err)
	}
	if headHash != h {
		t.Errorf("HEAD = %q, want %q", headHash, h)
	}
}

func TestCommit_SecondHasParent(t *testing.T) {
	r := initRepoWithFile(t, "main.go", []byte("package main\n\nfunc main() {}\n"))

	h1, err := r.Commit("first commit")
	if err != nil {
		t.Fatalf("first Commit: %v", err)
	}

	if err := os.WriteFile(filepath.Join(r.RootDir, "main.go"),
		[]byte("package main\n\nfunc main() { println(\"v2\") }\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	h2, err := r.Commit("second commit")
	if err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	c2, err := r.Store.ReadCommit(string(h2))
	if err != nil {
		t.Fatalf("ReadCommit(%s): %v", h2, err)
	}
	if len(c2.Parents) != 1 {
		t.Fatalf("second commit parents = %d, want 1", len(c2.Parents))
	}
	if c2.Parents[0] != h1 {
		t.Errorf("second commit parent = %q, want %q", c2.Parents[0], h1)
	}
}

func TestLog_ReverseChronological(t *testing.T) {
	r := initRepoWithFile(t, "main.go", []byte("package main\n\nfunc main() {}\n"))

	hashes := make([]object.Hash, 3)
	messages := []string{"first", "second", "third"}

	for i, msg := range messages {
		if i > 0 {
			content := []byte("package main\n\nfunc main() { _ = \"" + msg + "\" }\n")
			if err := os.WriteFile(filepath.Join(r.RootDir, "main.go"), content, 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := r.Add([]string{"main.go"}); err != nil {
				t.Fatalf("Add: %v", err)
			}
		}
		h, err := r.Commit(msg)
		if err != nil {
			t.Fatalf("Commit(%q): %v", msg, err)
		}
		hashes[i] = h
	}

	commits, err := r.Log(hashes[2], 10)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(commits) != 3 {
		t.Fatalf("Log returned %d commits, want 3", len(commits))
	}

	if commits[0].Message != "third" {
		t.Errorf("commits[0].Message = %q, want %q", commits[0].Message, "third")
	}
	if commits[1].Message != "second" {
		t.Errorf("commits[1].Message = %q, want %q", commits[1].Message, "second")
	}
	if commits[2].Message != "first" {
		t.Errorf("commits[2].Message = %q, want %q", commits[2].Message, "first")
	}

	limited, err := r.Log(hashes[2], 2)
	if err != nil {
		t.Fatalf("Log(limit=2): %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("Log(limit=2) returned %d commits, want 2", len(limited))
	}
}

func TestLog_IncludesMergedBranchCommits(t *testing.T) {
	r, dir := setupMergeRepo(t)

	oursContent := "package main\n\nfunc A() { println(\"a\") }\n\nfunc C() { println(\"c\") }\n"
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(oursContent), 0o644); err != nil {
		t.Fatalf("write main.go (ours): %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add main.go (ours): %v", err)
	}
	if _, err := r.Commit("add func C on main"); err != nil {
		t.Fatalf("Commit (ours): %v", err)
	}

	if err := r.Checkout("feature", false); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	theirsContent := "package main\n\nfunc A() { println(\"a\") }\n\nfunc B() { println(\"b\") }\n"
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(theirsContent), 0o644); err != nil {
		t.Fatalf("write main.go (theirs): %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add main.go (theirs): %v", err)
	}
	if _, err := r.Commit("add func B on feature"); err != nil {
		t.Fatalf("Commit (theirs): %v", err)
	}

	if err := r.Checkout("main", false); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	if _, err := r.Merge("feature"); err != nil {
		t.Fatalf("Merge(feature): %v", err)
	}

	mergeHash, err := r.Refs.Resolve("HEAD")
	if err != nil {
		t.Fatalf("Refs.Resolve(HEAD): %v", err)
	}
	commits, err := r.Log(mergeHash, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}

	messages := make(map[string]bool, len(commits))
	for _, c := range commits {
		messages[c.Message] = true
	}
	for _, want := range []string{"initial commit", "add func C on main", "add func B on feature"} {
		if !messages[want] {
			t.Errorf("Log missing commit %q, got %d commits: %+v", want, len(commits), messages)
		}
	}
	if len(commits) != 4 {
		t.Fatalf("Log returned %d commits, want 4 (merge + both branch tips + initial)", len(commits))
	}
	if len(commits[0].Parents) != 2 {
		t.Fatalf("commits[0] should be the merge commit with 2 parents, got %d", len(commits[0].Parents))
	}
}

func TestBuildTree_FlattenTree_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := initRepo(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	files := map[string][]byte{
		"README.md":          []byte("# readme"),
		"pkg/util/util.go":   []byte("package util\n\nfunc Util() {}\n"),
		"pkg/util/helper.go": []byte("package util\n\nfunc Helper() {}\n"),
		"cmd/main.go":        []byte("package main\n\nfunc main() {}\n"),
	}
	for name, data := range files {
		parent := filepath.Dir(filepath.Join(dir, name))
		if err := os.MkdirAll(parent, 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	paths := make([]string, 0, len(files))
	for name := range files {
		paths = append(paths, name)
	}
	if err := r.Add(paths); err != nil {
		t.Fatalf("Add: %v", err)
	}

	idx, err := r.Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	rootHash, err := r.BuildTree(idx)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if rootHash == "" {
		t.Fatal("BuildTree returned empty hash")
	}

	entries, err := r.FlattenTree(rootHash)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	if len(entries) != len(files) {
		t.Fatalf("FlattenTree returned %d entries, want %d", len(entries), len(files))
	}

	flatPaths := make(map[string]TreeFileEntry)
	for _, e := range entries {
		flatPaths[e.Path] = e
	}
	for _, path := range idx.Paths() {
		se, _ := idx.Get(path)
		fe, ok := flatPaths[path]
		if !ok {
			t.Errorf("missing path %q in flattened tree", path)
			continue
		}
		if fe.Hash != se.Hash {
			t.Errorf("%s: Hash = %q, want %q", path, fe.Hash, se.Hash)
		}
	}
}
