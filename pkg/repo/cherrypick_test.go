package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCherryPick_CleanApply(t *testing.T) {
	dir := t.TempDir()
	r, err := initRepo(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("v1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	base, err := r.Commit("base")
	if err != nil {
		t.Fatalf("Commit(base): %v", err)
	}

	if err := r.CreateBranch("topic", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("topic", false); err != nil {
		t.Fatalf("Checkout(topic): %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "other.go"), []byte("new file\n"), 0o644); err != nil {
		t.Fatalf("write other.go: %v", err)
	}
	if err := r.Add([]string{"other.go"}); err != nil {
		t.Fatalf("Add other.go: %v", err)
	}
	topicCommit, err := r.Commit("add other.go")
	if err != nil {
		t.Fatalf("Commit(topic): %v", err)
	}

	if err := r.Checkout("main", false); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}

	report, err := r.CherryPick(topicCommit)
	if err != nil {
		t.Fatalf("CherryPick: %v", err)
	}
	if len(report.Conflicts) != 0 {
		t.Fatalf("expected clean cherry-pick, got conflicts: %v", report.Conflicts)
	}
	if report.CommitHash == "" {
		t.Fatal("expected a commit hash")
	}

	commit, err := r.Store.ReadCommit(string(report.CommitHash))
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(commit.Parents) != 1 {
		t.Fatalf("cherry-pick commit should have exactly one parent, got %d", len(commit.Parents))
	}
	if !strings.Contains(commit.Message, "add other.go") {
		t.Errorf("message = %q, want to contain original message", commit.Message)
	}
	if !strings.Contains(commit.Message, "cherry picked from commit") {
		t.Errorf("message = %q, want cherry-pick trailer", commit.Message)
	}

	if _, err := os.Stat(filepath.Join(dir, "other.go")); err != nil {
		t.Errorf("expected other.go in working tree: %v", err)
	}
}

func TestCherryPick_ConflictLeavesState(t *testing.T) {
	dir := t.TempDir()
	r, err := initRepo(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("base\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	base, err := r.Commit("base")
	if err != nil {
		t.Fatalf("Commit(base): %v", err)
	}

	if err := r.CreateBranch("topic", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("topic", false); err != nil {
		t.Fatalf("Checkout(topic): %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("topic change\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	topicCommit, err := r.Commit("change on topic")
	if err != nil {
		t.Fatalf("Commit(topic): %v", err)
	}

	if err := r.Checkout("main", false); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("main change\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Commit("change on main"); err != nil {
		t.Fatalf("Commit(main): %v", err)
	}

	report, err := r.CherryPick(topicCommit)
	if err == nil {
		t.Fatal("expected CherryPick to report conflicts via an error")
	}
	if len(report.Conflicts) == 0 {
		t.Error("expected at least one conflicted path")
	}
	if report.CommitHash != "" {
		t.Error("CommitHash should be empty when conflicted")
	}

	if _, ok, err := r.Refs.ReadState("CHERRY_PICK_HEAD"); err != nil {
		t.Fatalf("ReadState(CHERRY_PICK_HEAD): %v", err)
	} else if !ok {
		t.Error("expected CHERRY_PICK_HEAD to be set while conflicted")
	}
	if _, err := os.Stat(filepath.Join(r.GotDir, "MERGE_MODE")); err != nil {
		t.Errorf("expected MERGE_MODE to exist alongside CHERRY_PICK_HEAD: %v", err)
	}

	idx, err := r.Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if !idx.IsConflicted("main.go") {
		t.Error("expected main.go to be conflicted in the index")
	}
}

func TestCherryPickAbort_RestoresState(t *testing.T) {
	dir := t.TempDir()
	r, err := initRepo(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("base\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	base, err := r.Commit("base")
	if err != nil {
		t.Fatalf("Commit(base): %v", err)
	}
	if err := r.CreateBranch("topic", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("topic", false); err != nil {
		t.Fatalf("Checkout(topic): %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("topic change\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	topicCommit, err := r.Commit("change on topic")
	if err != nil {
		t.Fatalf("Commit(topic): %v", err)
	}

	if err := r.Checkout("main", false); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("main change\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Commit("change on main"); err != nil {
		t.Fatalf("Commit(main): %v", err)
	}

	if _, err := r.CherryPick(topicCommit); err == nil {
		t.Fatal("expected conflicted cherry-pick to return an error")
	}

	if err := r.CherryPickAbort(); err != nil {
		t.Fatalf("CherryPickAbort: %v", err)
	}

	if _, ok, _ := r.Refs.ReadState("CHERRY_PICK_HEAD"); ok {
		t.Error("CHERRY_PICK_HEAD should be cleared after abort")
	}
	data, err := os.ReadFile(filepath.Join(dir, "main.go"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "main change\n" {
		t.Errorf("working tree after abort = %q, want %q", string(data), "main change\n")
	}
}

func TestCherryPickContinue_CompletesCommit(t *testing.T) {
	dir := t.TempDir()
	r, err := initRepo(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("base\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	base, err := r.Commit("base")
	if err != nil {
		t.Fatalf("Commit(base): %v", err)
	}
	if err := r.CreateBranch("topic", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("topic", false); err != nil {
		t.Fatalf("Checkout(topic): %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("topic change\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	topicCommit, err := r.Commit("change on topic")
	if err != nil {
		t.Fatalf("Commit(topic): %v", err)
	}

	if err := r.Checkout("main", false); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("main change\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Commit("change on main"); err != nil {
		t.Fatalf("Commit(main): %v", err)
	}

	if _, err := r.CherryPick(topicCommit); err == nil {
		t.Fatal("expected conflicted cherry-pick to return an error")
	}

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("resolved\n"), 0o644); err != nil {
		t.Fatalf("write resolved content: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("Add resolved: %v", err)
	}

	report, err := r.CherryPickContinue()
	if err != nil {
		t.Fatalf("CherryPickContinue: %v", err)
	}
	if report.CommitHash == "" {
		t.Fatal("expected a commit hash from CherryPickContinue")
	}

	if _, ok, _ := r.Refs.ReadState("CHERRY_PICK_HEAD"); ok {
		t.Error("CHERRY_PICK_HEAD should be cleared after continue")
	}
	commit, err := r.Store.ReadCommit(string(report.CommitHash))
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if !strings.Contains(commit.Message, "cherry picked from commit") {
		t.Errorf("message = %q, want cherry-pick trailer", commit.Message)
	}
}
