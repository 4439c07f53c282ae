package main

import (
	"strings"
	"testing"
)

func TestGCCmd_PacksLooseObjects(t *testing.T) {
	t.Chdir(t.TempDir())
	mustRun(t, newInitCmd())
	commitFile(t, "a.txt", "a\n", "first")

	out := mustRun(t, newGCCmd())
	if !strings.Contains(out, "packed") {
		t.Errorf("gc output = %q, want it to report packed objects", out)
	}
}

func TestGCCmd_EmptyRepoIsNoop(t *testing.T) {
	t.Chdir(t.TempDir())
	mustRun(t, newInitCmd())

	out := mustRun(t, newGCCmd())
	if !strings.Contains(out, "nothing to pack") {
		t.Errorf("gc on empty repo = %q, want 'nothing to pack'", out)
	}
}

func TestConfigCmd_SetAndGetUserName(t *testing.T) {
	t.Chdir(t.TempDir())
	mustRun(t, newInitCmd())

	mustRun(t, newConfigCmd(), "user.name", "Ada Lovelace")
	out := mustRun(t, newConfigCmd(), "user.name")
	if strings.TrimSpace(out) != "Ada Lovelace" {
		t.Errorf("config user.name = %q, want %q", out, "Ada Lovelace")
	}
}

func TestConfigCmd_SetAndGetRemote(t *testing.T) {
	t.Chdir(t.TempDir())
	mustRun(t, newInitCmd())

	mustRun(t, newConfigCmd(), "remote.origin", "https://example.com/repo.git")
	out := mustRun(t, newConfigCmd(), "remote.origin")
	if strings.TrimSpace(out) != "https://example.com/repo.git" {
		t.Errorf("config remote.origin = %q, want the stored URL", out)
	}
}

func TestConfigCmd_UnknownKeyFails(t *testing.T) {
	t.Chdir(t.TempDir())
	mustRun(t, newInitCmd())

	if _, err := runCmd(t, newConfigCmd(), "bogus.key", "value"); err == nil {
		t.Fatal("config set on an unknown key should fail")
	}
}
