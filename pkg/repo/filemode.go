package repo

import (
	"os"

	"kitcat/pkg/object"
)

// modeBitsFromFileInfo returns the raw octal mode bits recorded in index
// entries (e.g. 0100644, 0100755), distinct from the TreeMode* strings used
// in tree objects.
func modeBitsFromFileInfo(info os.FileInfo) int {
	if info.Mode()&0o111 != 0 {
		return 0o100755
	}
	return 0o100644
}

// treeModeFromBits maps raw index mode bits to the canonical tree-entry
// mode string.
func treeModeFromBits(bits uint32) string {
	if bits&0o111 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func modeFromFileInfo(info os.FileInfo) string {
	if info.Mode()&0o111 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func normalizeFileMode(mode string) string {
	if mode == object.TreeModeExecutable {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func filePermFromMode(mode string) os.FileMode {
	if normalizeFileMode(mode) == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}
