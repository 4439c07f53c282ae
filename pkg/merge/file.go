package merge

import (
	"bytes"

	"kitcat/pkg/diff"
)

// FileStatus classifies the outcome of merging a single path.
type FileStatus string

const (
	StatusClean    FileStatus = "clean"
	StatusConflict FileStatus = "conflict"
	StatusAdded    FileStatus = "added"
	StatusDeleted  FileStatus = "deleted"
)

// FileResult is the outcome of merging one path across base/ours/theirs.
type FileResult struct {
	Status       FileStatus
	Content      []byte // nil when Status == StatusDeleted
	HasConflicts bool
}

// FileSides reports which of the three trees contain path, and their blob
// contents when present. Presence, not content equality, drives the
// action table; nil content for a present side means an empty file.
type FileSides struct {
	InBase, InOurs, InTheirs       bool
	BaseData, OursData, TheirsData []byte
	BaseHash, OursHash, TheirsHash string
}

// MergeFile decides the merge action for one path from the eight possible
// base/ours/theirs presence combinations, then resolves content via a
// three-way line merge where both sides touched the file.
func MergeFile(sides FileSides, theirsLabel string) FileResult {
	switch {
	case sides.InBase && sides.InOurs && sides.InTheirs:
		return mergeAllThree(sides, theirsLabel)

	case !sides.InBase && sides.InOurs && sides.InTheirs:
		if sides.OursHash == sides.TheirsHash {
			return FileResult{Status: StatusClean, Content: sides.OursData}
		}
		if diff.IsBinary(sides.OursData) || diff.IsBinary(sides.TheirsData) {
			return FileResult{Status: StatusConflict, Content: sides.OursData, HasConflicts: true}
		}
		res := MergeLines(nil, sides.OursData, sides.TheirsData, theirsLabel)
		status := StatusClean
		if res.HasConflicts {
			status = StatusConflict
		}
		return FileResult{Status: status, Content: res.Merged, HasConflicts: res.HasConflicts}

	case sides.InBase && sides.InOurs && !sides.InTheirs:
		// Deleted by theirs.
		if sides.OursHash == sides.BaseHash {
			return FileResult{Status: StatusDeleted}
		}
		return FileResult{Status: StatusConflict, Content: renderDeleteConflict(sides.OursData, nil, theirsLabel), HasConflicts: true}

	case sides.InBase && !sides.InOurs && sides.InTheirs:
		// Deleted by ours.
		if sides.TheirsHash == sides.BaseHash {
			return FileResult{Status: StatusDeleted}
		}
		return FileResult{Status: StatusConflict, Content: renderDeleteConflict(nil, sides.TheirsData, theirsLabel), HasConflicts: true}

	case !sides.InBase && sides.InOurs && !sides.InTheirs:
		return FileResult{Status: StatusAdded, Content: sides.OursData}

	case !sides.InBase && !sides.InOurs && sides.InTheirs:
		return FileResult{Status: StatusAdded, Content: sides.TheirsData}

	default: // inBase && !inOurs && !inTheirs: deleted on both sides
		return FileResult{Status: StatusDeleted}
	}
}

func mergeAllThree(sides FileSides, theirsLabel string) FileResult {
	if sides.OursHash == sides.TheirsHash {
		return FileResult{Status: StatusClean, Content: sides.OursData}
	}
	if sides.OursHash == sides.BaseHash {
		return FileResult{Status: StatusClean, Content: sides.TheirsData}
	}
	if sides.TheirsHash == sides.BaseHash {
		return FileResult{Status: StatusClean, Content: sides.OursData}
	}

	if diff.IsBinary(sides.BaseData) || diff.IsBinary(sides.OursData) || diff.IsBinary(sides.TheirsData) {
		return FileResult{Status: StatusConflict, Content: sides.OursData, HasConflicts: true}
	}

	res := MergeLines(sides.BaseData, sides.OursData, sides.TheirsData, theirsLabel)
	status := StatusClean
	if res.HasConflicts {
		status = StatusConflict
	}
	return FileResult{Status: status, Content: res.Merged, HasConflicts: res.HasConflicts}
}

func renderDeleteConflict(ours, theirs []byte, theirsLabel string) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< HEAD\n")
	buf.Write(ours)
	if len(ours) > 0 && !bytes.HasSuffix(ours, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString("=======\n")
	buf.Write(theirs)
	if len(theirs) > 0 && !bytes.HasSuffix(theirs, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString(">>>>>>> " + theirsLabel + "\n")
	return buf.Bytes()
}
