// Package merge implements merge-base search and the three-way file and
// line merge engines.
package merge

import (
	"bytes"

	"kitcat/pkg/diff"
)

// LineResult holds the outcome of a three-way line-level merge.
type LineResult struct {
	Merged       []byte
	HasConflicts bool
}

// MergeLines performs a three-way merge of base, ours, theirs at the line
// level. theirsLabel names the side shown after ">>>>>>> " in a conflict
// marker (e.g. the branch name being merged in).
func MergeLines(base, ours, theirs []byte, theirsLabel string) LineResult {
	baseLines := splitLines(base)
	oursChunks := buildChunks(baseLines, splitLines(ours))
	theirsChunks := buildChunks(baseLines, splitLines(theirs))
	oursNoEOL := len(ours) > 0 && !bytes.HasSuffix(ours, []byte("\n"))
	theirsNoEOL := len(theirs) > 0 && !bytes.HasSuffix(theirs, []byte("\n"))
	return mergeChunks(baseLines, oursChunks, theirsChunks, theirsLabel, oursNoEOL, theirsNoEOL)
}

func splitLines(data []byte) []string {
	return diff.SplitLines(data)
}

// chunk represents a contiguous region relative to the base.
type chunk struct {
	baseStart, baseEnd int
	lines              []string
	changed            bool
}

// buildChunks converts a two-way diff (base -> side) into chunks, each
// covering a contiguous base range and the side's replacement lines.
func buildChunks(base, side []string) []chunk {
	ops := diff.Myers(base, side)

	var chunks []chunk
	baseIdx := 0
	i := 0
	for i < len(ops) {
		op := ops[i]
		if op.Type == diff.Equal {
			chunks = append(chunks, chunk{baseStart: baseIdx, baseEnd: baseIdx + 1, lines: []string{op.Line}})
			baseIdx++
			i++
			continue
		}

		chunkStart := baseIdx
		var sideLines []string
		for i < len(ops) && ops[i].Type != diff.Equal {
			if ops[i].Type == diff.Delete {
				baseIdx++
			} else {
				sideLines = append(sideLines, ops[i].Line)
			}
			i++
		}
		chunks = append(chunks, chunk{baseStart: chunkStart, baseEnd: baseIdx, lines: sideLines, changed: true})
	}
	return chunks
}

// lastSource tracks which side supplied the most recently written chunk, so
// the final output's trailing newline can be made to match that side's own
// file (a three-way merge must not invent a trailing newline that wasn't in
// either input).
type lastSource int

const (
	sourceNone lastSource = iota
	sourceOurs
	sourceTheirs
	sourceBoth
	sourceConflict
)

func mergeChunks(baseLines []string, oursChunks, theirsChunks []chunk, theirsLabel string, oursNoEOL, theirsNoEOL bool) LineResult {
	var merged bytes.Buffer
	hasConflicts := false
	last := sourceNone

	oi, ti := 0, 0
	for oi < len(oursChunks) || ti < len(theirsChunks) {
		var oc, tc *chunk
		if oi < len(oursChunks) {
			oc = &oursChunks[oi]
		}
		if ti < len(theirsChunks) {
			tc = &theirsChunks[ti]
		}

		if oc == nil {
			writeChunk(&merged, tc)
			last = sourceTheirs
			ti++
			continue
		}
		if tc == nil {
			writeChunk(&merged, oc)
			last = sourceOurs
			oi++
			continue
		}

		if oc.baseStart == tc.baseStart && oc.baseEnd == tc.baseEnd {
			switch {
			case !oc.changed && !tc.changed:
				writeChunk(&merged, oc)
				last = sourceBoth
			case oc.changed && !tc.changed:
				writeChunk(&merged, oc)
				last = sourceOurs
			case !oc.changed && tc.changed:
				writeChunk(&merged, tc)
				last = sourceTheirs
			case linesEqual(oc.lines, tc.lines):
				writeChunk(&merged, oc)
				last = sourceBoth
			default:
				hasConflicts = true
				writeConflict(&merged, oc.lines, tc.lines, theirsLabel)
				last = sourceConflict
			}
			oi++
			ti++
			continue
		}

		// Misaligned: one side's change spans multiple of the other's
		// base-aligned chunks. Collect every overlapping chunk on both
		// sides before deciding.
		regionEnd := maxInt(oc.baseEnd, tc.baseEnd)

		var oursRegion []chunk
		for oi < len(oursChunks) && oursChunks[oi].baseStart < regionEnd {
			oursRegion = append(oursRegion, oursChunks[oi])
			if oursChunks[oi].baseEnd > regionEnd {
				regionEnd = oursChunks[oi].baseEnd
			}
			oi++
		}
		var theirsRegion []chunk
		for ti < len(theirsChunks) && theirsChunks[ti].baseStart < regionEnd {
			theirsRegion = append(theirsRegion, theirsChunks[ti])
			if theirsChunks[ti].baseEnd > regionEnd {
				regionEnd = theirsChunks[ti].baseEnd
			}
			ti++
		}

		oursOut := assembleRegion(oursRegion)
		theirsOut := assembleRegion(theirsRegion)
		anyOursChanged := anyChanged(oursRegion)
		anyTheirsChanged := anyChanged(theirsRegion)

		switch {
		case !anyOursChanged && !anyTheirsChanged:
			writeLines(&merged, oursOut)
			last = sourceBoth
		case anyOursChanged && !anyTheirsChanged:
			writeLines(&merged, oursOut)
			last = sourceOurs
		case !anyOursChanged && anyTheirsChanged:
			writeLines(&merged, theirsOut)
			last = sourceTheirs
		case linesEqual(oursOut, theirsOut):
			writeLines(&merged, oursOut)
			last = sourceBoth
		default:
			hasConflicts = true
			writeConflict(&merged, oursOut, theirsOut, theirsLabel)
			last = sourceConflict
		}
	}

	_ = baseLines
	out := merged.Bytes()
	strip := false
	switch last {
	case sourceOurs:
		strip = oursNoEOL
	case sourceTheirs:
		strip = theirsNoEOL
	case sourceBoth:
		strip = oursNoEOL && theirsNoEOL
	}
	if strip {
		out = bytes.TrimSuffix(out, []byte("\n"))
	}
	return LineResult{Merged: out, HasConflicts: hasConflicts}
}

func writeChunk(buf *bytes.Buffer, c *chunk) { writeLines(buf, c.lines) }

func writeLines(buf *bytes.Buffer, lines []string) {
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
}

func writeConflict(buf *bytes.Buffer, oursLines, theirsLines []string, theirsLabel string) {
	buf.WriteString("<<<<<<< HEAD\n")
	writeLines(buf, oursLines)
	buf.WriteString("=======\n")
	writeLines(buf, theirsLines)
	buf.WriteString(">>>>>>> " + theirsLabel + "\n")
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func assembleRegion(chunks []chunk) []string {
	var lines []string
	for _, c := range chunks {
		lines = append(lines, c.lines...)
	}
	return lines
}

func anyChanged(chunks []chunk) bool {
	for _, c := range chunks {
		if c.changed {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
