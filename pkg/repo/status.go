package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"kitcat/pkg/index"
	"kitcat/pkg/object"
)

// FileStatus represents the state of a file in the working tree or index.
type FileStatus int

const (
	StatusClean     FileStatus = iota // file matches between compared areas
	StatusNew                         // in staging, not in HEAD tree
	StatusModified                    // in staging, different from HEAD
	StatusConflict                    // file has unresolved merge conflicts in index
	StatusDeleted                     // in HEAD but not in staging (or staged but missing on disk)
	StatusUntracked                   // in working dir but not in staging
	StatusDirty                       // staged but working copy differs from staged
)

// StatusEntry records the status of a single file.
type StatusEntry struct {
	Path        string     // repo-relative path
	IndexStatus FileStatus // staging vs HEAD comparison
	WorkStatus  FileStatus // working tree vs staging comparison
}

// racyCleanWindow guards against a file edited within the same mtime-
// resolution tick as it was staged: a stat match that close to "now" is
// treated as unreliable and falls back to a content hash.
const racyCleanWindow = 2 * time.Second

// Status computes the working tree status for the repository.
//
// Algorithm:
//  1. Load the staging index.
//  2. Walk the working directory (skipping .kitcat/ and ignored paths).
//  3. Compare working tree files against staged entries (stat shortcut,
//     falling back to content hash).
//  4. Compare staged entries against the HEAD tree.
//  5. Return a sorted list of status entries.
func (r *Repo) Status() ([]StatusEntry, error) {
	idx, err := r.Index()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	ic := NewIgnoreChecker(r.RootDir)

	workFiles := make(map[string]bool)
	err = filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			workFiles[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("status: walk: %w", err)
	}

	result := make(map[string]*StatusEntry)
	dirty := false

	// --- working tree vs staging ---
	for path := range workFiles {
		if idx.IsConflicted(path) {
			result[path] = &StatusEntry{Path: path, WorkStatus: StatusConflict}
			continue
		}
		e, inIndex := idx.Get(path)
		if !inIndex {
			result[path] = &StatusEntry{Path: path, IndexStatus: StatusUntracked, WorkStatus: StatusUntracked}
			continue
		}

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("status: stat %q: %w", path, err)
		}
		workMode := modeBitsFromFileInfo(info)
		workStatus := StatusClean
		if !statMatches(e, info, workMode) {
			content, err := os.ReadFile(absPath)
			if err != nil {
				return nil, fmt.Errorf("status: read %q: %w", path, err)
			}
			workHash := object.HashObject(object.TypeBlob, content)
			if workHash != e.Hash || uint32(workMode) != e.Mode {
				workStatus = StatusDirty
			} else if refreshStat(&e, info, workMode) {
				idx.Put(e)
				dirty = true
			}
		}
		result[path] = &StatusEntry{Path: path, WorkStatus: workStatus}
	}

	// staged paths missing from disk -> deleted from working tree
	for _, path := range idx.Paths() {
		if workFiles[path] {
			continue
		}
		entry, exists := result[path]
		if !exists {
			entry = &StatusEntry{Path: path}
			result[path] = entry
		}
		if idx.IsConflicted(path) {
			entry.WorkStatus = StatusConflict
		} else {
			entry.WorkStatus = StatusDeleted
		}
	}

	// --- staging vs HEAD ---
	headEntries, err := r.headTreeEntries()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	for _, path := range idx.Paths() {
		entry, exists := result[path]
		if !exists {
			entry = &StatusEntry{Path: path}
			result[path] = entry
		}

		if idx.IsConflicted(path) {
			entry.IndexStatus = StatusConflict
			continue
		}
		e, _ := idx.Get(path)
		headFile, inHead := headEntries[path]
		switch {
		case !inHead:
			entry.IndexStatus = StatusNew
		case e.Hash != headFile.Hash || treeModeFromBits(e.Mode) != headFile.Mode:
			entry.IndexStatus = StatusModified
		default:
			entry.IndexStatus = StatusClean
		}
	}

	for path := range headEntries {
		if _, inIndex := idx.Entries[path]; inIndex {
			continue
		}
		entry, exists := result[path]
		if !exists {
			entry = &StatusEntry{Path: path}
			result[path] = entry
		}
		entry.IndexStatus = StatusDeleted
	}

	entries := make([]StatusEntry, 0, len(result))
	for _, e := range result {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	if dirty {
		if err := r.SaveIndex(idx); err != nil {
			return nil, fmt.Errorf("status: refresh index: %w", err)
		}
	}

	return entries, nil
}

func statMatches(e index.Entry, info os.FileInfo, workMode int) bool {
	if uint32(workMode) != e.Mode {
		return false
	}
	if e.Size != uint32(info.Size()) {
		return false
	}
	if isRacyClean(info.ModTime()) {
		return false
	}
	return e.MtimeSec == uint32(info.ModTime().Unix()) && e.MtimeNsec == uint32(info.ModTime().Nanosecond())
}

func refreshStat(e *index.Entry, info os.FileInfo, workMode int) bool {
	nextMtimeSec := uint32(info.ModTime().Unix())
	nextMtimeNsec := uint32(info.ModTime().Nanosecond())
	nextSize := uint32(info.Size())
	nextMode := uint32(workMode)
	if e.MtimeSec == nextMtimeSec && e.MtimeNsec == nextMtimeNsec && e.Size == nextSize && e.Mode == nextMode {
		return false
	}
	e.MtimeSec, e.MtimeNsec, e.Size, e.Mode = nextMtimeSec, nextMtimeNsec, nextSize, nextMode
	return true
}

func isRacyClean(modTime time.Time) bool {
	now := time.Now()
	if modTime.After(now) {
		return true
	}
	return now.Sub(modTime) < racyCleanWindow
}
