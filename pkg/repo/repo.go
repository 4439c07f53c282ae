// Package repo implements the repository-level operations that orchestrate
// the object store, staging index, ref store, diff engine, and merge
// engine into the porcelain commands the CLI exposes.
package repo

import (
	"kitcat/internal/logging"
	"kitcat/pkg/config"
	"kitcat/pkg/index"
	"kitcat/pkg/merge"
	"kitcat/pkg/object"
	"kitcat/pkg/refs"
)

// objectCacheSize bounds the in-memory object read cache per open Repo.
const objectCacheSize = 1024

// Repo is an opened repository: its working directory, its .kitcat/
// metadata directory, and the subsystems operating on it.
type Repo struct {
	RootDir string // working directory root
	GotDir  string // .kitcat/ directory

	Store *object.Store
	Refs  *refs.Store

	log *logging.Logger

	baseFinder *merge.BaseFinder
}

func newRepo(rootDir, gotDir string, log *logging.Logger) *Repo {
	if log == nil {
		log = logging.Nop()
	}
	store := object.NewStore(gotDir, objectCacheSize)
	if packs, err := object.LoadPackSet(packDir(gotDir)); err == nil {
		store.UsePacks(packs)
	}
	r := &Repo{
		RootDir: rootDir,
		GotDir:  gotDir,
		Store:   store,
		Refs:    refs.New(gotDir),
		log:     log,
	}
	r.baseFinder = merge.NewBaseFinder(commitReaderAdapter{r.Store}, 256)
	return r
}

// commitReaderAdapter satisfies merge.CommitReader with the object store's
// ReadCommit, matching the small-interface grounding pattern.
type commitReaderAdapter struct{ store *object.Store }

func (a commitReaderAdapter) ReadCommit(hashOrPrefix string) (*object.CommitObj, error) {
	return a.store.ReadCommit(hashOrPrefix)
}

// Config reads the repository's persistent identity/remote configuration.
func (r *Repo) Config() (*config.Config, error) {
	return config.Read(r.GotDir)
}

// Index loads the current staging index.
func (r *Repo) Index() (*index.Index, error) {
	return index.Load(r.GotDir)
}

// SaveIndex atomically rewrites the staging index.
func (r *Repo) SaveIndex(idx *index.Index) error {
	return idx.Save(r.GotDir)
}
