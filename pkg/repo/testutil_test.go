package repo

import (
	"testing"

	"kitcat/internal/logging"
	"kitcat/pkg/config"
)

func nopLog() *logging.Logger { return logging.Nop() }

func writeConfig(t *testing.T, r *Repo, cfg *config.Config) error {
	t.Helper()
	return config.Write(r.GotDir, cfg)
}

// initRepo creates a repository at dir and gives it a committer identity,
// since commit now rejects the zero-value default (kcerr.InvalidArgument).
func initRepo(dir string) (*Repo, error) {
	r, err := Init(dir, nopLog())
	if err != nil {
		return nil, err
	}
	if err := config.Write(r.GotDir, &config.Config{User: config.User{Name: "Test User", Email: "test@example.com"}}); err != nil {
		return nil, err
	}
	return r, nil
}
