// Package config reads and writes the repository-local TOML configuration
// file: committer identity and named remotes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"kitcat/internal/kcerr"
)

const fileName = "config"

// User holds the identity recorded on commits authored in this repository.
type User struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Config is the full contents of .kitcat/config.
type Config struct {
	User    User              `toml:"user"`
	Remotes map[string]string `toml:"remote,omitempty"`
}

// Default returns the zero-value identity used when no config file
// exists yet. An empty name or email is rejected by commit with
// InvalidArgument rather than silently attributed to a placeholder.
func Default() *Config {
	return &Config{}
}

func path(gotDir string) string { return filepath.Join(gotDir, fileName) }

// Read loads .kitcat/config, returning Default() if the file does not
// exist yet.
func Read(gotDir string) (*Config, error) {
	data, err := os.ReadFile(path(gotDir))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, kcerr.NewIo("config: read", err)
	}
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, kcerr.NewCorrupt("config: parse", err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]string)
	}
	return &cfg, nil
}

// Write atomically writes cfg to .kitcat/config via tempfile + rename.
func Write(gotDir string, cfg *Config) error {
	if cfg == nil {
		cfg = Default()
	}

	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(gotDir, ".config-tmp-*")
	if err != nil {
		return kcerr.NewIo("config: create tempfile", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(buf.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return kcerr.NewIo("config: write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return kcerr.NewIo("config: close", err)
	}
	if err := os.Rename(tmpName, path(gotDir)); err != nil {
		os.Remove(tmpName)
		return kcerr.NewIo("config: rename", err)
	}
	return nil
}

// UserString formats the identity as "Name <email>", the form used in
// commit author/committer lines.
func (c *Config) UserString() string {
	return fmt.Sprintf("%s <%s>", c.User.Name, c.User.Email)
}

// SetRemote stores or updates a named remote URL.
func SetRemote(gotDir, name, remoteURL string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return kcerr.NewInvalidArgument("config: remote name is required")
	}
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return kcerr.NewInvalidArgument("config: remote URL is required")
	}

	cfg, err := Read(gotDir)
	if err != nil {
		return err
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]string)
	}
	cfg.Remotes[name] = remoteURL
	return Write(gotDir, cfg)
}

// RemoteURL returns the configured URL for name.
func RemoteURL(gotDir, name string) (string, error) {
	cfg, err := Read(gotDir)
	if err != nil {
		return "", err
	}
	url, ok := cfg.Remotes[name]
	if !ok || strings.TrimSpace(url) == "" {
		return "", kcerr.NewNotFound(fmt.Sprintf("config: remote %q is not configured", name))
	}
	return url, nil
}

// Set updates a single dotted key (e.g. "user.name", "user.email").
func Set(gotDir, key, value string) error {
	if name, ok := strings.CutPrefix(key, "remote."); ok {
		return SetRemote(gotDir, name, value)
	}

	cfg, err := Read(gotDir)
	if err != nil {
		return err
	}
	switch key {
	case "user.name":
		cfg.User.Name = value
	case "user.email":
		cfg.User.Email = value
	default:
		return kcerr.NewInvalidArgument(fmt.Sprintf("config: unknown key %q", key))
	}
	return Write(gotDir, cfg)
}

// Get reads a single dotted key.
func Get(gotDir, key string) (string, error) {
	if name, ok := strings.CutPrefix(key, "remote."); ok {
		return RemoteURL(gotDir, name)
	}

	cfg, err := Read(gotDir)
	if err != nil {
		return "", err
	}
	switch key {
	case "user.name":
		return cfg.User.Name, nil
	case "user.email":
		return cfg.User.Email, nil
	default:
		return "", kcerr.NewInvalidArgument(fmt.Sprintf("config: unknown key %q", key))
	}
}
