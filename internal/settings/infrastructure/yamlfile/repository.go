package yamlfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	settings "plc-datalogger/internal/settings/domain"
)

// Repository persists settings to a YAML file between runs.
type Repository struct {
	path string
}

// NewRepository constructs a repository for path.
func NewRepository(path string) (*Repository, error) {
	if path == "" {
		return nil, errors.New("settings file: empty path")
	}
	return &Repository{path: path}, nil
}

// Path returns the backing file.
func (r *Repository) Path() string {
	return r.path
}

// Load reads settings, falling back to defaults when the file does not exist.
// Fields missing from the file keep their default values.
func (r *Repository) Load() (settings.Configuration, error) {
	cfg := settings.Default()
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return settings.Default(), err
	}
	if cfg.Tags == nil {
		cfg.Tags = []settings.TagSpec{}
	}
	if cfg.Storage.Kind == "" {
		cfg.Storage.Kind = settings.StorageExcel
	}
	if cfg.Storage.Excel.Path == "" {
		cfg.Storage.Excel.Path = settings.DefaultExcelPath
	}
	return cfg, nil
}

// Save writes settings, replacing the file atomically.
func (r *Repository) Save(cfg settings.Configuration) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// SaveOnChange adapts Save to a settings change listener.
func (r *Repository) SaveOnChange(_ context.Context, cfg settings.Configuration) error {
	return r.Save(cfg)
}
