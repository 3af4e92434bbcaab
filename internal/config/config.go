// Package config loads the engine's runtime tuning knobs from a JSON file:
// page size, buffer pool capacity, worker count for parallel scans, and
// the data directory. None of this is specified by the storage core
// itself (§6 "CLI & config" is explicitly out of scope for the core), but
// an embeddable engine still needs one place to turn benchmark-style
// settings ("buffer pool 16384 pages") into a pager.Config.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/bambang-db/bambang/internal/dberrors"
)

// Config is the top-level JSON document.
type Config struct {
	DataDir       string        `json:"data_dir"`
	PageSize      int           `json:"page_size"`
	BufferPool    int           `json:"buffer_pool_pages"`
	Workers       int           `json:"workers"`
	ReadAhead     int           `json:"read_ahead_pages"`
	MaintInterval time.Duration `json:"maintenance_interval"` // e.g. 5 * time.Minute; 0 disables
}

// Default returns the configuration used when no file is supplied:
// 4 KiB pages, a 1024-page buffer pool, 4 scan workers, read-ahead of 4
// pages, and a maintenance sweep every five minutes.
func Default() Config {
	return Config{
		DataDir:       "./data",
		PageSize:      4096,
		BufferPool:    1024,
		Workers:       4,
		ReadAhead:     4,
		MaintInterval: 5 * time.Minute,
	}
}

// Load reads and parses a JSON config file at path. Fields absent from the
// file keep their Default() values; DataDir, PageSize, BufferPool, Workers
// and ReadAhead are also reset to the default when the file sets them to
// zero, while a zero MaintInterval is kept as given.
func Load(path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, dberrors.IOError(err, "config: read %s", path)
	}
	cfg := Default()
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return Config{}, dberrors.InvalidData("config: parse %s: %v", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = Default().DataDir
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = Default().PageSize
	}
	if cfg.BufferPool == 0 {
		cfg.BufferPool = Default().BufferPool
	}
	if cfg.Workers == 0 {
		cfg.Workers = Default().Workers
	}
	if cfg.ReadAhead == 0 {
		cfg.ReadAhead = Default().ReadAhead
	}
	return cfg, nil
}

// TablePath returns the on-disk data file path for a table name under the
// configured data directory.
func (c Config) TablePath(table string) string {
	return filepath.Join(c.DataDir, table+".db")
}
