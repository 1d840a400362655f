package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds resolved, absolute locations used by the binaries.
type Paths struct {
	BaseDir    string
	OutputDir  string
	LogsDir    string
	TablesFile string
}

// ResolvePaths makes every configured path absolute against baseDir.
// An empty baseDir means the current working directory.
func (c *Config) ResolvePaths(baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	p := &Paths{
		BaseDir:   baseDir,
		OutputDir: resolve(baseDir, c.Paths.OutputDir),
		LogsDir:   resolve(baseDir, c.Paths.LogsDir),
	}
	if c.Paths.TablesFile != "" {
		p.TablesFile = resolve(baseDir, c.Paths.TablesFile)
	}
	return p, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// EnsureDirectories creates the output and log directories.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.OutputDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// OutputPath joins name onto the output directory.
func (p *Paths) OutputPath(name string) string {
	return filepath.Join(p.OutputDir, name)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
