package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds project-level settings loaded from pindiff.yml.
// Command-line flags take precedence over these values.
type ProjectConfig struct {
	Registry string `yaml:"registry,omitempty"`
	OutDir   string `yaml:"outDir,omitempty"`
	CacheDir string `yaml:"cacheDir,omitempty"`
	Harness  string `yaml:"harness,omitempty"`
	ParserA  string `yaml:"parserA,omitempty"`
	ParserB  string `yaml:"parserB,omitempty"`
	Jobs     int    `yaml:"jobs,omitempty"`
	Verbose  bool   `yaml:"verbose,omitempty"`
}

// Load attempts to read pindiff.yml or pindiff.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"pindiff.yml", "pindiff.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if cfg.Jobs < 0 {
			return nil, fmt.Errorf("%s: jobs must be non-negative", path)
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}

// Resolve rewrites relative paths in the config against dir. Paths in the
// file are taken relative to the directory the file lives in.
func (c *ProjectConfig) Resolve(dir string) {
	for _, p := range []*string{&c.Registry, &c.OutDir, &c.CacheDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
