package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"diskinspect/internal/compress"
	"diskinspect/internal/disasm"
	"diskinspect/internal/image/partition"
	"diskinspect/internal/report"
)

type Config struct {
	SectorSize  int    `yaml:"sector_size"`
	MaxEntries  int    `yaml:"max_entries"`
	Compression string `yaml:"compression"`
	// Output is "text" or "json".
	Output  string  `yaml:"output"`
	Flags   Flags   `yaml:"flags"`
	GUID    GUID    `yaml:"guid"`
	Disasm  Disasm  `yaml:"disasm"`
	Catalog Catalog `yaml:"catalog"`
	Log     Log     `yaml:"log"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-"`
}

type Flags struct {
	Convention string `yaml:"convention"`
}

type GUID struct {
	Style string `yaml:"style"`
}

type Disasm struct {
	Syntax string `yaml:"syntax"`
	Origin uint64 `yaml:"origin"`
	// StopOnBad ends the listing at the first undecodable byte.
	StopOnBad bool `yaml:"stop_on_bad"`
}

type Catalog struct {
	Path string `yaml:"path,omitempty"`
}

type Log struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level"`
}

var defaultConfig = Config{
	SectorSize:  partition.SectorSize,
	MaxEntries:  partition.DefaultMaxEntries,
	Compression: compress.Auto,
	Output:      "text",
	Flags:       Flags{Convention: "shifted"},
	GUID:        GUID{Style: report.GUIDCanonical},
	Disasm:      Disasm{Syntax: "intel", Origin: disasm.DefaultOrigin},
	Log:         Log{Level: "info"},
}

func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// Load reads path, or the first existing default location when path is
// empty. No file at all yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, c := range candidates() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := defaultConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Path = path
	}

	// Apply defaults for zeroed fields
	if cfg.SectorSize == 0 {
		cfg.SectorSize = defaultConfig.SectorSize
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = defaultConfig.MaxEntries
	}
	if cfg.Compression == "" {
		cfg.Compression = defaultConfig.Compression
	}
	if cfg.Output == "" {
		cfg.Output = defaultConfig.Output
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = DefaultCatalogPath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func candidates() []string {
	return []string{
		"/etc/diskinspect/config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/diskinspect/config.yaml"),
		"diskinspect.yaml",
	}
}

// DefaultCatalogPath is where scan history lives unless configured.
func DefaultCatalogPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "diskinspect", "history.db")
	}
	return "diskinspect-history.db"
}

func (c *Config) Validate() error {
	var errs []error
	switch c.SectorSize {
	case 512, 1024, 2048, 4096:
	default:
		errs = append(errs, fmt.Errorf("sector_size %d: must be 512, 1024, 2048 or 4096", c.SectorSize))
	}
	if c.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("max_entries %d: must not be negative", c.MaxEntries))
	}
	if _, err := partition.ParseConvention(c.Flags.Convention); err != nil {
		errs = append(errs, fmt.Errorf("flags.convention: %w", err))
	}
	switch c.GUID.Style {
	case "", report.GUIDCanonical, report.GUIDStored:
	default:
		errs = append(errs, fmt.Errorf("guid.style %q: must be canonical or stored", c.GUID.Style))
	}
	switch c.Output {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("output %q: must be text or json", c.Output))
	}
	if _, err := disasm.ParseSyntax(c.Disasm.Syntax); err != nil {
		errs = append(errs, fmt.Errorf("disasm.syntax: %w", err))
	}
	if n := compress.Normalize(c.Compression); n != compress.Auto && n != compress.None {
		if _, ok := knownCodec(n); !ok {
			errs = append(errs, fmt.Errorf("compression %q: unknown codec", c.Compression))
		}
	}
	return errors.Join(errs...)
}

func knownCodec(name string) (string, bool) {
	for _, n := range compress.Names() {
		if n == name {
			return n, true
		}
	}
	return "", false
}

// Convention is the parsed flags.convention value.
func (c *Config) Convention() partition.BitConvention {
	conv, _ := partition.ParseConvention(c.Flags.Convention)
	return conv
}

// ScanOptions maps the config onto partition.Scan options.
func (c *Config) ScanOptions() partition.Options {
	return partition.Options{
		SectorSize: c.SectorSize,
		Convention: c.Convention(),
		MaxEntries: c.MaxEntries,
	}
}
