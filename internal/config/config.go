// Package config loads enhance.toml and applies .env and environment
// overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/oy3o/enhance"
	"github.com/oy3o/enhance/classfile"
	"github.com/oy3o/enhance/classpath"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "enhance.toml"

// Environment overrides.
const (
	EnvClasspath = "ENHANCE_CLASSPATH"
	EnvMarker    = "ENHANCE_MARKER"
	EnvThreshold = "ENHANCE_THRESHOLD"
	EnvLogLevel  = "ENHANCE_LOG_LEVEL"
	EnvLogFormat = "ENHANCE_LOG_FORMAT"
)

// Config is the resolved configuration of the enhance tool.
type Config struct {
	Classpath    []string `toml:"classpath"`
	Marker       string   `toml:"marker"`
	Threshold    int      `toml:"threshold"`
	MaxDepth     int      `toml:"max_depth"`
	MaxClassSize int64    `toml:"max_class_size"`
	Log          Log      `toml:"log"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Marker:       enhance.DefaultMarker,
		Threshold:    enhance.Threshold,
		MaxDepth:     enhance.DefaultMaxDepth,
		MaxClassSize: classpath.DefaultMaxClassSize,
		Log:          Log{Level: "info", Format: "text"},
	}
}

// Load reads the TOML file at path (DefaultFile if empty, where a missing
// file is not an error), then applies variables from the process
// environment and from envFiles (".env" if none are given). The process
// environment wins over files.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	env, err := newEnv(os.LookupEnv, envFiles...)
	if err != nil {
		return nil, err
	}
	return load(path, env)
}

type lookupFunc func(key string) (string, bool)

// newEnv layers the given dotenv files under base. Earlier files win over
// later ones; missing files are skipped.
func newEnv(base lookupFunc, files ...string) (lookupFunc, error) {
	fromFiles := make(map[string]string)
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", f, err)
		}
		for k, v := range vars {
			if _, ok := fromFiles[k]; !ok {
				fromFiles[k] = v
			}
		}
	}
	return func(key string) (string, bool) {
		if v, ok := base(key); ok {
			return v, true
		}
		v, ok := fromFiles[key]
		return v, ok
	}, nil
}

func load(path string, env lookupFunc) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	md, err := toml.DecodeFile(path, cfg)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("config: %s: %w", path, err)
	default:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
		}
		cfg.resolvePaths(filepath.Dir(path))
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// resolvePaths makes relative classpath entries relative to the config file.
func (c *Config) resolvePaths(dir string) {
	for i, p := range c.Classpath {
		if p != "" && !filepath.IsAbs(p) {
			c.Classpath[i] = filepath.Join(dir, p)
		}
	}
}

func (c *Config) applyEnv(env lookupFunc) error {
	if v, ok := env(EnvClasspath); ok {
		c.Classpath = SplitClasspath(v)
	}
	if v, ok := env(EnvMarker); ok && v != "" {
		c.Marker = v
	}
	if v, ok := env(EnvThreshold); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvThreshold, err)
		}
		c.Threshold = n
	}
	if v, ok := env(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := env(EnvLogFormat); ok && v != "" {
		c.Log.Format = v
	}
	return nil
}

// SplitClasspath splits a classpath string on the OS list separator.
func SplitClasspath(s string) []string {
	var out []string
	for _, p := range filepath.SplitList(s) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first out-of-range or unknown setting.
func (c *Config) Validate() error {
	if c.Threshold < classfile.Java1_1 {
		return fmt.Errorf("config: threshold %d is below the oldest class file version %d", c.Threshold, classfile.Java1_1)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("config: max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.MaxClassSize <= 0 {
		return fmt.Errorf("config: max_class_size must be positive, got %d", c.MaxClassSize)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

func (l Log) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return lvl, fmt.Errorf("config: log level: %w", err)
	}
	return lvl, nil
}

// Logger builds a logger writing to w in the configured format and level.
func (l Log) Logger(w io.Writer) (*slog.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// EnhanceOptions returns the writer and detector options this configuration implies.
func (c *Config) EnhanceOptions(logger *slog.Logger) []enhance.Option {
	return []enhance.Option{
		enhance.WithLogger(logger),
		enhance.WithThreshold(c.Threshold),
		enhance.WithMarker(c.Marker),
		enhance.WithMaxDepth(c.MaxDepth),
	}
}

// LoaderOptions returns the classpath options this configuration implies.
func (c *Config) LoaderOptions(logger *slog.Logger) []classpath.Option {
	return []classpath.Option{
		classpath.WithLogger(logger),
		classpath.WithMaxClassSize(c.MaxClassSize),
	}
}
