package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oy3o/enhance"
)

func mapEnv(vars map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load("", mapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, enhance.DefaultMarker, cfg.Marker)
	assert.Equal(t, 51, cfg.Threshold)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent.toml"), mapEnv(nil))
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "enhance.toml", `
classpath = ["build/classes", "/opt/lib/openjpa.jar"]
marker = "com.acme.Tracked"
threshold = 52
max_depth = 64

[log]
level = "debug"
format = "json"
`)

	cfg, err := load(path, mapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "build/classes"), "/opt/lib/openjpa.jar"}, cfg.Classpath)
	assert.Equal(t, "com.acme.Tracked", cfg.Marker)
	assert.Equal(t, 52, cfg.Threshold)
	assert.Equal(t, 64, cfg.MaxDepth)
	assert.Equal(t, Log{Level: "debug", Format: "json"}, cfg.Log)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeFile(t, t.TempDir(), "enhance.toml", "markr = \"x\"\n")
	_, err := load(path, mapEnv(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "markr")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "enhance.toml", "marker = \"from/File\"\nthreshold = 52\n")

	cfg, err := load(path, mapEnv(map[string]string{
		EnvMarker:    "from/Env",
		EnvThreshold: "55",
		EnvClasspath: strings.Join([]string{"a", " b ", ""}, string(os.PathListSeparator)),
		EnvLogLevel:  "warn",
	}))
	require.NoError(t, err)
	assert.Equal(t, "from/Env", cfg.Marker)
	assert.Equal(t, 55, cfg.Threshold)
	assert.Equal(t, []string{"a", "b"}, cfg.Classpath)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"threshold not a number": {EnvThreshold: "seven"},
		"threshold too old":      {EnvThreshold: "12"},
		"log level":              {EnvLogLevel: "loud"},
		"log format":             {EnvLogFormat: "xml"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			_, err := load("", mapEnv(env))
			assert.Error(t, err)
		})
	}
}

func TestNewEnv_DotenvUnderProcess(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, ".env", "ENHANCE_MARKER=from/Dotenv\nENHANCE_LOG_LEVEL=debug\n")
	second := writeFile(t, dir, "local.env", "ENHANCE_MARKER=from/Second\nENHANCE_LOG_FORMAT=json\n")

	env, err := newEnv(mapEnv(map[string]string{EnvLogLevel: "error"}), first, second, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	v, ok := env(EnvMarker)
	assert.True(t, ok)
	assert.Equal(t, "from/Dotenv", v)

	v, _ = env(EnvLogLevel)
	assert.Equal(t, "error", v)

	v, _ = env(EnvLogFormat)
	assert.Equal(t, "json", v)

	_, ok = env(EnvThreshold)
	assert.False(t, ok)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Log{Level: "warn", Format: "json"}.Logger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
