package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/animnext/transform"
)

func TestDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, transform.LayoutSoA, cfg.Layout())
	assert.Len(t, cfg.RegistryOptions(logrus.StandardLogger()), 3)
	assert.Len(t, cfg.SchedulerOptions(logrus.StandardLogger()), 2)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
registry:
  default_block_size: 16
  leak_check: false
evaluation:
  layout: aos
  workers: 3
log:
  level: debug
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Registry.DefaultBlockSize)
	assert.False(t, cfg.Registry.LeakCheck)
	assert.Equal(t, transform.LayoutAoS, cfg.Layout())
	assert.Equal(t, 3, cfg.Evaluation.Workers)
	assert.Equal(t, 256, cfg.Evaluation.QueueSize)
	assert.Len(t, cfg.SchedulerOptions(logrus.StandardLogger()), 3)

	log := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
	}{
		{"unknown key", "registry:\n  block: 1\n"},
		{"block size", "registry:\n  default_block_size: 0\n"},
		{"layout", "evaluation:\n  layout: interleaved\n"},
		{"workers", "evaluation:\n  workers: -1\n"},
		{"idle timeout", "evaluation:\n  idle_timeout: 1s\n"},
		{"level", "log:\n  level: loud\n"},
		{"format", "log:\n  format: xml\n"},
		{"syntax", "registry: [\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "animnext.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}
