// Package config loads runtime settings and maps them onto component options.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/animnext/evalvm"
	"github.com/mogaika/animnext/registry"
	"github.com/mogaika/animnext/transform"
)

type Registry struct {
	DefaultBlockSize int  `yaml:"default_block_size"`
	LeakCheck        bool `yaml:"leak_check"`
}

type Evaluation struct {
	Layout string `yaml:"layout"`
	// Workers of the pass scheduler, 0 picks one less than the cpu count.
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Registry   Registry   `yaml:"registry"`
	Evaluation Evaluation `yaml:"evaluation"`
	Log        Log        `yaml:"log"`
}

func Default() *Config {
	return &Config{
		Registry: Registry{
			DefaultBlockSize: registry.DEFAULT_BLOCK_SIZE,
			LeakCheck:        true,
		},
		Evaluation: Evaluation{
			Layout:    transform.LayoutSoA.String(),
			QueueSize: 256,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Parse reads yaml over the defaults. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	return decode(bytes.NewReader(data))
}

func decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "Can't parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open config '%s'", path)
	}
	defer f.Close()
	cfg, err := decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Config '%s'", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Registry.DefaultBlockSize <= 0 {
		return errors.Errorf("registry.default_block_size must be positive, got %d", c.Registry.DefaultBlockSize)
	}
	if _, err := transform.ParseLayout(c.Evaluation.Layout); err != nil {
		return errors.Wrap(err, "evaluation.layout")
	}
	if c.Evaluation.Workers < 0 || c.Evaluation.QueueSize <= 0 {
		return errors.Errorf("evaluation: bad worker pool size %d/%d", c.Evaluation.Workers, c.Evaluation.QueueSize)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// Layout panics on an unvalidated config.
func (c *Config) Layout() transform.Layout {
	l, err := transform.ParseLayout(c.Evaluation.Layout)
	if err != nil {
		panic(err)
	}
	return l
}

func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(level)
	}
	if c.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func (c *Config) RegistryOptions(log logrus.FieldLogger) []registry.Option {
	return []registry.Option{
		registry.WithLogger(log),
		registry.WithDefaultBlockSize(c.Registry.DefaultBlockSize),
		registry.WithLeakCheck(c.Registry.LeakCheck),
	}
}

func (c *Config) VMOptions(log logrus.FieldLogger) []evalvm.Option {
	return []evalvm.Option{
		evalvm.WithLogger(log),
		evalvm.WithLayout(c.Layout()),
	}
}

func (c *Config) SchedulerOptions(log logrus.FieldLogger) []evalvm.SchedulerOption {
	opts := []evalvm.SchedulerOption{
		evalvm.WithSchedulerLogger(log),
		evalvm.WithQueueSize(c.Evaluation.QueueSize),
	}
	if c.Evaluation.Workers > 0 {
		opts = append(opts, evalvm.WithWorkers(c.Evaluation.Workers))
	}
	return opts
}
