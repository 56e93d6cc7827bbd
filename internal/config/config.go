package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds instance-level configuration for the service.
type Config struct {
	HealthAddr string `yaml:"health_addr"`
	AdminAddr  string `yaml:"admin_addr"`

	DBType      string        `yaml:"db_type"`
	DSN         string        `yaml:"dsn"`
	ReadTimeout time.Duration `yaml:"read_timeout"`

	PollInterval       time.Duration `yaml:"poll_interval"`
	FlushThreshold     int64         `yaml:"flush_threshold"`
	MinTransitionBatch int           `yaml:"min_transition_batch"`
	MinPeriodicBatch   int           `yaml:"min_periodic_batch"`

	Workers  int `yaml:"workers"`
	MaxQueue int `yaml:"max_queue"`

	ImageRoot     string  `yaml:"image_root"`
	BlurThreshold float64 `yaml:"blur_threshold"`
	OutputFile    string  `yaml:"output_file"`

	LogLevel        string        `yaml:"log_level"`
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`
}

// Default returns the configuration used when neither flags nor a file override a value.
func Default() Config {
	return Config{
		HealthAddr:         "localhost:50051",
		AdminAddr:          "localhost:8080",
		DBType:             "postgres",
		DSN:                "postgres://postgres@127.0.0.1:5432/knitting?sslmode=disable",
		ReadTimeout:        3 * time.Second,
		PollInterval:       5 * time.Second,
		FlushThreshold:     100,
		MinTransitionBatch: 1,
		MinPeriodicBatch:   1,
		Workers:            2,
		MaxQueue:           16,
		ImageRoot:          "/home/kniti/projects/knit-i/knitting-core/images",
		BlurThreshold:      0.5,
		LogLevel:           "info",
		GracefulTimeout:    10 * time.Second,
	}
}

func bind(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.HealthAddr, "healthAddr", c.HealthAddr, "gRPC health listen address")
	fs.StringVar(&c.AdminAddr, "adminAddr", c.AdminAddr, "HTTP admin listen address (empty disables)")

	fs.StringVar(&c.DBType, "dbType", c.DBType, "Database type: postgres|sqlite")
	fs.StringVar(&c.DSN, "dsn", c.DSN, "Database connection string")
	fs.DurationVar(&c.ReadTimeout, "readTimeout", c.ReadTimeout, "Timeout for each store read")

	fs.DurationVar(&c.PollInterval, "pollInterval", c.PollInterval, "Interval between polls of the active roll")
	fs.Int64Var(&c.FlushThreshold, "flushThreshold", c.FlushThreshold, "Revolution modulus that triggers a periodic flush (0 disables)")
	fs.IntVar(&c.MinTransitionBatch, "minTransitionBatch", c.MinTransitionBatch, "Batch size a roll transition must exceed to flush")
	fs.IntVar(&c.MinPeriodicBatch, "minPeriodicBatch", c.MinPeriodicBatch, "Batch size a periodic flush must exceed")

	fs.IntVar(&c.Workers, "workers", c.Workers, "Concurrent batch processing workers")
	fs.IntVar(&c.MaxQueue, "maxQueue", c.MaxQueue, "Max pending batches before new ones are dropped")

	fs.StringVar(&c.ImageRoot, "imageRoot", c.ImageRoot, "Root directory of camera frames")
	fs.Float64Var(&c.BlurThreshold, "blurThreshold", c.BlurThreshold, "Average blur score in [0,1] above which a folder is reported blurry")
	fs.StringVar(&c.OutputFile, "outputFile", c.OutputFile, "Append focus reports to this file instead of stdout")

	fs.StringVar(&c.LogLevel, "logLevel", c.LogLevel, "Log level: debug|info|warn|error")
	fs.DurationVar(&c.GracefulTimeout, "gracefulTimeout", c.GracefulTimeout, "Graceful shutdown timeout")
}

// RegisterFlags registers CLI flags and returns a reader that captures them after flag.Parse().
// When -config names a YAML file, the file is applied first and explicitly set flags win.
func RegisterFlags() func() (Config, error) {
	path := flag.String("config", "", "Optional YAML config file")

	cfg := Default()
	bind(flag.CommandLine, &cfg)

	return func() (Config, error) {
		if *path == "" {
			return cfg, cfg.Validate()
		}

		out, err := LoadFile(*path)
		if err != nil {
			return Config{}, err
		}

		overlay := flag.NewFlagSet("overlay", flag.ContinueOnError)
		bind(overlay, &out)

		var setErr error

		flag.Visit(func(f *flag.Flag) {
			if f.Name == "config" {
				return
			}

			setErr = errors.Join(setErr, overlay.Set(f.Name, f.Value.String()))
		})

		if setErr != nil {
			return Config{}, setErr
		}

		return out, out.Validate()
	}
}

// LoadFile reads a YAML file on top of Default.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that values are usable.
func (c Config) Validate() error {
	var errs []error

	switch c.DBType {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("db_type %q must be postgres or sqlite", c.DBType))
	}

	if c.DSN == "" {
		errs = append(errs, errors.New("dsn is required"))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be > 0"))
	}

	if c.FlushThreshold < 0 {
		errs = append(errs, errors.New("flush_threshold must be >= 0"))
	}

	if c.MinTransitionBatch < 0 || c.MinPeriodicBatch < 0 {
		errs = append(errs, errors.New("minimum batch sizes must be >= 0"))
	}

	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be >= 1"))
	}

	if c.MaxQueue < 0 {
		errs = append(errs, errors.New("max_queue must be >= 0"))
	}

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}

	return l, nil
}
