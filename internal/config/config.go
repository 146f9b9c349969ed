package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const EnvPrefix = "UPLOADER"

const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Rule configures one expected upload of POST /upload.
type Rule struct {
	Key string `mapstructure:"key"`
	// Name is the destination relative to the files directory. It may use
	// the placeholders understood by uploader.TemplateName.
	Name     string   `mapstructure:"name"`
	Types    []string `mapstructure:"types"`
	Optional bool     `mapstructure:"optional"`
}

type Uploads struct {
	Path          string `mapstructure:"path"`
	FileMode      string `mapstructure:"file_mode"`
	DirectoryMode string `mapstructure:"directory_mode"`
	// MaxMemory is the part of a multipart body kept in memory; the rest
	// is spooled to temporary files.
	MaxMemory    int64  `mapstructure:"max_memory"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
	Rules        []Rule `mapstructure:"rules"`
}

type Records struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Database string `mapstructure:"database"`
}

type Janitor struct {
	Enabled   bool          `mapstructure:"enabled"`
	Every     time.Duration `mapstructure:"every"`
	Retention time.Duration `mapstructure:"retention"`
	TmpMaxAge time.Duration `mapstructure:"tmp_max_age"`
	BatchSize int           `mapstructure:"batch_size"`
}

type Log struct {
	Debug bool `mapstructure:"debug"`
	JSON  bool `mapstructure:"json"`
}

type Config struct {
	Listen  string  `mapstructure:"listen"`
	Uploads Uploads `mapstructure:"uploads"`
	Records Records `mapstructure:"records"`
	Janitor Janitor `mapstructure:"janitor"`
	Log     Log     `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("uploads.path", "/var/lib/uploader")
	v.SetDefault("uploads.file_mode", "0644")
	v.SetDefault("uploads.directory_mode", "0755")
	v.SetDefault("uploads.max_memory", 32<<20)
	v.SetDefault("uploads.max_body_bytes", 1500<<20)
	v.SetDefault("records.driver", DriverNone)
	v.SetDefault("records.dsn", "")
	v.SetDefault("records.database", "uploader")
	v.SetDefault("janitor.enabled", true)
	v.SetDefault("janitor.every", time.Minute)
	v.SetDefault("janitor.retention", 0)
	v.SetDefault("janitor.tmp_max_age", 10*time.Minute)
	v.SetDefault("janitor.batch_size", 500)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.json", false)
}

// Load reads the configuration file at path, if any, and applies
// UPLOADER_* environment overrides (UPLOADER_UPLOADS_PATH for uploads.path).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Uploads.Path == "" {
		result = multierror.Append(result, errors.New("uploads.path is empty"))
	}
	if _, err := ParseMode(c.Uploads.FileMode); err != nil {
		result = multierror.Append(result, fmt.Errorf("uploads.file_mode: %w", err))
	}
	if _, err := ParseMode(c.Uploads.DirectoryMode); err != nil {
		result = multierror.Append(result, fmt.Errorf("uploads.directory_mode: %w", err))
	}

	seen := map[string]bool{}
	for i, r := range c.Uploads.Rules {
		switch {
		case r.Key == "":
			result = multierror.Append(result, fmt.Errorf("uploads.rules[%d]: key is empty", i))
		case seen[r.Key]:
			result = multierror.Append(result, fmt.Errorf("uploads.rules[%d]: duplicate key %q", i, r.Key))
		}
		if r.Name == "" {
			result = multierror.Append(result, fmt.Errorf("uploads.rules[%d]: name is empty", i))
		}
		seen[r.Key] = true
	}

	switch c.Records.Driver {
	case DriverNone, DriverMemory:
	case DriverPostgres, DriverMongo:
		if c.Records.DSN == "" {
			result = multierror.Append(result, fmt.Errorf("records.dsn is required for driver %s", c.Records.Driver))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("records.driver: unknown driver %q", c.Records.Driver))
	}

	return result.ErrorOrNil()
}

func (c *Config) Paths() UploadPaths {
	return NewUploadPaths(c.Uploads.Path)
}

func (c *Config) FileMode() os.FileMode {
	m, _ := ParseMode(c.Uploads.FileMode)
	return m
}

func (c *Config) DirectoryMode() os.FileMode {
	m, _ := ParseMode(c.Uploads.DirectoryMode)
	return m
}

// ParseMode parses an octal permission string such as "0644" or "0o644".
func ParseMode(s string) (os.FileMode, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0o")
	m, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q", s)
	}
	if m > 0o777 {
		return 0, fmt.Errorf("mode %q out of range", s)
	}
	return os.FileMode(m), nil
}
