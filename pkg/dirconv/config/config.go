// Package config layers dirconv settings from defaults, a config file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/arthur-debert/dirconv/pkg/dirconv"
	"github.com/arthur-debert/dirconv/pkg/dirconv/classify"
	"github.com/arthur-debert/dirconv/pkg/dirconv/filter"
	"github.com/arthur-debert/dirconv/pkg/dirconv/transcode"
)

// EnvPrefix prefixes the environment variables read by New.
const EnvPrefix = "DIRCONV"

// Keys shared by config files, environment variables and flag bindings.
const (
	KeyCharset  = "charset"
	KeyExclude  = "exclude"
	KeyClasses  = "classes"
	KeyPrint    = "print"
	KeyRename   = "rename"
	KeyDryRun   = "dry_run"
	KeyForce    = "force"
	KeyNull     = "null"
	KeyDebug    = "debug"
	KeyLogLevel = "log_level"
	KeyPlan     = "plan"
	KeySummary  = "summary"
)

// Config is the merged configuration.
type Config struct {
	Charset  string   `mapstructure:"charset"`
	Exclude  []string `mapstructure:"exclude"`
	Classes  []string `mapstructure:"classes"`
	Print    bool     `mapstructure:"print"`
	Rename   bool     `mapstructure:"rename"`
	DryRun   bool     `mapstructure:"dry_run"`
	Force    bool     `mapstructure:"force"`
	Null     bool     `mapstructure:"null"`
	Debug    int      `mapstructure:"debug"`
	LogLevel string   `mapstructure:"log_level"`
	PlanFile string   `mapstructure:"plan"`
	Summary  bool     `mapstructure:"summary"`
}

// New returns a viper instance with dirconv's defaults and environment
// binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyCharset, dirconv.DefaultCharset)
	v.SetDefault(KeyExclude, []string{})
	v.SetDefault(KeyClasses, []string{classify.Legacy8Bit.String()})
	v.SetDefault(KeyPrint, false)
	v.SetDefault(KeyRename, false)
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyForce, false)
	v.SetDefault(KeyNull, false)
	v.SetDefault(KeyDebug, 0)
	v.SetDefault(KeyLogLevel, "")
	v.SetDefault(KeyPlan, "")
	v.SetDefault(KeySummary, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv() // DIRCONV_CHARSET, DIRCONV_DRY_RUN, ...
	return v
}

// ReadFile reads the config file at path or, if path is empty, looks for
// dirconv.{yaml,toml,...} in $HOME/.config/dirconv and the working
// directory. A missing file is not an error when searching. It returns the
// file used, if any.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "dirconv"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("dirconv")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes and validates the merged settings of v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the charset, classes, patterns and log level.
func (c *Config) Validate() error {
	if _, err := transcode.Lookup(c.Charset); err != nil {
		return fmt.Errorf("charset: %w", err)
	}
	if _, err := classify.ParseSelection(c.Classes); err != nil {
		return fmt.Errorf("classes: %w", err)
	}
	if _, err := filter.Compile(c.Exclude...); err != nil {
		return fmt.Errorf("exclude: %w", err)
	}
	if c.LogLevel != "" {
		if _, err := dirconv.LogLevelFromString(c.LogLevel); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}
	if c.Debug < 0 {
		return fmt.Errorf("debug: negative verbosity %d", c.Debug)
	}
	return nil
}

// Options converts the configuration into walker options.
func (c *Config) Options() (dirconv.Options, error) {
	sel, err := classify.ParseSelection(c.Classes)
	if err != nil {
		return dirconv.Options{}, err
	}
	excl, err := filter.Compile(c.Exclude...)
	if err != nil {
		return dirconv.Options{}, err
	}
	return dirconv.Options{
		Charset:   c.Charset,
		Selection: sel,
		Print:     c.Print,
		Null:      c.Null,
		Rename:    c.Rename,
		DryRun:    c.DryRun,
		Force:     c.Force,
		Exclude:   excl,
	}, nil
}

// Level returns the log level: LogLevel when set, otherwise the level for
// the -d count.
func (c *Config) Level() zerolog.Level {
	if c.LogLevel != "" {
		if level, err := dirconv.LogLevelFromString(c.LogLevel); err == nil {
			return level
		}
	}
	return dirconv.LevelFromVerbosity(c.Debug)
}
