// Package config holds dblpfetch settings: defaults, an optional YAML file
// with environment expansion, DBLPFETCH_* overrides, and validation.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"dblpfetch/src/internal/dblp"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvConfigFile = "DBLPFETCH_CONFIG"
	EnvBibFile    = "DBLPFETCH_BIBTEX_FILE"
	EnvInterval   = "DBLPFETCH_INTERVAL"
	EnvTimeout    = "DBLPFETCH_TIMEOUT"
	EnvSearchURL  = "DBLPFETCH_SEARCH_URL"
	EnvRecordURL  = "DBLPFETCH_RECORD_URL"
	EnvUserAgent  = "DBLPFETCH_USER_AGENT"
)

// Config represents one run's settings.
type Config struct {
	BibFile   string        `yaml:"bibtex_file"`
	Quiet     bool          `yaml:"quiet"`
	Interval  time.Duration `yaml:"interval"`
	Timeout   time.Duration `yaml:"timeout"`
	SearchURL string        `yaml:"search_url"`
	RecordURL string        `yaml:"record_url"`
	UserAgent string        `yaml:"user_agent"`
	Commit    bool          `yaml:"commit"`
}

// NewDefault returns the settings used when nothing else is configured.
func NewDefault() *Config {
	return &Config{
		BibFile:   "dblp.bib",
		Interval:  time.Second,
		Timeout:   30 * time.Second,
		SearchURL: dblp.DefaultSearchURL,
		RecordURL: dblp.DefaultRecordURL,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BibFile, validation.Required),
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.SearchURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.RecordURL, validation.Required, validation.By(httpURL)),
	)
}

func httpURL(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

// Load reads a YAML file into c, expanding ${VAR} references first. Keys
// absent from the file keep their current values.
func (c *Config) Load(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

// ApplyEnv overrides fields from DBLPFETCH_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvBibFile); v != "" {
		c.BibFile = v
	}
	if v := getenv(EnvSearchURL); v != "" {
		c.SearchURL = v
	}
	if v := getenv(EnvRecordURL); v != "" {
		c.RecordURL = v
	}
	if v := getenv(EnvUserAgent); v != "" {
		c.UserAgent = v
	}
	for name, dst := range map[string]*time.Duration{EnvInterval: &c.Interval, EnvTimeout: &c.Timeout} {
		v := getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
	}
	return nil
}
