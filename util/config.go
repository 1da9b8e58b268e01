package util

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const Name = "tootsite"
const ConfigFileName = "tootsite.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type LogConf struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json|logfmt
}

type SiteConf struct {
	Title   string `yaml:"title"`
	BaseURL string `yaml:"baseUrl"`
	Index   bool   `yaml:"index"`
	Feed    string `yaml:"feed"` // ""|rss|atom
}

type WaybackConf struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
	Retries         int    `yaml:"retries"`
	IntervalSeconds int    `yaml:"intervalSeconds"`
	UserAgent       string `yaml:"userAgent"`
}

type ServeConf struct {
	Addr string `yaml:"addr"`
}

type AppConfig struct {
	Conf struct {
		Output  string      `yaml:"output"`
		Log     LogConf     `yaml:"log"`
		Site    SiteConf    `yaml:"site"`
		Wayback WaybackConf `yaml:"wayback"`
		Serve   ServeConf   `yaml:"serve"`
	}
}

// ReadConf loads the embedded defaults, then the config file, then TOOTSITE_* env vars.
// An empty path looks for tootsite.yaml locally and in ~/.config/tootsite and is
// optional; an explicit path must exist.
func ReadConf(path string) (*AppConfig, error) {
	c := &AppConfig{}
	if err := yaml.Unmarshal(embeddedConfig, c); err != nil {
		return nil, fmt.Errorf("in embedded config: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = ResolveFilePath(ConfigFileName)
	}

	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, c); err != nil {
			return nil, fmt.Errorf("in config file %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		log.Debug("Config file not found, using embedded defaults", "path", path)
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *AppConfig) applyEnv() error {
	strs := map[string]*string{
		"TOOTSITE_OUTPUT":            &c.Conf.Output,
		"TOOTSITE_LOG_LEVEL":         &c.Conf.Log.Level,
		"TOOTSITE_LOG_FORMAT":        &c.Conf.Log.Format,
		"TOOTSITE_SITE_TITLE":        &c.Conf.Site.Title,
		"TOOTSITE_SITE_BASEURL":      &c.Conf.Site.BaseURL,
		"TOOTSITE_SITE_FEED":         &c.Conf.Site.Feed,
		"TOOTSITE_WAYBACK_ENDPOINT":  &c.Conf.Wayback.Endpoint,
		"TOOTSITE_WAYBACK_USERAGENT": &c.Conf.Wayback.UserAgent,
		"TOOTSITE_SERVE_ADDR":        &c.Conf.Serve.Addr,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TOOTSITE_WAYBACK_TIMEOUT":  &c.Conf.Wayback.TimeoutSeconds,
		"TOOTSITE_WAYBACK_RETRIES":  &c.Conf.Wayback.Retries,
		"TOOTSITE_WAYBACK_INTERVAL": &c.Conf.Wayback.IntervalSeconds,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if os.Getenv("TOOTSITE_WAYBACK") == "true" {
		c.Conf.Wayback.Enabled = true
	}
	if os.Getenv("TOOTSITE_SITE_INDEX") == "true" {
		c.Conf.Site.Index = true
	}
	return nil
}

// Validate fills defaults and rejects values nothing downstream can handle
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Conf.Output) == "" {
		c.Conf.Output = "output"
	}
	if c.Conf.Log.Level == "" {
		c.Conf.Log.Level = "info"
	}
	if _, err := log.ParseLevel(c.Conf.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Conf.Log.Format {
	case "":
		c.Conf.Log.Format = "text"
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("unsupported log.format: %s", c.Conf.Log.Format)
	}
	switch c.Conf.Site.Feed {
	case "", "rss", "atom":
	default:
		return fmt.Errorf("unsupported site.feed: %s", c.Conf.Site.Feed)
	}
	if c.Conf.Wayback.Endpoint == "" {
		c.Conf.Wayback.Endpoint = "https://web.archive.org/save/"
	}
	if c.Conf.Wayback.TimeoutSeconds <= 0 {
		c.Conf.Wayback.TimeoutSeconds = 60
	}
	if c.Conf.Wayback.Retries < 0 {
		return errors.New("wayback.retries must be >= 0")
	}
	if c.Conf.Wayback.IntervalSeconds < 0 {
		return errors.New("wayback.intervalSeconds must be >= 0")
	}
	if c.Conf.Serve.Addr == "" {
		c.Conf.Serve.Addr = "127.0.0.1:8080"
	}
	return nil
}
