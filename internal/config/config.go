/*
Package config implements configuration handling for the portfolio server and
the i18nctl tool.

Values start from built-in defaults, are overridden by an optional TOML file,
and finally by PORTFOLIO_* environment variables.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"
)

// DefaultCacheExpiration is how long a persisted dictionary stays valid.
const DefaultCacheExpiration = 7 * 24 * time.Hour

// Config represents the parsed configuration.
type Config struct {
	I18n    I18nConfig    `toml:"i18n" envPrefix:"PORTFOLIO_"`
	Server  ServerConfig  `toml:"server" envPrefix:"PORTFOLIO_"`
	Storage StorageConfig `toml:"storage" envPrefix:"PORTFOLIO_"`
}

// I18nConfig contains dictionary and cache settings.
type I18nConfig struct {
	// Directory holding <lang>.json dictionaries.
	LocalesDir string `toml:"locales_dir" env:"LOCALES_DIR"`
	// Base URL to fetch /i18n/<lang>.json from instead of LocalesDir.
	RemoteURL          string        `toml:"remote_url" env:"REMOTE_URL"`
	DefaultLanguage    string        `toml:"default_language" env:"DEFAULT_LANGUAGE"`
	SupportedLanguages []string      `toml:"supported_languages" env:"SUPPORTED_LANGUAGES" envSeparator:","`
	CacheVersion       string        `toml:"cache_version" env:"CACHE_VERSION"`
	CacheExpiration    time.Duration `toml:"cache_expiration" env:"CACHE_EXPIRATION"`
	// Prefix of the per-language cache keys.
	CachePrefix string `toml:"cache_prefix" env:"CACHE_PREFIX"`
	// Static phrase/word translations used by `i18nctl fill`.
	GlossaryFile string `toml:"glossary_file" env:"GLOSSARY_FILE"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port    int    `toml:"port" env:"PORT"`
	DevMode bool   `toml:"dev_mode" env:"DEV_MODE"`
	DevURL  string `toml:"dev_url" env:"DEV_URL"`
	DistDir string `toml:"dist_dir" env:"DIST_DIR"`
}

// StorageConfig contains local storage settings.
type StorageConfig struct {
	// SQLite file path; ":memory:" keeps nothing between runs.
	Path string `toml:"path" env:"STORAGE_PATH"`
	// Byte cap on stored keys and values; 0 is unlimited.
	Quota int64 `toml:"quota" env:"STORAGE_QUOTA"`
}

// Default returns a Config with the built-in values.
func Default() Config {
	return Config{
		I18n: I18nConfig{
			LocalesDir:         filepath.FromSlash("./locales"),
			DefaultLanguage:    "pt",
			SupportedLanguages: []string{"pt", "en", "es"},
			CacheVersion:       "1",
			CacheExpiration:    DefaultCacheExpiration,
			CachePrefix:        "portfolio_",
		},
		Server: ServerConfig{
			Port:    8080,
			DevURL:  "http://localhost:5173",
			DistDir: filepath.FromSlash("../oniwebsite/dist"),
		},
		Storage: StorageConfig{
			Path: filepath.FromSlash("./portfolio.db"),
		},
	}
}

// Load builds the configuration. A missing file is not an error; an
// unreadable or invalid one is.
func Load(file string) (Config, error) {
	conf := Default()
	if file != "" {
		if _, err := toml.DecodeFile(file, &conf); err != nil && !errors.Is(err, os.ErrNotExist) {
			return conf, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	if err := env.Parse(&conf); err != nil {
		return conf, fmt.Errorf("config: parse env: %w", err)
	}
	conf.normalize()
	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

func (c *Config) normalize() {
	c.I18n.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.I18n.DefaultLanguage))
	langs := make([]string, 0, len(c.I18n.SupportedLanguages))
	for _, lang := range c.I18n.SupportedLanguages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang != "" && !slices.Contains(langs, lang) {
			langs = append(langs, lang)
		}
	}
	c.I18n.SupportedLanguages = langs
	c.I18n.RemoteURL = strings.TrimRight(strings.TrimSpace(c.I18n.RemoteURL), "/")
}

// Validate checks the Config in its current state.
func (c *Config) Validate() error {
	if c.I18n.DefaultLanguage == "" {
		return errors.New("config: missing i18n.default_language value")
	}
	for _, lang := range append([]string{c.I18n.DefaultLanguage}, c.I18n.SupportedLanguages...) {
		if _, err := language.Parse(lang); err != nil {
			return fmt.Errorf("config: invalid language code %q: %w", lang, err)
		}
	}
	if !slices.Contains(c.I18n.SupportedLanguages, c.I18n.DefaultLanguage) {
		return fmt.Errorf("config: default language %q must be one of i18n.supported_languages", c.I18n.DefaultLanguage)
	}
	if strings.TrimSpace(c.I18n.CacheVersion) == "" {
		return errors.New("config: missing i18n.cache_version value")
	}
	if c.I18n.CacheExpiration <= 0 {
		return errors.New("config: i18n.cache_expiration must be positive")
	}
	if c.I18n.LocalesDir == "" && c.I18n.RemoteURL == "" {
		return errors.New("config: one of i18n.locales_dir or i18n.remote_url is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("config: server.port is invalid")
	}
	if c.Storage.Path == "" {
		return errors.New("config: missing storage.path value")
	}
	if c.Storage.Quota < 0 {
		return errors.New("config: storage.quota must not be negative")
	}
	return nil
}

// Supports reports whether lang is one of the supported languages.
func (c I18nConfig) Supports(lang string) bool {
	return slices.Contains(c.SupportedLanguages, lang)
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
