// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/scu-nlp/scu-crawler/internal/crawler"
)

// Config captures every configuration knob of the harvester, mirroring the
// layout of config/settings.yaml.
type Config struct {
	Websites      WebsitesConfig      `mapstructure:"websites"`
	Crawler       CrawlerConfig       `mapstructure:"crawler"`
	DocumentTypes DocumentTypesConfig `mapstructure:"document_types"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// WebsitesConfig names the two harvested sites.
type WebsitesConfig struct {
	BaseURL   string              `mapstructure:"base_url"`
	NewsURL   string              `mapstructure:"news_url"`
	Personnel PersonnelSiteConfig `mapstructure:"personnel"`
	News      NewsSiteConfig      `mapstructure:"news"`
}

// PersonnelSiteConfig locates the announcement site menu.
type PersonnelSiteConfig struct {
	MenuURL string `mapstructure:"menu_url"`
}

// NewsSiteConfig locates the news listing and bounds the flat crawl.
type NewsSiteConfig struct {
	CategoryURL string `mapstructure:"category_url"`
	MaxPages    int    `mapstructure:"max_pages"`
}

// CrawlerConfig governs transport and politeness behavior.
type CrawlerConfig struct {
	Headers            HeadersConfig  `mapstructure:"headers"`
	Delays             DelaysConfig   `mapstructure:"delays"`
	Timeouts           TimeoutsConfig `mapstructure:"timeouts"`
	InsecureSkipVerify bool           `mapstructure:"insecure_skip_verify"`
}

// HeadersConfig carries default request headers.
type HeadersConfig struct {
	UserAgent string `mapstructure:"user_agent"`
}

// DelaysConfig holds the delay policy in seconds. The retry delay is a
// fixed inter-attempt interval; the request delay is the post-success
// politeness pause.
type DelaysConfig struct {
	RequestDelay float64 `mapstructure:"request_delay"`
	RetryDelay   float64 `mapstructure:"retry_delay"`
	MaxRetries   int     `mapstructure:"max_retries"`
}

// TimeoutsConfig is the connect/read timeout pair in seconds.
type TimeoutsConfig struct {
	Connect int `mapstructure:"connect"`
	Read    int `mapstructure:"read"`
}

// DocumentTypesConfig is the attachment extension allowlist.
type DocumentTypesConfig struct {
	SupportedExtensions []string `mapstructure:"supported_extensions"`
}

// StorageConfig sets output locations and file names.
type StorageConfig struct {
	RawDataDir string      `mapstructure:"raw_data_dir"`
	DBDir      string      `mapstructure:"db_dir"`
	Files      FilesConfig `mapstructure:"files"`
}

// FilesConfig names the four persistence outputs.
type FilesConfig struct {
	PDFLinks      string `mapstructure:"pdf_links"`
	PersonnelData string `mapstructure:"personnel_data"`
	NewsTexts     string `mapstructure:"news_texts"`
	NewsData      string `mapstructure:"news_data"`
}

// ServerConfig controls the HTTP service layer.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment. An empty path falls back
// to config/settings.yaml in the usual search locations; a missing file is
// not fatal since every key has a default.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCU_CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("settings")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("websites.base_url", "https://web-ch.scu.edu.tw")
	v.SetDefault("websites.news_url", "https://news.scu.edu.tw")
	v.SetDefault("websites.personnel.menu_url", "/web/person")
	v.SetDefault("websites.news.category_url", "/category/university-news")
	v.SetDefault("websites.news.max_pages", 50)

	v.SetDefault("crawler.headers.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("crawler.delays.request_delay", 1.0)
	v.SetDefault("crawler.delays.retry_delay", 5.0)
	v.SetDefault("crawler.delays.max_retries", 3)
	v.SetDefault("crawler.timeouts.connect", 10)
	v.SetDefault("crawler.timeouts.read", 30)
	v.SetDefault("crawler.insecure_skip_verify", true)

	v.SetDefault("document_types.supported_extensions", []string{
		".pdf", ".doc", ".docx", ".xls", ".xlsx",
		".ppt", ".pptx", ".csv", ".odt", ".ods", ".odp", ".rtf",
	})

	v.SetDefault("storage.raw_data_dir", "data/raw")
	v.SetDefault("storage.db_dir", "data")
	v.SetDefault("storage.files.pdf_links", "pdf_links.txt")
	v.SetDefault("storage.files.personnel_data", "personnel_data.json")
	v.SetDefault("storage.files.news_texts", "news_texts.txt")
	v.SetDefault("storage.files.news_data", "news_data.json")

	v.SetDefault("server.port", 8000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Websites.BaseURL == "" {
		return fmt.Errorf("websites.base_url must be set")
	}
	if c.Websites.NewsURL == "" {
		return fmt.Errorf("websites.news_url must be set")
	}
	if c.Crawler.Headers.UserAgent == "" {
		return fmt.Errorf("crawler.headers.user_agent must be set")
	}
	if c.Storage.RawDataDir == "" {
		return fmt.Errorf("storage.raw_data_dir must be set")
	}
	if c.Crawler.Delays.MaxRetries < 0 {
		return fmt.Errorf("crawler.delays.max_retries must be >= 0")
	}
	if c.Websites.News.MaxPages <= 0 {
		return fmt.Errorf("websites.news.max_pages must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// SessionConfig translates the transport knobs into a crawler session
// configuration.
func (c Config) SessionConfig() crawler.SessionConfig {
	return crawler.SessionConfig{
		UserAgent:          c.Crawler.Headers.UserAgent,
		InsecureSkipVerify: c.Crawler.InsecureSkipVerify,
		Policy: crawler.RetryPolicy{
			MaxRetries:     c.Crawler.Delays.MaxRetries,
			RetryDelay:     secondsToDuration(c.Crawler.Delays.RetryDelay),
			RequestDelay:   secondsToDuration(c.Crawler.Delays.RequestDelay),
			ConnectTimeout: time.Duration(c.Crawler.Timeouts.Connect) * time.Second,
			ReadTimeout:    time.Duration(c.Crawler.Timeouts.Read) * time.Second,
		},
	}
}

// PersonnelConfig resolves the personnel site parameters.
func (c Config) PersonnelConfig() crawler.PersonnelConfig {
	return crawler.PersonnelConfig{
		BaseURL:    c.Websites.BaseURL,
		MenuURL:    c.Websites.BaseURL + c.Websites.Personnel.MenuURL,
		Extensions: c.DocumentTypes.SupportedExtensions,
	}
}

// NewsConfig resolves the news site parameters. A positive pages value
// overrides the configured ceiling for this call only.
func (c Config) NewsConfig(pages int) crawler.NewsConfig {
	maxPages := c.Websites.News.MaxPages
	if pages > 0 {
		maxPages = pages
	}
	return crawler.NewsConfig{
		CategoryURL: c.Websites.NewsURL + c.Websites.News.CategoryURL,
		MaxPages:    maxPages,
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
