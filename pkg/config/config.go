// Package config holds the settings of one export run and loads them from
// the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	rserrors "github.com/Sternrassler/repo-search/pkg/errors"
	"github.com/Sternrassler/repo-search/pkg/logging"
)

// Environment variables read by FromEnv.
const (
	EnvSearchStr   = "SEARCH_STR"
	EnvToken       = "GH_TOKEN"
	EnvFilePath    = "FILE_PATH"
	EnvAPIURL      = "REPOSEARCH_API_URL"
	EnvUserAgent   = "REPOSEARCH_USER_AGENT"
	EnvPerPage     = "REPOSEARCH_PER_PAGE"
	EnvMaxPages    = "REPOSEARCH_MAX_PAGES"
	EnvLimit       = "REPOSEARCH_LIMIT"
	EnvTimeout     = "REPOSEARCH_TIMEOUT"
	EnvRedisURL    = "REPOSEARCH_REDIS_URL"
	EnvCacheTTL    = "REPOSEARCH_CACHE_TTL"
	EnvLogLevel    = "REPOSEARCH_LOG_LEVEL"
	EnvLogPretty   = "REPOSEARCH_LOG_PRETTY"
	EnvMetricsFile = "REPOSEARCH_METRICS_FILE"
)

// MaxPerPage is the largest page size the search API accepts.
const MaxPerPage = 100

// Config holds the settings of one export run.
type Config struct {
	// Required
	SearchStr string
	Token     string
	FilePath  string

	// API
	APIBaseURL string
	UserAgent  string
	PerPage    int
	Timeout    time.Duration

	// MaxPages, when positive, stops after that many pages and writes what
	// was fetched. Zero fetches every page the first total implies.
	MaxPages int

	// Limit stops after the first Limit results (0 = all)
	Limit int

	// Cache (empty RedisURL disables)
	RedisURL string
	CacheTTL time.Duration

	// Observability
	LogLevel    string
	LogPretty   bool
	MetricsFile string
}

// Default returns a configuration with every optional setting filled in.
func Default() Config {
	return Config{
		APIBaseURL: "https://api.github.com",
		UserAgent:  "repo-search/0.1.0",
		PerPage:    30,
		Timeout:    30 * time.Second,
		CacheTTL:   10 * time.Minute,
		LogLevel:   string(logging.LevelInfo),
	}
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv overlays environment values on Default.
// Unparseable values are reported together; missing required values are left
// for Validate.
func FromEnv(lookup LookupFunc) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, invalid(key, "not an integer: %q", v))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, invalid(key, "not a duration: %q", v))
			return
		}
		*dst = d
	}

	str(EnvSearchStr, &cfg.SearchStr)
	str(EnvToken, &cfg.Token)
	str(EnvFilePath, &cfg.FilePath)
	str(EnvAPIURL, &cfg.APIBaseURL)
	str(EnvUserAgent, &cfg.UserAgent)
	num(EnvPerPage, &cfg.PerPage)
	num(EnvMaxPages, &cfg.MaxPages)
	num(EnvLimit, &cfg.Limit)
	dur(EnvTimeout, &cfg.Timeout)
	str(EnvRedisURL, &cfg.RedisURL)
	dur(EnvCacheTTL, &cfg.CacheTTL)
	str(EnvLogLevel, &cfg.LogLevel)
	str(EnvMetricsFile, &cfg.MetricsFile)

	if v, ok := lookup(EnvLogPretty); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, invalid(EnvLogPretty, "not a boolean: %q", v))
		} else {
			cfg.LogPretty = b
		}
	}

	return cfg, errors.Join(errs...)
}

// Validate reports every missing or out-of-range setting at once.
// Each problem is a CONFIGURATION error naming its field.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.SearchStr) == "" {
		errs = append(errs, rserrors.Missing(EnvSearchStr))
	}
	if strings.TrimSpace(c.Token) == "" {
		errs = append(errs, rserrors.Missing(EnvToken))
	}
	if c.FilePath == "" {
		errs = append(errs, rserrors.Missing(EnvFilePath))
	}

	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, invalid(EnvAPIURL, "invalid url %q", c.APIBaseURL))
	}
	if c.UserAgent == "" {
		errs = append(errs, rserrors.Missing(EnvUserAgent))
	}
	if c.PerPage < 1 || c.PerPage > MaxPerPage {
		errs = append(errs, invalid(EnvPerPage, "must be between 1 and %d, got %d", MaxPerPage, c.PerPage))
	}
	if c.MaxPages < 0 {
		errs = append(errs, invalid(EnvMaxPages, "must not be negative, got %d", c.MaxPages))
	}
	if c.Limit < 0 {
		errs = append(errs, invalid(EnvLimit, "must not be negative, got %d", c.Limit))
	}
	if c.Timeout <= 0 {
		errs = append(errs, invalid(EnvTimeout, "must be positive, got %s", c.Timeout))
	}
	if c.RedisURL != "" && c.CacheTTL <= 0 {
		errs = append(errs, invalid(EnvCacheTTL, "must be positive when caching, got %s", c.CacheTTL))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, invalid(EnvLogLevel, "%v", err))
	}

	return errors.Join(errs...)
}

// String renders the configuration with the token masked.
func (c Config) String() string {
	token := "<unset>"
	if c.Token != "" {
		token = "<redacted>"
	}
	return fmt.Sprintf("query=%q output=%q api=%s per_page=%d max_pages=%d limit=%d token=%s cache=%t",
		c.SearchStr, c.FilePath, c.APIBaseURL, c.PerPage, c.MaxPages, c.Limit, token, c.RedisURL != "")
}

func invalid(field, format string, args ...any) *rserrors.Error {
	e := rserrors.New(rserrors.KindConfiguration, "%s: "+format, append([]any{field}, args...)...)
	e.Field = field
	return e
}
