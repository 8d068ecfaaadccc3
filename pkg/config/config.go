// Package config loads beanbill settings from a JSON or YAML file with
// BEANBILL_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides. Nested keys use a double
// underscore: BEANBILL_AI__API_KEY sets ai.api_key.
const EnvPrefix = "BEANBILL_"

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = "config/config.yaml"

// Config holds the application configuration.
type Config struct {
	AI     AIConfig     `koanf:"ai"`
	Ledger LedgerConfig `koanf:"ledger"`
	Cache  CacheConfig  `koanf:"cache"`

	// Accounts are the expense accounts the classifier may assign.
	Accounts []string `koanf:"accounts"`
	// AssetMapping is tried in order; the first keyword found in the
	// payment instrument wins.
	AssetMapping []AssetRule `koanf:"asset_mapping"`

	BillsDir    string `koanf:"bills_dir"`
	MaxFileSize int64  `koanf:"max_file_size"`

	Log    LogConfig    `koanf:"log"`
	Export ExportConfig `koanf:"export"`
}

// AIConfig selects the classification model.
type AIConfig struct {
	Provider    string        `koanf:"provider"`
	APIKey      string        `koanf:"api_key"`
	APIBase     string        `koanf:"api_base"`
	Model       string        `koanf:"model"`
	Timeout     time.Duration `koanf:"timeout"`
	Temperature float32       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
}

// LedgerConfig locates the beancount files.
type LedgerConfig struct {
	Root       string `koanf:"root"`
	MainFile   string `koanf:"main_file"`
	MonthlyDir string `koanf:"monthly_dir"`
	Currency   string `koanf:"currency"`
	Title      string `koanf:"title"`
}

// CacheConfig selects the classification cache backend.
type CacheConfig struct {
	// Backend is one of file, bolt or postgres.
	Backend  string         `koanf:"backend"`
	Path     string         `koanf:"path"`
	SaveEach bool           `koanf:"save_each"`
	Postgres PostgresConfig `koanf:"postgres"`
}

// PostgresConfig holds the cache database connection.
type PostgresConfig struct {
	DSN string `koanf:"dsn"`
}

// AssetRule maps a payment instrument keyword to an asset account.
type AssetRule struct {
	Keyword string `koanf:"keyword"`
	Account string `koanf:"account"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
	File  string `koanf:"file"`
}

// ExportConfig enables optional post-import sinks.
type ExportConfig struct {
	CSV    CSVExportConfig    `koanf:"csv"`
	JSON   JSONExportConfig   `koanf:"json"`
	Sheets SheetsExportConfig `koanf:"sheets"`
}

// CSVExportConfig enables the CSV export when Path is set.
type CSVExportConfig struct {
	Path string `koanf:"path"`
}

// JSONExportConfig enables the JSON export when Path is set.
type JSONExportConfig struct {
	Path string `koanf:"path"`
}

// SheetsExportConfig enables the Google Sheets export when Name is set.
type SheetsExportConfig struct {
	ID          string `koanf:"id"`
	Title       string `koanf:"title"`
	Name        string `koanf:"name"`
	SecretsFile string `koanf:"secrets_file"`
	TokenFile   string `koanf:"token_file"`
}

// Enabled reports whether the Sheets export is configured.
func (s SheetsExportConfig) Enabled() bool { return s.Name != "" }

// Default returns the configuration used for unset keys.
func Default() Config {
	return Config{
		AI: AIConfig{
			Provider:    "openai",
			APIBase:     "https://api.deepseek.com",
			Model:       "deepseek-chat",
			Timeout:     30 * time.Second,
			Temperature: 0.1,
			MaxTokens:   100,
		},
		Ledger: LedgerConfig{
			Root:       ".",
			MainFile:   "main.beancount",
			MonthlyDir: "data",
			Currency:   "CNY",
		},
		Cache: CacheConfig{
			Backend: "file",
			Path:    "config/mapping.json",
		},
		BillsDir:    "bills",
		MaxFileSize: 10 * 1024 * 1024,
		Log:         LogConfig{Level: "info"},
		Export: ExportConfig{
			Sheets: SheetsExportConfig{
				SecretsFile: "config/client_secret.json",
				TokenFile:   "config/token.json",
			},
		},
	}
}

// Load reads path (JSON or YAML by extension) over the defaults, then
// applies environment overrides. An empty path loads the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	// The default endpoint belongs to the openai-compatible provider.
	if cfg.AI.Provider != "openai" && !k.Exists("ai.api_base") {
		cfg.AI.APIBase = ""
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return kjson.Parser(), nil
	case ".yaml", ".yml":
		return kyaml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// envKey maps BEANBILL_AI__API_KEY to ai.api_key. Account lists are
// comma separated.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if key == "accounts" {
		var out []string
		for _, a := range strings.Split(value, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
		return key, out
	}
	return key, value
}

// Validate checks the settings needed to import bills.
func (c *Config) Validate() error {
	var errs []error

	switch c.AI.Provider {
	case "openai":
		if c.AI.APIBase == "" {
			errs = append(errs, errors.New("ai.api_base is required"))
		}
	case "anthropic", "gemini":
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q is not one of openai, anthropic, gemini", c.AI.Provider))
	}
	if c.AI.APIKey == "" {
		errs = append(errs, errors.New("ai.api_key is required"))
	}
	if c.AI.Model == "" {
		errs = append(errs, errors.New("ai.model is required"))
	}
	if c.AI.APIBase != "" {
		u, err := url.Parse(c.AI.APIBase)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("ai.api_base %q must be an http(s) URL", c.AI.APIBase))
		}
	}

	if len(c.Accounts) == 0 {
		errs = append(errs, errors.New("accounts must list at least one account"))
	}
	for i, r := range c.AssetMapping {
		if strings.TrimSpace(r.Keyword) == "" || strings.TrimSpace(r.Account) == "" {
			errs = append(errs, fmt.Errorf("asset_mapping[%d]: keyword and account are required", i))
		}
	}

	switch c.Cache.Backend {
	case "file", "bolt":
		if c.Cache.Path == "" {
			errs = append(errs, errors.New("cache.path is required"))
		}
	case "postgres":
		if c.Cache.Postgres.DSN == "" {
			errs = append(errs, errors.New("cache.postgres.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of file, bolt, postgres", c.Cache.Backend))
	}

	if c.MaxFileSize <= 0 {
		errs = append(errs, errors.New("max_file_size must be positive"))
	}
	if c.Ledger.MainFile == "" {
		errs = append(errs, errors.New("ledger.main_file is required"))
	}
	return errors.Join(errs...)
}

// MainLedgerPath returns the main ledger file path.
func (c *Config) MainLedgerPath() string {
	return filepath.Join(c.Ledger.Root, c.Ledger.MainFile)
}
