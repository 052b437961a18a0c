// Package config loads process configuration: defaults, an optional YAML
// file, then environment overrides. The struct is built once at startup and
// read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Cloudflare CloudflareConfig `yaml:"cloudflare"`
	Index      IndexConfig      `yaml:"index"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Sanitizer  SanitizerConfig  `yaml:"sanitizer"`
	Slack      SlackConfig      `yaml:"-"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// CloudflareConfig binds the Workers AI and AutoRAG services. The API token
// is secret and comes only from the environment.
type CloudflareConfig struct {
	AccountID  string `yaml:"account_id"`
	APIToken   string `yaml:"-"`
	BaseURL    string `yaml:"base_url"`
	EmbedModel string `yaml:"embed_model"`
	GenModel   string `yaml:"gen_model"`
	RAGName    string `yaml:"autorag_name"`
}

// IndexConfig selects the vector index backend: "vectorize" (managed) or
// "sqlite" (local).
type IndexConfig struct {
	Backend string `yaml:"backend"`
	Name    string `yaml:"name"`
	DataDir string `yaml:"data_dir"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type SanitizerConfig struct {
	// StripCodeRefs also strips code-call references from Slack answers.
	// The synchronous query path always strips them.
	StripCodeRefs bool `yaml:"strip_code_refs"`
}

// SlackConfig holds the signing secret. When empty, /slack rejects every
// request.
type SlackConfig struct {
	SigningSecret string `yaml:"-"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8787},
		Log:    LogConfig{Level: "info"},
		Cloudflare: CloudflareConfig{
			EmbedModel: "@cf/baai/bge-small-en-v1.5",
			GenModel:   "@cf/openai/gpt-oss-20b",
			RAGName:    "clickpost-docs",
		},
		Index: IndexConfig{
			Backend: "sqlite",
			Name:    "clickpost-docs",
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{TopK: 3},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", "ragbot")
}

// Load reads configuration from an optional .env file, an optional YAML
// config file (./config.yaml, then ~/.config/ragbot/config.yaml), and
// environment variables. Environment values override file values.
func Load() (Config, error) {
	// Best effort; a missing .env is normal.
	_ = godotenv.Load()
	return loadWith(findConfigPath(), os.LookupEnv)
}

func findConfigPath() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "ragbot", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func loadWith(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg, lookupEnv)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookupEnv func(string) (string, bool)) {
	setString := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := lookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := lookupEnv(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setInt("RAGBOT_PORT", &cfg.Server.Port)
	setString("RAGBOT_LOG_LEVEL", &cfg.Log.Level)
	setString("CLOUDFLARE_ACCOUNT_ID", &cfg.Cloudflare.AccountID)
	setString("CLOUDFLARE_API_TOKEN", &cfg.Cloudflare.APIToken)
	setString("RAGBOT_CF_BASE_URL", &cfg.Cloudflare.BaseURL)
	setString("RAGBOT_EMBED_MODEL", &cfg.Cloudflare.EmbedModel)
	setString("RAGBOT_GEN_MODEL", &cfg.Cloudflare.GenModel)
	setString("RAGBOT_AUTORAG_NAME", &cfg.Cloudflare.RAGName)
	setString("RAGBOT_INDEX_BACKEND", &cfg.Index.Backend)
	setString("RAGBOT_INDEX_NAME", &cfg.Index.Name)
	setString("RAGBOT_DATA_DIR", &cfg.Index.DataDir)
	setInt("RAGBOT_TOP_K", &cfg.Retrieval.TopK)
	setBool("RAGBOT_STRIP_CODE_REFS", &cfg.Sanitizer.StripCodeRefs)
	setString("SLACK_SIGNING_SECRET", &cfg.Slack.SigningSecret)
}

func validate(cfg Config) error {
	switch cfg.Index.Backend {
	case "sqlite":
	case "vectorize":
		if cfg.Cloudflare.AccountID == "" || cfg.Cloudflare.APIToken == "" {
			return fmt.Errorf("index backend %q requires CLOUDFLARE_ACCOUNT_ID and CLOUDFLARE_API_TOKEN", cfg.Index.Backend)
		}
	default:
		return fmt.Errorf("unknown index backend %q (expected sqlite or vectorize)", cfg.Index.Backend)
	}
	return nil
}
