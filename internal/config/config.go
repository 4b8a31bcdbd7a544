package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"zerolag/internal/domain"
)

// Config models zerolag.yml.
type Config struct {
	Server struct {
		Addr        string   `yaml:"addr"`
		BasePath    string   `yaml:"base_path"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Store struct {
		Backend    string `yaml:"backend"`
		SQLiteFile string `yaml:"sqlite_file"`
		BoltFile   string `yaml:"bolt_file"`
	} `yaml:"store"`
	Challenges struct {
		Backend     string `yaml:"backend"`
		RedisAddr   string `yaml:"redis_addr"`
		RedisDB     int    `yaml:"redis_db"`
		RedisPrefix string `yaml:"redis_prefix"`
	} `yaml:"challenges"`
	Auth struct {
		ChallengeTTL     time.Duration `yaml:"challenge_ttl"`
		ConsumeOnFailure bool          `yaml:"consume_on_failure"`
		SessionTTL       time.Duration `yaml:"session_ttl"`
		Admins           []string      `yaml:"admins"`
	} `yaml:"auth"`
	Ledger struct {
		AllowResubmission bool `yaml:"allow_resubmission"`
	} `yaml:"ledger"`
	Files struct {
		MaxInlineBytes int64 `yaml:"max_inline_bytes"`
		// MaxUploadBytes caps the decoded upload; larger files are refused.
		MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	} `yaml:"files"`
	Chain struct {
		RPCURL     string `yaml:"rpc_url"`
		Contract   string `yaml:"contract"`
		PrivateKey string `yaml:"private_key"`
		GasLimit   uint64 `yaml:"gas_limit"`
	} `yaml:"chain"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with '/'")
	}
	switch c.Store.Backend {
	case "memory", "sqlite", "bolt":
	default:
		return fmt.Errorf("config.store.backend must be one of memory, sqlite, bolt (got %q)", c.Store.Backend)
	}
	switch c.Challenges.Backend {
	case "kv":
	case "redis":
		if c.Challenges.RedisAddr == "" {
			return fmt.Errorf("config.challenges.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config.challenges.backend must be kv or redis (got %q)", c.Challenges.Backend)
	}
	if c.Auth.ChallengeTTL < 0 {
		return fmt.Errorf("config.auth.challenge_ttl must not be negative")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("config.auth.session_ttl must be positive")
	}
	for _, admin := range c.Auth.Admins {
		if !common.IsHexAddress(admin) {
			return fmt.Errorf("config.auth.admins contains invalid address %q", admin)
		}
	}
	if c.Files.MaxInlineBytes < 0 {
		return fmt.Errorf("config.files.max_inline_bytes must not be negative")
	}
	if c.Files.MaxUploadBytes < 0 {
		return fmt.Errorf("config.files.max_upload_bytes must not be negative")
	}
	if (c.Chain.RPCURL == "") != (c.Chain.Contract == "") {
		return fmt.Errorf("config.chain.rpc_url and config.chain.contract must be set together")
	}
	if c.Chain.Contract != "" && !common.IsHexAddress(c.Chain.Contract) {
		return fmt.Errorf("config.chain.contract is not an address: %q", c.Chain.Contract)
	}
	if c.Chain.PrivateKey != "" && c.Chain.RPCURL == "" {
		return fmt.Errorf("config.chain.private_key requires config.chain.rpc_url")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be debug, info, warn or error (got %q)", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json (got %q)", c.Log.Format)
	}
	return nil
}

// IsAdmin reports whether identity is listed in auth.admins.
func (c *Config) IsAdmin(identity string) bool {
	for _, admin := range c.Auth.Admins {
		if domain.SameIdentity(admin, identity) {
			return true
		}
	}
	return false
}

// ChainEnabled reports whether an RPC endpoint and contract are configured.
func (c *Config) ChainEnabled() bool {
	return c.Chain.RPCURL != "" && c.Chain.Contract != ""
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "zerolag.yml")
}

// Load reads the workspace config, falling back to defaults when the file
// does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(DefaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses raw YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const DefaultTemplate = `server:
  addr: 127.0.0.1:4000
  base_path: /api
  cors_origins: ["*"]

store:
  backend: sqlite
  bolt_file: ""

challenges:
  backend: kv
  redis_addr: ""
  redis_db: 0
  redis_prefix: "zerolag:challenge:"

auth:
  challenge_ttl: 10m
  consume_on_failure: false
  session_ttl: 24h
  admins: []

ledger:
  allow_resubmission: false

files:
  max_inline_bytes: 1000000
  max_upload_bytes: 10000000

chain:
  rpc_url: ""
  contract: ""
  private_key: ""
  gas_limit: 300000

log:
  level: info
  format: text
`
