package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
)

// GlobalFlags carries the raw persistent flag values before layering.
type GlobalFlags struct {
	ConfigPath  string
	JSON        bool
	Plain       bool
	Select      string
	ResultsOnly bool
	EnableTools string
	Timeout     string
}

// ProviderSettings configures one upstream API client.
type ProviderSettings struct {
	BaseURL string
	APIKey  string
	Enabled bool
}

// Settings is the resolved configuration: defaults, then the YAML file, then
// BINK_* environment variables, then flags.
type Settings struct {
	LogLevel  string
	LogFormat string
	LogFile   string

	OutputMode   string
	SelectFields []string
	ResultsOnly  bool

	Networks       []string
	EnabledTools   []string
	ConversationID string

	ReceiptTimeout time.Duration
	RPCURLs        map[string]string

	ServerAddr string

	StorageDriver string
	StoragePath   string
	StorageDSN    string

	QuotesBackend  string
	RedisAddr      string
	RedisDB        int
	QuoteTTL       time.Duration
	BridgeQuoteTTL time.Duration

	TokenTTL      time.Duration
	BalanceTTL    time.Duration
	SweepInterval time.Duration

	ToleranceBps int64
	Timeout      time.Duration
	Retries      int

	AMQPURL      string
	AMQPExchange string

	Providers map[string]ProviderSettings
}

// Provider returns the named provider's settings; unknown names are enabled
// with zero overrides so clients fall back to their defaults.
func (s Settings) Provider(name string) ProviderSettings {
	if p, ok := s.Providers[strings.ToLower(name)]; ok {
		return p
	}
	return ProviderSettings{Enabled: true}
}

type providerFile struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	Enabled   *bool  `yaml:"enabled"`
}

type fileConfig struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
	Output string `yaml:"output"`
	Agent  struct {
		Networks       []string `yaml:"networks"`
		EnabledTools   []string `yaml:"enabled_tools"`
		ConversationID string   `yaml:"conversation_id"`
	} `yaml:"agent"`
	Wallet struct {
		ReceiptTimeout string `yaml:"receipt_timeout"`
	} `yaml:"wallet"`
	Networks map[string]struct {
		RPCURL string `yaml:"rpc_url"`
	} `yaml:"networks"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`
	Quotes struct {
		Backend   string `yaml:"backend"`
		RedisAddr string `yaml:"redis_addr"`
		RedisDB   *int   `yaml:"redis_db"`
		TTL       string `yaml:"ttl"`
		BridgeTTL string `yaml:"bridge_ttl"`
	} `yaml:"quotes"`
	Cache struct {
		TokenTTL      string `yaml:"token_ttl"`
		BalanceTTL    string `yaml:"balance_ttl"`
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"cache"`
	ToleranceBps *int64 `yaml:"tolerance_bps"`
	Timeout      string `yaml:"timeout"`
	Retries      *int   `yaml:"retries"`
	Events       struct {
		AMQPURL      string `yaml:"amqp_url"`
		AMQPExchange string `yaml:"amqp_exchange"`
	} `yaml:"events"`
	Providers map[string]providerFile `yaml:"providers"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if err := validate(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	dataDir, err := defaultDataDir()
	if err != nil {
		return Settings{}, err
	}
	networks := make([]string, 0, 3)
	for _, id := range core.Networks() {
		networks = append(networks, string(id))
	}
	return Settings{
		LogLevel:       "info",
		LogFormat:      "text",
		OutputMode:     "json",
		Networks:       networks,
		ReceiptTimeout: 2 * time.Minute,
		RPCURLs:        map[string]string{},
		ServerAddr:     "127.0.0.1:8080",
		StorageDriver:  "sqlite",
		StoragePath:    filepath.Join(dataDir, "conversations.db"),
		QuotesBackend:  "memory",
		RedisAddr:      "127.0.0.1:6379",
		QuoteTTL:       5 * time.Minute,
		BridgeQuoteTTL: 10 * time.Minute,
		TokenTTL:       30 * time.Minute,
		BalanceTTL:     30 * time.Second,
		SweepInterval:  5 * time.Minute,
		ToleranceBps:   50,
		Timeout:        10 * time.Second,
		Retries:        2,
		Providers:      map[string]ProviderSettings{},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "bink", "config.yaml"), nil
}

func defaultDataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "bink"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Log.Level != "" {
		settings.LogLevel = strings.ToLower(cfg.Log.Level)
	}
	if cfg.Log.Format != "" {
		settings.LogFormat = strings.ToLower(cfg.Log.Format)
	}
	if cfg.Log.File != "" {
		settings.LogFile = cfg.Log.File
	}
	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if len(cfg.Agent.Networks) > 0 {
		settings.Networks = cfg.Agent.Networks
	}
	if len(cfg.Agent.EnabledTools) > 0 {
		settings.EnabledTools = cfg.Agent.EnabledTools
	}
	if cfg.Agent.ConversationID != "" {
		settings.ConversationID = cfg.Agent.ConversationID
	}
	if cfg.Wallet.ReceiptTimeout != "" {
		d, err := time.ParseDuration(cfg.Wallet.ReceiptTimeout)
		if err != nil {
			return fmt.Errorf("config wallet.receipt_timeout: %w", err)
		}
		settings.ReceiptTimeout = d
	}
	for name, entry := range cfg.Networks {
		if entry.RPCURL != "" {
			settings.RPCURLs[strings.ToLower(name)] = entry.RPCURL
		}
	}
	if cfg.Server.Addr != "" {
		settings.ServerAddr = cfg.Server.Addr
	}
	if cfg.Storage.Driver != "" {
		settings.StorageDriver = strings.ToLower(cfg.Storage.Driver)
	}
	if cfg.Storage.Path != "" {
		settings.StoragePath = cfg.Storage.Path
	}
	if cfg.Storage.DSN != "" {
		settings.StorageDSN = cfg.Storage.DSN
	}
	if cfg.Quotes.Backend != "" {
		settings.QuotesBackend = strings.ToLower(cfg.Quotes.Backend)
	}
	if cfg.Quotes.RedisAddr != "" {
		settings.RedisAddr = cfg.Quotes.RedisAddr
	}
	if cfg.Quotes.RedisDB != nil {
		settings.RedisDB = *cfg.Quotes.RedisDB
	}
	if cfg.Quotes.TTL != "" {
		d, err := time.ParseDuration(cfg.Quotes.TTL)
		if err != nil {
			return fmt.Errorf("config quotes.ttl: %w", err)
		}
		settings.QuoteTTL = d
	}
	if cfg.Quotes.BridgeTTL != "" {
		d, err := time.ParseDuration(cfg.Quotes.BridgeTTL)
		if err != nil {
			return fmt.Errorf("config quotes.bridge_ttl: %w", err)
		}
		settings.BridgeQuoteTTL = d
	}
	if cfg.Cache.TokenTTL != "" {
		d, err := time.ParseDuration(cfg.Cache.TokenTTL)
		if err != nil {
			return fmt.Errorf("config cache.token_ttl: %w", err)
		}
		settings.TokenTTL = d
	}
	if cfg.Cache.BalanceTTL != "" {
		d, err := time.ParseDuration(cfg.Cache.BalanceTTL)
		if err != nil {
			return fmt.Errorf("config cache.balance_ttl: %w", err)
		}
		settings.BalanceTTL = d
	}
	if cfg.Cache.SweepInterval != "" {
		d, err := time.ParseDuration(cfg.Cache.SweepInterval)
		if err != nil {
			return fmt.Errorf("config cache.sweep_interval: %w", err)
		}
		settings.SweepInterval = d
	}
	if cfg.ToleranceBps != nil {
		settings.ToleranceBps = *cfg.ToleranceBps
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Events.AMQPURL != "" {
		settings.AMQPURL = cfg.Events.AMQPURL
	}
	if cfg.Events.AMQPExchange != "" {
		settings.AMQPExchange = cfg.Events.AMQPExchange
	}

	for name, entry := range cfg.Providers {
		p := ProviderSettings{
			BaseURL: entry.BaseURL,
			APIKey:  entry.APIKey,
			Enabled: entry.Enabled == nil || *entry.Enabled,
		}
		if entry.APIKeyEnv != "" {
			p.APIKey = os.Getenv(entry.APIKeyEnv)
		}
		settings.Providers[strings.ToLower(name)] = p
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("BINK_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("BINK_LOG_FORMAT"); v != "" {
		settings.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv("BINK_LOG_FILE"); v != "" {
		settings.LogFile = v
	}
	if v := os.Getenv("BINK_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("BINK_NETWORKS"); v != "" {
		settings.Networks = splitCSV(v)
	}
	if v := os.Getenv("BINK_ENABLE_TOOLS"); v != "" {
		settings.EnabledTools = splitCSV(v)
	}
	if v := os.Getenv("BINK_CONVERSATION_ID"); v != "" {
		settings.ConversationID = v
	}
	if v := os.Getenv("BINK_SERVER_ADDR"); v != "" {
		settings.ServerAddr = v
	}
	if v := os.Getenv("BINK_STORAGE_DRIVER"); v != "" {
		settings.StorageDriver = strings.ToLower(v)
	}
	if v := os.Getenv("BINK_STORAGE_PATH"); v != "" {
		settings.StoragePath = v
	}
	if v := os.Getenv("BINK_STORAGE_DSN"); v != "" {
		settings.StorageDSN = v
	}
	if v := os.Getenv("BINK_QUOTES_BACKEND"); v != "" {
		settings.QuotesBackend = strings.ToLower(v)
	}
	if v := os.Getenv("BINK_REDIS_ADDR"); v != "" {
		settings.RedisAddr = v
	}
	if v := os.Getenv("BINK_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.RedisDB = n
		}
	}
	if v := os.Getenv("BINK_TOLERANCE_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			settings.ToleranceBps = n
		}
	}
	if v := os.Getenv("BINK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("BINK_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("BINK_AMQP_URL"); v != "" {
		settings.AMQPURL = v
	}
	if v := os.Getenv("BINK_AMQP_EXCHANGE"); v != "" {
		settings.AMQPExchange = v
	}
	for _, id := range core.Networks() {
		key := "BINK_RPC_" + strings.ToUpper(string(id))
		if v := os.Getenv(key); v != "" {
			settings.RPCURLs[string(id)] = v
		}
	}
	for _, name := range []string{"pancakeswap", "kyberswap", "jupiter", "venus", "lista", "debridge", "image"} {
		key := "BINK_" + strings.ToUpper(name) + "_API_KEY"
		if v := os.Getenv(key); v != "" {
			p := settings.Providers[name]
			p.APIKey = v
			if _, ok := settings.Providers[name]; !ok {
				p.Enabled = true
			}
			settings.Providers[name] = p
		}
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if fields := splitCSV(flags.Select); len(fields) > 0 {
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly
	if tools := splitCSV(flags.EnableTools); len(tools) > 0 {
		settings.EnabledTools = tools
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	return nil
}

func validate(settings Settings) error {
	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	if len(settings.Networks) == 0 {
		return fmt.Errorf("agent.networks must not be empty")
	}
	for _, name := range settings.Networks {
		if _, err := core.NetworkByID(core.NetworkID(strings.ToLower(name))); err != nil {
			return fmt.Errorf("agent.networks: unknown network %q", name)
		}
	}
	switch settings.StorageDriver {
	case "sqlite", "mysql", "memory":
	default:
		return fmt.Errorf("storage.driver must be sqlite, mysql or memory")
	}
	switch settings.QuotesBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("quotes.backend must be memory or redis")
	}
	if settings.ToleranceBps < 0 || settings.ToleranceBps > 10_000 {
		return fmt.Errorf("tolerance_bps must be between 0 and 10000")
	}
	if settings.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	return nil
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if f := strings.TrimSpace(part); f != "" {
			out = append(out, f)
		}
	}
	return out
}
