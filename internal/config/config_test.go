package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "json" {
		t.Fatalf("expected json output by default, got %s", settings.OutputMode)
	}
	if settings.StorageDriver != "sqlite" {
		t.Fatalf("expected sqlite storage by default, got %s", settings.StorageDriver)
	}
	if settings.QuoteTTL != 5*time.Minute || settings.BridgeQuoteTTL != 10*time.Minute {
		t.Fatalf("unexpected quote ttls: %v / %v", settings.QuoteTTL, settings.BridgeQuoteTTL)
	}
	if settings.ToleranceBps != 50 {
		t.Fatalf("expected default tolerance 50 bps, got %d", settings.ToleranceBps)
	}
	if len(settings.Networks) == 0 {
		t.Fatal("expected default networks to be populated")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
agent:
  networks: [bnb]
  conversation_id: conv-7
wallet:
  receipt_timeout: 45s
networks:
  bnb:
    rpc_url: https://bsc.example/rpc
storage:
  driver: mysql
  dsn: bink:secret@tcp(127.0.0.1:3306)/bink
quotes:
  backend: redis
  redis_addr: 10.0.0.5:6379
  redis_db: 3
  ttl: 90s
cache:
  balance_ttl: 12s
tolerance_bps: 125
timeout: 30s
providers:
  jupiter:
    base_url: https://quote.example
  venus:
    enabled: false
  pancakeswap:
    api_key_env: TEST_PANCAKE_KEY
`)
	t.Setenv("TEST_PANCAKE_KEY", "pk-from-env")

	settings, err := Load(GlobalFlags{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.LogLevel != "debug" || settings.LogFormat != "json" {
		t.Fatalf("unexpected log settings: %s/%s", settings.LogLevel, settings.LogFormat)
	}
	if len(settings.Networks) != 1 || settings.Networks[0] != "bnb" {
		t.Fatalf("unexpected networks: %v", settings.Networks)
	}
	if settings.ConversationID != "conv-7" {
		t.Fatalf("unexpected conversation id: %s", settings.ConversationID)
	}
	if settings.ReceiptTimeout != 45*time.Second {
		t.Fatalf("unexpected receipt timeout: %v", settings.ReceiptTimeout)
	}
	if settings.RPCURLs["bnb"] != "https://bsc.example/rpc" {
		t.Fatalf("unexpected rpc url: %q", settings.RPCURLs["bnb"])
	}
	if settings.StorageDriver != "mysql" || settings.StorageDSN == "" {
		t.Fatalf("unexpected storage settings: %s %q", settings.StorageDriver, settings.StorageDSN)
	}
	if settings.QuotesBackend != "redis" || settings.RedisAddr != "10.0.0.5:6379" || settings.RedisDB != 3 {
		t.Fatalf("unexpected quote backend settings: %s %s %d", settings.QuotesBackend, settings.RedisAddr, settings.RedisDB)
	}
	if settings.QuoteTTL != 90*time.Second {
		t.Fatalf("unexpected quote ttl: %v", settings.QuoteTTL)
	}
	if settings.BalanceTTL != 12*time.Second {
		t.Fatalf("unexpected balance ttl: %v", settings.BalanceTTL)
	}
	if settings.ToleranceBps != 125 {
		t.Fatalf("unexpected tolerance: %d", settings.ToleranceBps)
	}
	if settings.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %v", settings.Timeout)
	}
	if settings.Provider("jupiter").BaseURL != "https://quote.example" {
		t.Fatalf("unexpected jupiter base url: %q", settings.Provider("jupiter").BaseURL)
	}
	if settings.Provider("venus").Enabled {
		t.Fatal("expected venus to be disabled")
	}
	if settings.Provider("pancakeswap").APIKey != "pk-from-env" {
		t.Fatalf("expected api key indirection via TEST_PANCAKE_KEY, got %q", settings.Provider("pancakeswap").APIKey)
	}
	if !settings.Provider("kyberswap").Enabled {
		t.Fatal("unlisted providers should default to enabled")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "output: plain\nstorage:\n  driver: memory\n")
	t.Setenv("BINK_OUTPUT", "json")
	t.Setenv("BINK_STORAGE_DRIVER", "memory")
	t.Setenv("BINK_NETWORKS", "solana, bnb")
	t.Setenv("BINK_RPC_SOLANA", "https://sol.example/rpc")
	t.Setenv("BINK_JUPITER_API_KEY", "jk-env")

	settings, err := Load(GlobalFlags{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "json" {
		t.Fatalf("expected env to beat file, got output=%s", settings.OutputMode)
	}
	if len(settings.Networks) != 2 || settings.Networks[0] != "solana" || settings.Networks[1] != "bnb" {
		t.Fatalf("unexpected networks: %v", settings.Networks)
	}
	if settings.RPCURLs["solana"] != "https://sol.example/rpc" {
		t.Fatalf("unexpected solana rpc: %q", settings.RPCURLs["solana"])
	}
	p := settings.Provider("jupiter")
	if p.APIKey != "jk-env" || !p.Enabled {
		t.Fatalf("unexpected jupiter settings: %+v", p)
	}
}

func TestLoadFlagsWinAndValidate(t *testing.T) {
	path := writeConfig(t, "output: plain\n")
	t.Setenv("BINK_OUTPUT", "plain")

	settings, err := Load(GlobalFlags{
		ConfigPath:  path,
		JSON:        true,
		Select:      "provider, txHash",
		ResultsOnly: true,
		EnableTools: "swap,bridge",
		Timeout:     "2m",
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "json" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if len(settings.SelectFields) != 2 || settings.SelectFields[1] != "txHash" {
		t.Fatalf("unexpected select fields: %v", settings.SelectFields)
	}
	if !settings.ResultsOnly {
		t.Fatal("expected results-only from flags")
	}
	if len(settings.EnabledTools) != 2 || settings.EnabledTools[0] != "swap" {
		t.Fatalf("unexpected enabled tools: %v", settings.EnabledTools)
	}
	if settings.Timeout != 2*time.Minute {
		t.Fatalf("unexpected timeout: %v", settings.Timeout)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	_, err := Load(GlobalFlags{ConfigPath: "/nonexistent/config.yaml", JSON: true, Plain: true})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	badNetwork := writeConfig(t, "agent:\n  networks: [dogechain]\n")
	if _, err := Load(GlobalFlags{ConfigPath: badNetwork}); err == nil {
		t.Fatal("expected unknown network to fail validation")
	}

	badDriver := writeConfig(t, "storage:\n  driver: postgres\n")
	if _, err := Load(GlobalFlags{ConfigPath: badDriver}); err == nil {
		t.Fatal("expected unknown storage driver to fail validation")
	}

	badTimeout := writeConfig(t, "")
	if _, err := Load(GlobalFlags{ConfigPath: badTimeout, Timeout: "soon"}); err == nil {
		t.Fatal("expected bad --timeout to fail")
	}

	badTolerance := writeConfig(t, "tolerance_bps: 20000\n")
	if _, err := Load(GlobalFlags{ConfigPath: badTolerance}); err == nil {
		t.Fatal("expected out-of-range tolerance to fail validation")
	}
}
