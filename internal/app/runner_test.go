package app

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/model"
	"github.com/tonyfindev/BinkOS-sub002/internal/version"
)

// isolate pins config discovery and the wallet env to a temp sandbox so a
// developer's real ~/.config or exported keys cannot leak into assertions.
func isolate(t *testing.T) {
	t.Helper()
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("BINK_WALLET_PRIVATE_KEY", "")
	t.Setenv("BINK_WALLET_PRIVATE_KEY_FILE", "")
	t.Setenv("BINK_WALLET_KEYSTORE_PATH", "")
	t.Setenv("BINK_AMQP_URL", "")
	t.Setenv("BINK_ENABLE_TOOLS", "")
	t.Setenv("BINK_OUTPUT", "")
	t.Setenv("BINK_NETWORKS", "")
	t.Setenv("BINK_QUOTES_BACKEND", "memory")
	t.Setenv("BINK_STORAGE_DRIVER", "memory")
}

func runCLI(t *testing.T, args ...string) (int, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := NewRunnerWithWriters(&stdout, &stderr).Run(args)
	return code, &stdout, &stderr
}

func decodeEnvelope(t *testing.T, buf *bytes.Buffer) model.Envelope {
	t.Helper()
	var env model.Envelope
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\noutput: %q", err, buf.String())
	}
	return env
}

func dataMap(t *testing.T, env model.Envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("envelope data is %T, want object", env.Data)
	}
	return m
}

func TestRunVersion(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != version.CLIVersion {
		t.Fatalf("version output = %q, want %q", got, version.CLIVersion)
	}

	code, stdout, _ = runCLI(t, "version", "--long")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), version.CLIName) {
		t.Fatalf("long version output %q does not name the binary", stdout.String())
	}
}

func TestRunSchemaListsEveryTool(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, "schema")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	env := decodeEnvelope(t, stdout)
	if !env.Success {
		t.Fatalf("schema envelope not successful: %+v", env)
	}
	if env.Meta.Tool != "schema" {
		t.Fatalf("meta.tool = %q, want schema", env.Meta.Tool)
	}

	data := dataMap(t, env)
	tools, ok := data["tools"].([]any)
	if !ok {
		t.Fatalf("tools is %T, want array", data["tools"])
	}
	names := make(map[string]bool, len(tools))
	for _, raw := range tools {
		entry, ok := raw.(map[string]any)
		if !ok {
			t.Fatalf("tool entry is %T, want object", raw)
		}
		name, _ := entry["name"].(string)
		names[name] = true
		if params, ok := entry["parameters"].(map[string]any); !ok || params["type"] != "object" {
			t.Fatalf("tool %s has no object parameter schema: %v", name, entry["parameters"])
		}
	}
	want := []string{
		"swap", "staking", "bridge",
		"get_token_info", "get_token_balance", "get_wallet_info",
		"query_knowledge", "generate_image",
	}
	for _, name := range want {
		if !names[name] {
			t.Fatalf("schema is missing tool %s (got %v)", name, names)
		}
	}
	if int(data["count"].(float64)) != len(tools) {
		t.Fatalf("count = %v, want %d", data["count"], len(tools))
	}
}

func TestRunKnowledgeQuery(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, "knowledge", "how", "does", "supplying", "to", "venus", "work", "--limit", "2")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	env := decodeEnvelope(t, stdout)
	if !env.Success || env.Error != nil {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Meta.Tool != "query_knowledge" {
		t.Fatalf("meta.tool = %q, want query_knowledge", env.Meta.Tool)
	}

	data := dataMap(t, env)
	if data["type"] != "knowledge" {
		t.Fatalf("data.type = %v, want knowledge", data["type"])
	}
	count := int(data["count"].(float64))
	if count < 1 || count > 2 {
		t.Fatalf("count = %d, want 1..2", count)
	}
	results := data["results"].([]any)
	first := results[0].(map[string]any)
	if first["answer"] == "" || first["title"] == "" {
		t.Fatalf("first result incomplete: %v", first)
	}
}

func TestRunResultsOnlyWithSelect(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "knowledge", "slippage", "--results-only", "--select", "type,count")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var payload map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v\noutput: %q", err, stdout.String())
	}
	if _, hasMeta := payload["meta"]; hasMeta {
		t.Fatalf("results-only output still carries the envelope: %v", payload)
	}
	if payload["type"] != "knowledge" {
		t.Fatalf("type = %v, want knowledge", payload["type"])
	}
	if _, hasResults := payload["results"]; hasResults {
		t.Fatalf("--select did not project away results: %v", payload)
	}
}

func TestRunAcceptsAlternateFlagSpellings(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, "knowledge", "slippage", "--results_only")
	if code != 0 {
		t.Fatalf("snake_case spelling rejected: exit %d, stderr: %s", code, stderr.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if _, hasMeta := payload["meta"]; hasMeta {
		t.Fatal("results_only spelling did not normalize onto --results-only")
	}

	code, _, stderr = runCLI(t, "--enableTools", "swap", "balance", "--network", "bnb", "--token", "CAKE")
	if code != int(binkerr.CodeBlocked) {
		t.Fatalf("camelCase spelling rejected: exit %d, stderr: %s", code, stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	isolate(t)

	cases := []struct {
		name string
		args []string
		msg  string
	}{
		{"unknown flag", []string{"swap", "--bogus"}, "unknown flag"},
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"missing required flags", []string{"swap"}, "required flag"},
		{"conflicting output flags", []string{"--json", "--plain", "schema"}, "--json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tc.args...)
			if code != int(binkerr.CodeUsage) {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, binkerr.CodeUsage, stderr.String())
			}
			env := decodeEnvelope(t, stderr)
			if env.Success || env.Error == nil {
				t.Fatalf("expected error envelope, got %+v", env)
			}
			if env.Error.Type != "usage_error" {
				t.Fatalf("error.type = %q, want usage_error", env.Error.Type)
			}
			if !strings.Contains(strings.ToLower(env.Error.Message), tc.msg) {
				t.Fatalf("error message %q does not mention %q", env.Error.Message, tc.msg)
			}
		})
	}
}

func TestRunEnableToolsBlocksOthers(t *testing.T) {
	isolate(t)

	code, _, stderr := runCLI(t, "--enable-tools", "swap", "balance", "--network", "bnb", "--token", "CAKE")
	if code != int(binkerr.CodeBlocked) {
		t.Fatalf("exit code = %d, want %d (stderr: %s)", code, binkerr.CodeBlocked, stderr.String())
	}
	env := decodeEnvelope(t, stderr)
	if env.Error == nil || env.Error.Type != "tool_blocked" {
		t.Fatalf("expected tool_blocked envelope, got %+v", env)
	}
	if env.Meta.Tool != "get_token_balance" {
		t.Fatalf("meta.tool = %q, want get_token_balance", env.Meta.Tool)
	}
}

func TestRunWalletWithoutSigner(t *testing.T) {
	isolate(t)

	code, _, stderr := runCLI(t, "wallet", "--network", "bnb")
	if code != int(binkerr.CodeWalletUnavailable) {
		t.Fatalf("exit code = %d, want %d (stderr: %s)", code, binkerr.CodeWalletUnavailable, stderr.String())
	}
	env := decodeEnvelope(t, stderr)
	if env.Error == nil || env.Error.Type != "wallet_unavailable" {
		t.Fatalf("expected wallet_unavailable envelope, got %+v", env)
	}
}

func TestRunHistoryAcrossInvocations(t *testing.T) {
	isolate(t)
	t.Setenv("BINK_STORAGE_DRIVER", "sqlite")

	code, _, stderr := runCLI(t, "knowledge", "what", "is", "slippage")
	if code != 0 {
		t.Fatalf("knowledge exit code = %d, stderr: %s", code, stderr.String())
	}

	code, stdout, stderr := runCLI(t, "history", "--limit", "10")
	if code != 0 {
		t.Fatalf("history exit code = %d, stderr: %s", code, stderr.String())
	}
	env := decodeEnvelope(t, stdout)
	data := dataMap(t, env)
	if int(data["count"].(float64)) < 2 {
		t.Fatalf("history count = %v, want the invocation and its result", data["count"])
	}
	messages := data["messages"].([]any)
	newest := messages[0].(map[string]any)
	if newest["role"] != "assistant" {
		t.Fatalf("newest message role = %v, want assistant", newest["role"])
	}
	if newest["tool"] != "query_knowledge" {
		t.Fatalf("newest message tool = %v, want query_knowledge", newest["tool"])
	}
	sawInvocation := false
	for _, raw := range messages {
		if m := raw.(map[string]any); m["role"] == "tool" {
			sawInvocation = true
		}
	}
	if !sawInvocation {
		t.Fatal("history has no recorded invocation message")
	}
}

func TestToolForCommand(t *testing.T) {
	cases := map[string]string{
		"swap":      "swap",
		"stake":     "staking",
		"unstake":   "staking",
		"supply":    "staking",
		"withdraw":  "staking",
		"bridge":    "bridge",
		"token":     "get_token_info",
		"balance":   "get_token_balance",
		"wallet":    "get_wallet_info",
		"knowledge": "query_knowledge",
		"image":     "generate_image",
		"history":   "history",
	}
	for command, want := range cases {
		if got := toolForCommand(command); got != want {
			t.Fatalf("toolForCommand(%q) = %q, want %q", command, got, want)
		}
	}
}

func TestIsLikelyUsageError(t *testing.T) {
	usage := []string{
		`unknown command "frobnicate" for "binkd"`,
		"unknown flag: --bogus",
		`required flag(s) "network" not set`,
		"flag needs an argument: --amount",
	}
	for _, msg := range usage {
		if !isLikelyUsageError(errString(msg)) {
			t.Fatalf("%q should classify as usage", msg)
		}
	}
	if isLikelyUsageError(errString("connection refused")) {
		t.Fatal("transport failure misclassified as usage")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
