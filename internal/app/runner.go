// Package app wires configuration, chain access, providers and plugins into
// the binkd command tree. Tool payloads stay JSON end to end: success
// envelopes go to stdout, error envelopes to stderr, and the process exit
// code is the tool's stable error code.
package app

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tonyfindev/BinkOS-sub002/internal/config"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
	"github.com/tonyfindev/BinkOS-sub002/internal/model"
	"github.com/tonyfindev/BinkOS-sub002/internal/out"
	"github.com/tonyfindev/BinkOS-sub002/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

// Run executes one CLI invocation and returns the process exit code.
func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := normalizeRunError(root.Execute())
	state.close()
	if err == nil {
		return 0
	}
	state.renderError(err)
	return binkerr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "On-chain agent toolkit: swap, stake, bridge and query across BNB Chain, Ethereum and Solana",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return binkerr.Wrap(binkerr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			if err := logging.Init(logging.Config{
				Level:  settings.LogLevel,
				Format: settings.LogFormat,
				File:   settings.LogFile,
			}); err != nil {
				return binkerr.Wrap(binkerr.CodeInternal, "init logging", err)
			}

			name := cmd.Name()
			s.lastTool = toolForCommand(name)
			if !needsRuntime(name) {
				return nil
			}
			return s.buildRuntime(name)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return binkerr.Wrap(binkerr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only the data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableTools, "enable-tools", "", "Allowlist tool names (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Provider request timeout")

	cmd.AddCommand(s.newSwapCommand())
	cmd.AddCommand(s.newStakingCommand("stake", "Stake the network's native token for a yield-bearing receipt"))
	cmd.AddCommand(s.newStakingCommand("unstake", "Request withdrawal of a staked position"))
	cmd.AddCommand(s.newStakingCommand("supply", "Supply an asset to a lending market"))
	cmd.AddCommand(s.newStakingCommand("withdraw", "Withdraw a supplied asset from a lending market"))
	cmd.AddCommand(s.newBridgeCommand())
	cmd.AddCommand(s.newTokenCommand())
	cmd.AddCommand(s.newBalanceCommand())
	cmd.AddCommand(s.newWalletCommand())
	cmd.AddCommand(s.newKnowledgeCommand())
	cmd.AddCommand(s.newImageCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(s.newServeCommand())
	cmd.AddCommand(newVersionCommand())
	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	return cmd
}

// normalizeFlagName folds camelCase and snake_case flag spellings onto the
// declared kebab-case names. Model-driven callers tend to echo the JSON
// argument names (fromToken, results_only) back as flags.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_':
			b.WriteByte('-')
		case unicode.IsUpper(r):
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return pflag.NormalizedName(b.String())
}

// runTool submits one tool invocation through the agent and turns the JSON
// payload into the CLI's envelope. Error payloads become typed errors so the
// exit code matches the in-band code.
func (s *runtimeState) runTool(toolName string, args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return binkerr.Wrap(binkerr.CodeInternal, "encode tool arguments", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := s.runner.now()
	payload := s.agent.Execute(ctx, toolName, raw, nil)
	elapsed := s.runner.now().Sub(start)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return binkerr.Wrap(binkerr.CodeInternal, "tool returned an unreadable payload", err)
	}
	if status, _ := parsed["status"].(string); status != "success" {
		code := binkerr.CodeInternal
		if f, ok := parsed["code"].(float64); ok {
			code = binkerr.Code(int(f))
		}
		message, _ := parsed["message"].(string)
		if message == "" {
			message = "tool execution failed"
		}
		return binkerr.New(code, message)
	}
	return s.emitData(toolName, parsed, elapsed)
}

func (s *runtimeState) emitData(toolName string, data any, elapsed time.Duration) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Meta: model.EnvelopeMeta{
			RequestID:  uuid.NewString(),
			Timestamp:  s.runner.now().UTC(),
			Tool:       toolName,
			DurationMS: elapsed.Milliseconds(),
		},
	}
	return out.Render(s.runner.stdout, env, s.renderOptions())
}

func (s *runtimeState) renderOptions() out.Options {
	return out.Options{
		Mode:        s.settings.OutputMode,
		Fields:      s.settings.SelectFields,
		ResultsOnly: s.settings.ResultsOnly,
	}
}

func (s *runtimeState) renderError(err error) {
	code := binkerr.CodeInternal
	if typed, ok := binkerr.As(err); ok {
		code = typed.Code
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error: &model.ErrorBody{
			Code:    int(code),
			Type:    model.ErrorTypeForCode(code),
			Message: err.Error(),
		},
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: s.runner.now().UTC(),
			Tool:      s.lastTool,
		},
	}
	// Field projection never applies to error envelopes; agents must always
	// see the code and message.
	opts := s.renderOptions()
	opts.Fields = nil
	opts.ResultsOnly = false
	if opts.Mode == "" {
		opts.Mode = "json"
	}
	_ = out.Render(s.runner.stderr, env, opts)
}

// toolForCommand names the tool a command dispatches to, for error envelope
// attribution. Non-tool commands report their own name.
func toolForCommand(name string) string {
	switch name {
	case "stake", "unstake", "supply", "withdraw":
		return "staking"
	case "token":
		return "get_token_info"
	case "balance":
		return "get_token_balance"
	case "wallet":
		return "get_wallet_info"
	case "knowledge":
		return "query_knowledge"
	case "image":
		return "generate_image"
	default:
		return name
	}
}

func needsRuntime(name string) bool {
	switch name {
	case "version", version.CLIName:
		return false
	default:
		return true
	}
}

// toolCommands lists the commands that execute agent tools; they record
// conversations and publish progress events.
func isToolCommand(name string) bool {
	switch name {
	case "swap", "stake", "unstake", "supply", "withdraw", "bridge",
		"token", "balance", "wallet", "knowledge", "image", "serve":
		return true
	default:
		return false
	}
}

func opensStorage(name string) bool {
	return isToolCommand(name) || name == "history"
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := binkerr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return binkerr.Wrap(binkerr.CodeUsage, "invalid command input", err)
	}
	return binkerr.Wrap(binkerr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
