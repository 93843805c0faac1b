package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonyfindev/BinkOS-sub002/internal/api"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/events"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
	"github.com/tonyfindev/BinkOS-sub002/internal/storage"
	"github.com/tonyfindev/BinkOS-sub002/internal/version"
)

func (s *runtimeState) newSwapCommand() *cobra.Command {
	var network, fromToken, toToken, amount, amountType, provider string
	var slippage float64
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap one token for another at the best quoted rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"network":   network,
				"fromToken": fromToken,
				"toToken":   toToken,
				"amount":    amount,
			}
			if amountType != "" {
				req["amountType"] = amountType
			}
			if slippage > 0 {
				req["slippage"] = slippage
			}
			if provider != "" {
				req["provider"] = provider
			}
			return s.runTool("swap", req)
		},
	}
	cmd.Flags().StringVar(&network, "network", "", "Network to swap on (bnb|ethereum|solana)")
	cmd.Flags().StringVar(&fromToken, "from-token", "", "Token to sell (address or registry symbol)")
	cmd.Flags().StringVar(&toToken, "to-token", "", "Token to buy (address or registry symbol)")
	cmd.Flags().StringVar(&amount, "amount", "", "Decimal amount on the fixed side")
	cmd.Flags().StringVar(&amountType, "amount-type", "", "Which side the amount fixes (input|output)")
	cmd.Flags().Float64Var(&slippage, "slippage", 0, "Maximum slippage in percent (default 0.5)")
	cmd.Flags().StringVar(&provider, "provider", "", "Pin the swap to one provider")
	_ = cmd.MarkFlagRequired("network")
	_ = cmd.MarkFlagRequired("from-token")
	_ = cmd.MarkFlagRequired("to-token")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// newStakingCommand builds one action of the staking family; all four
// commands dispatch to the same tool with the action preset.
func (s *runtimeState) newStakingCommand(action, short string) *cobra.Command {
	var network, tokenAddr, amount, provider string
	cmd := &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"network": network,
				"token":   tokenAddr,
				"amount":  amount,
				"action":  action,
			}
			if provider != "" {
				req["provider"] = provider
			}
			return s.runTool("staking", req)
		},
	}
	cmd.Flags().StringVar(&network, "network", "", "Network to operate on (bnb|ethereum|solana)")
	cmd.Flags().StringVar(&tokenAddr, "token", "", "Asset to move (address or registry symbol)")
	cmd.Flags().StringVar(&amount, "amount", "", "Decimal amount of the asset")
	cmd.Flags().StringVar(&provider, "provider", "", "Pin the request to one protocol")
	_ = cmd.MarkFlagRequired("network")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newBridgeCommand() *cobra.Command {
	var fromNetwork, toNetwork, fromToken, toToken, amount, recipient, provider string
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Move a token to another network through the best quoted route",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"fromNetwork": fromNetwork,
				"toNetwork":   toNetwork,
				"fromToken":   fromToken,
				"toToken":     toToken,
				"amount":      amount,
			}
			if recipient != "" {
				req["recipient"] = recipient
			}
			if provider != "" {
				req["provider"] = provider
			}
			return s.runTool("bridge", req)
		},
	}
	cmd.Flags().StringVar(&fromNetwork, "from-network", "", "Network the funds leave from")
	cmd.Flags().StringVar(&toNetwork, "to-network", "", "Network the funds arrive on")
	cmd.Flags().StringVar(&fromToken, "from-token", "", "Token to send (address or registry symbol)")
	cmd.Flags().StringVar(&toToken, "to-token", "", "Token to receive on the destination network")
	cmd.Flags().StringVar(&amount, "amount", "", "Decimal amount of the source token")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Destination address (defaults to the wallet)")
	cmd.Flags().StringVar(&provider, "provider", "", "Pin the route to one bridge")
	_ = cmd.MarkFlagRequired("from-network")
	_ = cmd.MarkFlagRequired("to-network")
	_ = cmd.MarkFlagRequired("from-token")
	_ = cmd.MarkFlagRequired("to-token")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newTokenCommand() *cobra.Command {
	var network, tokenAddr string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Look up token metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runTool("get_token_info", map[string]any{
				"network": network,
				"token":   tokenAddr,
			})
		},
	}
	cmd.Flags().StringVar(&network, "network", "", "Network the token lives on")
	cmd.Flags().StringVar(&tokenAddr, "token", "", "Token address or registry symbol")
	_ = cmd.MarkFlagRequired("network")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func (s *runtimeState) newBalanceCommand() *cobra.Command {
	var network, tokenAddr, walletAddr string
	var refresh bool
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Read a wallet's balance of one token",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"network": network,
				"token":   tokenAddr,
			}
			if walletAddr != "" {
				req["wallet"] = walletAddr
			}
			if refresh {
				req["refresh"] = true
			}
			return s.runTool("get_token_balance", req)
		},
	}
	cmd.Flags().StringVar(&network, "network", "", "Network the token lives on")
	cmd.Flags().StringVar(&tokenAddr, "token", "", "Token address or registry symbol")
	cmd.Flags().StringVar(&walletAddr, "wallet", "", "Wallet to read (defaults to the configured wallet)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the balance cache")
	_ = cmd.MarkFlagRequired("network")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func (s *runtimeState) newWalletCommand() *cobra.Command {
	var network string
	var includeTokens bool
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Show the wallet's address and balances on one network",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"network": network}
			if includeTokens {
				req["includeTokens"] = true
			}
			return s.runTool("get_wallet_info", req)
		},
	}
	cmd.Flags().StringVar(&network, "network", "", "Network to read")
	cmd.Flags().BoolVar(&includeTokens, "include-tokens", false, "Also read registry token balances")
	_ = cmd.MarkFlagRequired("network")
	return cmd
}

func (s *runtimeState) newKnowledgeCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "knowledge [question]",
		Short: "Query the builtin protocol knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"question": strings.Join(args, " ")}
			if limit > 0 {
				req["limit"] = limit
			}
			return s.runTool("query_knowledge", req)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum matches to return (default 3)")
	return cmd
}

func (s *runtimeState) newImageCommand() *cobra.Command {
	var size string
	cmd := &cobra.Command{
		Use:   "image [prompt]",
		Short: "Generate an image through the configured image API",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"prompt": strings.Join(args, " ")}
			if size != "" {
				req["size"] = size
			}
			return s.runTool("generate_image", req)
		},
	}
	cmd.Flags().StringVar(&size, "size", "", "Image size (512x512|768x768|1024x1024)")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the declared tool schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			tools := s.agent.Tools()
			return s.emitData("schema", map[string]any{
				"count": len(tools),
				"tools": tools,
			}, 0)
		},
	}
	return cmd
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var conversation string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Read recorded tool invocations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.store == nil {
				return binkerr.New(binkerr.CodeStorageUnavailable, "conversation persistence is not configured")
			}
			if limit <= 0 {
				limit = storage.DefaultHistoryLimit
			}
			messages, err := s.store.History(cmd.Context(), conversation, limit)
			if err != nil {
				return err
			}
			return s.emitData("history", map[string]any{
				"count":    len(messages),
				"messages": messages,
			}, 0)
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "Filter to one conversation id (default all)")
	cmd.Flags().IntVar(&limit, "limit", storage.DefaultHistoryLimit, "Maximum messages to return")
	return cmd
}

func (s *runtimeState) newServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hub := events.NewHub()
			s.emitter.Attach(hub)
			s.startJanitor(ctx)

			if addr == "" {
				addr = s.settings.ServerAddr
			}
			srv := api.NewServer(api.Config{
				Agent: s.agent,
				Stats: s.stats,
				Store: s.store,
				Hub:   hub,
				Now:   s.runner.now,
			})
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	return cmd
}

// startJanitor sweeps expired cache and quote entries in the background.
// One-shot commands exit before a sweep would matter; only serve runs it.
func (s *runtimeState) startJanitor(ctx context.Context) {
	interval := s.settings.SweepInterval
	if interval <= 0 {
		return
	}
	log := logging.Named("app.janitor")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				removed := s.tokens.ClearExpired(now) +
					s.balances.ClearExpired(now) +
					s.swapStore.ClearExpired(now) +
					s.stakeStore.ClearExpired(now) +
					s.bridgeStore.ClearExpired(now)
				log.Debug("sweep complete", "removed", removed)
			}
		}
	}()
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the binary version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}
