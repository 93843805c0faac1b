package app

import (
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/tonyfindev/BinkOS-sub002/internal/agent"
	"github.com/tonyfindev/BinkOS-sub002/internal/bridge"
	"github.com/tonyfindev/BinkOS-sub002/internal/cache"
	"github.com/tonyfindev/BinkOS-sub002/internal/chain"
	"github.com/tonyfindev/BinkOS-sub002/internal/config"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	"github.com/tonyfindev/BinkOS-sub002/internal/events"
	"github.com/tonyfindev/BinkOS-sub002/internal/httpx"
	"github.com/tonyfindev/BinkOS-sub002/internal/image"
	"github.com/tonyfindev/BinkOS-sub002/internal/knowledge"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
	"github.com/tonyfindev/BinkOS-sub002/internal/plugin"
	"github.com/tonyfindev/BinkOS-sub002/internal/provider"
	"github.com/tonyfindev/BinkOS-sub002/internal/providers/debridge"
	"github.com/tonyfindev/BinkOS-sub002/internal/providers/jupiter"
	"github.com/tonyfindev/BinkOS-sub002/internal/providers/kyberswap"
	"github.com/tonyfindev/BinkOS-sub002/internal/providers/lista"
	"github.com/tonyfindev/BinkOS-sub002/internal/providers/pancakeswap"
	"github.com/tonyfindev/BinkOS-sub002/internal/providers/venus"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
	"github.com/tonyfindev/BinkOS-sub002/internal/staking"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
	"github.com/tonyfindev/BinkOS-sub002/internal/storage"
	"github.com/tonyfindev/BinkOS-sub002/internal/swap"
	"github.com/tonyfindev/BinkOS-sub002/internal/token"
	"github.com/tonyfindev/BinkOS-sub002/internal/wallet"
)

// runtimeState carries one invocation's wiring: parsed flags, resolved
// settings and the dependency graph behind the agent.
type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	lastTool string

	agent    *agent.Agent
	stats    *stats.Collector
	store    storage.ConversationStore
	emitter  *events.Emitter
	amqp     *events.AMQPSink
	tokens   *cache.TokenCache
	balances *cache.BalanceCache

	swapStore   quotes.Store[*swap.Quote]
	stakeStore  quotes.Store[*staking.Quote]
	bridgeStore quotes.Store[*bridge.Quote]
	redis       *redis.Client
}

// buildRuntime assembles what the command at hand needs. History only opens
// the conversation store; tool commands and schema get the full agent.
func (s *runtimeState) buildRuntime(command string) error {
	set := s.settings

	if opensStorage(command) && s.store == nil {
		store, err := storage.Open(set.StorageDriver, set.StoragePath, set.StorageDSN)
		if err != nil {
			return err
		}
		s.store = store
	}
	if !isToolCommand(command) && command != "schema" {
		return nil
	}
	if s.agent != nil {
		return nil
	}
	log := logging.Named("app")

	networks := make([]core.NetworkID, 0, len(set.Networks))
	for _, name := range set.Networks {
		networks = append(networks, core.NetworkID(strings.ToLower(name)))
	}
	rpcOverrides := make(map[core.NetworkID]string, len(set.RPCURLs))
	for name, url := range set.RPCURLs {
		rpcOverrides[core.NetworkID(name)] = url
	}

	httpClient := httpx.New(set.Timeout, set.Retries)
	reader := chain.NewRouter(
		chain.NewEVMReader(rpcOverrides),
		chain.NewSolanaReader(httpClient, set.RPCURLs[string(core.NetworkSolana)]),
	)
	s.tokens = cache.NewTokenCache(reader, set.TokenTTL, s.runner.now)
	s.balances = cache.NewBalanceCache(reader, s.tokens, set.BalanceTTL, s.runner.now)

	if set.QuotesBackend == "redis" {
		s.redis = redis.NewClient(&redis.Options{Addr: set.RedisAddr, DB: set.RedisDB})
		s.swapStore = quotes.NewRedis[*swap.Quote](s.redis, "swap", s.runner.now)
		s.stakeStore = quotes.NewRedis[*staking.Quote](s.redis, "staking", s.runner.now)
		s.bridgeStore = quotes.NewRedis[*bridge.Quote](s.redis, "bridge", s.runner.now)
	} else {
		s.swapStore = quotes.NewMemory[*swap.Quote](s.runner.now)
		s.stakeStore = quotes.NewMemory[*staking.Quote](s.runner.now)
		s.bridgeStore = quotes.NewMemory[*bridge.Quote](s.runner.now)
	}

	// A missing key is not fatal: read-only tools work without one, and
	// transaction tools report wallet_unavailable when asked to sign.
	var signer wallet.Signer
	if local, err := wallet.NewSignerFromEnv(); err != nil {
		log.Warn("wallet signer not configured; transaction tools will be unavailable", "error", err)
	} else {
		signer = local
	}
	w := wallet.NewEVMWallet(signer, rpcOverrides, wallet.Options{ReceiptTimeout: set.ReceiptTimeout})

	s.stats = stats.NewCollector(s.runner.now)
	s.emitter = events.NewEmitter(s.runner.now, events.NewLogSink())
	if isToolCommand(command) && set.AMQPURL != "" {
		sink, err := events.NewAMQPSink(set.AMQPURL, set.AMQPExchange)
		if err != nil {
			log.Warn("amqp event sink unavailable", "error", err)
		} else {
			s.emitter.Attach(sink)
			s.amqp = sink
		}
	}

	newBase := func(name string) *provider.Base {
		return provider.NewBase(provider.Config{
			Name:         name,
			Networks:     networks,
			Reader:       reader,
			Tokens:       s.tokens,
			Balances:     s.balances,
			ToleranceBps: set.ToleranceBps,
			Now:          s.runner.now,
		})
	}

	var swapProviders []swap.Provider
	if p := set.Provider("pancakeswap"); p.Enabled {
		c := pancakeswap.New(httpClient, s.tokens)
		c.SetBaseURL(p.BaseURL)
		c.SetQuoteTTL(set.QuoteTTL)
		swapProviders = append(swapProviders, c)
	}
	if p := set.Provider("kyberswap"); p.Enabled {
		c := kyberswap.New(httpClient, s.tokens)
		c.SetBaseURL(p.BaseURL)
		c.SetQuoteTTL(set.QuoteTTL)
		swapProviders = append(swapProviders, c)
	}
	if p := set.Provider("jupiter"); p.Enabled {
		c := jupiter.New(httpClient, s.tokens, p.APIKey)
		c.SetBaseURL(p.BaseURL)
		c.SetQuoteTTL(set.QuoteTTL)
		swapProviders = append(swapProviders, c)
	}

	var stakingProviders []staking.Provider
	if p := set.Provider("venus"); p.Enabled {
		c := venus.New(s.tokens)
		c.SetQuoteTTL(set.QuoteTTL)
		stakingProviders = append(stakingProviders, c)
	}
	if p := set.Provider("lista"); p.Enabled {
		c := lista.New()
		c.SetQuoteTTL(set.QuoteTTL)
		stakingProviders = append(stakingProviders, c)
	}

	var bridgeProviders []bridge.Provider
	if p := set.Provider("debridge"); p.Enabled {
		c := debridge.New(httpClient, s.tokens)
		c.SetBaseURL(p.BaseURL)
		c.SetQuoteTTL(set.BridgeQuoteTTL)
		bridgeProviders = append(bridgeProviders, c)
	}

	var imageClient *image.Client
	if p := set.Provider("image"); p.Enabled && p.BaseURL != "" {
		imageClient = image.NewClient(httpClient, p.BaseURL, p.APIKey, "")
	}

	ag := agent.New(agent.Config{
		EnabledTools:   set.EnabledTools,
		ConversationID: set.ConversationID,
		Store:          s.store,
		Events:         s.emitter,
		Now:            s.runner.now,
	})
	plugins := []plugin.Plugin{
		swap.NewPlugin(swap.PluginConfig{
			Base: newBase("swap"), Store: s.swapStore, Wallet: w, Stats: s.stats,
			Providers: swapProviders,
		}),
		staking.NewPlugin(staking.PluginConfig{
			Base: newBase("staking"), Store: s.stakeStore, Wallet: w, Stats: s.stats,
			Providers: stakingProviders,
		}),
		bridge.NewPlugin(bridge.PluginConfig{
			Base: newBase("bridge"), Store: s.bridgeStore, Wallet: w, Stats: s.stats,
			Providers: bridgeProviders,
		}),
		token.NewPlugin(token.PluginConfig{Base: newBase("token"), Wallet: w, Stats: s.stats}),
		wallet.NewPlugin(wallet.PluginConfig{Base: newBase("wallet"), Wallet: w, Stats: s.stats}),
		knowledge.NewPlugin(knowledge.PluginConfig{Stats: s.stats}),
		image.NewPlugin(image.PluginConfig{Client: imageClient, Stats: s.stats}),
	}
	for _, p := range plugins {
		if err := ag.RegisterPlugin(p); err != nil {
			return err
		}
	}
	s.agent = ag
	return nil
}

func (s *runtimeState) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.amqp != nil {
		_ = s.amqp.Close()
	}
}
