// Package knowledge serves short reference answers about the protocols and
// mechanics this agent operates, scored against the model's question. Entries
// are static JSON snippets: builtin ones cover the wired protocols, and a
// config-pointed file can add more.
package knowledge

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

type Entry struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
	Body  string   `json:"body"`
}

// Store is an immutable snippet collection. Queries score entries by word
// overlap: exact tag hits weigh most, title words next, body words least.
type Store struct {
	entries []Entry
}

func NewStore(entries []Entry) *Store {
	return &Store{entries: append([]Entry(nil), entries...)}
}

// LoadFile reads a JSON array of entries.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUsage, "read knowledge file", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUsage, "parse knowledge file", err)
	}
	return entries, nil
}

func (s *Store) Len() int { return len(s.entries) }

type Scored struct {
	Entry
	Score int `json:"score"`
}

const (
	tagWeight   = 3
	titleWeight = 2
	bodyWeight  = 1
)

// Query ranks entries against the question. Zero-score entries are dropped;
// ties break on ID so results are stable.
func (s *Store) Query(question string, limit int) []Scored {
	words := queryWords(question)
	if len(words) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 3
	}

	var out []Scored
	for _, e := range s.entries {
		score := scoreEntry(e, words)
		if score > 0 {
			out = append(out, Scored{Entry: e, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func scoreEntry(e Entry, words []string) int {
	title := strings.ToLower(e.Title)
	body := strings.ToLower(e.Body)
	score := 0
	for _, w := range words {
		for _, tag := range e.Tags {
			if strings.EqualFold(tag, w) {
				score += tagWeight
				break
			}
		}
		if strings.Contains(title, w) {
			score += titleWeight
		}
		if strings.Contains(body, w) {
			score += bodyWeight
		}
	}
	return score
}

func queryWords(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 && !stopWords[f] {
			out = append(out, f)
		}
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "what": true, "how": true,
	"does": true, "why": true, "are": true, "can": true, "with": true,
}

// Builtin covers the protocols and mechanics wired into this agent.
func Builtin() []Entry {
	return []Entry{
		{
			ID:    "slippage",
			Title: "What slippage tolerance means",
			Tags:  []string{"swap", "slippage"},
			Body: "Slippage is the gap between the quoted price and the executed price. " +
				"The tolerance, in percent, caps how much worse execution may get before the router reverts the trade. " +
				"It defaults to 0.5 here; raise it for thin pools, keep it tight for stable pairs.",
		},
		{
			ID:    "gas-buffer",
			Title: "Why native swaps keep a gas reserve",
			Tags:  []string{"gas", "native", "buffer"},
			Body: "Spending the whole native balance would leave nothing to pay for the transaction itself. " +
				"Each network reserves a small buffer (0.0001 BNB, 0.001 ETH, 0.01 SOL) that native amount " +
				"adjustments never touch; amounts at or below the buffer are rejected outright.",
		},
		{
			ID:    "quote-expiry",
			Title: "Quote lifetime and renewal",
			Tags:  []string{"quote", "expiry"},
			Body: "Quotes freeze a price at issuance and stay executable for five minutes, ten for bridge routes. " +
				"After that the stored quote is gone and execution fails asking for a fresh one; prices are " +
				"never silently refreshed.",
		},
		{
			ID:    "approvals",
			Title: "Token approvals before spending",
			Tags:  []string{"approval", "allowance", "erc20"},
			Body: "An ERC-20 cannot be pulled by a router until the wallet approves that contract. " +
				"The executor reads the live allowance every time and, when it falls short, submits an approval " +
				"and waits for its confirmation before the main transaction goes out. Native coins never need approval.",
		},
		{
			ID:    "liquid-staking",
			Title: "Liquid staking on BNB Chain",
			Tags:  []string{"staking", "lista", "slisbnb"},
			Body: "Staking BNB through Lista mints slisBNB, a receipt token that keeps earning while it can be " +
				"traded or used as collateral. Unstaking burns slisBNB through the stake manager and releases BNB " +
				"after the protocol's unbonding window.",
		},
		{
			ID:    "venus-markets",
			Title: "Supplying to Venus markets",
			Tags:  []string{"lending", "venus", "vtoken", "supply", "withdraw"},
			Body: "Supplying an asset to Venus mints the matching vToken (vBNB, vUSDT, vUSDC, vBUSD) and interest " +
				"accrues through its exchange rate. Withdrawals redeem an underlying amount; the market burns the " +
				"vTokens it takes back, so no approval is involved on the way out.",
		},
		{
			ID:    "bridging",
			Title: "How cross-network transfers settle",
			Tags:  []string{"bridge", "debridge", "settlement"},
			Body: "A bridge order locks funds on the source network and a solver delivers on the destination, " +
				"usually within minutes. The destination amount is an estimate until settlement, and the recipient " +
				"address must be valid on the destination network, not the source.",
		},
	}
}
