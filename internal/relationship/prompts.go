package relationship

import (
	"fmt"
	"strings"

	"github.com/kalshi-arb/engine/pkg/types"
)

// systemPrompt instructs the oracle to classify logical relationships
// between binary markets into the four variants the detector checks.
const systemPrompt = `You are analyzing prediction markets to find logically related markets
whose prices should be mathematically constrained relative to each other.

For each batch of markets given, identify ALL pairs or groups where a
logical/mathematical relationship exists. Classify each relationship as:

1. SUBSET: Market A's YES outcome is a strict subset of Market B's YES outcome.
   Output: { "type": "SUBSET", "subset_ticker": "...", "superset_ticker": "...",
   "confidence": 0.0-1.0, "reasoning": "..." }

2. THRESHOLD: Markets on the same underlying with ordered thresholds.
   Output: { "type": "THRESHOLD", "tickers_ascending": ["...", "..."],
   "confidence": 0.0-1.0, "reasoning": "..." }

3. PARTITION: Markets that should sum to ~100%.
   Output: { "type": "PARTITION", "tickers": ["...", "..."],
   "confidence": 0.0-1.0, "reasoning": "..." }

4. IMPLICATION: One event logically or empirically implies another.
   Output: { "type": "IMPLICATION", "if_ticker": "...", "then_ticker": "...",
   "estimated_conditional_prob": 0.0-1.0, "confidence": 0.0-1.0,
   "reasoning": "..." }

CRITICAL: Read the settlement rules carefully. Sometimes markets that LOOK
related have different settlement criteria that break the logical link.
Only flag relationships you are confident about. False positives waste money.

Return ONLY a valid JSON array of relationships. If no relationships exist, return [].
Do not include any text outside the JSON array.`

// formatMarketForPrompt renders one market as the oracle expects it.
func formatMarketForPrompt(m types.Market) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", m.Ticker)
	fmt.Fprintf(&b, "  Title: %s\n", m.Title)
	fmt.Fprintf(&b, "  Category: %s\n", m.Category)
	fmt.Fprintf(&b, "  YES ask: %.2f  YES bid: %.2f\n", m.YesAsk, m.YesBid)
	if m.SettlementRules != "" {
		rules := m.SettlementRules
		if len(rules) > 500 {
			rules = rules[:500]
		}
		fmt.Fprintf(&b, "  Settlement rules: %s\n", rules)
	}
	return b.String()
}

// buildUserPrompt renders an entire batch of markets into one prompt.
func buildUserPrompt(batch []types.Market) string {
	parts := make([]string, len(batch))
	for i, m := range batch {
		parts[i] = formatMarketForPrompt(m)
	}
	return fmt.Sprintf("Analyze these %d markets for logical relationships:\n\n%s",
		len(batch), strings.Join(parts, "\n"))
}
