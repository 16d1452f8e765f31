package oracle

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

var printer = message.NewPrinter(language.English)

// BuildContext renders the market and its local analysis into the text block
// every provider receives. Identical inputs always produce identical text.
func BuildContext(m domain.Market, a domain.EdgeAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", m.Question)
	fmt.Fprintf(&b, "Current Yes Price: %.4f (%.1f%%)\n", m.Price, m.Price*100)
	fmt.Fprintf(&b, "24h Volume: $%s\n", grouped(m.Volume24h))
	fmt.Fprintf(&b, "Liquidity: $%s\n", grouped(m.Liquidity))
	fmt.Fprintf(&b, "Whales in last 15m: %d\n", m.WhaleCount15m)
	fmt.Fprintf(&b, "Copy traders in last 20m: %d\n", m.CopyTraderCount20m)
	fmt.Fprintf(&b, "Recent whale action: %s\n", m.RecentWhaleAction)
	fmt.Fprintf(&b, "Funding rate: %.3f%%\n", m.FundingRate*100)
	fmt.Fprintf(&b, "Your algorithmic score: %s/10\n", trimFloat(a.Score))
	fmt.Fprintf(&b, "Tags: %s\n", strings.Join(a.Tags, ", "))
	return b.String()
}

// grouped formats v with thousands separators and at most two decimals.
func grouped(v float64) string {
	return printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(2)))
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
