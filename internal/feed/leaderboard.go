package feed

import "github.com/alanyoungcy/polyedge/internal/domain"

var leaderboard = []domain.Trader{
	{Rank: 1, Name: "0xWhale...8a92", PnL: 4_500_000, WinRate: 78, CurrentPosition: "Long BTC", Volume: 12_000_000, IsWhale: true},
	{Rank: 2, Name: "PolyGod.eth", PnL: 2_100_000, WinRate: 65, CurrentPosition: "Short ETH", Volume: 8_500_000, IsWhale: true},
	{Rank: 3, Name: "DeepValue", PnL: 1_800_000, WinRate: 82, CurrentPosition: "Long SOL", Volume: 5_400_000, IsWhale: true},
	{Rank: 4, Name: "AlgoSniper", PnL: 950_000, WinRate: 55, CurrentPosition: "Neutral", Volume: 15_000_000, IsWhale: false},
	{Rank: 5, Name: "Contrarian", PnL: 820_000, WinRate: 42, CurrentPosition: "Short NVDA", Volume: 3_200_000, IsWhale: false},
}

// Leaderboard returns a copy of the tracked top traders, best first.
func Leaderboard() []domain.Trader {
	return append([]domain.Trader(nil), leaderboard...)
}

// TraderByRank looks up a leaderboard entry.
func TraderByRank(rank int) (domain.Trader, bool) {
	for _, t := range leaderboard {
		if t.Rank == rank {
			return t, true
		}
	}
	return domain.Trader{}, false
}
