package economy

import "github.com/shopspring/decimal"

// StarsScale is the number of decimal places kept for star amounts.
const StarsScale = 8

// DefaultGrowth is the per-level price multiplier.
var DefaultGrowth = decimal.RequireFromString("1.5")

// Price returns base × growth^level.
func Price(base decimal.Decimal, level int, growth decimal.Decimal) decimal.Decimal {
	price := base
	for i := 0; i < level; i++ {
		price = price.Mul(growth)
	}
	return price.Round(StarsScale)
}

// ClickValue is the number of stars one click earns at the given multitap level.
func ClickValue(multitapLevel int) decimal.Decimal {
	if multitapLevel < 1 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(multitapLevel))
}

// RewardForRank returns the informational reward tier for a 1-based rank,
// or zero when the rank has no tier.
func RewardForRank(rank int, tiers []int64) decimal.Decimal {
	if rank < 1 || rank > len(tiers) {
		return decimal.Zero
	}
	return decimal.NewFromInt(tiers[rank-1])
}
