package rebalancing

import (
	"fmt"
	"math"
	"sort"
)

// defaultCostRate is the assumed per-trade commission: 0.1% of traded
// value, charged once per leg.
const defaultCostRate = 0.001

// TradeLine is the per-symbol row of a rebalancing guide. Share deltas
// are rounded to whole shares; values and weights stay exact.
type TradeLine struct {
	Symbol        string  `json:"symbol"`
	CurrentShares float64 `json:"current_shares"`
	Price         float64 `json:"price"`
	CurrentValue  float64 `json:"current_value"`
	CurrentWeight float64 `json:"current_weight"`
	TargetWeight  float64 `json:"target_weight"`
	TargetShares  int64   `json:"target_shares"`
	SharesToTrade int64   `json:"shares_to_trade"`
	TradeValue    float64 `json:"trade_value"`
}

// Guide is a full rebalancing plan: one line per symbol plus the
// portfolio-level totals.
type Guide struct {
	Lines          []TradeLine `json:"lines"`
	PortfolioValue float64     `json:"portfolio_value"`
	CashNeeded     float64     `json:"cash_needed"`
	Buys           int         `json:"buys"`
	Sells          int         `json:"sells"`
	EstimatedCost  float64     `json:"estimated_cost"`
	CostRate       float64     `json:"cost_rate"`
}

// BuildGuide turns current share holdings and a target allocation into
// a trade table. Target weights are normalized before use, so callers
// may pass raw scores. The commission estimate charges costRate on half
// the two-way traded value, one leg per rebalanced dollar.
//
// Every symbol in the holdings/targets union needs a positive price;
// the guide is only as good as its valuation.
func BuildGuide(holdings map[string]float64, targets map[string]float64, prices map[string]float64, costRate float64) (*Guide, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no target weights given")
	}
	if costRate < 0 {
		return nil, fmt.Errorf("cost rate must not be negative, got %v", costRate)
	}

	weightSum := 0.0
	for sym, w := range targets {
		if w < 0 {
			return nil, fmt.Errorf("negative target weight %v for %s", w, sym)
		}
		weightSum += w
	}
	if weightSum <= 0 {
		return nil, fmt.Errorf("target weights sum to zero")
	}

	symbols := unionSymbols(holdings, targets)
	for _, sym := range symbols {
		if holdings[sym] < 0 {
			return nil, fmt.Errorf("negative holding %v for %s", holdings[sym], sym)
		}
		if prices[sym] <= 0 {
			return nil, fmt.Errorf("no price for %s", sym)
		}
	}

	totalValue := 0.0
	for sym, shares := range holdings {
		totalValue += shares * prices[sym]
	}
	if totalValue <= 0 {
		return nil, fmt.Errorf("portfolio has no marketable value to rebalance")
	}

	guide := &Guide{
		Lines:          make([]TradeLine, 0, len(symbols)),
		PortfolioValue: totalValue,
		CostRate:       costRate,
	}

	twoWayTraded := 0.0
	for _, sym := range symbols {
		shares := holdings[sym]
		price := prices[sym]
		value := shares * price

		targetWeight := targets[sym] / weightSum
		targetValue := totalValue * targetWeight

		valueDiff := targetValue - value
		sharesDiff := valueDiff / price

		line := TradeLine{
			Symbol:        sym,
			CurrentShares: shares,
			Price:         price,
			CurrentValue:  value,
			CurrentWeight: value / totalValue,
			TargetWeight:  targetWeight,
			TargetShares:  int64(math.Round(shares + sharesDiff)),
			SharesToTrade: int64(math.Round(sharesDiff)),
			TradeValue:    math.Abs(valueDiff),
		}
		guide.Lines = append(guide.Lines, line)

		twoWayTraded += math.Abs(valueDiff)
		if valueDiff > 0 {
			guide.CashNeeded += valueDiff
		}

		switch {
		case line.SharesToTrade > 0:
			guide.Buys++
		case line.SharesToTrade < 0:
			guide.Sells++
		}
	}

	// Every rebalanced dollar is sold once and bought once, so half the
	// two-way volume is actual turnover
	guide.EstimatedCost = twoWayTraded / 2 * costRate

	return guide, nil
}

func unionSymbols(holdings, targets map[string]float64) []string {
	seen := make(map[string]bool, len(holdings)+len(targets))
	for sym := range holdings {
		seen[sym] = true
	}
	for sym := range targets {
		seen[sym] = true
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
