package allocation

import (
	"fmt"
	"sort"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// Position is one symbol's slice of a discrete allocation. Weight is
// the realized weight over the invested amount, not the requested one.
type Position struct {
	Symbol string  `json:"symbol"`
	Shares int64   `json:"shares"`
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// Allocation converts continuous weights into whole-share purchases.
type Allocation struct {
	Positions []Position `json:"positions"`
	Capital   float64    `json:"capital"`
	Invested  float64    `json:"invested"`
	Leftover  float64    `json:"leftover"`
}

type entry struct {
	symbol string
	weight float64
	price  float64
	shares int64
}

// Greedy buys whole shares against a target weight vector. The first
// pass floors each symbol's ideal dollar amount to whole shares; the
// second pass spends the remainder one share at a time on whichever
// symbol lags its target most, until no share is affordable. Weights
// are normalized before use. Symbols with zero weight are skipped.
func Greedy(weights domain.WeightVector, prices map[string]float64, capital float64) (*Allocation, error) {
	if capital <= 0 {
		return nil, fmt.Errorf("capital must be positive, got %v", capital)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("no target weights given")
	}

	weightSum := 0.0
	for sym, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("negative weight %v for %s", w, sym)
		}
		weightSum += w
	}
	if weightSum <= 0 {
		return nil, fmt.Errorf("target weights sum to zero")
	}

	entries := make([]entry, 0, len(weights))
	for sym, w := range weights {
		if w == 0 {
			continue
		}
		price, ok := prices[sym]
		if !ok || price <= 0 {
			return nil, fmt.Errorf("no price for %s", sym)
		}
		entries = append(entries, entry{symbol: sym, weight: w / weightSum, price: price})
	}

	// Heaviest targets claim their floor allocation first
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].weight != entries[j].weight {
			return entries[i].weight > entries[j].weight
		}
		return entries[i].symbol < entries[j].symbol
	})

	remaining := capital
	for i := range entries {
		shares := int64(entries[i].weight * capital / entries[i].price)
		cost := float64(shares) * entries[i].price
		if cost > remaining {
			shares = int64(remaining / entries[i].price)
			cost = float64(shares) * entries[i].price
		}
		entries[i].shares = shares
		remaining -= cost
	}

	remaining = topUp(entries, remaining)

	alloc := &Allocation{
		Capital:  capital,
		Leftover: remaining,
	}

	invested := 0.0
	for _, e := range entries {
		invested += float64(e.shares) * e.price
	}
	alloc.Invested = invested

	for _, e := range entries {
		if e.shares == 0 {
			continue
		}
		value := float64(e.shares) * e.price
		alloc.Positions = append(alloc.Positions, Position{
			Symbol: e.symbol,
			Shares: e.shares,
			Price:  e.price,
			Value:  value,
			Weight: value / invested,
		})
	}

	return alloc, nil
}

// topUp spends leftover cash one share at a time. Each round buys the
// affordable symbol furthest below its target weight; funds shrink by
// at least the cheapest price per round, so the loop terminates.
func topUp(entries []entry, remaining float64) float64 {
	for {
		invested := 0.0
		for _, e := range entries {
			invested += float64(e.shares) * e.price
		}

		bestIdx := -1
		bestDeficit := 0.0
		for i, e := range entries {
			if e.price > remaining {
				continue
			}
			current := 0.0
			if invested > 0 {
				current = float64(e.shares) * e.price / invested
			}
			deficit := e.weight - current
			if bestIdx == -1 || deficit > bestDeficit {
				bestIdx = i
				bestDeficit = deficit
			}
		}
		if bestIdx == -1 {
			return remaining
		}

		entries[bestIdx].shares++
		remaining -= entries[bestIdx].price
	}
}
