package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/internal/modules/optimization"
)

var (
	optimizeObjective   string
	optimizeStart       string
	optimizeEnd         string
	optimizeRiskFree    float64
	optimizePeriodicity string
	optimizeLogReturns  bool
	optimizeLedoitWolf  bool
	optimizeMinWeight   float64
	optimizeMaxWeight   float64
)

// optimizeCmd solves a single weight allocation over a price window
var optimizeCmd = &cobra.Command{
	Use:   "optimize SYMBOL...",
	Short: "Solve optimal weights for a basket of symbols",
	Long: `Fetches historical prices for the given symbols, estimates
return statistics over the window and solves for the weight vector
that optimizes the chosen objective.

Examples:
  qp optimize AAPL MSFT GOOG
  qp optimize AAPL MSFT --objective min_volatility --start 2023-01-01
  qp optimize SPY TLT GLD --ledoit-wolf --max-weight 0.6`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVar(&optimizeObjective, "objective", "max_sharpe", "max_sharpe, min_volatility or equal_weight")
	optimizeCmd.Flags().StringVar(&optimizeStart, "start", "", "window start YYYY-MM-DD (default one year before end)")
	optimizeCmd.Flags().StringVar(&optimizeEnd, "end", "", "window end YYYY-MM-DD (default today)")
	optimizeCmd.Flags().Float64Var(&optimizeRiskFree, "risk-free-rate", 0, "annual risk-free rate (default from config)")
	optimizeCmd.Flags().StringVar(&optimizePeriodicity, "periodicity", "daily", "return sampling: daily, weekly or monthly")
	optimizeCmd.Flags().BoolVar(&optimizeLogReturns, "log-returns", false, "use logarithmic returns")
	optimizeCmd.Flags().BoolVar(&optimizeLedoitWolf, "ledoit-wolf", false, "shrink the covariance matrix")
	optimizeCmd.Flags().Float64Var(&optimizeMinWeight, "min-weight", 0, "lower bound per asset")
	optimizeCmd.Flags().Float64Var(&optimizeMaxWeight, "max-weight", 1, "upper bound per asset")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	objective, err := domain.ParseObjective(optimizeObjective)
	if err != nil {
		return err
	}
	periodicity, err := domain.ParsePeriodicity(optimizePeriodicity)
	if err != nil {
		return err
	}
	start, end, err := parseWindow(optimizeStart, optimizeEnd)
	if err != nil {
		return err
	}

	st, err := openStack(false)
	if err != nil {
		return err
	}
	defer st.Close()

	rf := st.cfg.RiskFreeRate
	if cmd.Flags().Changed("risk-free-rate") {
		rf = optimizeRiskFree
	}

	matrix, err := st.marketData.Fetch(cmd.Context(), args, start, end)
	if err != nil {
		return err
	}

	stats, err := optimization.ComputeStatistics(matrix, periodicity, optimization.StatisticsOptions{
		UseLogReturns: optimizeLogReturns,
		LedoitWolf:    optimizeLedoitWolf,
	})
	if err != nil {
		return err
	}

	constraints := optimization.Constraints{
		MinWeight: optimizeMinWeight,
		MaxWeight: optimizeMaxWeight,
	}

	optimizer := optimization.NewOptimizer(rf, st.log)
	result, err := optimizer.Optimize(stats, objective, constraints)
	if err != nil {
		return err
	}

	fmt.Printf("Objective:    %s\n", result.Objective)
	fmt.Printf("Window:       %s .. %s (%d observations)\n",
		start.Format(domain.DateFormat), end.Format(domain.DateFormat), stats.Observations)
	fmt.Println()

	printWeights(result.Weights)
	fmt.Println()

	if result.ExpectedReturn != nil {
		fmt.Printf("Expected return:  %8.2f%%\n", *result.ExpectedReturn*100)
	}
	if result.Volatility != nil {
		fmt.Printf("Volatility:       %8.2f%%\n", *result.Volatility*100)
	}
	if result.SharpeRatio != nil {
		fmt.Printf("Sharpe ratio:     %8.2f\n", *result.SharpeRatio)
	}
	if result.RidgeApplied > 0 {
		fmt.Printf("\nNote: covariance matrix was near-singular, ridge %.0e applied\n", result.RidgeApplied)
	}

	for _, pair := range stats.HighCorrelations(0.8) {
		fmt.Printf("Warning: %s and %s are %.0f%% correlated\n", pair.Symbol1, pair.Symbol2, pair.Correlation*100)
	}

	return nil
}

func printWeights(weights domain.WeightVector) {
	symbols := make([]string, 0, len(weights))
	for sym := range weights {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		fmt.Printf("  %-8s %7.2f%%\n", sym, weights[sym]*100)
	}
}
