package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/internal/modules/backtest"
	"github.com/leenamkee/quant-portfolio/internal/modules/optimization"
)

var (
	compareObjectives  string
	compareFrequencies string
	compareStart       string
	compareEnd         string
	compareCapital     float64
	compareRiskFree    float64
	comparePeriodicity string
)

// compareCmd backtests a grid of strategies over the same window
var compareCmd = &cobra.Command{
	Use:   "compare SYMBOL...",
	Short: "Backtest every objective/frequency combination side by side",
	Long: `Runs one backtest per objective/frequency pair over the same
price window and prints the results as a grid. A failing combination
reports its error without aborting the others.

Examples:
  qp compare AAPL MSFT GOOG
  qp compare SPY TLT GLD --objectives max_sharpe,min_volatility --frequencies monthly,quarterly
  qp compare AAPL MSFT --start 2022-01-01 --end 2024-01-01`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVar(&compareObjectives, "objectives", "max_sharpe,min_volatility,equal_weight", "comma-separated objectives")
	compareCmd.Flags().StringVar(&compareFrequencies, "frequencies", "monthly", "comma-separated rebalance frequencies")
	compareCmd.Flags().StringVar(&compareStart, "start", "", "window start YYYY-MM-DD (default one year before end)")
	compareCmd.Flags().StringVar(&compareEnd, "end", "", "window end YYYY-MM-DD (default today)")
	compareCmd.Flags().Float64Var(&compareCapital, "capital", 10000, "starting capital")
	compareCmd.Flags().Float64Var(&compareRiskFree, "risk-free-rate", 0, "annual risk-free rate (default from config)")
	compareCmd.Flags().StringVar(&comparePeriodicity, "periodicity", "daily", "return sampling: daily, weekly or monthly")
}

func runCompare(cmd *cobra.Command, args []string) error {
	objectives := splitList(compareObjectives)
	frequencies := splitList(compareFrequencies)
	if len(objectives) == 0 || len(frequencies) == 0 {
		return fmt.Errorf("at least one objective and one frequency are required")
	}

	periodicity, err := domain.ParsePeriodicity(comparePeriodicity)
	if err != nil {
		return err
	}
	start, end, err := parseWindow(compareStart, compareEnd)
	if err != nil {
		return err
	}

	variants := make([]backtest.CompareVariant, 0, len(objectives)*len(frequencies))
	for _, obj := range objectives {
		for _, freq := range frequencies {
			variants = append(variants, backtest.CompareVariant{Objective: obj, Frequency: freq})
		}
	}

	st, err := openStack(false)
	if err != nil {
		return err
	}
	defer st.Close()

	rf := st.cfg.RiskFreeRate
	if cmd.Flags().Changed("risk-free-rate") {
		rf = compareRiskFree
	}

	matrix, err := st.marketData.Fetch(cmd.Context(), args, start, end)
	if err != nil {
		return err
	}

	simulator := backtest.NewSimulator(optimization.NewOptimizer(rf, st.log), st.log)
	runner := backtest.NewRunner(simulator, rf, st.log)
	results := runner.Compare(matrix, variants, compareCapital, backtest.SimOptions{
		MinLookback: st.cfg.MinLookback,
		Periodicity: periodicity,
	})

	fmt.Printf("Window: %s .. %s, capital %.2f\n\n",
		start.Format(domain.DateFormat), end.Format(domain.DateFormat), compareCapital)
	fmt.Printf("%-32s %10s %10s %8s %10s %6s\n",
		"STRATEGY", "RETURN", "ANN.VOL", "SHARPE", "DRAWDOWN", "REBAL")

	for _, res := range results {
		if res.Error != "" {
			fmt.Printf("%-32s failed: %s\n", res.Label, res.Error)
			continue
		}
		sharpe := "-"
		if res.Report.SharpeRatio != nil {
			sharpe = fmt.Sprintf("%.2f", *res.Report.SharpeRatio)
		}
		fmt.Printf("%-32s %9.2f%% %9.2f%% %8s %9.2f%% %6d\n",
			res.Label,
			res.Report.TotalReturn*100,
			res.Report.AnnualizedVolatility*100,
			sharpe,
			res.Report.MaxDrawdown*100,
			res.Rebalances)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
