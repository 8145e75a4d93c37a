package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/internal/modules/analytics"
	"github.com/leenamkee/quant-portfolio/internal/modules/backtest"
	"github.com/leenamkee/quant-portfolio/internal/modules/optimization"
)

var (
	backtestObjective   string
	backtestFrequency   string
	backtestStart       string
	backtestEnd         string
	backtestCapital     float64
	backtestRiskFree    float64
	backtestMinLookback int
	backtestPeriodicity string
	backtestLogReturns  bool
	backtestLedoitWolf  bool
	backtestWeights     string
	backtestSave        bool
)

// backtestCmd replays a rebalancing strategy over historical prices
var backtestCmd = &cobra.Command{
	Use:   "backtest SYMBOL...",
	Short: "Replay a rebalancing strategy over a historical window",
	Long: `Simulates investing a starting capital at the first trading
date of the window and re-optimizing at the chosen calendar frequency.
Between rebalances the portfolio drifts with prices, exactly as held
shares would.

With --weights the given fixed allocation is reapplied at each
rebalance instead of re-optimizing.

Examples:
  qp backtest AAPL MSFT GOOG --objective max_sharpe --frequency monthly
  qp backtest SPY TLT --frequency quarterly --capital 50000 --save
  qp backtest AAPL MSFT --weights AAPL=0.6,MSFT=0.4 --frequency monthly`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestObjective, "objective", "max_sharpe", "max_sharpe, min_volatility or equal_weight")
	backtestCmd.Flags().StringVar(&backtestFrequency, "frequency", "monthly", "rebalance cadence: none, monthly, quarterly or yearly")
	backtestCmd.Flags().StringVar(&backtestStart, "start", "", "window start YYYY-MM-DD (default one year before end)")
	backtestCmd.Flags().StringVar(&backtestEnd, "end", "", "window end YYYY-MM-DD (default today)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 10000, "starting capital")
	backtestCmd.Flags().Float64Var(&backtestRiskFree, "risk-free-rate", 0, "annual risk-free rate (default from config)")
	backtestCmd.Flags().IntVar(&backtestMinLookback, "min-lookback", 0, "minimum observations per solve window (default from config)")
	backtestCmd.Flags().StringVar(&backtestPeriodicity, "periodicity", "daily", "return sampling: daily, weekly or monthly")
	backtestCmd.Flags().BoolVar(&backtestLogReturns, "log-returns", false, "use logarithmic returns")
	backtestCmd.Flags().BoolVar(&backtestLedoitWolf, "ledoit-wolf", false, "shrink the covariance matrix")
	backtestCmd.Flags().StringVar(&backtestWeights, "weights", "", "fixed allocation SYMBOL=WEIGHT,... instead of re-optimizing")
	backtestCmd.Flags().BoolVar(&backtestSave, "save", false, "persist the run for qp runs")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	frequency, err := domain.ParseFrequency(backtestFrequency)
	if err != nil {
		return err
	}
	periodicity, err := domain.ParsePeriodicity(backtestPeriodicity)
	if err != nil {
		return err
	}
	start, end, err := parseWindow(backtestStart, backtestEnd)
	if err != nil {
		return err
	}

	var fixed domain.WeightVector
	if backtestWeights != "" {
		fixed, err = parseWeightList(backtestWeights)
		if err != nil {
			return err
		}
	}

	objective := domain.Objective("")
	if fixed == nil {
		objective, err = domain.ParseObjective(backtestObjective)
		if err != nil {
			return err
		}
	}

	st, err := openStack(backtestSave)
	if err != nil {
		return err
	}
	defer st.Close()

	rf := st.cfg.RiskFreeRate
	if cmd.Flags().Changed("risk-free-rate") {
		rf = backtestRiskFree
	}
	minLookback := st.cfg.MinLookback
	if cmd.Flags().Changed("min-lookback") {
		minLookback = backtestMinLookback
	}

	matrix, err := st.marketData.Fetch(cmd.Context(), args, start, end)
	if err != nil {
		return err
	}

	simulator := backtest.NewSimulator(optimization.NewOptimizer(rf, st.log), st.log)

	var result *backtest.SimulationResult
	if fixed != nil {
		result, err = simulator.SimulateFixed(matrix, fixed, frequency, backtestCapital)
	} else {
		result, err = simulator.Simulate(matrix, objective, frequency, backtestCapital, backtest.SimOptions{
			MinLookback: minLookback,
			Periodicity: periodicity,
			Statistics: optimization.StatisticsOptions{
				UseLogReturns: backtestLogReturns,
				LedoitWolf:    backtestLedoitWolf,
			},
		})
	}
	if err != nil {
		return err
	}

	report, err := analytics.Analyze(result.Trajectory, periodicity, rf)
	if err != nil {
		return err
	}

	printReport(report, len(result.Holdings))

	fmt.Println()
	fmt.Println("Final allocation:")
	printWeights(result.Holdings[len(result.Holdings)-1].Weights)

	if backtestSave {
		run := &backtest.Run{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Kind:      backtest.RunKindOptimized,
			Params: backtest.RunParams{
				Symbols:      matrix.Symbols,
				Start:        start.Format(domain.DateFormat),
				End:          end.Format(domain.DateFormat),
				Objective:    string(objective),
				Frequency:    string(frequency),
				StartCapital: backtestCapital,
				RiskFreeRate: rf,
			},
			Report:     report,
			Holdings:   result.Holdings,
			Trajectory: result.Trajectory,
		}
		if fixed != nil {
			run.Kind = backtest.RunKindCustom
			run.Params.Weights = fixed
			run.Params.Objective = ""
		}

		if err := st.runs().SaveRun(run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		fmt.Printf("\nSaved run %s\n", run.ID)
	}

	return nil
}

func printReport(report *analytics.PerformanceReport, rebalances int) {
	fmt.Printf("Window:            %s .. %s (%d periods, %d rebalances)\n",
		report.StartDate, report.EndDate, report.Periods, rebalances)
	fmt.Printf("Initial value:     %12.2f\n", report.InitialValue)
	fmt.Printf("Final value:       %12.2f\n", report.FinalValue)
	fmt.Printf("Total return:      %11.2f%%\n", report.TotalReturn*100)
	fmt.Printf("Annualized return: %11.2f%%\n", report.AnnualizedReturn*100)
	fmt.Printf("Volatility:        %11.2f%%\n", report.AnnualizedVolatility*100)
	if report.SharpeRatio != nil {
		fmt.Printf("Sharpe ratio:      %12.2f\n", *report.SharpeRatio)
	}
	if report.SortinoRatio != nil {
		fmt.Printf("Sortino ratio:     %12.2f\n", *report.SortinoRatio)
	}
	fmt.Printf("Max drawdown:      %11.2f%%", report.MaxDrawdown*100)
	if report.MaxDrawdownPeak != "" {
		fmt.Printf("  (%s .. %s)", report.MaxDrawdownPeak, report.MaxDrawdownTrough)
	}
	fmt.Println()
}

// parseWeightList parses "AAPL=0.6,MSFT=0.4" into a weight vector.
func parseWeightList(s string) (domain.WeightVector, error) {
	weights := make(domain.WeightVector)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid weight %q, expected SYMBOL=WEIGHT", part)
		}
		w, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight value %q for %s", kv[1], kv[0])
		}
		weights[strings.ToUpper(strings.TrimSpace(kv[0]))] = w
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("no weights given")
	}
	return weights, nil
}
