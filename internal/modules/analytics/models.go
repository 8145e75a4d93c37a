package analytics

// PerformanceReport is the terminal artifact of a backtest: summary
// risk/return metrics derived once from a daily value trajectory.
// SharpeRatio and SortinoRatio are nil when undefined (zero volatility,
// no downside observations) rather than clamped to a number.
type PerformanceReport struct {
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	Periods      int     `json:"periods"`
	InitialValue float64 `json:"initial_value"`
	FinalValue   float64 `json:"final_value"`

	TotalReturn          float64  `json:"total_return"`
	AnnualizedReturn     float64  `json:"annualized_return"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	SharpeRatio          *float64 `json:"sharpe_ratio"`
	SortinoRatio         *float64 `json:"sortino_ratio"`

	// MaxDrawdown is trough/peak - 1, 0 for a trajectory that never
	// declines and negative otherwise
	MaxDrawdown       float64 `json:"max_drawdown"`
	MaxDrawdownPeak   string  `json:"max_drawdown_peak"`
	MaxDrawdownTrough string  `json:"max_drawdown_trough"`

	// Drawdowns is the per-date decline from the running maximum,
	// aligned with the input trajectory
	Drawdowns []float64 `json:"drawdowns"`

	// RollingVolatility is the annualized volatility over a sliding
	// window of periodic returns, aligned with the return series. Warmup
	// positions are null. Omitted when the trajectory is shorter than
	// the window.
	RollingVolatility []*float64 `json:"rolling_volatility,omitempty"`
}
