package formulas

// Drawdown describes the deepest peak-to-trough decline of a value series.
type Drawdown struct {
	// Depth is trough/peak - 1, so 0 for a series that never declines and
	// negative otherwise (-0.25 = 25% below the peak).
	Depth       float64 `json:"depth"`
	PeakIndex   int     `json:"peak_index"`
	TroughIndex int     `json:"trough_index"`
}

// MaxDrawdown scans a value series with a running maximum and returns the
// deepest drawdown. Returns nil for series shorter than 2 points.
func MaxDrawdown(values []float64) *Drawdown {
	if len(values) < 2 {
		return nil
	}

	dd := &Drawdown{}
	peak := values[0]
	peakIdx := 0

	for i, v := range values {
		if v > peak {
			peak = v
			peakIdx = i
		}

		if peak > 0 {
			depth := v/peak - 1
			if depth < dd.Depth {
				dd.Depth = depth
				dd.PeakIndex = peakIdx
				dd.TroughIndex = i
			}
		}
	}

	return dd
}

// DrawdownSeries returns the per-point drawdown from the running maximum:
// values[i] / max(values[:i+1]) - 1. Zero at new highs, negative below them.
func DrawdownSeries(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	out := make([]float64, len(values))
	peak := values[0]
	for i, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			out[i] = v/peak - 1
		}
	}
	return out
}
