package marketdata

// PriceBar represents a cached daily price point. Date uses the
// YYYY-MM-DD format throughout the cache layer.
type PriceBar struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adj_close"`
	Volume   *int64  `json:"volume,omitempty"`
}

// Coverage describes the cached date range for a symbol
type Coverage struct {
	Symbol    string `json:"symbol"`
	FirstDate string `json:"first_date"`
	LastDate  string `json:"last_date"`
	Count     int    `json:"count"`
}

// PricesResponse is the wire format for aligned price series
type PricesResponse struct {
	Dates   []string             `json:"dates"`
	Symbols []string             `json:"symbols"`
	Series  map[string][]float64 `json:"series"`
}
