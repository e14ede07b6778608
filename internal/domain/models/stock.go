package models

// DefaultThreshold is applied to products stored without a low-stock threshold.
const DefaultThreshold = 10

// Product is one trackable catalog entry.
type Product struct {
	Code      string
	Name      string
	Threshold int
}

// ExtractItem is the system-of-record quantity for one product code.
type ExtractItem struct {
	Name     string
	Quantity float64
}

// Extract maps product codes to their aggregated system quantities.
type Extract map[string]ExtractItem
