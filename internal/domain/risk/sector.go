package risk

import (
	"context"
	"strings"
)

// SectorOther is the fallback sector for unmapped symbols
const SectorOther = "other"

// SectorLookup maps a symbol to a sector label
type SectorLookup interface {
	Sector(symbol string) string
}

// ReturnsSource supplies aligned daily closes for correlation estimates.
// Symbols that could not be loaded are omitted from the result.
type ReturnsSource interface {
	AlignedCloses(ctx context.Context, symbols []string) (map[string][]float64, error)
}

// StaticSectors is a fixed symbol to sector map
type StaticSectors map[string]string

// DefaultSectors covers the common large caps the desk trades
var DefaultSectors = StaticSectors{
	"AAPL": "tech", "MSFT": "tech", "GOOGL": "tech", "AMZN": "tech",
	"NVDA": "tech", "META": "tech", "TSLA": "tech", "ADBE": "tech",
	"CRM": "tech", "INTC": "tech", "AMD": "tech", "AVGO": "tech",
	"CSCO": "tech", "NFLX": "tech", "PYPL": "tech",
	"JPM": "financials", "V": "financials", "MA": "financials",
	"JNJ": "healthcare", "MRK": "healthcare", "ABT": "healthcare", "TMO": "healthcare",
	"WMT": "consumer", "COST": "consumer", "HD": "consumer", "NKE": "consumer",
	"PG": "consumer", "PEP": "consumer",
	"DIS": "communications", "CMCSA": "communications",
	"XOM": "energy", "CVX": "energy",
}

// Sector returns the mapped sector or "other"
func (m StaticSectors) Sector(symbol string) string {
	if s, ok := m[strings.ToUpper(symbol)]; ok && s != "" {
		return s
	}
	return SectorOther
}
