// Package seeder holds the static table of well-known symbols and
// reference prices used to populate a feed at startup. It is a thin
// adapter over the core: nothing in marketdata depends on it.
package seeder

import "minimart/pkg/marketdata"

// Equity describes one seeded security.
type Equity struct {
	Symbol    string
	Name      string
	BasePrice float64
}

var majorUSEquities = []Equity{
	{"AAPL", "Apple Inc.", 175.0},
	{"MSFT", "Microsoft Corporation", 350.0},
	{"GOOGL", "Alphabet Inc.", 2800.0},
	{"AMZN", "Amazon.com Inc.", 3200.0},
	{"TSLA", "Tesla Inc.", 250.0},
	{"META", "Meta Platforms Inc.", 320.0},
	{"NVDA", "NVIDIA Corporation", 450.0},
	{"JPM", "JPMorgan Chase & Co.", 145.0},
	{"JNJ", "Johnson & Johnson", 165.0},
	{"V", "Visa Inc.", 240.0},
	{"PG", "Procter & Gamble Co.", 140.0},
	{"UNH", "UnitedHealth Group Inc.", 520.0},
	{"HD", "Home Depot Inc.", 330.0},
	{"MA", "Mastercard Inc.", 380.0},
	{"BAC", "Bank of America Corp.", 32.0},
	{"XOM", "Exxon Mobil Corporation", 110.0},
	{"DIS", "Walt Disney Co.", 95.0},
	{"ADBE", "Adobe Inc.", 480.0},
	{"CRM", "Salesforce Inc.", 220.0},
	{"NFLX", "Netflix Inc.", 450.0},
}

var majorFXPairs = []string{
	"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "AUDUSD",
	"USDCAD", "NZDUSD", "EURGBP", "EURJPY", "GBPJPY",
	"CHFJPY", "EURCHF", "AUDCAD", "CADJPY", "NZDJPY",
}

var majorCryptoPairs = []string{
	"BTCUSD", "ETHUSD", "ADAUSD", "BNBUSD", "XRPUSD",
	"SOLUSD", "DOTUSD", "AVAXUSD", "MATICUSD", "LINKUSD",
	"LTCUSD", "BCHUSD", "XLMUSD", "VETUSD", "FILUSD",
}

// MajorUSEquities returns the full equity reference table.
func MajorUSEquities() []Equity {
	out := make([]Equity, len(majorUSEquities))
	copy(out, majorUSEquities)
	return out
}

// BasePrice returns the reference price for symbol, or defaultPrice if
// the symbol is not in the equity table.
func BasePrice(symbol string, defaultPrice float64) float64 {
	for _, e := range majorUSEquities {
		if e.Symbol == symbol {
			return e.BasePrice
		}
	}
	return defaultPrice
}

// MajorUSEquityIds returns SecurityIds for every seeded equity.
func MajorUSEquityIds() []marketdata.SecurityId {
	out := make([]marketdata.SecurityId, len(majorUSEquities))
	for i, e := range majorUSEquities {
		out[i] = marketdata.NewSecurityId(e.Symbol)
	}
	return out
}

// MajorFXPairIds returns SecurityIds for the major FX pairs.
func MajorFXPairIds() []marketdata.SecurityId {
	return symbolsToIds(majorFXPairs)
}

// MajorCryptoPairIds returns SecurityIds for the major crypto pairs.
func MajorCryptoPairIds() []marketdata.SecurityId {
	return symbolsToIds(majorCryptoPairs)
}

// TestSecurityIds returns the first 10 major US equities, a small fixed
// set convenient for smoke-testing a feed.
func TestSecurityIds() []marketdata.SecurityId {
	ids := MajorUSEquityIds()
	if len(ids) > 10 {
		ids = ids[:10]
	}
	return ids
}

func symbolsToIds(symbols []string) []marketdata.SecurityId {
	out := make([]marketdata.SecurityId, len(symbols))
	for i, s := range symbols {
		out[i] = marketdata.NewSecurityId(s)
	}
	return out
}
