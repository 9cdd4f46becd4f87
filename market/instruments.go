// market/instruments.go
package market

// InstrumentMeta carries venue metadata the core needs to size and
// validate orders.
type InstrumentMeta struct {
	Name             string
	BaseCurrency     string
	QuoteCurrency    string
	MinimumTradeSize float64
	SizeIncrement    float64
	TickSize         float64
}

var Instruments = map[string]InstrumentMeta{
	"BTC_USD": {
		Name:             "BTC_USD",
		BaseCurrency:     "BTC",
		QuoteCurrency:    "USD",
		MinimumTradeSize: 0.0001,
		SizeIncrement:    0.0001,
		TickSize:         0.1,
	},
	"ETH_USD": {
		Name:             "ETH_USD",
		BaseCurrency:     "ETH",
		QuoteCurrency:    "USD",
		MinimumTradeSize: 0.001,
		SizeIncrement:    0.001,
		TickSize:         0.01,
	},
	"EUR_USD": {
		Name:             "EUR_USD",
		BaseCurrency:     "EUR",
		QuoteCurrency:    "USD",
		MinimumTradeSize: 1,
		SizeIncrement:    1,
		TickSize:         0.00001,
	},
}

// Meta returns metadata for instrument, falling back to permissive
// defaults for instruments not in the table.
func Meta(instrument string) InstrumentMeta {
	if m, ok := Instruments[instrument]; ok {
		return m
	}
	return InstrumentMeta{
		Name:             instrument,
		MinimumTradeSize: 0,
		SizeIncrement:    0,
	}
}
