// Package symbol handles instrument ticker parsing and validation for the
// arbitrage engine's HTTP surface.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Supported quote currencies.
const (
	QuoteTRY  = "TRY"
	QuoteUSDT = "USDT"
	QuoteUSD  = "USD"
)

var validQuotes = map[string]bool{
	QuoteTRY:  true,
	QuoteUSDT: true,
	QuoteUSD:  true,
}

// tickerRegex matches: ARB-{base}-{quote}-{exchange}
// Example: ARB-BTC-TRY-BTCTURK
var tickerRegex = regexp.MustCompile(
	`^ARB-([A-Z0-9]+)-([A-Z]+)-([A-Z0-9]+)$`,
)

var (
	ErrInvalidTicker = errors.New("symbol: invalid ticker format")
	ErrInvalidQuote  = errors.New("symbol: unsupported quote currency")
)

// Instrument represents a parsed arbitrage instrument ticker.
type Instrument struct {
	Ticker   string `json:"ticker"`
	Base     string `json:"base"`
	Quote    string `json:"quote"`
	Exchange string `json:"exchange"` // lowercase venue name, fee registry key
}

// ParseTicker parses and validates an instrument ticker string.
// Format: ARB-{base}-{quote}-{exchange}
func ParseTicker(ticker string) (*Instrument, error) {
	matches := tickerRegex.FindStringSubmatch(ticker)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected ARB-{base}-{quote}-{exchange})",
			ErrInvalidTicker, ticker)
	}

	base := matches[1]
	quote := matches[2]
	exchange := matches[3]

	if !validQuotes[quote] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuote, quote)
	}

	return &Instrument{
		Ticker:   ticker,
		Base:     base,
		Quote:    quote,
		Exchange: strings.ToLower(exchange),
	}, nil
}

// Pair returns the conventional pair notation, e.g. "BTC/TRY".
func (i *Instrument) Pair() string {
	return i.Base + "/" + i.Quote
}

// TLSettled reports whether the instrument settles in Turkish lira, which
// decides whether notional transaction taxes apply.
func (i *Instrument) TLSettled() bool {
	return i.Quote == QuoteTRY
}
