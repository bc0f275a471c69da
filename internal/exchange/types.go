// Package exchange fetches PrivatBank currency rates and shapes them into the
// messages broadcast to chat participants.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// DateLayout is the provider's date format (DD.MM.YYYY).
const DateLayout = "02.01.2006"

// ErrorMarker replaces the result of a fetch that failed.
const ErrorMarker = "Error fetching data"

// ErrTransport wraps every failure to obtain a usable response from the
// provider: network faults, non-200 statuses and undecodable bodies.
var ErrTransport = errors.New("exchange: transport error")

// Fetcher is the rate provider capability used by chat sessions.
type Fetcher interface {
	// Current returns the provider's current cash rates.
	Current(ctx context.Context) ([]CurrentRate, error)
	// Archive returns the rate record for a single date in DateLayout.
	Archive(ctx context.Context, date string) (*ArchiveRecord, error)
}

// Rate is a normalized sale/purchase pair.
type Rate struct {
	Sale     decimal.Decimal
	Purchase decimal.Decimal
}

// MarshalJSON renders both amounts as bare JSON numbers.
func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(`{"sale":` + r.Sale.String() + `,"purchase":` + r.Purchase.String() + `}`), nil
}

// Rates is a currency to Rate mapping that remembers insertion order so the
// serialized object lists currencies in the order they were requested.
type Rates struct {
	codes  []string
	values map[string]Rate
}

// Set stores rate for code. A code keeps the position of its first Set.
func (r *Rates) Set(code string, rate Rate) {
	if r.values == nil {
		r.values = make(map[string]Rate)
	}
	if _, ok := r.values[code]; !ok {
		r.codes = append(r.codes, code)
	}
	r.values[code] = rate
}

// Get returns the rate stored for code.
func (r Rates) Get(code string) (Rate, bool) {
	rate, ok := r.values[code]
	return rate, ok
}

// Has reports whether code has a rate.
func (r Rates) Has(code string) bool {
	_, ok := r.values[code]
	return ok
}

// Codes returns the currency codes in insertion order.
func (r Rates) Codes() []string {
	return append([]string(nil), r.codes...)
}

// Len returns the number of currencies.
func (r Rates) Len() int {
	return len(r.codes)
}

// MarshalJSON encodes the rates as a JSON object in insertion order.
func (r Rates) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, code := range r.codes {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(code)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[code])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DayRates is the archive result for a single date. Err is set when the
// provider could not be reached for that date.
type DayRates struct {
	Date  string
	Rates Rates
	Err   error
}

// MarshalJSON encodes the entry as {"<date>": rates} or
// {"<date>": "Error fetching data"}.
func (d DayRates) MarshalJSON() ([]byte, error) {
	key, err := json.Marshal(d.Date)
	if err != nil {
		return nil, err
	}

	var value []byte
	if d.Err != nil {
		value, err = json.Marshal(ErrorMarker)
	} else {
		value, err = json.Marshal(d.Rates)
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(key)+len(value)+3)
	out = append(out, '{')
	out = append(out, key...)
	out = append(out, ':')
	out = append(out, value...)
	out = append(out, '}')
	return out, nil
}
