package exchange

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ArchiveRecord is the provider response for a single date.
type ArchiveRecord struct {
	Date            string      `json:"date"`
	Bank            string      `json:"bank"`
	BaseCurrency    int         `json:"baseCurrency"`
	BaseCurrencyLit string      `json:"baseCurrencyLit"`
	ExchangeRate    []RateEntry `json:"exchangeRate"`
}

// RateEntry carries the consumer rates, which PrivatBank omits for some
// currencies, next to the central bank (NB) rates.
type RateEntry struct {
	BaseCurrency   string              `json:"baseCurrency"`
	Currency       string              `json:"currency"`
	SaleRateNB     decimal.Decimal     `json:"saleRateNB"`
	PurchaseRateNB decimal.Decimal     `json:"purchaseRateNB"`
	SaleRate       decimal.NullDecimal `json:"saleRate"`
	PurchaseRate   decimal.NullDecimal `json:"purchaseRate"`
}

// CurrentRate is one row of the current cash rates. A row decoded from the
// provider is re-encoded exactly as received.
type CurrentRate struct {
	Currency     string          `json:"ccy"`
	BaseCurrency string          `json:"base_ccy"`
	Buy          decimal.Decimal `json:"buy"`
	Sale         decimal.Decimal `json:"sale"`

	raw json.RawMessage
}

type currentRateFields CurrentRate

func (r *CurrentRate) UnmarshalJSON(data []byte) error {
	var fields currentRateFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = CurrentRate(fields)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (r CurrentRate) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(currentRateFields(r))
}

// Extract picks the requested currencies out of record. Consumer rates win
// over NB rates; currencies missing from the record are left out.
func Extract(record *ArchiveRecord, currencies []string) Rates {
	var rates Rates
	if record == nil {
		return rates
	}

	for _, code := range currencies {
		if rates.Has(code) {
			continue
		}
		for _, entry := range record.ExchangeRate {
			if entry.Currency != code {
				continue
			}
			rates.Set(code, Rate{
				Sale:     pick(entry.SaleRate, entry.SaleRateNB),
				Purchase: pick(entry.PurchaseRate, entry.PurchaseRateNB),
			})
			break
		}
	}
	return rates
}

func pick(consumer decimal.NullDecimal, nb decimal.Decimal) decimal.Decimal {
	if consumer.Valid {
		return consumer.Decimal
	}
	return nb
}

// Dates returns days dates in DateLayout, newest first, starting at now.
func Dates(now time.Time, days int) []string {
	if days <= 0 {
		return []string{}
	}
	dates := make([]string, days)
	for i := range dates {
		dates[i] = now.AddDate(0, 0, -i).Format(DateLayout)
	}
	return dates
}
