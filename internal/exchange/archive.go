package exchange

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FetchArchive requests every date concurrently, at most limit at a time, and
// returns one entry per date in the order of dates regardless of which
// request finished first. A failed date carries its error instead of rates.
func FetchArchive(ctx context.Context, f Fetcher, dates, currencies []string, limit int) []DayRates {
	results := make([]DayRates, len(dates))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, date := range dates {
		g.Go(func() error {
			results[i] = DayRates{Date: date}
			record, err := f.Archive(ctx, date)
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Rates = Extract(record, currencies)
			return nil
		})
	}

	// Workers never return an error; failures are kept per date.
	_ = g.Wait()
	return results
}
