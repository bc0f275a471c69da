package exchange

import (
	"encoding/json"
)

// RenderCurrent formats a current-rate result as indented JSON, or the error
// marker as a JSON string when err is set.
func RenderCurrent(rates []CurrentRate, err error) string {
	if err != nil {
		return renderMarker()
	}
	if rates == nil {
		rates = []CurrentRate{}
	}
	return render(rates)
}

// RenderArchive formats archive entries as an indented JSON list of
// single-key objects.
func RenderArchive(days []DayRates) string {
	if days == nil {
		days = []DayRates{}
	}
	return render(days)
}

func render(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return renderMarker()
	}
	return string(out)
}

func renderMarker() string {
	out, _ := json.Marshal(ErrorMarker)
	return string(out)
}
