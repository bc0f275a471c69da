package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainMessage(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "ordinary text", line: "hello"},
		{name: "empty line", line: ""},
		{name: "keyword later in line", line: "try exchange 3"},
		{name: "keyword glued to word", line: "exchanger 3 EUR"},
		{name: "leading whitespace", line: " exchange"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, PlainMessage{Text: tt.line}, cmd)
		})
	}
}

func TestParseExchangeWithoutArguments(t *testing.T) {
	cmd, err := Parse("exchange")
	require.NoError(t, err)

	ex, ok := cmd.(Exchange)
	require.True(t, ok, "expected Exchange, got %T", cmd)
	assert.Nil(t, ex.LookbackDays)
	assert.False(t, ex.IsArchive())
	assert.Equal(t, []string{"EUR", "USD"}, ex.Currencies)
	assert.Empty(t, ex.Dropped)
}

func TestParseExchangeTrailingWhitespace(t *testing.T) {
	cmd, err := Parse("exchange   ")
	require.NoError(t, err)

	ex := cmd.(Exchange)
	assert.Nil(t, ex.LookbackDays)
}

func TestParseMalformed(t *testing.T) {
	for _, line := range []string{"exchange abc", "exchange -1", "exchange 2x EUR", "exchange 99999999999999999999999"} {
		t.Run(line, func(t *testing.T) {
			cmd, err := Parse(line)
			assert.Nil(t, cmd)
			assert.ErrorIs(t, err, ErrMalformedCommand)
		})
	}
}

func TestParseArchiveFiltersCurrencies(t *testing.T) {
	cmd, err := Parse("exchange 3 EUR USD EUR ZZZ")
	require.NoError(t, err)

	ex := cmd.(Exchange)
	require.NotNil(t, ex.LookbackDays)
	assert.Equal(t, 3, *ex.LookbackDays)
	assert.Equal(t, []string{"EUR", "USD"}, ex.Currencies)
	assert.Equal(t, []string{"ZZZ"}, ex.Dropped)
}

func TestParseArchiveDeduplicatesInFirstSeenOrder(t *testing.T) {
	cmd, err := Parse("exchange 2 USD GBP USD CHF GBP usd usd")
	require.NoError(t, err)

	ex := cmd.(Exchange)
	assert.Equal(t, []string{"USD", "GBP", "CHF"}, ex.Currencies)
	assert.Equal(t, []string{"usd"}, ex.Dropped, "matching is case-sensitive")
}

func TestParseArchiveFallsBackToDefaults(t *testing.T) {
	cmd, err := Parse("exchange 5 AUD JPY")
	require.NoError(t, err)

	ex := cmd.(Exchange)
	assert.Equal(t, 5, *ex.LookbackDays)
	assert.Equal(t, []string{"EUR", "USD"}, ex.Currencies)
	assert.Equal(t, []string{"AUD", "JPY"}, ex.Dropped)
}

func TestParseArchiveZeroDays(t *testing.T) {
	cmd, err := Parse("exchange 0")
	require.NoError(t, err)

	ex := cmd.(Exchange)
	require.NotNil(t, ex.LookbackDays)
	assert.Zero(t, *ex.LookbackDays)
	assert.True(t, ex.IsArchive())
}

func TestNotices(t *testing.T) {
	ex := Exchange{Dropped: []string{"ZZZ", "AUD"}}

	notices := ex.Notices()
	require.Len(t, notices, 4)
	assert.Equal(t, "List of currencies contains not available currency ZZZ. It was eliminated", notices[0])
	assert.Equal(t, "Should be in the following list: ['CHF', 'EUR', 'GBP', 'PLZ', 'SEK', 'UAH', 'USD', 'XAU', 'CAD']", notices[1])
	assert.Contains(t, notices[2], "AUD")
}

func TestDefaultsAreNotShared(t *testing.T) {
	first, err := Parse("exchange")
	require.NoError(t, err)
	first.(Exchange).Currencies[0] = "XAU"

	second, err := Parse("exchange")
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR", "USD"}, second.(Exchange).Currencies)
}
