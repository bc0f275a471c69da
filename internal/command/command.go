// Package command parses inbound chat lines into plain messages or the
// in-band exchange command.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Keyword is the literal token that starts an exchange command.
const Keyword = "exchange"

// ErrMalformedCommand is returned when the first argument of an exchange
// command is not a non-negative integer.
var ErrMalformedCommand = errors.New("command: malformed exchange command")

// UsageMessage is broadcast when an exchange command is malformed.
const UsageMessage = "Second parameter should be digit or no parameters should be provided after 'exchange' command"

// AllowList holds the recognized currency codes in display order.
var AllowList = []string{"CHF", "EUR", "GBP", "PLZ", "SEK", "UAH", "USD", "XAU", "CAD"}

// DefaultCurrencies is used when a command names no valid currency.
var DefaultCurrencies = []string{"EUR", "USD"}

var allowed = func() map[string]struct{} {
	m := make(map[string]struct{}, len(AllowList))
	for _, code := range AllowList {
		m[code] = struct{}{}
	}
	return m
}()

// Command is the result of parsing one inbound line: either a PlainMessage
// or an Exchange.
type Command interface {
	isCommand()
}

// PlainMessage is ordinary chat text.
type PlainMessage struct {
	Text string
}

// Exchange is a request for currency rates. A nil LookbackDays asks for the
// current rate; otherwise rates for that many most-recent days, today
// included, are requested.
type Exchange struct {
	LookbackDays *int
	Currencies   []string
	Dropped      []string
}

func (PlainMessage) isCommand() {}
func (Exchange) isCommand()     {}

// IsArchive reports whether the command asks for historical rates.
func (e Exchange) IsArchive() bool {
	return e.LookbackDays != nil
}

// Notices returns the user-facing messages describing every dropped code.
func (e Exchange) Notices() []string {
	notices := make([]string, 0, 2*len(e.Dropped))
	for _, code := range e.Dropped {
		notices = append(notices,
			fmt.Sprintf("List of currencies contains not available currency %s. It was eliminated", code),
			"Should be in the following list: "+FormatAllowList(),
		)
	}
	return notices
}

// FormatAllowList renders the allow-list as ['CHF', 'EUR', ...].
func FormatAllowList() string {
	quoted := make([]string, len(AllowList))
	for i, code := range AllowList {
		quoted[i] = "'" + code + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// IsAllowed reports whether code is a recognized currency. Matching is
// case-sensitive.
func IsAllowed(code string) bool {
	_, ok := allowed[code]
	return ok
}

// Parse classifies line. Lines that do not start with the exchange keyword
// are returned verbatim as a PlainMessage.
func Parse(line string) (Command, error) {
	if !isExchange(line) {
		return PlainMessage{Text: line}, nil
	}

	args := strings.Fields(line)[1:]
	if len(args) == 0 {
		return Exchange{Currencies: defaults()}, nil
	}

	if !isDigits(args[0]) {
		return nil, fmt.Errorf("%w: %q is not a number of days", ErrMalformedCommand, args[0])
	}
	days, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	valid, dropped := partition(args[1:])
	if len(valid) == 0 {
		valid = defaults()
	}

	return Exchange{
		LookbackDays: &days,
		Currencies:   valid,
		Dropped:      dropped,
	}, nil
}

func isExchange(line string) bool {
	rest, ok := strings.CutPrefix(line, Keyword)
	if !ok {
		return false
	}
	return rest == "" || strings.IndexAny(rest[:1], " \t\r\n\v\f") == 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// partition deduplicates codes in first-seen order and splits them into
// allowed and rejected codes.
func partition(codes []string) (valid, dropped []string) {
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		if IsAllowed(code) {
			valid = append(valid, code)
		} else {
			dropped = append(dropped, code)
		}
	}
	return valid, dropped
}

func defaults() []string {
	return append([]string(nil), DefaultCurrencies...)
}
