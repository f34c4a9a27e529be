package statement

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/govalues/decimal"
)

var errEmpty = errors.New("empty value")

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"2006/01/02",
	"02.01.2006",
	"2.1.2006",
	"02-01-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// parseDate tries layout first when given, then the known bank formats.
// The result is a UTC calendar date.
func parseDate(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmpty
	}
	layouts := dateLayouts
	if layout != "" {
		layouts = append([]string{layout}, dateLayouts...)
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("unrecognized date")
}

// parseAmount reads a human formatted amount. Currency symbols, a leading or
// trailing three letter currency code, spaces and thousands separators are
// dropped. "(12.00)", "12.00-" and "12.00 DR" are negative, and a decimal
// comma is understood. Any other letter makes the value invalid. The result
// has two fractional digits.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, errEmpty
	}
	s, neg := debitCredit(s)
	s = trimCurrencyCode(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' || r == '−':
			neg = !neg
		case r == '+', unicode.IsSpace(r), unicode.IsSymbol(r), r == '\'':
			// signs, currency symbols, grouping spaces and apostrophes
		default:
			return decimal.Decimal{}, errors.New("unexpected character")
		}
	}
	num := normalizeSeparators(b.String())
	if num == "" {
		return decimal.Decimal{}, errors.New("no digits")
	}
	d, err := decimal.Parse(num)
	if err != nil {
		return decimal.Decimal{}, err
	}
	d = d.Round(2)
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// debitCredit strips a trailing DR or CR marker. DR marks money out.
func debitCredit(s string) (string, bool) {
	n := len(s)
	if n < 3 || isASCIILetter(s[n-3]) {
		return s, false
	}
	switch strings.ToUpper(s[n-2:]) {
	case "DR":
		return strings.TrimSpace(s[:n-2]), true
	case "CR":
		return strings.TrimSpace(s[:n-2]), false
	}
	return s, false
}

// trimCurrencyCode drops an ISO style code such as "USD" at either end.
func trimCurrencyCode(s string) string {
	if len(s) > 3 && isASCIIWord(s[:3]) && !isASCIILetter(s[3]) {
		s = strings.TrimSpace(s[3:])
	}
	if n := len(s); n > 3 && isASCIIWord(s[n-3:]) && !isASCIILetter(s[n-4]) {
		s = strings.TrimSpace(s[:n-3])
	}
	return s
}

func isASCIIWord(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isASCIILetter(s[i]) {
			return false
		}
	}
	return true
}

func isASCIILetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

// normalizeSeparators rewrites digits with '.' and ',' into a plain
// decimal with at most one '.'.
func normalizeSeparators(s string) string {
	lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			// 12,50
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		// 1.234.567
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}
