package statement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/govalues/decimal"
)

var keywords = struct {
	date, description, amount, debit, credit, reference []string
}{
	date:        []string{"date", "posted", "transaction date", "booking date", "value date", "posting date"},
	description: []string{"description", "memo", "payee", "name", "details", "narrative", "particulars"},
	amount:      []string{"amount", "value", "transaction amount"},
	debit:       []string{"debit", "withdrawal", "withdrawals", "paid out", "money out", "outflow"},
	credit:      []string{"credit", "deposit", "deposits", "paid in", "money in", "inflow"},
	reference:   []string{"reference", "ref", "check", "check number", "cheque", "transaction id", "id"},
}

// columns holds resolved column indexes; -1 means absent.
type columns struct {
	date, description, amount, debit, credit, reference int
	layout                                              string
}

func parseCSV(text string, mapping *Mapping, res *Result) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var header []string
	for header == nil {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			res.warn(0, "", "no header row detected")
			return
		}
		if err != nil {
			res.warn(0, "", fmt.Sprintf("unreadable header: %v", err))
			return
		}
		if !blank(rec) {
			header = rec
		}
	}

	var cols columns
	if mapping != nil {
		c, err := resolve(header, *mapping)
		if err != nil {
			res.warn(0, "", err.Error())
			return
		}
		cols = c
	} else {
		c, ok := detect(header)
		if !ok {
			res.warn(0, "", "no header row detected: need a date column and an amount or debit/credit column")
			return
		}
		cols = c
		res.DetectedMapping = c.mapping(header)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				res.warn(pe.Line, "", fmt.Sprintf("malformed row: %v", pe.Err))
				continue
			}
			res.warn(0, "", fmt.Sprintf("read failed: %v", err))
			break
		}
		if blank(rec) {
			continue
		}
		row, _ := r.FieldPos(0)
		if line, ok := parseRow(rec, row, cols, res); ok {
			res.Lines = append(res.Lines, line)
		}
	}
}

func parseRow(rec []string, row int, c columns, res *Result) (Line, bool) {
	line := Line{Row: row}
	rawDate := field(rec, c.date)
	date, err := parseDate(rawDate, c.layout)
	if err != nil {
		res.warn(row, "date", fmt.Sprintf("invalid date %q", rawDate))
		return Line{}, false
	}
	line.Date = date

	amount, err := rowAmount(rec, c)
	if err != nil {
		res.warn(row, "amount", err.Error())
		return Line{}, false
	}
	line.Amount = amount

	line.Description = field(rec, c.description)
	if line.Description == "" {
		res.warn(row, "description", "empty description")
	}
	line.Reference = field(rec, c.reference)
	return line, true
}

// rowAmount reads the signed amount column, or credit minus debit.
func rowAmount(rec []string, c columns) (decimal.Decimal, error) {
	if c.amount >= 0 {
		raw := field(rec, c.amount)
		d, err := parseAmount(raw)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid amount %q", raw)
		}
		return d, nil
	}
	debitRaw, creditRaw := field(rec, c.debit), field(rec, c.credit)
	if debitRaw == "" && creditRaw == "" {
		return decimal.Decimal{}, fmt.Errorf("missing amount")
	}
	var debit, credit decimal.Decimal
	var err error
	if debitRaw != "" {
		if debit, err = parseAmount(debitRaw); err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid debit %q", debitRaw)
		}
	}
	if creditRaw != "" {
		if credit, err = parseAmount(creditRaw); err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid credit %q", creditRaw)
		}
	}
	// Some banks export withdrawals already negative.
	out, err := credit.Sub(debit.Abs())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount out of range")
	}
	return out.Round(2), nil
}

// detect finds columns from header keywords. Exact matches win over
// substring matches and a column is never assigned twice.
func detect(header []string) (columns, bool) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = normalizeHeader(h)
	}
	used := map[int]bool{}
	find := func(words []string) int {
		for _, w := range words {
			for i, h := range norm {
				if !used[i] && h == w {
					used[i] = true
					return i
				}
			}
		}
		for _, w := range words {
			// short keywords only match exactly
			if len(w) < 4 {
				continue
			}
			for i, h := range norm {
				if !used[i] && strings.Contains(h, w) {
					used[i] = true
					return i
				}
			}
		}
		return -1
	}
	c := columns{}
	c.date = find(keywords.date)
	// debit and credit first so "Debit Amount" is not taken as the signed amount
	c.debit = find(keywords.debit)
	c.credit = find(keywords.credit)
	c.amount = find(keywords.amount)
	c.description = find(keywords.description)
	c.reference = find(keywords.reference)
	if c.date < 0 || (c.amount < 0 && c.debit < 0 && c.credit < 0) {
		return columns{}, false
	}
	if c.amount >= 0 {
		c.debit, c.credit = -1, -1
	}
	return c, true
}

// resolve maps an explicit mapping onto header positions.
func resolve(header []string, m Mapping) (columns, error) {
	idx := func(name string) (int, error) {
		if strings.TrimSpace(name) == "" {
			return -1, nil
		}
		want := normalizeHeader(name)
		for i, h := range header {
			if normalizeHeader(h) == want {
				return i, nil
			}
		}
		return -1, fmt.Errorf("column %q not found in header", name)
	}
	c := columns{layout: m.DateLayout}
	var err error
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{m.Date, &c.date}, {m.Description, &c.description}, {m.Amount, &c.amount},
		{m.Debit, &c.debit}, {m.Credit, &c.credit}, {m.Reference, &c.reference},
	} {
		if *f.dst, err = idx(f.name); err != nil {
			return columns{}, err
		}
	}
	if c.date < 0 {
		return columns{}, fmt.Errorf("mapping needs a date column")
	}
	if c.amount < 0 && c.debit < 0 && c.credit < 0 {
		return columns{}, fmt.Errorf("mapping needs an amount or debit/credit column")
	}
	return c, nil
}

func (c columns) mapping(header []string) *Mapping {
	name := func(i int) string {
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(header[i])
	}
	return &Mapping{
		Date:        name(c.date),
		Description: name(c.description),
		Amount:      name(c.amount),
		Debit:       name(c.debit),
		Credit:      name(c.credit),
		Reference:   name(c.reference),
	}
}

// sniffDelimiter picks the most frequent candidate in the first non-blank line.
func sniffDelimiter(text string) rune {
	first := ""
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			first = l
			break
		}
	}
	best, n := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if c := strings.Count(first, string(d)); c > n {
			best, n = d, c
		}
	}
	return best
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Trim(h, "\"'")
	h = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
