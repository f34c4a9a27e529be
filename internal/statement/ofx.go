package statement

import (
	"fmt"
	"strings"
)

// parseOFX scans STMTTRN blocks. Both SGML (unclosed tags) and XML
// flavours are accepted since a value ends at the next tag or newline.
func parseOFX(text string, res *Result) {
	// ASCII-only upper-casing keeps byte offsets aligned with text.
	upper := asciiUpper(text)
	n := 0
	for pos := 0; ; {
		start := strings.Index(upper[pos:], "<STMTTRN>")
		if start < 0 {
			break
		}
		start += pos + len("<STMTTRN>")
		end := strings.Index(upper[start:], "</STMTTRN>")
		next := strings.Index(upper[start:], "<STMTTRN>")
		switch {
		case end < 0 && next < 0:
			end = len(upper)
		case end < 0 || (next >= 0 && next < end):
			end = start + next
		default:
			end += start
		}
		n++
		if line, ok := ofxLine(text[start:end], upper[start:end], n, res); ok {
			res.Lines = append(res.Lines, line)
		}
		pos = end
	}
	if n == 0 {
		res.warn(0, "", "no STMTTRN blocks found")
	}
}

func ofxLine(block, upper string, row int, res *Result) (Line, bool) {
	line := Line{Row: row}
	posted := tagValue(block, upper, "DTPOSTED")
	if len(posted) < 8 {
		res.warn(row, "date", fmt.Sprintf("invalid DTPOSTED %q", posted))
		return Line{}, false
	}
	date, err := parseDate(posted[:8], "20060102")
	if err != nil {
		res.warn(row, "date", fmt.Sprintf("invalid DTPOSTED %q", posted))
		return Line{}, false
	}
	line.Date = date

	raw := tagValue(block, upper, "TRNAMT")
	amount, err := parseAmount(raw)
	if err != nil {
		res.warn(row, "amount", fmt.Sprintf("invalid TRNAMT %q", raw))
		return Line{}, false
	}
	line.Amount = amount

	line.Description = tagValue(block, upper, "NAME")
	if line.Description == "" {
		line.Description = tagValue(block, upper, "MEMO")
	}
	if line.Description == "" {
		res.warn(row, "description", "empty description")
	}
	line.Reference = tagValue(block, upper, "CHECKNUM")
	if line.Reference == "" {
		line.Reference = tagValue(block, upper, "FITID")
	}
	return line, true
}

// tagValue returns the text after <tag> up to the next '<' or line break.
func tagValue(block, upper, tag string) string {
	open := "<" + tag + ">"
	i := strings.Index(upper, open)
	if i < 0 {
		return ""
	}
	v := block[i+len(open):]
	if j := strings.IndexAny(v, "<\r\n"); j >= 0 {
		v = v[:j]
	}
	return strings.TrimSpace(v)
}

func asciiUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
