// Package statement decodes bank statement exports (CSV, OFX/QFX) into
// normalized line items for reconciliation.
//
// Parsing is a pure function of its inputs. Problems with individual rows are
// reported as warnings and the row is skipped; only a file that cannot be
// read as a whole yields an empty result, again with a warning. Amounts are
// signed from the organization's point of view: positive is money in,
// negative is money out, for every format.
package statement

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/govalues/decimal"
)

// Format identifies the statement encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatOFX Format = "ofx"
)

// Mapping names the CSV header of each field. Either Amount or at least one
// of Debit and Credit must be set. DateLayout optionally forces a Go time
// layout for the date column.
type Mapping struct {
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Debit       string `json:"debit,omitempty"`
	Credit      string `json:"credit,omitempty"`
	Reference   string `json:"reference,omitempty"`
	DateLayout  string `json:"date_layout,omitempty"`
}

// Line is one normalized statement entry.
type Line struct {
	// Row is the 1-based line of a CSV record, or the 1-based index of an OFX transaction block.
	Row         int             `json:"row"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference,omitempty"`
}

// Warning describes a row that was skipped or kept with a defect. Row is
// zero for problems affecting the whole file.
type Warning struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of Parse.
type Result struct {
	Format Format `json:"format"`
	Lines  []Line `json:"lines"`
	// DetectedMapping is set when the CSV columns were found from the header.
	DetectedMapping *Mapping  `json:"detected_mapping,omitempty"`
	Warnings        []Warning `json:"warnings"`
}

func (r *Result) warn(row int, field, msg string) {
	r.Warnings = append(r.Warnings, Warning{Row: row, Field: field, Message: msg})
}

// Parse decodes content. The format is chosen from the file extension and,
// failing that, by sniffing the content. mapping is only used for CSV; when
// nil the columns are detected from the header row.
func Parse(content []byte, fileName string, mapping *Mapping) Result {
	text := strings.TrimPrefix(string(content), "\ufeff")
	format := detectFormat(text, fileName)
	res := Result{Format: format, Lines: []Line{}, Warnings: []Warning{}}
	if strings.TrimSpace(text) == "" {
		res.warn(0, "", "file is empty")
		return res
	}
	if format == FormatOFX {
		parseOFX(text, &res)
		return res
	}
	parseCSV(text, mapping, &res)
	return res
}

func detectFormat(text, fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".ofx", ".qfx":
		return FormatOFX
	case ".csv", ".txt", ".tsv":
		return FormatCSV
	}
	head := text
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = strings.ToUpper(head)
	if strings.Contains(head, "OFXHEADER") || strings.Contains(head, "<OFX>") {
		return FormatOFX
	}
	return FormatCSV
}
