// Package dictionary holds the default nonprofit chart of accounts.
package dictionary

import (
	"sort"
	"strings"

	"github.com/tinoosan/fundledger/internal/ledger"
)

// AccountDef is one account of the default chart.
type AccountDef struct {
	Code     string             `json:"code"`
	Name     string             `json:"name"`
	Type     ledger.AccountType `json:"type"`
	Reserved bool               `json:"reserved"`
}

// CodeRange is the span of four-digit codes conventionally used for a type.
type CodeRange struct {
	Type ledger.AccountType `json:"type"`
	From string             `json:"from"`
	To   string             `json:"to"`
}

var ranges = []CodeRange{
	{Type: ledger.AccountTypeAsset, From: "1000", To: "1999"},
	{Type: ledger.AccountTypeLiability, From: "2000", To: "2999"},
	{Type: ledger.AccountTypeEquity, From: "3000", To: "3999"},
	{Type: ledger.AccountTypeRevenue, From: "4000", To: "4999"},
	{Type: ledger.AccountTypeExpense, From: "5000", To: "9999"},
}

// Reserved accounts are the control accounts bills and pledges post against.
var curated = []AccountDef{
	{Code: "1000", Name: "Operating Checking", Type: ledger.AccountTypeAsset},
	{Code: "1010", Name: "Savings", Type: ledger.AccountTypeAsset},
	{Code: "1050", Name: "Petty Cash", Type: ledger.AccountTypeAsset},
	{Code: "1200", Name: "Pledges Receivable", Type: ledger.AccountTypeAsset, Reserved: true},
	{Code: "1210", Name: "Grants Receivable", Type: ledger.AccountTypeAsset},
	{Code: "1400", Name: "Prepaid Expenses", Type: ledger.AccountTypeAsset},
	{Code: "1500", Name: "Equipment", Type: ledger.AccountTypeAsset},
	{Code: "2000", Name: "Accounts Payable", Type: ledger.AccountTypeLiability, Reserved: true},
	{Code: "2100", Name: "Accrued Payroll", Type: ledger.AccountTypeLiability},
	{Code: "2200", Name: "Deferred Revenue", Type: ledger.AccountTypeLiability},
	{Code: "3000", Name: "Net Assets Without Donor Restrictions", Type: ledger.AccountTypeEquity},
	{Code: "3100", Name: "Net Assets With Donor Restrictions", Type: ledger.AccountTypeEquity},
	{Code: "4000", Name: "Individual Contributions", Type: ledger.AccountTypeRevenue},
	{Code: "4100", Name: "Foundation Grants", Type: ledger.AccountTypeRevenue},
	{Code: "4200", Name: "Government Grants", Type: ledger.AccountTypeRevenue},
	{Code: "4300", Name: "Program Service Fees", Type: ledger.AccountTypeRevenue},
	{Code: "4400", Name: "Special Events", Type: ledger.AccountTypeRevenue},
	{Code: "4900", Name: "Interest Income", Type: ledger.AccountTypeRevenue},
	{Code: "5000", Name: "Salaries and Wages", Type: ledger.AccountTypeExpense},
	{Code: "5100", Name: "Payroll Taxes and Benefits", Type: ledger.AccountTypeExpense},
	{Code: "6000", Name: "Rent and Occupancy", Type: ledger.AccountTypeExpense},
	{Code: "6100", Name: "Utilities", Type: ledger.AccountTypeExpense},
	{Code: "6200", Name: "Office Supplies", Type: ledger.AccountTypeExpense},
	{Code: "6300", Name: "Professional Fees", Type: ledger.AccountTypeExpense},
	{Code: "6400", Name: "Program Supplies", Type: ledger.AccountTypeExpense},
	{Code: "6500", Name: "Travel", Type: ledger.AccountTypeExpense},
	{Code: "6900", Name: "Bank Fees", Type: ledger.AccountTypeExpense},
}

// Chart returns the default accounts ordered by code, optionally narrowed to one type.
func Chart(t *ledger.AccountType) []AccountDef {
	out := make([]AccountDef, 0, len(curated))
	for _, d := range curated {
		if t != nil && d.Type != *t {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Ranges lists the code span per account type.
func Ranges() []CodeRange {
	return append([]CodeRange(nil), ranges...)
}

// SuggestType guesses the account type of a code from its range. Codes that
// are not four digits fall outside every range.
func SuggestType(code string) (ledger.AccountType, bool) {
	code = strings.TrimSpace(code)
	if len(code) != 4 || strings.Trim(code, "0123456789") != "" {
		return "", false
	}
	for _, r := range ranges {
		if code >= r.From && code <= r.To {
			return r.Type, true
		}
	}
	return "", false
}

// IsReserved reports whether code is one of the control accounts of the chart.
func IsReserved(code string) bool {
	for _, d := range curated {
		if d.Code == code {
			return d.Reserved
		}
	}
	return false
}
