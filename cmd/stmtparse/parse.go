package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tinoosan/fundledger/internal/statement"
)

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse one statement file",
		Long: `Parse one statement file and print the result as JSON.

CSV columns are detected from the header row unless --date-col and either
--amount-col or --debit-col/--credit-col are given. OFX and QFX files ignore
the column flags.`,
		Example: `  # Auto-detect columns
  stmtparse parse january.csv

  # Bank with separate paid in / paid out columns
  stmtparse parse export.csv --date-col "Booking date" --debit-col "Paid out" --credit-col "Paid in"

  # OFX download, compact output
  stmtparse parse download.qfx --compact`,
		Args: cobra.ExactArgs(1),
		RunE: runParse,
	}
	f := cmd.Flags()
	f.String("date-col", "", "Header of the date column")
	f.String("amount-col", "", "Header of a signed amount column")
	f.String("debit-col", "", "Header of the money-out column")
	f.String("credit-col", "", "Header of the money-in column")
	f.String("description-col", "", "Header of the description column")
	f.String("reference-col", "", "Header of the reference column")
	f.String("date-format", "", "Go time layout forced for the date column, e.g. 02/01/2006")
	f.Bool("compact", false, "Print JSON on one line")
	f.Bool("strict", false, "Exit non-zero when any warning is reported")
	return cmd
}

// mappingFromFlags returns nil when no column flag is set so the header is auto-detected.
func mappingFromFlags(cmd *cobra.Command) (*statement.Mapping, error) {
	get := func(name string) string { v, _ := cmd.Flags().GetString(name); return v }
	m := statement.Mapping{
		Date:        get("date-col"),
		Amount:      get("amount-col"),
		Debit:       get("debit-col"),
		Credit:      get("credit-col"),
		Description: get("description-col"),
		Reference:   get("reference-col"),
		DateLayout:  get("date-format"),
	}
	if m == (statement.Mapping{DateLayout: m.DateLayout}) {
		if m.DateLayout != "" {
			return nil, fmt.Errorf("--date-format needs --date-col")
		}
		return nil, nil
	}
	if m.Date == "" {
		return nil, fmt.Errorf("--date-col is required when mapping columns")
	}
	if m.Amount == "" && m.Debit == "" && m.Credit == "" {
		return nil, fmt.Errorf("one of --amount-col, --debit-col or --credit-col is required")
	}
	return &m, nil
}

func runParse(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	log := newLogger("parse", verbose)

	mapping, err := mappingFromFlags(cmd)
	if err != nil {
		return err
	}
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	log.Debug().Str("file", path).Int("bytes", len(content)).Bool("explicit_mapping", mapping != nil).Msg("parsing statement")

	res := statement.Parse(content, filepath.Base(path), mapping)
	for _, w := range res.Warnings {
		log.Warn().Int("row", w.Row).Str("field", w.Field).Msg(w.Message)
	}
	log.Info().Str("format", string(res.Format)).Int("lines", len(res.Lines)).Int("warnings", len(res.Warnings)).Msg("statement parsed")

	enc := json.NewEncoder(cmd.OutOrStdout())
	if compact, _ := cmd.Flags().GetBool("compact"); !compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		return err
	}
	if strict, _ := cmd.Flags().GetBool("strict"); strict && len(res.Warnings) > 0 {
		return fmt.Errorf("%d warning(s) reported", len(res.Warnings))
	}
	return nil
}
