// Command stmtparse decodes a bank statement export and prints the
// normalized lines and warnings as JSON.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func newLogger(component string, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stmtparse",
		Short:         "Parse bank statement exports (CSV, OFX/QFX)",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Debug logging on stderr")
	root.AddCommand(newParseCmd())
	return root
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		log := newLogger("stmtparse", false)
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
