package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/NotCoffee418/energy_bridge/pkg/telegram"
	"github.com/spf13/cobra"
)

var validateSkipCRC bool

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a captured telegram",
	Long: `Validate a telegram captured to a file (CRLF line endings intact).

Checks the CRC16 trailer, requires at least one 1-0 record and lists
every record with its parsed value.

Exit codes:
  0 - Telegram is valid
  1 - Telegram is invalid or unreadable`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateSkipCRC, "skip-crc", false, "Skip trailer checksum (DSMR 4 and older have none)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	return validateTelegram(cmd.OutOrStdout(), string(raw), !validateSkipCRC)
}

func validateTelegram(out io.Writer, raw string, checkCRC bool) error {
	if checkCRC {
		if err := telegram.ValidateCRC(raw); err != nil {
			return err
		}
		fmt.Fprintln(out, "checksum: ok")
	}

	asm := telegram.NewAssembler(len(raw) + 1)
	text, err := asm.Feed([]byte(raw))
	if err != nil {
		return err
	}
	if _, err := telegram.ParseField(text); err != nil {
		return err
	}

	var errs []error
	for _, f := range telegram.Extract(text) {
		v, err := f.Float()
		if err != nil {
			errs = append(errs, err)
			fmt.Fprintf(out, "%-10s %-16s %-5s INVALID\n", f.Code, f.Value, f.Unit)
			continue
		}
		fmt.Fprintf(out, "%-10s %-16g %-5s\n", f.Code, v, f.Unit)
	}
	return errors.Join(errs...)
}
