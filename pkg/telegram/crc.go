package telegram

import (
	"fmt"
	"strings"

	"github.com/sigurn/crc16"
)

// DSMR 5 trailers carry a CRC16/ARC over everything from '/' up to and including '!'.
var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Checksum returns the trailer checksum for the telegram body (up to and including '!').
func Checksum(body string) string {
	return fmt.Sprintf("%04X", crc16.Checksum([]byte(body), crcTable))
}

// ValidateCRC checks the `!XXXX` trailer of a raw telegram (CRLF intact).
func ValidateCRC(raw string) error {
	idx := strings.LastIndex(raw, "!")
	if idx < 0 {
		return fmt.Errorf("%w: no trailer", ErrChecksum)
	}
	given := strings.TrimSpace(raw[idx+1:])
	if len(given) < 4 {
		return fmt.Errorf("%w: trailer %q too short", ErrChecksum, given)
	}
	given = strings.ToUpper(given[:4])

	start := strings.Index(raw, "/")
	if start < 0 || start > idx {
		return fmt.Errorf("%w: no start marker", ErrChecksum)
	}

	calc := Checksum(raw[start : idx+1])
	if given != calc {
		return fmt.Errorf("%w: got %s, calculated %s", ErrChecksum, given, calc)
	}
	return nil
}
