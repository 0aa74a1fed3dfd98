package telegram

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrTelegramDecode = errors.New("telegram chunk is not valid text")
	ErrParse          = errors.New("failed to parse energy record")
	ErrNumericParse   = errors.New("energy record value is not a decimal number")
	ErrBufferOverflow = errors.New("telegram buffer limit exceeded")
	ErrChecksum       = errors.New("telegram checksum mismatch")
)

// TaggedField is one `1-0:<code>(<value>*<unit>)` record of a telegram.
type TaggedField struct {
	Code  string `json:"obis_code"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// Float parses Value as a base-10 decimal literal.
// Hex floats, infinities and NaN are rejected even though strconv accepts them.
func (f TaggedField) Float() (float64, error) {
	if !isDecimalLiteral(f.Value) {
		return 0, fmt.Errorf("%w: %s=%q", ErrNumericParse, f.Code, f.Value)
	}
	v, err := strconv.ParseFloat(f.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrNumericParse, f.Code, f.Value, err)
	}
	return v, nil
}

func isDecimalLiteral(s string) bool {
	if s == "" {
		return false
	}
	digits := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-':
		default:
			return false
		}
	}
	return digits > 0
}
