package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	StartMarker      = "/"
	DefaultMaxBuffer = 64 * 1024
)

// Assembler rebuilds telegrams from arbitrarily chunked stream reads.
// One Assembler belongs to one connection and is not safe for concurrent use.
type Assembler struct {
	buf       strings.Builder
	maxBuffer int
}

func NewAssembler(maxBuffer int) *Assembler {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Assembler{maxBuffer: maxBuffer}
}

// Feed adds one chunk and returns the current telegram text with CRLF pairs
// removed. A chunk starting with the start marker discards what was buffered.
// Non-text chunks are rejected with ErrTelegramDecode and leave the buffer as is.
func (a *Assembler) Feed(chunk []byte) (string, error) {
	if !utf8.Valid(chunk) {
		return "", ErrTelegramDecode
	}

	s := string(chunk)
	if strings.HasPrefix(s, StartMarker) {
		a.buf.Reset()
	}

	if a.buf.Len()+len(s) > a.maxBuffer {
		size := a.buf.Len() + len(s)
		a.buf.Reset()
		return "", fmt.Errorf("%w: %d > %d bytes", ErrBufferOverflow, size, a.maxBuffer)
	}

	a.buf.WriteString(s)
	return a.Text(), nil
}

// Text is the buffered telegram with "\r\n" removed.
func (a *Assembler) Text() string {
	return strings.ReplaceAll(a.buf.String(), "\r\n", "")
}

// Raw is the buffered telegram exactly as received.
func (a *Assembler) Raw() string {
	return a.buf.String()
}

// NextTelegram cuts the first complete telegram, from its start marker
// through the end of its `!` trailer line, off the buffer and returns it raw.
// Whatever follows is kept from its own start marker on, so a chunk carrying
// the end of one telegram and the beginning of the next loses neither.
func (a *Assembler) NextTelegram() (string, bool) {
	raw := a.buf.String()
	start := strings.Index(raw, StartMarker)
	if start < 0 {
		return "", false
	}
	bang := strings.Index(raw[start:], "!")
	if bang < 0 {
		return "", false
	}
	nl := strings.Index(raw[start+bang:], "\n")
	if nl < 0 {
		return "", false
	}
	end := start + bang + nl + 1

	tg := raw[start:end]
	rest := raw[end:]
	a.buf.Reset()
	if i := strings.Index(rest, StartMarker); i >= 0 {
		a.buf.WriteString(rest[i:])
	}
	return tg, true
}

func (a *Assembler) Reset() {
	a.buf.Reset()
}
