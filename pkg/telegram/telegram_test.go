package telegram

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const sampleBody = "/FLU5\\253769484_A\r\n" +
	"\r\n" +
	"0-0:96.1.4(50217)\r\n" +
	"0-0:1.0.0(231015120000S)\r\n" +
	"1-0:1.8.1(001234.567*kWh)\r\n" +
	"1-0:1.8.0(004321.000*kWh)\r\n" +
	"1-0:2.8.0(000100.250*kWh)\r\n" +
	"1-0:1.7.0(00.512*kW)\r\n" +
	"1-0:2.7.0(00.000*kW)\r\n" +
	"1-0:32.7.0(230.1*V)\r\n" +
	"1-0:32.32.0(00000)\r\n" +
	"!"

func sampleTelegram() string {
	return sampleBody + Checksum(sampleBody) + "\r\n"
}

func feedAll(t *testing.T, a *Assembler, chunks ...string) string {
	t.Helper()
	var text string
	for _, c := range chunks {
		var err error
		text, err = a.Feed([]byte(c))
		if err != nil {
			t.Fatalf("Feed(%q) err=%v", c, err)
		}
	}
	return text
}

func TestAssembler_ConcatenatesSinceStartMarker(t *testing.T) {
	a := NewAssembler(0)
	chunks := []string{"garbage before start\r\n", "/ISK5\r\n1-0:1.7", ".0(00.512*kW)\r", "\n1-0:2.7.0(00.000*kW)\r\n"}

	text := feedAll(t, a, chunks...)

	wantRaw := strings.Join(chunks[1:], "")
	if a.Raw() != wantRaw {
		t.Fatalf("raw = %q, want %q", a.Raw(), wantRaw)
	}
	want := strings.ReplaceAll(wantRaw, "\r\n", "")
	if text != want {
		t.Fatalf("text = %q, want %q", text, want)
	}
}

func TestAssembler_StartMarkerResets(t *testing.T) {
	a := NewAssembler(0)
	feedAll(t, a, "/first\r\n", "1-0:1.7.0(01.000*kW)\r\n")

	text := feedAll(t, a, "/second\r\n")
	if text != "/second" {
		t.Fatalf("text after reset = %q", text)
	}
}

func TestAssembler_PartialTelegramIsVisibleOnEveryChunk(t *testing.T) {
	a := NewAssembler(0)
	text := feedAll(t, a, "/X\r\n1-0:1.7.0(00.100*kW)\r\n")
	if got := Extract(text); len(got) != 1 {
		t.Fatalf("first chunk fields = %v", got)
	}
	text = feedAll(t, a, "1-0:2.7.0(00.050*kW)\r\n")
	if got := Extract(text); len(got) != 2 {
		t.Fatalf("second chunk fields = %v", got)
	}
}

func TestAssembler_SkipsInvalidText(t *testing.T) {
	a := NewAssembler(0)
	feedAll(t, a, "/X\r\n")

	_, err := a.Feed([]byte{0xff, 0xfe, 0x00})
	if !errors.Is(err, ErrTelegramDecode) {
		t.Fatalf("err = %v, want ErrTelegramDecode", err)
	}
	if a.Raw() != "/X\r\n" {
		t.Fatalf("buffer changed by rejected chunk: %q", a.Raw())
	}

	text := feedAll(t, a, "1-0:1.7.0(00.100*kW)")
	if text != "/X1-0:1.7.0(00.100*kW)" {
		t.Fatalf("assembly did not continue: %q", text)
	}
}

func TestAssembler_Overflow(t *testing.T) {
	a := NewAssembler(8)
	feedAll(t, a, "/1234")
	if _, err := a.Feed([]byte("56789")); !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("err = %v, want ErrBufferOverflow", err)
	}
	if a.Raw() != "" {
		t.Fatalf("buffer not cleared after overflow")
	}
}

func TestAssembler_NextTelegram(t *testing.T) {
	a := NewAssembler(0)
	tg := sampleTelegram()
	half := len(tg) / 2

	feedAll(t, a, tg[:half])
	if _, ok := a.NextTelegram(); ok {
		t.Fatalf("half telegram reported complete")
	}
	feedAll(t, a, tg[half:len(tg)-2])
	if _, ok := a.NextTelegram(); ok {
		t.Fatalf("trailer without line end reported complete")
	}
	feedAll(t, a, tg[len(tg)-2:])
	got, ok := a.NextTelegram()
	if !ok || got != tg {
		t.Fatalf("NextTelegram() = %q, %v", got, ok)
	}
	if err := ValidateCRC(got); err != nil {
		t.Fatalf("ValidateCRC() err=%v", err)
	}
	if a.Raw() != "" {
		t.Fatalf("buffer not empty after cut: %q", a.Raw())
	}
}

func TestAssembler_NextTelegramKeepsFollowingTelegram(t *testing.T) {
	a := NewAssembler(0)
	first := sampleTelegram()
	second := "/ISK5\r\n1-0:1.7.0(00.200*kW)\r\n!"

	feedAll(t, a, first[:10], first[10:]+second[:12])

	got, ok := a.NextTelegram()
	if !ok || got != first {
		t.Fatalf("NextTelegram() = %q, %v", got, ok)
	}
	if a.Raw() != second[:12] {
		t.Fatalf("remainder = %q, want %q", a.Raw(), second[:12])
	}
	if _, ok := a.NextTelegram(); ok {
		t.Fatalf("partial second telegram reported complete")
	}

	feedAll(t, a, second[12:]+"ABCD\r\n")
	got, ok = a.NextTelegram()
	if !ok || got != second+"ABCD\r\n" {
		t.Fatalf("second NextTelegram() = %q, %v", got, ok)
	}
}

func TestAssembler_NextTelegramSkipsLeadingGarbage(t *testing.T) {
	a := NewAssembler(0)
	tg := sampleTelegram()
	// Tail of an earlier telegram followed by a whole one in a single chunk.
	feedAll(t, a, "00*kW)\r\n!0000\r\n"+tg)

	got, ok := a.NextTelegram()
	if !ok || got != tg {
		t.Fatalf("NextTelegram() = %q, %v", got, ok)
	}
}

func TestExtract(t *testing.T) {
	text := strings.ReplaceAll(sampleTelegram(), "\r\n", "")

	got := Extract(text)
	want := []TaggedField{
		{Code: "1.8.1", Value: "001234.567", Unit: "kWh"},
		{Code: "1.8.0", Value: "004321.000", Unit: "kWh"},
		{Code: "2.8.0", Value: "000100.250", Unit: "kWh"},
		{Code: "1.7.0", Value: "00.512", Unit: "kW"},
		{Code: "2.7.0", Value: "00.000", Unit: "kW"},
		{Code: "32.7.0", Value: "230.1", Unit: "V"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() =\n%v\nwant\n%v", got, want)
	}

	// Idempotent on the same text
	if again := Extract(text); !reflect.DeepEqual(again, got) {
		t.Fatalf("second extraction differs: %v", again)
	}
}

func TestExtract_NoFields(t *testing.T) {
	got := Extract("/ISK5 0-0:96.1.4(50217)")
	if got == nil || len(got) != 0 {
		t.Fatalf("Extract() = %#v, want empty slice", got)
	}
}

func TestParseField(t *testing.T) {
	f, err := ParseField("1-0:1.7.0(00.512*kW)")
	if err != nil {
		t.Fatalf("ParseField() err=%v", err)
	}
	if f != (TaggedField{Code: "1.7.0", Value: "00.512", Unit: "kW"}) {
		t.Fatalf("ParseField() = %+v", f)
	}

	if _, err := ParseField("0-0:96.1.4(50217)"); !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}

func TestTaggedField_Float(t *testing.T) {
	tests := []struct {
		value string
		want  float64
		ok    bool
	}{
		{"00.512", 0.512, true},
		{"004321.000", 4321, true},
		{"1e3", 1000, true},
		{"-1.5", -1.5, true},
		{"", 0, false},
		{"0x1p-2", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
		{"1.2.3", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		got, err := TaggedField{Code: "1.7.0", Value: tt.value}.Float()
		if tt.ok {
			if err != nil || got != tt.want {
				t.Fatalf("Float(%q) = %v, %v; want %v", tt.value, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrNumericParse) {
			t.Fatalf("Float(%q) err = %v, want ErrNumericParse", tt.value, err)
		}
	}
}

func TestChecksum_KnownVector(t *testing.T) {
	// CRC-16/ARC check value
	if got := Checksum("123456789"); got != "BB3D" {
		t.Fatalf("Checksum() = %s, want BB3D", got)
	}
}

func TestValidateCRC(t *testing.T) {
	tg := sampleTelegram()
	if err := ValidateCRC(tg); err != nil {
		t.Fatalf("valid telegram rejected: %v", err)
	}

	tampered := strings.Replace(tg, "00.512", "00.513", 1)
	if err := ValidateCRC(tampered); !errors.Is(err, ErrChecksum) {
		t.Fatalf("tampered err = %v, want ErrChecksum", err)
	}

	if err := ValidateCRC("/X\r\n1-0:1.7.0(00.512*kW)\r\n"); !errors.Is(err, ErrChecksum) {
		t.Fatalf("missing trailer err = %v", err)
	}
}
