package esmutils

import "testing"

func TestKwToW(t *testing.T) {
	tests := []struct {
		kw   float64
		want int64
	}{
		{0.512, 512},
		{0, 0},
		{4321.0, 4321000},
		{0.0005, 0},
		{-0.0005, -1},
	}
	for _, tt := range tests {
		if got := KwToW(tt.kw); got != tt.want {
			t.Errorf("KwToW(%v) = %d, want %d", tt.kw, got, tt.want)
		}
	}
	if WToKw(1500) != 1.5 {
		t.Errorf("WToKw(1500) = %v", WToKw(1500))
	}
}

func TestApplyScale(t *testing.T) {
	if got := ApplyScale(1500, -1); int64(got) != 150 {
		t.Fatalf("ApplyScale(1500, -1) = %v", got)
	}
	if got := ApplyScale(12, 2); got != 1200 {
		t.Fatalf("ApplyScale(12, 2) = %v", got)
	}
}

func TestApplyFlooredScale(t *testing.T) {
	tests := []struct {
		raw   uint32
		scale int16
		want  int64
	}{
		{65536, -2, 0}, // floor(0.01) == 0
		{65536, 0, 65536},
		{1234, 1, 12340},
		{70000, -1, 0},
	}
	for _, tt := range tests {
		if got := ApplyFlooredScale(tt.raw, tt.scale); got != tt.want {
			t.Errorf("ApplyFlooredScale(%d, %d) = %d, want %d", tt.raw, tt.scale, got, tt.want)
		}
	}
}
