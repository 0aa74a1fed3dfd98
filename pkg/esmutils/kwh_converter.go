package esmutils

import "math"

// KwToW converts meter kW/kWh readings to W/Wh, truncating toward negative infinity.
func KwToW(kw float64) int64 {
	return int64(math.Floor(kw * 1000))
}

func WToKw(w int64) float64 {
	return float64(w) / 1000
}

// ApplyScale returns raw * 10^scale.
func ApplyScale(raw uint32, scale int16) float64 {
	return float64(raw) * math.Pow(10, float64(scale))
}

// ApplyFlooredScale returns raw * floor(10^scale) truncated to an integer.
// The scale factor is floored before the multiplication, so any negative
// scale yields 0. Inverter lifetime counters have always been decoded this way
// and stored history depends on it.
func ApplyFlooredScale(raw uint32, scale int16) int64 {
	return int64(float64(raw) * math.Floor(math.Pow(10, float64(scale))))
}
