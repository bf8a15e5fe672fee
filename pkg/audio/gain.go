package audio

import "math"

// ApplyGain multiplies every int16 sample in pcm by gain, saturating at the
// int16 range instead of wrapping. A gain of exactly 1.0 returns pcm
// unchanged (zero allocation). A trailing odd byte is carried over verbatim.
func ApplyGain(pcm []byte, gain float32) []byte {
	if gain == 1.0 || len(pcm) < 2 {
		return pcm
	}
	out := make([]byte, len(pcm))
	g := float64(gain)
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(pcm[i]) | int16(pcm[i+1])<<8
		scaled := float64(s) * g

		// Saturate, never wrap.
		if scaled > math.MaxInt16 {
			scaled = math.MaxInt16
		} else if scaled < math.MinInt16 {
			scaled = math.MinInt16
		}

		v := int16(scaled)
		out[i] = byte(v)
		out[i+1] = byte(v >> 8)
	}
	if len(pcm)%2 != 0 {
		out[len(pcm)-1] = pcm[len(pcm)-1]
	}
	return out
}

// RMS computes the root-mean-square level of the int16 samples in pcm.
// Returns 0 for empty input.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(pcm[i]) | int16(pcm[i+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// DBFS converts an RMS level to decibels relative to int16 full scale.
// Returns -inf for a level of 0 (digital silence).
func DBFS(rms float64) float64 {
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/32768.0)
}

// GainFromDB converts a relative decibel value to a linear gain factor.
func GainFromDB(db float64) float64 {
	return math.Pow(10, db/20.0)
}

// Clamp bounds v to the inclusive range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
