package audio

import "math"

// RMS of little-endian PCM16 samples.
func RMS(b []byte) float64 {
	if len(b) < 2 {
		return 0
	}
	var sum float64
	n := len(b) / 2
	for i := 0; i < n; i++ {
		sample := int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(n))
}

// ToFloat converts PCM16LE to samples in [-1, 1).
func ToFloat(b []byte) []float64 {
	out := make([]float64, len(b)/2)
	for i := range out {
		s := int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
		out[i] = float64(s) / 32768.0
	}
	return out
}

// FromFloat converts samples back to PCM16LE, clipping out-of-range values.
func FromFloat(in []float64) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		var v int16
		switch {
		case s >= 1.0:
			v = math.MaxInt16
		case s < -1.0:
			v = math.MinInt16
		default:
			v = int16(s * 32767.0)
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}

// Split cuts pcm into chunks of size bytes; the last chunk may be shorter.
func Split(pcm []byte, size int) [][]byte {
	if size <= 0 || len(pcm) == 0 {
		return nil
	}
	out := make([][]byte, 0, (len(pcm)+size-1)/size)
	for i := 0; i < len(pcm); i += size {
		end := min(i+size, len(pcm))
		out = append(out, pcm[i:end])
	}
	return out
}

// FrameBytes is the byte length of a mono PCM16 frame of ms milliseconds.
func FrameBytes(rate, ms int) int { return rate * ms / 1000 * 2 }
