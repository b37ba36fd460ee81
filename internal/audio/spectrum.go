package audio

import (
	"encoding/binary"
	"math"
	"math/cmplx"
)

// Decibel range mapped onto 0..255 by ByteFrequencyData.
const (
	MinDecibels = -100.0
	MaxDecibels = -30.0
)

// PCM16ToFloat converts PCM16LE bytes to samples in [-1, 1). A trailing odd
// byte is ignored.
func PCM16ToFloat(pcm []byte) []float64 {
	out := make([]float64, len(pcm)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return out
}

// ByteFrequencyData returns len(samples)/2 magnitude bins scaled to 0..255
// between MinDecibels and MaxDecibels. samples must have a power-of-two length;
// shorter or ragged input is zero-padded up to the next power of two.
func ByteFrequencyData(samples []float64) []uint8 {
	n := nextPow2(len(samples))
	if n < 2 {
		return nil
	}
	buf := make([]complex128, n)
	for i, s := range samples {
		// Blackman window.
		a := 2 * math.Pi * float64(i) / float64(n-1)
		w := 0.42 - 0.5*math.Cos(a) + 0.08*math.Cos(2*a)
		buf[i] = complex(s*w, 0)
	}
	fft(buf)

	bins := make([]uint8, n/2)
	scale := 255 / (MaxDecibels - MinDecibels)
	for i := range bins {
		mag := cmplx.Abs(buf[i]) / float64(n)
		db := MinDecibels
		if mag > 0 {
			db = 20 * math.Log10(mag)
		}
		v := (db - MinDecibels) * scale
		switch {
		case v <= 0:
			bins[i] = 0
		case v >= 255:
			bins[i] = 255
		default:
			bins[i] = uint8(v)
		}
	}
	return bins
}

// fft is an in-place iterative radix-2 Cooley-Tukey transform.
func fft(x []complex128) {
	n := len(x)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		step := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := 0; k < size/2; k++ {
				u := x[start+k]
				v := x[start+k+size/2] * w
				x[start+k] = u + v
				x[start+k+size/2] = u - v
				w *= step
			}
		}
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
