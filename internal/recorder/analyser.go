package recorder

import (
	"encoding/binary"
	"sync"

	"github.com/ent0n29/lingua/internal/audio"
)

// analyser keeps the most recent window of samples and turns it into
// frequency levels on demand. After release every call is a no-op.
type analyser struct {
	mu       sync.Mutex
	window   []float64
	pos      int
	filled   bool
	carry    []byte
	released bool
}

func newAnalyser(size int) *analyser {
	if size < 32 {
		size = 32
	}
	size = pow2Floor(size)
	return &analyser{window: make([]float64, size)}
}

func (a *analyser) Write(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return
	}
	if len(a.carry) > 0 {
		pcm = append(a.carry, pcm...)
		a.carry = nil
	}
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		a.window[a.pos] = float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
		a.pos++
		if a.pos == len(a.window) {
			a.pos = 0
			a.filled = true
		}
	}
	if len(pcm)%2 == 1 {
		a.carry = []byte{pcm[len(pcm)-1]}
	}
}

// Levels returns len(window)/2 bins, or nil once released.
func (a *analyser) Levels() []uint8 {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return nil
	}
	ordered := make([]float64, len(a.window))
	if a.filled {
		n := copy(ordered, a.window[a.pos:])
		copy(ordered[n:], a.window[:a.pos])
	} else {
		copy(ordered[len(ordered)-a.pos:], a.window[:a.pos])
	}
	a.mu.Unlock()
	return audio.ByteFrequencyData(ordered)
}

func (a *analyser) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released = true
	a.window = nil
	a.carry = nil
}

func (a *analyser) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

func pow2Floor(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
