package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 0xff, 0x7f, 0x00, 0x80}
	wav, err := EncodeWAVPCM16LE(pcm, 22050)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len(wav) = %d, want %d", len(wav), 44+len(pcm))
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 22050 {
		t.Fatalf("sample rate field = %d", got)
	}

	got, rate, err := DecodeWAV(bytes.NewReader(wav))
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if rate != 22050 || !bytes.Equal(got, pcm) {
		t.Fatalf("DecodeWAV() = %v @%d, want %v @22050", got, rate, pcm)
	}
}

func TestEncodeWAVDefaultsSampleRate(t *testing.T) {
	wav, _ := EncodeWAVPCM16LE(nil, 0)
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != DefaultSampleRate {
		t.Fatalf("sample rate field = %d, want %d", got, DefaultSampleRate)
	}
}

func TestDecodeWAVSkipsUnknownChunksAndDownmixes(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")
	buf.WriteString("LIST")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{1, 2, 3, 0}) // odd size is padded
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, []uint16{1, 2})
	_ = binary.Write(&buf, binary.LittleEndian, []uint32{8000, 32000})
	_ = binary.Write(&buf, binary.LittleEndian, []uint16{4, 16})
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(8))
	_ = binary.Write(&buf, binary.LittleEndian, []int16{100, 300, -50, -150})

	pcm, rate, err := DecodeWAV(&buf)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if rate != 8000 {
		t.Fatalf("rate = %d, want 8000", rate)
	}
	var samples [2]int16
	_ = binary.Read(bytes.NewReader(pcm), binary.LittleEndian, &samples)
	if samples != [2]int16{200, -100} {
		t.Fatalf("samples = %v, want [200 -100]", samples)
	}
}

func TestDecodeWAVRejectsOtherInput(t *testing.T) {
	_, _, err := DecodeWAV(bytes.NewReader([]byte("ID3\x04 not a wav file")))
	if !errors.Is(err, ErrNotWAV) {
		t.Fatalf("DecodeWAV() error = %v, want ErrNotWAV", err)
	}
}

func TestByteFrequencyDataPeaksAtToneBin(t *testing.T) {
	const n = 256
	const bin = 16
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.8 * math.Sin(2*math.Pi*bin*float64(i)/n)
	}
	levels := ByteFrequencyData(samples)
	if len(levels) != n/2 {
		t.Fatalf("len(levels) = %d, want %d", len(levels), n/2)
	}
	peak := 0
	for i, v := range levels {
		if v > levels[peak] {
			peak = i
		}
	}
	if peak != bin {
		t.Fatalf("peak bin = %d, want %d", peak, bin)
	}
	if levels[bin] < 200 {
		t.Fatalf("peak level = %d, want a loud bin", levels[bin])
	}
	if levels[n/2-1] > 10 {
		t.Fatalf("far bin level = %d, want near silence", levels[n/2-1])
	}
}

func TestByteFrequencyDataSilence(t *testing.T) {
	for i, v := range ByteFrequencyData(make([]float64, 64)) {
		if v != 0 {
			t.Fatalf("levels[%d] = %d, want 0", i, v)
		}
	}
	if got := ByteFrequencyData(nil); got != nil {
		t.Fatalf("ByteFrequencyData(nil) = %v, want nil", got)
	}
}

func TestPCM16ToFloat(t *testing.T) {
	got := PCM16ToFloat([]byte{0x00, 0x80, 0x00, 0x40, 0x01})
	if len(got) != 2 || got[0] != -1 || got[1] != 0.5 {
		t.Fatalf("PCM16ToFloat() = %v", got)
	}
}
