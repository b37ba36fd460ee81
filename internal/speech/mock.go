package speech

import (
	"context"
	"strings"

	"github.com/ent0n29/lingua/internal/audio"
)

// MockTranscript is what MockProvider hears in any non-empty clip.
const MockTranscript = "simulated voice input"

// MockProvider is a local fallback used when no speech API is configured.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Transcribe(ctx context.Context, clip Clip) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(clip.Data) == 0 {
		return "", nil
	}
	return MockTranscript, nil
}

// Synthesize returns a short silent WAV.
func (p *MockProvider) Synthesize(ctx context.Context, text string) (Audio, error) {
	if err := ctx.Err(); err != nil {
		return Audio{}, err
	}
	if strings.TrimSpace(SanitizeText(text)) == "" {
		return Audio{}, ErrNothingToSay
	}
	silence := make([]byte, audio.DefaultSampleRate/4*2)
	data, err := audio.EncodeWAVPCM16LE(silence, audio.DefaultSampleRate)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, Ext: "wav", ContentType: "audio/wav"}, nil
}
