package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider transcribes with Whisper and speaks with the TTS models.
type OpenAIProvider struct {
	client   *openai.Client
	sttModel string
	ttsModel string
	voice    string
}

func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	p := &OpenAIProvider{
		client:   openai.NewClientWithConfig(clientCfg),
		sttModel: strings.TrimSpace(cfg.STTModel),
		ttsModel: strings.TrimSpace(cfg.TTSModel),
		voice:    strings.TrimSpace(cfg.Voice),
	}
	if p.sttModel == "" {
		p.sttModel = openai.Whisper1
	}
	if p.ttsModel == "" {
		p.ttsModel = string(openai.TTSModel1)
	}
	if p.voice == "" {
		p.voice = string(openai.VoiceAlloy)
	}
	return p
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, clip Clip) (string, error) {
	name := clip.Filename
	if name == "" {
		name = "recording.wav"
	}
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.sttModel,
		FilePath: name,
		Reader:   bytes.NewReader(clip.Data),
		Language: "en",
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string) (Audio, error) {
	text = SanitizeText(text)
	if text == "" {
		return Audio{}, ErrNothingToSay
	}
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(p.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return Audio{}, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return Audio{}, fmt.Errorf("read speech: %w", err)
	}
	return Audio{Data: data, Ext: "mp3", ContentType: "audio/mpeg"}, nil
}
