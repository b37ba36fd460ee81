package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

const teacherPrompt = `You are a helpful English teacher. Your goal is to help me improve my English.
Please correct my grammar, spelling, and provide a short, simple explanation for the correction.
If I ask a general question, please answer it as a helpful teacher would.
Examples:
- User: I goed to the park yesterday.
- Agent: Correction: I went to the park yesterday. ("Went" is the past tense of "go".)
- User: What is the capital of France?
- Agent: The capital of France is Paris.

User: %s
Agent:`

// ErrEmptyReply is returned when the model produced no text.
var ErrEmptyReply = errors.New("empty reply")

// GeminiAdapter asks a Gemini model to act as an English teacher.
type GeminiAdapter struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiAdapter(ctx context.Context, apiKey, modelName string, temperature float64) (*GeminiAdapter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(strings.TrimSpace(apiKey)))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultGeminiModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(float32(temperature))
	return &GeminiAdapter{client: client, model: model}, nil
}

func (a *GeminiAdapter) Close() error {
	return a.client.Close()
}

func (a *GeminiAdapter) Reply(ctx context.Context, req Request) (Response, error) {
	resp, err := a.model.GenerateContent(ctx, genai.Text(BuildPrompt(req.Text)))
	if err != nil {
		return Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return Response{}, ErrEmptyReply
	}
	return newResponse(text), nil
}

// BuildPrompt fills the English-teacher template with the learner text.
func BuildPrompt(text string) string {
	return fmt.Sprintf(teacherPrompt, strings.TrimSpace(text))
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
