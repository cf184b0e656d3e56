package aiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"singlish-bot/model"
)

const systemPrompt = `You are a friendly Sri Lankan chatbot that understands Singlish
(English mixed with romanised Sinhala). Classify the user's message into a short
snake_case intent and write a short casual Singlish reply.

Return only a JSON object with this structure:
{"response": "reply text", "intent": "intent_name", "confidence": 0.0}

confidence is a number between 0 and 1.`

// OpenAIProvider asks a chat completion model for a scored intent.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewOpenAIProvider(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIProvider {
	return newOpenAIProvider(openai.NewClient(apiKey), model, maxTokens, temperature, logger)
}

// NewOpenAIProviderWithBaseURL targets an OpenAI-compatible endpoint.
func NewOpenAIProviderWithBaseURL(apiKey, baseURL, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return newOpenAIProvider(openai.NewClientWithConfig(cfg), model, maxTokens, temperature, logger)
}

func newOpenAIProvider(client *openai.Client, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger.With(zap.String("component", "openai_provider")),
	}
}

func (p *OpenAIProvider) Predict(ctx context.Context, req model.PredictRequest) (Prediction, error) {
	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: systemPrompt}}
	for _, t := range req.Context.RecentTurns {
		role := openai.ChatMessageRoleUser
		if t.Role == model.RoleBot {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: float32(p.temperature),
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: openai: %v", model.ErrDependencyUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Prediction{}, fmt.Errorf("%w: no choices", ErrMalformed)
	}

	content := stripFence(resp.Choices[0].Message.Content)
	var raw model.PredictResponse
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		p.logger.Warn("unparseable completion", zap.Error(err), zap.String("content", content))
		return Prediction{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Validate(raw)
}

// stripFence removes a surrounding markdown code fence if the model added one.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
