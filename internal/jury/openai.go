package jury

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIJuror deliberates through the Chat Completions API. It also serves
// OpenAI-compatible local servers (LM Studio, llama.cpp, vLLM).
type OpenAIJuror struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAIJuror creates a juror against baseURL (empty means api.openai.com)
func NewOpenAIJuror(name, model, apiKey, baseURL string, httpClient *http.Client) (*OpenAIJuror, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("juror %s: API key is required", name)
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	return &OpenAIJuror{
		name:   name,
		model:  model,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Name returns the juror name
func (j *OpenAIJuror) Name() string {
	return j.name
}

// Deliberate asks for a JSON object at temperature 0
func (j *OpenAIJuror) Deliberate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt + "\nRespond strictly in JSON.",
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	}

	resp, err := j.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("juror %s: %w", j.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("juror %s: no choices in response", j.name)
	}

	return resp.Choices[0].Message.Content, nil
}
