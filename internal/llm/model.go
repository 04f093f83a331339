// Package llm provides text generation services using langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/dbcoach/dbcoach-go/internal/config"
	"github.com/dbcoach/dbcoach-go/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Model wraps langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
	retry     bool
	metrics   *metrics.Collector
}

// NewModel creates an LLM model based on configuration.
// The collector may be nil when metrics are not wanted.
func NewModel(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		model, err = bedrock.New(
			bedrock.WithClient(client),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
		retry:     cfg.LLMRetry,
		metrics:   collector,
	}, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// GenerateWithSystem generates text with a system prompt.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages)
	duration := time.Since(start)

	if err != nil {
		return "", wrapFatalError(fmt.Errorf("generate with system: %w", err))
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	choice := response.Choices[0]
	if m.metrics != nil {
		in, out := tokenUsage(choice)
		m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, out)
	}

	return choice.Content, nil
}

// StreamText generates text with a system prompt, delivering it incrementally
// through fn as chunks arrive from the provider. fn returning an error aborts
// the stream. The full concatenated text is returned on success.
func (m *Model) StreamText(ctx context.Context, systemPrompt, userPrompt string, fn func(chunk string) error) (string, error) {
	text, delivered, err := m.streamOnce(ctx, systemPrompt, userPrompt, fn)
	if err == nil || !m.retry {
		return text, err
	}
	if isFatalAPIError(err) || ctx.Err() != nil {
		return "", err
	}
	// A retry after partial delivery would push the leading fragments
	// through fn a second time, so the caller's accumulated text would
	// no longer match the stream. Fail instead.
	if delivered {
		return "", err
	}

	slog.Warn("stream failed, retrying once", "model", m.modelName, "error", err)
	text, _, err = m.streamOnce(ctx, systemPrompt, userPrompt, fn)
	return text, err
}

func (m *Model) streamOnce(ctx context.Context, systemPrompt, userPrompt string, fn func(chunk string) error) (string, bool, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	var full []byte
	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages,
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			full = append(full, chunk...)
			return fn(string(chunk))
		}),
	)
	duration := time.Since(start)

	if err != nil {
		return "", len(full) > 0, wrapFatalError(fmt.Errorf("stream: %w", err))
	}

	// Some providers deliver the whole response without invoking the
	// streaming callback. Fall back to the choice content so callers
	// always see the text once.
	if len(full) == 0 && len(response.Choices) > 0 {
		content := response.Choices[0].Content
		if content != "" {
			if cbErr := fn(content); cbErr != nil {
				return "", true, cbErr
			}
			full = []byte(content)
		}
	}

	if m.metrics != nil {
		var in, out int64
		if len(response.Choices) > 0 {
			in, out = tokenUsage(response.Choices[0])
		}
		m.metrics.RecordLLMUsage(metrics.OpLLMStream, duration, in, out)
	}

	return string(full), len(full) > 0, nil
}

func tokenUsage(choice *llms.ContentChoice) (input, output int64) {
	if choice == nil || choice.GenerationInfo == nil {
		return 0, 0
	}
	if v, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
		input = int64(v)
	}
	if v, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
		output = int64(v)
	}
	return input, output
}
