package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	acl "github.com/cloudwego/eino-ext/libs/acl/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/dyike/tradecortex/config"
	"go.uber.org/zap"
)

// Models bundles the completion and embedding services a deliberation needs.
type Models struct {
	Quick    model.ToolCallingChatModel
	Deep     model.ToolCallingChatModel
	Embedder embedding.Embedder
}

// NewModels builds resilient quick/deep chat models and the embedder from cfg.
func NewModels(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Models, error) {
	retryer := NewRetryer(PolicyFromConfig(cfg), logger)

	quick, err := NewChatModel(ctx, cfg, cfg.QuickThinkLLM)
	if err != nil {
		return nil, fmt.Errorf("quick think model: %w", err)
	}
	deep, err := NewChatModel(ctx, cfg, cfg.DeepThinkLLM)
	if err != nil {
		return nil, fmt.Errorf("deep think model: %w", err)
	}
	emb, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	return &Models{
		Quick:    NewResilientChatModel(quick, retryer, cfg.CallTimeout, cfg.QuickThinkLLM),
		Deep:     NewResilientChatModel(deep, retryer, cfg.CallTimeout, cfg.DeepThinkLLM),
		Embedder: NewResilientEmbedder(emb, retryer, cfg.CallTimeout),
	}, nil
}

// NewChatModel creates the raw Completion Service client for the configured provider.
func NewChatModel(ctx context.Context, cfg *config.Config, modelName string) (model.ToolCallingChatModel, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "deepseek":
		// 原生 deepseek 接口
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    firstNonEmpty(cfg.DeepSeekAPIKey, cfg.LLMAPIKey),
			Model:     modelName,
			MaxTokens: cfg.MaxTokens,
		})
	default:
		// OpenAI 兼容接口 (OpenRouter / DeepSeek / SiliconFlow)
		maxTokens := cfg.MaxTokens
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BackendURL,
			APIKey:    firstNonEmpty(cfg.LLMAPIKey, cfg.DeepSeekAPIKey),
			Model:     modelName,
			MaxTokens: &maxTokens,
		})
	}
}

// NewEmbedder creates the raw Embedding Service client.
func NewEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	cli, err := acl.NewEmbeddingClient(ctx, &acl.EmbeddingConfig{
		BaseURL: cfg.EmbeddingURL,
		APIKey:  cfg.EmbeddingAPIKey,
		Model:   cfg.EmbeddingModel,
	})
	if err != nil {
		return nil, err
	}
	return cli, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
