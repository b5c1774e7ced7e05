// Package analyst produces trading signals from market indicators.
package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/exchange"
	"signal-trade-bot-go/internal/models"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// Request is everything the source sees for one symbol.
type Request struct {
	Symbol     string
	Indicators Indicators
	Position   *exchange.Position
	Balance    float64
}

// Source produces a signal for a symbol. It never fails: on any internal error it
// returns a HOLD signal with confidence 0 and Error set.
type Source interface {
	GetSignal(ctx context.Context, req Request) *models.Signal
}

// CallLogger records raw model exchanges.
type CallLogger interface {
	SaveAILog(ctx context.Context, entry *models.AILog) error
}

// ErrorSignal is the sentinel returned when analysis fails.
func ErrorSignal(symbol string, cause error) *models.Signal {
	return &models.Signal{
		Symbol:     symbol,
		Action:     models.ActionHold,
		Confidence: 0,
		Reasoning:  fmt.Sprintf("Analysis failed: %v", cause),
		Error:      true,
	}
}

const defaultCallTimeout = 30 * time.Second

// LLMSource asks a chat model for a JSON trading decision.
type LLMSource struct {
	model         model.BaseChatModel
	modelName     string
	promptVersion string
	timeout       time.Duration
	calls         CallLogger
	logger        *zap.Logger
}

var _ Source = (*LLMSource)(nil)

// NewLLMSource builds an OpenAI-compatible chat model from cfg.
func NewLLMSource(ctx context.Context, cfg config.AI, calls CallLogger, logger *zap.Logger) (*LLMSource, error) {
	chatModel, err := openai.NewChatModel(ctx, chatModelConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	src := NewLLMSourceWithModel(chatModel, cfg.Model, cfg.PromptVersion, calls, logger)
	src.timeout = callTimeout(cfg)
	return src, nil
}

// chatModelConfig pins sampling low so repeated runs over the same market give the same call.
func chatModelConfig(cfg config.AI) *openai.ChatModelConfig {
	maxTokens := cfg.MaxTokens
	mc := &openai.ChatModelConfig{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.ApiKey,
		Model:     cfg.Model,
		MaxTokens: &maxTokens,
		Timeout:   callTimeout(cfg),
	}
	if cfg.Temperature > 0 {
		temperature := cfg.Temperature
		mc.Temperature = &temperature
	}
	if cfg.TopP > 0 {
		topP := cfg.TopP
		mc.TopP = &topP
	}
	return mc
}

func callTimeout(cfg config.AI) time.Duration {
	if cfg.Timeout <= 0 {
		return defaultCallTimeout
	}
	return time.Duration(cfg.Timeout) * time.Second
}

// NewLLMSourceWithModel wraps an existing chat model.
func NewLLMSourceWithModel(m model.BaseChatModel, modelName, promptVersion string, calls CallLogger, logger *zap.Logger) *LLMSource {
	return &LLMSource{
		model:         m,
		modelName:     modelName,
		promptVersion: promptVersion,
		timeout:       defaultCallTimeout,
		calls:         calls,
		logger:        logger.Named("analyst"),
	}
}

func (s *LLMSource) GetSignal(ctx context.Context, req Request) *models.Signal {
	l := s.logger.With(zap.String("symbol", req.Symbol))

	prompt, err := buildUserPrompt(req)
	if err != nil {
		l.Error("Failed to build prompt", zap.Error(err))
		return ErrorSignal(req.Symbol, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	msg, err := s.model.Generate(callCtx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	})
	latency := time.Since(start).Milliseconds()
	cancel()

	var content string
	if msg != nil {
		content = msg.Content
	}
	s.record(ctx, req.Symbol, prompt, content, latency, err != nil)

	if err != nil {
		l.Error("Chat model call failed", zap.Error(err))
		return ErrorSignal(req.Symbol, err)
	}

	sig, err := ParseResponse(req.Symbol, content)
	if err != nil {
		l.Warn("Could not parse model response", zap.Error(err))
		sentinel := ErrorSignal(req.Symbol, err)
		sentinel.RawResponse = content
		return sentinel
	}

	indicators, _ := json.Marshal(req.Indicators)
	sig.IndicatorsJSON = string(indicators)
	sig.PromptVersion = s.promptVersion
	sig.LatencyMs = latency
	l.Info("Signal received",
		zap.String("action", string(sig.Action)),
		zap.Int("confidence", sig.Confidence),
		zap.Int64("latency_ms", latency),
	)
	return sig
}

func (s *LLMSource) record(ctx context.Context, symbol, prompt, response string, latency int64, failed bool) {
	if s.calls == nil {
		return
	}
	entry := &models.AILog{
		Symbol:        symbol,
		ModelName:     s.modelName,
		PromptVersion: s.promptVersion,
		Prompt:        prompt,
		Response:      response,
		LatencyMs:     latency,
		Failed:        failed,
	}
	if err := s.calls.SaveAILog(ctx, entry); err != nil {
		s.logger.Warn("Failed to save ai log", zap.Error(err))
	}
}
