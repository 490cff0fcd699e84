package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/domain"
)

const defaultModel = "claude-3-5-sonnet-20241022"

// Executor implements ports.AgentExecutor on the Anthropic Messages API. The
// agent identifier and the aggregated parent outputs become the prompt; the
// model's text blocks become the node's output.
type Executor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// NewExecutor creates an Anthropic-backed agent executor.
func NewExecutor(apiKey, model string, maxTokens int, logger *zap.Logger) (*Executor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Executor{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: int64(maxTokens),
		logger:    logger,
	}, nil
}

// Execute runs one agent invocation synchronously.
func (e *Executor) Execute(ctx context.Context, agentID string, inputs []domain.TaskInput) (any, error) {
	start := time.Now()

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(agentID, inputs))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic call failed for agent %s: %w", agentID, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	e.logger.Debug("agent executed",
		zap.String("agent_id", agentID),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens))

	return sb.String(), nil
}

// buildPrompt assembles the agent instruction plus its parents' outputs.
func buildPrompt(agentID string, inputs []domain.TaskInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Execute agent %s.\n", agentID)
	if len(inputs) > 0 {
		sb.WriteString("Inputs from upstream agents:\n")
		for _, in := range inputs {
			data, err := json.Marshal(in.Output)
			if err != nil {
				data = []byte(fmt.Sprintf("%v", in.Output))
			}
			fmt.Fprintf(&sb, "- %s: %s\n", in.From, data)
		}
	}
	return sb.String()
}
