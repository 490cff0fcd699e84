package executor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/ports"
	"github.com/weftlabs/weft/pkg/adapters/executor/anthropic"
)

// Config holds agent executor configuration.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int
	Logger    *zap.Logger
}

// New creates an agent executor based on the configured provider.
func New(cfg *Config) (ports.AgentExecutor, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewExecutor(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported executor provider: %s", cfg.Provider)
	}
}
