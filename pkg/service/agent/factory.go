package agent

import (
	"context"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// Factory builds LLM-backed agent sessions. One factory serves every
// thread; per-thread state lives in the Session it hands out.
type Factory struct {
	llmClient gollem.LLMClient
}

var _ interfaces.AgentFactory = &Factory{}

// NewFactory creates a factory over the given LLM client
func NewFactory(llmClient gollem.LLMClient) (*Factory, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	return &Factory{
		llmClient: llmClient,
	}, nil
}

// New builds a session for the thread described by cfg. The LLM session
// itself is opened lazily on the first message so that memory restore
// and document attachment can still shape the system prompt.
func (f *Factory) New(ctx context.Context, cfg *model.AgentConfig) (interfaces.AgentSession, error) {
	if cfg == nil {
		return nil, goerr.New("agent config is required")
	}
	if err := cfg.ThreadID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid agent config")
	}
	if err := cfg.UserID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid agent config")
	}

	return newSession(f.llmClient, cfg), nil
}
