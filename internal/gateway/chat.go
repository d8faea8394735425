package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/pkg/anthropic"
)

// ChatSession is a stateful conversation grounded in one catalog's extracted
// records. The records travel in a cached system block so follow-up turns
// only pay for the new question.
type ChatSession struct {
	mu      sync.Mutex
	client  anthropic.Client
	model   string
	max     int64
	timeout func(context.Context) (context.Context, context.CancelFunc)
	system  []anthropic.SystemBlock
	history []anthropic.Message
}

func (g *anthropicGateway) NewChatSession(specs []model.CarSpecification) (*ChatSession, error) {
	seed, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "gateway: marshal chat seed")
	}

	return &ChatSession{
		client: g.client,
		model:  g.cfg.Model,
		max:    g.cfg.MaxTokens,
		timeout: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithTimeout(ctx, g.cfg.ChatTimeout)
		},
		system: anthropic.BuildCachedSystemBlocks(chatSystemPrompt + string(seed)),
	}, nil
}

// Ask sends one user turn and returns the assistant's reply. History only
// advances on success, so a failed turn can simply be retried.
func (s *ChatSession) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := append(append([]anthropic.Message{}, s.history...),
		anthropic.TextMessage("user", question))

	callCtx := ctx
	if s.timeout != nil {
		var cancel context.CancelFunc
		callCtx, cancel = s.timeout(ctx)
		defer cancel()
	}

	resp, err := s.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.max,
		System:    s.system,
		Messages:  messages,
	})
	if err != nil {
		return "", classify("chat", err)
	}

	answer := resp.Text()
	s.history = append(messages, anthropic.TextMessage("assistant", answer))

	resp.Usage.LogCost(s.model, "chat")
	return answer, nil
}

// Len returns the number of turns (user and assistant) in the history.
func (s *ChatSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
