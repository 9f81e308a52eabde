package assistant

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lokalhub/backend/internal/graph"
	"lokalhub/backend/pkg/logger"
)

// Searcher is the read-only slice of the repository the assistant may use.
// The assistant never mutates anything.
type Searcher interface {
	KeywordSearch(ctx context.Context, kind graph.EntityKind, query string) ([]graph.KeywordHit, error)
}

// Assistant answers marketplace questions by grounding an LLM response in
// keyword search hits from the graph
type Assistant struct {
	client   *openai.Client
	model    string
	searcher Searcher
	logger   *zap.Logger
}

const systemPrompt = "You are a helpful assistant for a local marketplace. " +
	"Answer using only the businesses, jobs, and service requests provided " +
	"as context. If nothing relevant is listed, say so plainly."

// New creates an assistant against an OpenAI-compatible endpoint
func New(baseURL, apiKey, model string, searcher Searcher) *Assistant {
	// Proxies like LiteLLM accept any key
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL + "/v1"

	return &Assistant{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		searcher: searcher,
		logger:   logger.Named("assistant"),
	}
}

// Answer runs the keyword search mode over all three entity kinds
// concurrently, then asks the model to answer from the hits
func (a *Assistant) Answer(ctx context.Context, question string) (string, error) {
	kinds := []graph.EntityKind{graph.KindBusiness, graph.KindJob, graph.KindService}
	hitsByKind := make([][]graph.KeywordHit, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			hits, err := a.searcher.KeywordSearch(gctx, kind, question)
			if err != nil {
				return err
			}
			hitsByKind[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("keyword search failed: %w", err)
	}

	var hits []graph.KeywordHit
	for _, kh := range hitsByKind {
		hits = append(hits, kh...)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(question, hits)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model %s", a.model)
	}

	a.logger.Debug("Assistant answered",
		zap.Int("context_hits", len(hits)),
		zap.String("model", a.model),
	)
	return resp.Choices[0].Message.Content, nil
}

// buildPrompt renders the search hits into a context block ahead of the
// user's question
func buildPrompt(question string, hits []graph.KeywordHit) string {
	var b strings.Builder
	if len(hits) == 0 {
		b.WriteString("No marketplace listings matched the question.\n\n")
	} else {
		b.WriteString("Marketplace listings:\n")
		for _, h := range hits {
			b.WriteString(fmt.Sprintf("- [%s] %s", h.Kind, h.Title))
			if h.Category != "" {
				b.WriteString(" (" + h.Category + ")")
			}
			if h.Location != "" {
				b.WriteString(" in " + h.Location)
			}
			if h.Description != "" {
				b.WriteString(": " + h.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Question: " + question)
	return b.String()
}
