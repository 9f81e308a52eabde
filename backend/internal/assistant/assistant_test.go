package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lokalhub/backend/internal/graph"
)

type fakeSearcher struct {
	hits map[graph.EntityKind][]graph.KeywordHit
	err  error
}

func (f *fakeSearcher) KeywordSearch(ctx context.Context, kind graph.EntityKind, query string) ([]graph.KeywordHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[kind], nil
}

func TestBuildPromptEmpty(t *testing.T) {
	prompt := buildPrompt("any plumbers near me?", nil)
	assert.Contains(t, prompt, "No marketplace listings matched")
	assert.Contains(t, prompt, "Question: any plumbers near me?")
}

func TestBuildPromptRendersHits(t *testing.T) {
	hits := []graph.KeywordHit{
		{Kind: graph.KindBusiness, Title: "Reyes Plumbing", Category: "Repairs", Location: "Davao"},
		{Kind: graph.KindJob, Title: "Apprentice Plumber", Description: "Entry level, tools provided"},
	}
	prompt := buildPrompt("plumbers?", hits)

	assert.Contains(t, prompt, "- [business] Reyes Plumbing (Repairs) in Davao")
	assert.Contains(t, prompt, "- [job] Apprentice Plumber: Entry level, tools provided")
	assert.Contains(t, prompt, "Question: plumbers?")

	// Optional fields are omitted, not rendered empty
	assert.NotContains(t, prompt, "()")
	assert.NotContains(t, prompt, " in \n")
}

func TestAnswerPropagatesSearchFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("graph down")}
	a := New("http://localhost:4000", "", "test-model", searcher)

	_, err := a.Answer(context.Background(), "anything open?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyword search failed")
}
