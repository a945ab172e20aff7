package synth

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/pkg/anthropic"
)

// MockClient implements anthropic.Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:      "msg-1",
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 800, OutputTokens: 200},
	}
}

func testJob() model.JobDescriptor {
	return model.JobDescriptor{
		TenantID:      "acme",
		TicketID:      "TCK-1001",
		Description:   "Outlook crashes when opening shared calendar",
		Priority:      model.PriorityHigh,
		CorrelationID: "corr-1",
	}
}

func testContext() *model.GatheredContext {
	return &model.GatheredContext{
		History: []model.Item{{Title: "Outlook calendar sync failure", Body: "Cleared local cache", Source: model.SourceTicketHistory}},
		Docs:    []model.Item{{Title: "Shared calendar troubleshooting", Body: "Check permissions", Source: model.SourceDocumentation}},
		Assets:  []model.Item{{Title: "LT-4421", Body: "hostname: jdoe-laptop", Source: model.SourceAssetLookup}},
	}
}

func nWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return strings.Join(words, " ")
}

func TestInvoker_BackendSuccess(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(nWords(300)), nil)

	inv := NewInvoker(NewBackend(client, "claude-haiku-4-5-20251001"))
	outcome, err := inv.Synthesize(context.Background(), testJob(), testContext())
	require.NoError(t, err)

	assert.False(t, outcome.UsedFallback)
	assert.Equal(t, 300, outcome.WordCount)
	assert.Equal(t, 1000, outcome.ModelTokens)
	client.AssertExpectations(t)
}

func TestInvoker_BackendErrorFallsBack(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("status 500"))

	inv := NewInvoker(NewBackend(client, "claude-haiku-4-5-20251001"))
	outcome, err := inv.Synthesize(context.Background(), testJob(), testContext())
	require.NoError(t, err)

	assert.True(t, outcome.UsedFallback)
	assert.Contains(t, outcome.Text, "Similar resolved tickets")
	assert.Contains(t, outcome.Text, "Outlook calendar sync failure")
	assert.LessOrEqual(t, outcome.WordCount, MaxWords)
}

func TestInvoker_EmptyResponseFallsBack(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("   "), nil)

	inv := NewInvoker(NewBackend(client, "claude-haiku-4-5-20251001"))
	outcome, err := inv.Synthesize(context.Background(), testJob(), testContext())
	require.NoError(t, err)
	assert.True(t, outcome.UsedFallback)
}

func TestInvoker_CancelledContextDoesNotFallBack(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := NewInvoker(NewBackend(client, "claude-haiku-4-5-20251001"))
	_, err := inv.Synthesize(ctx, testJob(), testContext())
	require.Error(t, err)
}

func TestEnforceWordLimit(t *testing.T) {
	t.Run("under_limit_untouched", func(t *testing.T) {
		text, words := EnforceWordLimit(nWords(300))
		assert.Equal(t, 300, words)
		assert.NotContains(t, text, "truncated")
	})

	t.Run("over_limit_truncated_to_exactly_500", func(t *testing.T) {
		text, words := EnforceWordLimit(nWords(800))
		assert.Equal(t, MaxWords, words)
		assert.Equal(t, MaxWords, len(strings.Fields(text)))
		assert.Contains(t, text, "truncated at 500 words")
	})

	t.Run("exactly_at_limit_untouched", func(t *testing.T) {
		text, words := EnforceWordLimit(nWords(500))
		assert.Equal(t, 500, words)
		assert.NotContains(t, text, "truncated")
	})
}

func TestBackend_WordLimitEnforced(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(nWords(700)), nil)

	inv := NewInvoker(NewBackend(client, "claude-haiku-4-5-20251001"))
	outcome, err := inv.Synthesize(context.Background(), testJob(), testContext())
	require.NoError(t, err)
	assert.Equal(t, MaxWords, outcome.WordCount)
	assert.Equal(t, MaxWords, len(strings.Fields(outcome.Text)))
}

func TestFallback_Deterministic(t *testing.T) {
	f := &FallbackSynthesizer{}
	job := testJob()
	gathered := testContext()

	first, err := f.Synthesize(context.Background(), job, gathered)
	require.NoError(t, err)
	second, err := f.Synthesize(context.Background(), job, gathered)
	require.NoError(t, err)

	assert.Equal(t, first.Text, second.Text, "fallback output must be byte-identical across invocations")
	assert.True(t, first.UsedFallback)
}

func TestFallback_EmptyContext(t *testing.T) {
	f := &FallbackSynthesizer{}
	outcome, err := f.Synthesize(context.Background(), testJob(), &model.GatheredContext{})
	require.NoError(t, err)
	assert.Contains(t, outcome.Text, "No related context was found")
	assert.LessOrEqual(t, outcome.WordCount, MaxWords)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testJob(), testContext())

	assert.Contains(t, prompt, "## Ticket")
	assert.Contains(t, prompt, "TCK-1001")
	assert.Contains(t, prompt, "## Similar resolved tickets")
	assert.Contains(t, prompt, "## Documentation")
	assert.Contains(t, prompt, "## Assets mentioned in the ticket")
}

func TestBuildPrompt_CapsHistoryAndDocs(t *testing.T) {
	gathered := &model.GatheredContext{}
	for i := 0; i < 10; i++ {
		gathered.History = append(gathered.History, model.Item{Title: "hist", Body: "b"})
		gathered.Docs = append(gathered.Docs, model.Item{Title: "doc", Body: "b"})
	}

	prompt := BuildPrompt(testJob(), gathered)
	assert.Equal(t, maxPromptHistory, strings.Count(prompt, "hist"))
	assert.Equal(t, maxPromptDocs, strings.Count(prompt, "doc"))
}
