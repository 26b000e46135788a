package domain

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedInput struct {
	lines []string
	reads int
}

func (s *scriptedInput) GetUserMessage(ctx context.Context) (string, bool) {
	if ctx.Err() != nil || s.reads >= len(s.lines) {
		return "", false
	}
	line := s.lines[s.reads]
	s.reads++
	return line, true
}

type stubRetriever struct {
	strategy Strategy
	results  []RankedResult
	err      error
	queries  []string
	ks       []int
}

func (r *stubRetriever) Retrieve(_ context.Context, query string, k int) ([]RankedResult, error) {
	r.queries = append(r.queries, query)
	r.ks = append(r.ks, k)
	return r.results, r.err
}

func (r *stubRetriever) Strategy() Strategy {
	return r.strategy
}

type stubGenerator struct {
	reply    string
	err      error
	models   []string
	messages [][]Message
	onCall   func()
}

func (g *stubGenerator) Complete(_ context.Context, model string, messages []Message) (Message, error) {
	g.models = append(g.models, model)
	g.messages = append(g.messages, messages)
	if g.onCall != nil {
		g.onCall()
	}
	if g.err != nil {
		return Message{}, g.err
	}
	return Message{Role: RoleAssistant, Content: g.reply}, nil
}

func newTestAgent(lines []string, retriever *stubRetriever, generator *stubGenerator) (*Agent, *scriptedInput, *bytes.Buffer) {
	input := &scriptedInput{lines: lines}
	out := &bytes.Buffer{}
	agent := NewAgent(IndexState{Retriever: retriever}, generator, input, out, AgentOptions{Model: "llama3.1:latest"}, nil)
	return agent, input, out
}

var sampleResults = []RankedResult{
	{Key: "a.py_part0", Content: "def foo():\n    return 1", Score: 0.37, Index: 0},
	{Key: "b.py_part2", Content: "class Foo:\n    pass", Score: 0.21, Index: 5},
}

func TestAgent_QuitIsCaseInsensitive(t *testing.T) {
	for _, line := range []string{"quit", "QUIT", "Quit", "  quit  "} {
		t.Run(line, func(t *testing.T) {
			retriever := &stubRetriever{strategy: StrategyHeuristic}
			generator := &stubGenerator{}
			agent, input, out := newTestAgent([]string{line, "never read"}, retriever, generator)

			require.NoError(t, agent.Run(context.Background()))
			assert.Equal(t, Terminated, agent.State())
			assert.Equal(t, 1, input.reads)
			assert.Empty(t, retriever.queries)
			assert.NotContains(t, out.String(), "Shutting down")
		})
	}
}

func TestAgent_BlankLinesDoNotRetrieve(t *testing.T) {
	retriever := &stubRetriever{strategy: StrategyHeuristic, results: sampleResults}
	generator := &stubGenerator{reply: "ok"}
	agent, input, _ := newTestAgent([]string{"", "    ", "\t", "quit"}, retriever, generator)

	require.NoError(t, agent.Run(context.Background()))
	assert.Equal(t, 4, input.reads)
	assert.Empty(t, retriever.queries)
	assert.Empty(t, generator.messages)
}

func TestAgent_EmptyRetrievalSkipsGenerator(t *testing.T) {
	retriever := &stubRetriever{strategy: StrategyHeuristic}
	generator := &stubGenerator{reply: "unused"}
	agent, _, out := newTestAgent([]string{"where is foo", "quit"}, retriever, generator)

	require.NoError(t, agent.Run(context.Background()))
	assert.Equal(t, []string{"where is foo"}, retriever.queries)
	assert.Equal(t, []int{DefaultTopK}, retriever.ks)
	assert.Empty(t, generator.messages)
	assert.Contains(t, out.String(), "No similar code snippet found.")
}

func TestAgent_FullTurn(t *testing.T) {
	retriever := &stubRetriever{strategy: StrategyHeuristic, results: sampleResults}
	generator := &stubGenerator{reply: "foo returns 1"}
	agent, _, out := newTestAgent([]string{"what does foo return?", "quit"}, retriever, generator)

	require.NoError(t, agent.Run(context.Background()))

	require.Len(t, generator.messages, 1)
	assert.Equal(t, []string{"llama3.1:latest"}, generator.models)
	msgs := generator.messages[0]
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "User question: what does foo return?")
	assert.Contains(t, msgs[0].Content, "Snippet 1 (a.py_part0, score=0.37):\ndef foo():\n    return 1")
	assert.Contains(t, msgs[0].Content, "Snippet 2 (b.py_part2, score=0.21):")

	printed := out.String()
	assert.Contains(t, printed, "a.py_part0 (score: 0.37)")
	assert.Contains(t, printed, "foo returns 1")
	assert.Contains(t, printed, "==========")
}

func TestAgent_EmbeddingPromptOmitsScores(t *testing.T) {
	retriever := &stubRetriever{strategy: StrategyEmbedding, results: sampleResults}
	generator := &stubGenerator{reply: "ok"}
	agent, _, _ := newTestAgent([]string{"foo", "quit"}, retriever, generator)

	require.NoError(t, agent.Run(context.Background()))
	require.Len(t, generator.messages, 1)
	prompt := generator.messages[0][0].Content
	assert.Contains(t, prompt, "Snippet 1 (a.py_part0):\n")
	assert.NotContains(t, prompt, "score=")
}

func TestAgent_FailuresAreReportedAndLoopContinues(t *testing.T) {
	retriever := &stubRetriever{strategy: StrategyEmbedding, err: NewError(EmbeddingBackend, "embed query", errors.New("connection refused"))}
	generator := &stubGenerator{}
	agent, input, out := newTestAgent([]string{"first", "second", "quit"}, retriever, generator)

	require.NoError(t, agent.Run(context.Background()))
	assert.Equal(t, 3, input.reads)
	assert.Equal(t, []string{"first", "second"}, retriever.queries)
	assert.Empty(t, generator.messages)
	assert.Contains(t, out.String(), "Retrieval failed: embed query: connection refused")

	retriever = &stubRetriever{strategy: StrategyHeuristic, results: sampleResults}
	generator = &stubGenerator{err: NewError(Generation, "chat", errors.New("model not found"))}
	agent, input, out = newTestAgent([]string{"first", "second", "quit"}, retriever, generator)

	require.NoError(t, agent.Run(context.Background()))
	assert.Equal(t, 3, input.reads)
	assert.Len(t, generator.messages, 2)
	assert.Contains(t, out.String(), "Generation failed: chat: model not found")
}

func TestAgent_EndOfInputTerminates(t *testing.T) {
	retriever := &stubRetriever{strategy: StrategyHeuristic, results: sampleResults}
	generator := &stubGenerator{reply: "ok"}
	agent, _, out := newTestAgent([]string{"foo"}, retriever, generator)

	require.NoError(t, agent.Run(context.Background()))
	assert.Equal(t, Terminated, agent.State())
	assert.Len(t, generator.messages, 1)
	assert.Contains(t, out.String(), "Shutting down...")
}

func TestAgent_InterruptDuringGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retriever := &stubRetriever{strategy: StrategyHeuristic, results: sampleResults}
	generator := &stubGenerator{err: context.Canceled, onCall: cancel}
	agent, input, out := newTestAgent([]string{"foo", "bar"}, retriever, generator)

	require.NoError(t, agent.Run(ctx))
	assert.Equal(t, Terminated, agent.State())
	assert.Equal(t, 1, input.reads)
	assert.NotContains(t, out.String(), "Generation failed")
	assert.Contains(t, out.String(), "Shutting down...")
}

func TestAgent_CustomTopK(t *testing.T) {
	retriever := &stubRetriever{strategy: StrategyHeuristic}
	input := &scriptedInput{lines: []string{"foo", "quit"}}
	agent := NewAgent(IndexState{Retriever: retriever}, &stubGenerator{}, input, &bytes.Buffer{}, AgentOptions{TopK: 5}, nil)

	require.NoError(t, agent.Run(context.Background()))
	assert.Equal(t, []int{5}, retriever.ks)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("  raw query ", sampleResults[:1], true)
	assert.Equal(t,
		"User question:   raw query \n\n"+
			"Answer the question using the code snippets below. "+
			"Explain your answer by referring to each snippet you rely on by its label.\n"+
			"\nSnippet 1 (a.py_part0, score=0.37):\ndef foo():\n    return 1\n",
		prompt)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "WaitingForInput", WaitingForInput.String())
	assert.Equal(t, "Retrieving", Retrieving.String())
	assert.Equal(t, "Generating", Generating.String())
	assert.Equal(t, "Terminated", Terminated.String())
}
