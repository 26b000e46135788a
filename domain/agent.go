package domain

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuitCommand ends the session, compared case-insensitively.
const QuitCommand = "quit"

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
)

// UserMessageProvider is an interface that provides user messages.
// It abstracts the source of queries so the agent can be driven by a
// console, a script or a test.
type UserMessageProvider interface {
	// GetUserMessage blocks until the next line is available. ok is false
	// at end of input or once ctx is done.
	GetUserMessage(ctx context.Context) (line string, ok bool)
}

// State is a state of the query loop.
type State int

const (
	WaitingForInput State = iota
	Retrieving
	Generating
	Terminated
)

func (s State) String() string {
	switch s {
	case WaitingForInput:
		return "WaitingForInput"
	case Retrieving:
		return "Retrieving"
	case Generating:
		return "Generating"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AgentOptions holds the per-session settings of an Agent.
type AgentOptions struct {
	Model string // Model identifier passed to the generator
	TopK  int    // Snippets retrieved per query; DefaultTopK when <= 0
}

// Agent runs the interactive query loop: read a query, retrieve snippets,
// ask the generator to explain them and print the answer.
type Agent struct {
	Index               IndexState
	Generator           Generator
	UserMessageProvider UserMessageProvider
	Out                 io.Writer

	model  string
	topK   int
	logger *zap.Logger
	state  State
}

// NewAgent creates a new Agent with the provided dependencies.
func NewAgent(index IndexState, generator Generator, userMessageProvider UserMessageProvider, out io.Writer, opts AgentOptions, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Agent{
		Index:               index,
		Generator:           generator,
		UserMessageProvider: userMessageProvider,
		Out:                 out,
		model:               opts.Model,
		topK:                topK,
		logger:              logger,
		state:               WaitingForInput,
	}
}

// State returns the current state of the loop.
func (a *Agent) State() State {
	return a.state
}

// Run executes the query loop until the user quits, input ends or ctx is
// cancelled. Failures inside a turn are printed and the loop goes on, so
// Run only returns nil.
func (a *Agent) Run(ctx context.Context) error {
	var (
		query   string
		results []RankedResult
		turn    *zap.Logger
	)

	a.state = WaitingForInput
	for a.state != Terminated {
		if ctx.Err() != nil {
			a.shutdown()
			break
		}

		switch a.state {
		case WaitingForInput:
			query, a.state = a.awaitQuery(ctx)
			if a.state == Retrieving {
				turn = a.logger.With(zap.String("turn", uuid.NewString()))
			}
		case Retrieving:
			results, a.state = a.retrieve(ctx, turn, query)
		case Generating:
			a.state = a.generate(ctx, turn, query, results)
			results = nil
		}
	}

	a.logger.Info("session terminated")
	return nil
}

func (a *Agent) awaitQuery(ctx context.Context) (string, State) {
	line, ok := a.UserMessageProvider.GetUserMessage(ctx)
	if !ok {
		a.shutdown()
		return "", Terminated
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case strings.EqualFold(trimmed, QuitCommand):
		return "", Terminated
	case trimmed == "":
		return "", WaitingForInput
	default:
		return line, Retrieving
	}
}

func (a *Agent) retrieve(ctx context.Context, log *zap.Logger, query string) ([]RankedResult, State) {
	strategy := a.Index.Retriever.Strategy()
	log.Debug("retrieving snippets", zap.String("strategy", string(strategy)), zap.Int("k", a.topK))

	results, err := a.Index.Retriever.Retrieve(ctx, query, a.topK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WaitingForInput
		}
		log.Warn("retrieval failed", zap.Error(err))
		fmt.Fprintf(a.Out, "%sRetrieval failed: %v%s\n", colorRed, err, colorReset)
		return nil, WaitingForInput
	}

	if len(results) == 0 {
		log.Info("no snippet matched")
		fmt.Fprintln(a.Out, "No similar code snippet found.")
		return nil, WaitingForInput
	}

	log.Info("snippets retrieved", zap.Int("count", len(results)))
	fmt.Fprintf(a.Out, "\n%sRetrieved code snippets:%s\n", colorGreen, colorReset)
	for _, r := range results {
		fmt.Fprintf(a.Out, "\n%s--- %s (score: %.2f) ---%s\n%s\n", colorYellow, r.Key, r.Score, colorReset, r.Content)
	}
	return results, Generating
}

func (a *Agent) generate(ctx context.Context, log *zap.Logger, query string, results []RankedResult) State {
	prompt := BuildPrompt(query, results, a.Index.Retriever.Strategy() == StrategyHeuristic)
	log.Debug("calling generator", zap.String("model", a.model), zap.String("prompt", prompt))

	reply, err := a.Generator.Complete(ctx, a.model, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		if ctx.Err() != nil {
			return WaitingForInput
		}
		log.Warn("generation failed", zap.Error(err))
		fmt.Fprintf(a.Out, "\n%sGeneration failed: %v%s\n", colorRed, err, colorReset)
	} else {
		fmt.Fprintf(a.Out, "\n%s%s answer:%s\n%s\n", colorCyan, a.model, colorReset, reply.Content)
	}

	fmt.Fprintf(a.Out, "\n%s\n", strings.Repeat("=", 50))
	return WaitingForInput
}

func (a *Agent) shutdown() {
	fmt.Fprintln(a.Out, "\nShutting down...")
}

// BuildPrompt composes the grounding prompt: the raw query, the instruction
// to answer from the snippets, then every snippet under a numbered label
// carrying its key and, when withScores is set, its score.
func BuildPrompt(query string, results []RankedResult, withScores bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n\n", query)
	b.WriteString("Answer the question using the code snippets below. ")
	b.WriteString("Explain your answer by referring to each snippet you rely on by its label.\n")

	for i, r := range results {
		if withScores {
			fmt.Fprintf(&b, "\nSnippet %d (%s, score=%.2f):\n", i+1, r.Key, r.Score)
		} else {
			fmt.Fprintf(&b, "\nSnippet %d (%s):\n", i+1, r.Key)
		}
		b.WriteString(r.Content)
		b.WriteString("\n")
	}
	return b.String()
}
