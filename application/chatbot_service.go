package application

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"codeqa/domain"
)

// QueryPrompt is printed before every read.
const QueryPrompt = "Query (type 'quit' to exit): "

const maxLineBytes = 1024 * 1024

// ChatbotService provides methods for interacting with the query agent.
type ChatbotService struct {
	agent *domain.Agent
	out   io.Writer
}

// NewChatbotService creates a new ChatbotService with the given agent.
// The start-up banner is written to out.
func NewChatbotService(agent *domain.Agent, out io.Writer) *ChatbotService {
	return &ChatbotService{
		agent: agent,
		out:   out,
	}
}

// CreateConsoleUserMessageProvider creates a UserMessageProvider that reads
// queries from standard input and prompts on standard output.
func CreateConsoleUserMessageProvider() *ConsoleUserMessageProvider {
	return NewConsoleUserMessageProvider(os.Stdin, os.Stdout)
}

// ConsoleUserMessageProvider provides user messages from a line-oriented reader.
// Lines are read by a single goroutine and handed over a channel, so a
// pending read can be abandoned when the context is cancelled.
type ConsoleUserMessageProvider struct {
	in    io.Reader
	out   io.Writer
	lines chan string
	once  sync.Once
}

// NewConsoleUserMessageProvider creates a provider reading in and prompting on out.
func NewConsoleUserMessageProvider(in io.Reader, out io.Writer) *ConsoleUserMessageProvider {
	return &ConsoleUserMessageProvider{
		in:    in,
		out:   out,
		lines: make(chan string),
	}
}

func (p *ConsoleUserMessageProvider) start() {
	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(p.in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
	}()
}

// GetUserMessage prints the prompt and waits for the next line.
// It returns false at end of input or when ctx is done.
func (p *ConsoleUserMessageProvider) GetUserMessage(ctx context.Context) (string, bool) {
	p.once.Do(p.start)
	fmt.Fprint(p.out, QueryPrompt)

	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-p.lines:
		return line, ok
	}
}

// StartChatbot prints the banner and runs the query loop until the user
// quits, input ends or ctx is cancelled.
func (s *ChatbotService) StartChatbot(ctx context.Context) error {
	index := s.agent.Index
	fmt.Fprintf(s.out, "Indexed %d code snippets (%s retrieval).\n", index.Corpus.Len(), index.Retriever.Strategy())
	fmt.Fprintln(s.out, "Ask a question about the code (type 'quit' to exit, ctrl-c to abort).")
	return s.agent.Run(ctx)
}
