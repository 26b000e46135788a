// Command codeqa indexes a tree of source files at function and class
// granularity and answers questions about it, grounding each answer in
// the snippets most similar to the question.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeqa/application"
	"codeqa/domain"
	"codeqa/infrastructure/config"
	"codeqa/infrastructure/embedding"
	"codeqa/infrastructure/generation"
	"codeqa/infrastructure/logging"
)

var (
	// configPath is the explicit config file, if any
	configPath string
	// version information
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codeqa [root]",
	Short: "Ask questions about a source tree",
	Long: `codeqa splits every source file under root into function and class
snippets, retrieves the snippets most similar to each question and asks a
language model to answer from them.

Examples:
  # Query the current directory with the lexical retriever and a local model
  codeqa

  # Use embeddings and an OpenAI model
  codeqa ./src --strategy embedding --embedder openai --generator openai`,
	Version:       version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runQuery,
}

func init() {
	defaults := config.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&configPath, "config", "", "config file (default ./codeqa.yaml or $HOME/.codeqa/config.yaml)")
	flags.String("root", defaults.Indexer.Root, "directory to index")
	flags.StringSlice("ext", defaults.Indexer.Extensions, "file extensions to index")
	flags.Bool("keep-preamble", defaults.Indexer.KeepPreamble, "index the text before the first declaration of each file")
	flags.String("key-mode", defaults.Indexer.KeyMode, "snippet key prefix: name or relative")
	flags.String("strategy", defaults.Retrieval.Strategy, "retrieval strategy: heuristic or embedding")
	flags.Int("top-k", defaults.Retrieval.TopK, "snippets retrieved per question")
	flags.String("embedder", defaults.Embedding.Provider, "embedding backend: ollama or openai")
	flags.String("embed-model", "", "embedding model (backend default when empty)")
	flags.String("generator", defaults.Generation.Provider, "generation backend: ollama, openai or anthropic")
	flags.String("model", "", "generation model (backend default when empty)")
	flags.String("log-level", defaults.Log.Level, "log level: debug, info, warn or error")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(configCmd)
}

// session is the state shared by every command after start-up.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
}

// setup loads the configuration, the positional root overriding --root,
// and builds the logger.
func setup(cmd *cobra.Command, args []string) (*session, error) {
	if len(args) == 1 {
		if err := cmd.Flags().Set("root", args[0]); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, domain.NewError(domain.Configuration, "create logger", err)
	}
	return &session{cfg: cfg, logger: logger}, nil
}

func (s *session) buildCorpus(ctx context.Context) (*domain.Corpus, application.IndexStats, error) {
	extractor := domain.NewSnippetExtractor(s.cfg.ExtractorOptions())
	indexer := application.NewIndexingService(extractor, application.IndexingOptions{
		Extensions:   s.cfg.Indexer.Extensions,
		IgnoreDirs:   s.cfg.Indexer.IgnoreDirs,
		RelativeKeys: s.cfg.Indexer.KeyMode == config.KeyModeRelative,
		MaxFileBytes: s.cfg.Indexer.MaxFileBytes,
	}, s.logger.Named("indexer"))
	return indexer.BuildCorpus(ctx, s.cfg.Indexer.Root)
}

func (s *session) buildIndexState(ctx context.Context, corpus *domain.Corpus) (domain.IndexState, error) {
	strategy, err := domain.ParseStrategy(s.cfg.Retrieval.Strategy)
	if err != nil {
		return domain.IndexState{}, err
	}

	opts := application.RetrieverOptions{
		Strategy:  strategy,
		Heuristic: s.cfg.HeuristicOptions(),
		BatchSize: s.cfg.Embedding.BatchSize,
	}
	if strategy == domain.StrategyEmbedding {
		opts.Embedder, err = embedding.NewEmbeddingClient(s.cfg.Embedding)
		if err != nil {
			return domain.IndexState{}, err
		}
		s.logger.Info("embedding corpus",
			zap.String("provider", s.cfg.Embedding.Provider),
			zap.String("model", s.cfg.Embedding.Model),
			zap.Int("snippets", corpus.Len()))
	}
	return application.NewIndexState(ctx, corpus, opts, s.logger.Named("index"))
}

// runQuery builds the index and runs the interactive loop.
func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := setup(cmd, args)
	if err != nil {
		return err
	}
	defer func() { _ = s.logger.Sync() }()

	generator, err := generation.NewGenerator(s.cfg.Generation)
	if err != nil {
		return err
	}

	corpus, _, err := s.buildCorpus(ctx)
	if err != nil {
		return interrupted(cmd, err)
	}
	state, err := s.buildIndexState(ctx, corpus)
	if err != nil {
		return interrupted(cmd, err)
	}

	agent := domain.NewAgent(
		state,
		generator,
		application.CreateConsoleUserMessageProvider(),
		cmd.OutOrStdout(),
		domain.AgentOptions{Model: s.cfg.Generation.Model, TopK: s.cfg.Retrieval.TopK},
		s.logger.Named("agent"),
	)
	return application.NewChatbotService(agent, cmd.OutOrStdout()).StartChatbot(ctx)
}

// interrupted turns a start-up aborted by a signal into a clean exit.
func interrupted(cmd *cobra.Command, err error) error {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
		return nil
	}
	return err
}
