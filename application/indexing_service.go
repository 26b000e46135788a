package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"codeqa/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IndexingOptions selects the files that make up the corpus.
type IndexingOptions struct {
	Extensions   []string // e.g. ".py"; a missing leading dot is added
	IgnoreDirs   []string // directory names never descended into
	RelativeKeys bool     // key snippets by root-relative path instead of file name
	MaxFileBytes int64    // larger files are skipped; <= 0 means no limit
}

// ExtensionStats counts what one file extension contributed.
type ExtensionStats struct {
	Files    int
	Snippets int
}

// IndexStats summarizes one corpus build.
type IndexStats struct {
	Files        int // files matching the extensions
	SkippedFiles int // files that could not be read or decoded
	Snippets     int
	ByExtension  map[string]ExtensionStats
}

// Extensions returns the extensions seen, sorted.
func (s IndexStats) Extensions() []string {
	exts := make([]string, 0, len(s.ByExtension))
	for ext := range s.ByExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IndexingService walks a source tree and turns it into a Corpus.
type IndexingService struct {
	extractor  *domain.SnippetExtractor
	extensions map[string]bool
	ignoreDirs map[string]bool
	opts       IndexingOptions
	logger     *zap.Logger
}

// NewIndexingService creates a new IndexingService.
func NewIndexingService(extractor *domain.SnippetExtractor, opts IndexingOptions, logger *zap.Logger) *IndexingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &IndexingService{
		extractor:  extractor,
		extensions: make(map[string]bool, len(opts.Extensions)),
		ignoreDirs: make(map[string]bool, len(opts.IgnoreDirs)),
		opts:       opts,
		logger:     logger,
	}
	for _, ext := range opts.Extensions {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.extensions[ext] = true
	}
	for _, dir := range opts.IgnoreDirs {
		s.ignoreDirs[dir] = true
	}
	return s
}

// BuildCorpus walks rootDir in lexical order and extracts the snippets of
// every matching file. Files that cannot be read are logged and skipped.
// A missing root or a key produced by two files is a Configuration error.
func (s *IndexingService) BuildCorpus(ctx context.Context, rootDir string) (*domain.Corpus, IndexStats, error) {
	stats := IndexStats{ByExtension: make(map[string]ExtensionStats)}

	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, stats, domain.NewPathError(domain.Configuration, "index", rootDir, err)
	}
	if !info.IsDir() {
		return nil, stats, domain.NewPathError(domain.Configuration, "index", rootDir, errors.New("not a directory"))
	}

	s.logger.Info("indexing started", zap.String("root", rootDir))
	builder := domain.NewCorpusBuilder()

	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == rootDir {
				return domain.NewPathError(domain.Configuration, "index", rootDir, err)
			}
			s.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != rootDir && s.ignoreDirs[d.Name()] {
				s.logger.Debug("skipping ignored directory", zap.String("path", path))
				return fs.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if !s.extensions[ext] {
			return nil
		}
		stats.Files++

		source, err := s.readSource(path, d)
		if err != nil {
			stats.SkippedFiles++
			s.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
			return nil
		}

		parts := s.extractor.Extract(source)
		if err := builder.AddFile(path, s.keyPrefix(rootDir, path, d), parts); err != nil {
			return err
		}

		es := stats.ByExtension[ext]
		es.Files++
		es.Snippets += len(parts)
		stats.ByExtension[ext] = es
		s.logger.Debug("file indexed", zap.String("path", path), zap.Int("snippets", len(parts)))
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, stats, ctxErr
		}
		return nil, stats, err
	}

	stats.Snippets = builder.Len()
	for _, ext := range stats.Extensions() {
		es := stats.ByExtension[ext]
		s.logger.Info("extension indexed", zap.String("ext", ext), zap.Int("files", es.Files), zap.Int("snippets", es.Snippets))
	}
	s.logger.Info("indexing finished",
		zap.Int("files", stats.Files),
		zap.Int("skipped", stats.SkippedFiles),
		zap.Int("snippets", stats.Snippets))

	return builder.Build(), stats, nil
}

// readSource reads a file as UTF-8 text, dropping a leading byte order mark.
func (s *IndexingService) readSource(path string, d fs.DirEntry) (string, error) {
	if s.opts.MaxFileBytes > 0 {
		info, err := d.Info()
		if err != nil {
			return "", domain.NewPathError(domain.FileAccess, "stat", path, err)
		}
		if info.Size() > s.opts.MaxFileBytes {
			return "", domain.NewPathError(domain.FileAccess, "read", path,
				fmt.Errorf("file too large (%d bytes, limit %d)", info.Size(), s.opts.MaxFileBytes))
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", domain.NewPathError(domain.FileAccess, "read", path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", domain.NewPathError(domain.FileAccess, "decode", path, errors.New("invalid UTF-8"))
	}
	return string(data), nil
}

func (s *IndexingService) keyPrefix(rootDir, path string, d fs.DirEntry) string {
	if s.opts.RelativeKeys {
		if rel, err := filepath.Rel(rootDir, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return d.Name()
}

// RetrieverOptions selects and configures the retriever built over a corpus.
type RetrieverOptions struct {
	Strategy  domain.Strategy
	Heuristic domain.HeuristicOptions
	Embedder  domain.EmbeddingClient // required for StrategyEmbedding
	BatchSize int
}

// NewIndexState builds the retriever for corpus. For the embedding strategy
// this embeds the whole corpus, so it blocks on the backend.
func NewIndexState(ctx context.Context, corpus *domain.Corpus, opts RetrieverOptions, logger *zap.Logger) (domain.IndexState, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Strategy {
	case domain.StrategyHeuristic:
		return domain.IndexState{
			Corpus:    corpus,
			Retriever: domain.NewHeuristicRetriever(corpus, opts.Heuristic),
		}, nil
	case domain.StrategyEmbedding:
		if opts.Embedder == nil {
			return domain.IndexState{}, domain.NewError(domain.Configuration, "build index", errors.New("embedding strategy needs an embedder"))
		}
		retriever, err := domain.NewEmbeddingRetriever(ctx, corpus, opts.Embedder, opts.BatchSize, logger.Named("embedding"))
		if err != nil {
			return domain.IndexState{}, err
		}
		return domain.IndexState{Corpus: corpus, Retriever: retriever}, nil
	default:
		_, err := domain.ParseStrategy(string(opts.Strategy))
		return domain.IndexState{}, err
	}
}
