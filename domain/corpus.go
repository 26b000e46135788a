package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey is wrapped into the Configuration error returned when two
// snippets derive the same key.
var ErrDuplicateKey = errors.New("duplicate snippet key")

// Corpus is the ordered, uniquely keyed set of snippets of one session.
// It is never modified after Build, so it can be shared freely.
type Corpus struct {
	snippets []Snippet
	byKey    map[string]int
}

// CorpusBuilder accumulates snippets file by file.
type CorpusBuilder struct {
	snippets []Snippet
	byKey    map[string]int
}

// NewCorpusBuilder creates an empty CorpusBuilder.
func NewCorpusBuilder() *CorpusBuilder {
	return &CorpusBuilder{byKey: make(map[string]int)}
}

// AddFile appends the snippets of one file, keyed by keyPrefix and their
// position. If any key is already taken nothing is added and a
// Configuration error naming both source files is returned.
func (b *CorpusBuilder) AddFile(sourceFile, keyPrefix string, parts []string) error {
	for i := range parts {
		key := SnippetKey(keyPrefix, i)
		if prev, ok := b.byKey[key]; ok {
			return NewPathError(Configuration, "index", sourceFile,
				fmt.Errorf("%w %q: also produced by %s", ErrDuplicateKey, key, b.snippets[prev].SourceFile))
		}
	}
	for i, part := range parts {
		b.push(Snippet{
			Key:        SnippetKey(keyPrefix, i),
			Content:    part,
			SourceFile: sourceFile,
			PartIndex:  i,
		})
	}
	return nil
}

func (b *CorpusBuilder) push(s Snippet) {
	b.byKey[s.Key] = len(b.snippets)
	b.snippets = append(b.snippets, s)
}

// Add appends a single snippet, rejecting a duplicate key.
func (b *CorpusBuilder) Add(s Snippet) error {
	if prev, ok := b.byKey[s.Key]; ok {
		return NewPathError(Configuration, "index", s.SourceFile,
			fmt.Errorf("%w %q: also produced by %s", ErrDuplicateKey, s.Key, b.snippets[prev].SourceFile))
	}
	b.push(s)
	return nil
}

// Len returns the number of snippets added so far.
func (b *CorpusBuilder) Len() int {
	return len(b.snippets)
}

// Build returns the immutable Corpus. The builder must not be used afterwards.
func (b *CorpusBuilder) Build() *Corpus {
	c := &Corpus{snippets: b.snippets, byKey: b.byKey}
	b.snippets, b.byKey = nil, nil
	return c
}

// NewCorpus builds a Corpus from snippets in the given order.
func NewCorpus(snippets []Snippet) (*Corpus, error) {
	b := NewCorpusBuilder()
	for _, s := range snippets {
		if err := b.Add(s); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// Len returns the number of snippets.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.snippets)
}

// At returns the i-th snippet in insertion order.
func (c *Corpus) At(i int) Snippet {
	return c.snippets[i]
}

// Lookup finds a snippet by key.
func (c *Corpus) Lookup(key string) (Snippet, bool) {
	if c == nil {
		return Snippet{}, false
	}
	i, ok := c.byKey[key]
	if !ok {
		return Snippet{}, false
	}
	return c.snippets[i], true
}

// Snippets returns a copy of all snippets in insertion order.
func (c *Corpus) Snippets() []Snippet {
	if c == nil {
		return nil
	}
	out := make([]Snippet, len(c.snippets))
	copy(out, c.snippets)
	return out
}

// Texts returns the snippet contents in insertion order.
func (c *Corpus) Texts() []string {
	if c == nil {
		return nil
	}
	texts := make([]string, len(c.snippets))
	for i, s := range c.snippets {
		texts[i] = s.Content
	}
	return texts
}
