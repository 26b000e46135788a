package domain

import "strings"

// DefaultMarkers are the declaration keywords that open a snippet.
var DefaultMarkers = []string{"def ", "class "}

// ExtractorOptions configures a SnippetExtractor.
type ExtractorOptions struct {
	// Markers are the literal boundary strings. Empty means DefaultMarkers.
	Markers []string
	// KeepPreamble emits the text before the first marker as a leading
	// snippet when it is not blank. Off by default: imports and top-level
	// statements are left out of the corpus.
	KeepPreamble bool
}

// SnippetExtractor cuts source text into declaration-bounded snippets.
// It scans for literal markers only and has no notion of syntax, so it
// never fails on malformed code.
type SnippetExtractor struct {
	markers      []string
	keepPreamble bool
}

// NewSnippetExtractor creates a SnippetExtractor.
func NewSnippetExtractor(opts ExtractorOptions) *SnippetExtractor {
	markers := make([]string, 0, len(opts.Markers))
	for _, m := range opts.Markers {
		if m != "" {
			markers = append(markers, m)
		}
	}
	if len(markers) == 0 {
		markers = append(markers, DefaultMarkers...)
	}
	return &SnippetExtractor{markers: markers, keepPreamble: opts.KeepPreamble}
}

// Extract returns the snippets of source in the order they occur. Each
// snippet starts with its marker and runs up to the next marker or the end
// of the text.
func (e *SnippetExtractor) Extract(source string) []string {
	bounds := e.boundaries(source)

	var snippets []string
	if e.keepPreamble {
		end := len(source)
		if len(bounds) > 0 {
			end = bounds[0]
		}
		if strings.TrimSpace(source[:end]) != "" {
			snippets = append(snippets, source[:end])
		}
	}

	for i, start := range bounds {
		end := len(source)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		snippets = append(snippets, source[start:end])
	}
	return snippets
}

// boundaries returns the byte offsets of all non-overlapping marker
// occurrences, scanning left to right.
func (e *SnippetExtractor) boundaries(source string) []int {
	var bounds []int
	for i := 0; i < len(source); {
		if n := e.markerAt(source, i); n > 0 {
			bounds = append(bounds, i)
			i += n
			continue
		}
		i++
	}
	return bounds
}

func (e *SnippetExtractor) markerAt(source string, i int) int {
	for _, m := range e.markers {
		if strings.HasPrefix(source[i:], m) {
			return len(m)
		}
	}
	return 0
}
