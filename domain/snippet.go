package domain

import "fmt"

// Snippet is one declaration-bounded span of a source file.
type Snippet struct {
	Key        string `json:"key"`         // Unique corpus key, see SnippetKey
	Content    string `json:"content"`     // Verbatim source text, starting at the declaration keyword
	SourceFile string `json:"source_file"` // Path of the file the snippet was cut from
	PartIndex  int    `json:"part_index"`  // 0-based position within that file's snippets
}

// SnippetKey derives the corpus key of the partIndex-th snippet of a file.
func SnippetKey(fileName string, partIndex int) string {
	return fmt.Sprintf("%s_part%d", fileName, partIndex)
}
