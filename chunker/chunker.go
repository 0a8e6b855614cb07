// Package chunker splits normalized document text into overlapping
// fixed-size windows, the unit of embedding and retrieval.
package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"ragify/types"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 200
)

var whitespaceRe = regexp.MustCompile(`\s+`)

type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// ChunkText collapses runs of whitespace to single spaces, trims, then
// slides a window of ChunkSize over the normalized text, stepping each next
// window back by ChunkOverlap characters. Empty trimmed windows are dropped.
// Each zero option independently selects its default (800 size, 200
// overlap); a negative overlap disables overlapping. A negative ChunkSize or
// an overlap that is not smaller than the window is rejected with an
// invalid-argument error before any work is done.
// Pure and deterministic: identical input and options produce an identical
// chunk list.
func ChunkText(text string, opts Options) ([]types.Chunk, error) {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize <= 0 {
		return nil, types.NewError(types.ErrInvalidArgument, "chunkSize must be greater than 0")
	}

	chunkOverlap := opts.ChunkOverlap
	switch {
	case chunkOverlap == 0:
		chunkOverlap = DefaultChunkOverlap
	case chunkOverlap < 0:
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		return nil, types.NewError(types.ErrInvalidArgument,
			"chunkOverlap %d must be smaller than chunkSize %d", chunkOverlap, chunkSize)
	}

	normalized := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if normalized == "" {
		return []types.Chunk{}, nil
	}

	runes := []rune(normalized)
	chunks := []types.Chunk{}
	start := 0
	index := 0

	for start < len(runes) {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, types.Chunk{
				ID:      strconv.Itoa(index),
				Content: content,
				Start:   start,
				End:     end,
			})
			index++
		}

		if end == len(runes) {
			break
		}

		start = end - chunkOverlap
		if start < 0 {
			start = 0
		}
	}

	return chunks, nil
}
