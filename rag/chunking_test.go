package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestWindowChunker_Empty(t *testing.T) {
	c := NewWindowChunker(DefaultChunkingConfig(), nil)

	assert.Empty(t, c.Chunk(NewDocument("a.pdf", "")))
	assert.Empty(t, c.Chunk(NewDocument("a.pdf", "   \n\t ")))
}

func TestWindowChunker_SingleWindow(t *testing.T) {
	c := NewWindowChunker(ChunkingConfig{ChunkSize: 100, ChunkOverlap: 20}, nil)

	doc := NewDocument("a.pdf", "short text")
	chunks := c.Chunk(doc)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, doc.ID, chunks[0].DocumentID)
	assert.Equal(t, "a.pdf", chunks[0].Source)
}

func TestWindowChunker_OverlapGeometry(t *testing.T) {
	c := NewWindowChunker(ChunkingConfig{ChunkSize: 10, ChunkOverlap: 4}, nil)

	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := c.Chunk(NewDocument("x", text))

	// step = 6: windows [0,10) [6,16) [12,22) [18,26)
	require.Len(t, chunks, 4)
	assert.Equal(t, "abcdefghij", chunks[0].Content)
	assert.Equal(t, "ghijklmnop", chunks[1].Content)
	assert.Equal(t, "mnopqrstuv", chunks[2].Content)
	assert.Equal(t, "stuvwxyz", chunks[3].Content)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Position)
	}
}

func TestWindowChunker_RuneSafety(t *testing.T) {
	c := NewWindowChunker(ChunkingConfig{ChunkSize: 5, ChunkOverlap: 1}, nil)

	text := "ἐν ἀρχῇ ἦν ὁ λόγος"
	chunks := c.Chunk(NewDocument("greek.pdf", text))
	require.NotEmpty(t, chunks)

	var rejoined []rune
	for i, ch := range chunks {
		runes := []rune(ch.Content)
		assert.LessOrEqual(t, len(runes), 5)
		if i == 0 {
			rejoined = append(rejoined, runes...)
		} else {
			rejoined = append(rejoined, runes[1:]...) // drop the overlap
		}
	}
	assert.Equal(t, text, string(rejoined))
}

func TestWindowChunker_InvalidConfigFallsBack(t *testing.T) {
	c := NewWindowChunker(ChunkingConfig{ChunkSize: 0, ChunkOverlap: 999}, nil)
	assert.Equal(t, DefaultChunkingConfig().ChunkSize, c.config.ChunkSize)

	// Overlap >= size would stall the cursor.
	c = NewWindowChunker(ChunkingConfig{ChunkSize: 50, ChunkOverlap: 50}, nil)
	assert.Equal(t, 10, c.config.ChunkOverlap)
}

func TestWindowChunker_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(2, 64).Draw(t, "size")
		overlap := rapid.IntRange(0, size-1).Draw(t, "overlap")
		text := rapid.StringN(-1, 2000, -1).Draw(t, "text")

		c := NewWindowChunker(ChunkingConfig{ChunkSize: size, ChunkOverlap: overlap}, nil)
		chunks := c.Chunk(NewDocument("prop", text))

		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			if len(chunks) != 0 {
				t.Fatalf("expected no chunks for blank input, got %d", len(chunks))
			}
			return
		}

		// Every window respects the size bound and positions are sequential.
		for i, ch := range chunks {
			if n := len([]rune(ch.Content)); n > size {
				t.Fatalf("chunk %d has %d runes, limit %d", i, n, size)
			}
			if ch.Position != i {
				t.Fatalf("chunk %d has position %d", i, ch.Position)
			}
		}

		// Concatenating with overlap removed reproduces the trimmed input.
		var rejoined []rune
		for i, ch := range chunks {
			runes := []rune(ch.Content)
			if i == 0 {
				rejoined = append(rejoined, runes...)
				continue
			}
			skip := overlap
			if skip > len(runes) {
				skip = len(runes)
			}
			rejoined = append(rejoined, runes[skip:]...)
		}
		if string(rejoined) != trimmed {
			t.Fatalf("chunks do not cover input: got %q want %q", string(rejoined), trimmed)
		}
	})
}
