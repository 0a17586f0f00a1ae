package internal

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

// Chunker splits documents into token-bounded segments with a fixed overlap.
// Fenced code blocks are atomic: they are never split across segments, even
// when they exceed the window.
type Chunker struct {
	window  int
	overlap int
	enc     *tiktoken.Tiktoken
}

func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("chunker: window must be positive, got %d", cfg.Window)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Window {
		return nil, fmt.Errorf("chunker: overlap must be in [0,%d), got %d", cfg.Window, cfg.Overlap)
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("chunker: get encoding %q: %w", encoding, err)
	}

	return &Chunker{
		window:  cfg.Window,
		overlap: cfg.Overlap,
		enc:     enc,
	}, nil
}

// Chunk returns the document's segments in position order. Empty and
// whitespace-only documents yield no segments and no error.
func (c *Chunker) Chunk(doc Document) ([]Segment, error) {
	if strings.TrimSpace(doc.RawText) == "" {
		return nil, nil
	}

	var segments []Segment
	position := 0
	add := func(text string) {
		segments = append(segments, Segment{
			ID:         SegmentID(doc.ID, position),
			DocumentID: doc.ID,
			Text:       text,
			Position:   position,
		})
		position++
	}

	for _, block := range splitBlocks(doc.RawText) {
		if block.atomic {
			if strings.TrimSpace(block.text) != "" {
				add(strings.Trim(block.text, "\n"))
			}
			continue
		}
		c.windowProse(block.text, add)
	}

	return segments, nil
}

func (c *Chunker) windowProse(text string, add func(string)) {
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return
	}

	step := c.window - c.overlap
	for i := 0; i < len(tokens); i += step {
		end := i + c.window
		if end > len(tokens) {
			end = len(tokens)
		}
		piece := c.enc.Decode(tokens[i:end])
		if strings.TrimSpace(piece) != "" {
			add(piece)
		}
		if end == len(tokens) {
			break
		}
	}
}

type textBlock struct {
	text   string
	atomic bool
}

// splitBlocks separates prose runs from fenced code blocks. An unterminated
// fence runs to the end of the document.
func splitBlocks(text string) []textBlock {
	lines := strings.Split(text, "\n")

	var blocks []textBlock
	var current []string
	inFence := false

	flush := func(atomic bool) {
		if len(current) == 0 {
			return
		}
		blocks = append(blocks, textBlock{
			text:   strings.Join(current, "\n"),
			atomic: atomic,
		})
		current = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inFence {
				current = append(current, line)
				flush(true)
				inFence = false
			} else {
				flush(false)
				current = append(current, line)
				inFence = true
			}
			continue
		}
		current = append(current, line)
	}
	flush(inFence)

	return blocks
}
