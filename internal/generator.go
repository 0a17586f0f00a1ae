package internal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

const answerPreamble = `You are a documentation assistant. Answer the question using only the context passages below. If the context does not contain the answer, say so plainly.`

const noContextPreamble = `You are a documentation assistant. No relevant passages were found in the documentation for this question. Say that you have no grounding material for it, and answer only from general knowledge if you can, noting that caveat.`

// Generator assembles a grounded prompt from retrieved segments and calls
// the completion service once per question.
type Generator struct {
	provider Provider
	enc      *tiktoken.Tiktoken
	budget   int
	timeout  time.Duration
	policy   RetryConfig
	logger   *slog.Logger
}

func NewGenerator(provider Provider, cfg GeneratorConfig, timeout time.Duration, policy RetryConfig, logger *slog.Logger) (*Generator, error) {
	if cfg.ContextBudget <= 0 {
		return nil, fmt.Errorf("generator: context budget must be positive, got %d", cfg.ContextBudget)
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("generator: get encoding %q: %w", encoding, err)
	}

	return &Generator{
		provider: provider,
		enc:      enc,
		budget:   cfg.ContextBudget,
		timeout:  timeout,
		policy:   policy,
		logger:   logger,
	}, nil
}

// Generate answers the question grounded in the given retrieval hits. With
// zero hits it still produces an answer, explicitly flagged as ungrounded.
// Rate limits and timeouts are retried with backoff; other failures
// propagate.
func (g *Generator) Generate(ctx context.Context, question string, hits []ScoredSegment) (*GeneratedAnswer, error) {
	used := g.fitBudget(hits)
	prompt := g.buildPrompt(question, used)

	text, err := withRetry(ctx, g.policy, g.logger, "generate", func() (string, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.provider.Complete(callCtx, prompt)
	})
	if err != nil {
		return nil, err
	}

	segments := make([]Segment, len(used))
	for i, hit := range used {
		segments[i] = hit.Segment
	}

	return &GeneratedAnswer{
		Text:         text,
		UsedSegments: segments,
	}, nil
}

// fitBudget drops whole segments from the low-similarity end until the
// context fits the token budget. Segments are never truncated mid-text;
// a single oversized top hit is dropped entirely rather than cut.
func (g *Generator) fitBudget(hits []ScoredSegment) []ScoredSegment {
	used := make([]ScoredSegment, len(hits))
	copy(used, hits)

	for len(used) > 0 && g.contextTokens(used) > g.budget {
		used = used[:len(used)-1]
	}
	return used
}

func (g *Generator) contextTokens(hits []ScoredSegment) int {
	total := 0
	for _, hit := range hits {
		total += len(g.enc.Encode(hit.Segment.Text, nil, nil))
	}
	return total
}

// buildPrompt is deterministic: same question and hits, same prompt.
func (g *Generator) buildPrompt(question string, hits []ScoredSegment) string {
	var sb strings.Builder

	if len(hits) == 0 {
		sb.WriteString(noContextPreamble)
		sb.WriteString("\n\nQuestion: ")
		sb.WriteString(question)
		sb.WriteString("\nAnswer:")
		return sb.String()
	}

	sb.WriteString(answerPreamble)
	sb.WriteString("\n\nContext:\n")
	for i, hit := range hits {
		fmt.Fprintf(&sb, "\n[%d] (%s)\n%s\n", i+1, hit.Segment.DocumentID, hit.Segment.Text)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")
	return sb.String()
}
