package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Orchestrator is the sole entry point for the chat front end: a question in,
// an answer out. Any failure along the retrieve/generate path surfaces as
// ErrAnswerFailed with the cause preserved for logging; partial results never
// leak to the caller.
type Orchestrator struct {
	retriever *Retriever
	generator *Generator
	topK      int
	logger    *slog.Logger
}

func NewOrchestrator(retriever *Retriever, generator *Generator, topK int, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		retriever: retriever,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Answer runs the full query path. chatID is opaque and used only for log
// correlation.
func (o *Orchestrator) Answer(ctx context.Context, chatID, question string) (string, error) {
	log := o.logger.With("chat_id", chatID)
	start := time.Now()

	hits, err := o.retriever.Retrieve(ctx, question, o.topK)
	if err != nil {
		log.Error("retrieval failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrAnswerFailed, err)
	}

	answer, err := o.generator.Generate(ctx, question, hits)
	if err != nil {
		log.Error("generation failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrAnswerFailed, err)
	}

	log.Info("answered",
		"hits", len(hits),
		"used_segments", len(answer.UsedSegments),
		"duration", time.Since(start))
	return answer.Text, nil
}

// UserMessage converts an orchestrator error into a message safe to show end
// users. Raw service payloads never cross this boundary.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrIndexNotReady):
		return "The documentation index is still being prepared. Please try again in a moment."
	case errors.Is(err, ErrRateLimited):
		return "The service is busy right now. Please try again shortly."
	default:
		return "There was an error processing your question. Please try again later."
	}
}
