package vetting

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Assessment is the outcome of vetting one piece of content.
type Assessment struct {
	Decision discovery.RelevanceDecision
	Score    int
	Reason   string
	// Text is the content after safety trimming; only meaningful when
	// the decision is saved.
	Text string
}

// Config tunes the vetter's acceptance gates.
type Config struct {
	ScoreThreshold int
	MinTextLength  int
}

// Vetter runs the full acceptance pipeline: shape gate, oracle, safety guard.
type Vetter struct {
	oracle    Oracle
	guard     *Guard
	threshold int
	minLength int
	logger    *zap.Logger
}

// New builds a Vetter.
func New(oracle Oracle, guard *Guard, cfg Config, logger *zap.Logger) *Vetter {
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 60
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vetter{
		oracle:    oracle,
		guard:     NewGuardOrDefault(guard),
		threshold: cfg.ScoreThreshold,
		minLength: cfg.MinTextLength,
		logger:    logger,
	}
}

// NewGuardOrDefault returns guard, or a fresh Guard when nil.
func NewGuardOrDefault(guard *Guard) *Guard {
	if guard == nil {
		return NewGuard()
	}
	return guard
}

// Vet decides whether text from sourceURL should be saved for topic.
// Acceptance requires BOTH a score at or above the threshold AND a
// relevant=true verdict; the safety guard can still reject afterwards.
func (v *Vetter) Vet(ctx context.Context, text, sourceURL string, topic discovery.Topic) (Assessment, error) {
	if len(text) < v.minLength {
		return Assessment{
			Decision: discovery.DecisionDenied,
			Reason:   fmt.Sprintf("content too short: %d chars", len(text)),
		}, nil
	}

	if ok, why := ArticleShaped(text); !ok {
		return Assessment{
			Decision: discovery.DecisionDenied,
			Reason:   "not article-shaped: " + why,
		}, nil
	}

	verdict, err := v.oracle.Score(ctx, text, topic)
	if err != nil {
		return Assessment{}, fmt.Errorf("score content: %w", err)
	}

	if verdict.Score < v.threshold || !verdict.Relevant {
		v.logger.Debug("content denied by oracle",
			zap.String("url", sourceURL),
			zap.Int("score", verdict.Score),
			zap.Bool("relevant", verdict.Relevant))
		return Assessment{
			Decision: discovery.DecisionDenied,
			Score:    verdict.Score,
			Reason:   verdict.Reason,
		}, nil
	}

	trimmed, err := v.guard.Check(text, sourceURL)
	if err != nil {
		var perr *discovery.PipelineError
		if errors.As(err, &perr) && perr.Kind == discovery.KindSafety {
			v.logger.Info("content rejected by safety guard",
				zap.String("url", sourceURL), zap.Error(err))
			return Assessment{
				Decision: discovery.DecisionDenied,
				Score:    verdict.Score,
				Reason:   "safety: " + perr.Err.Error(),
			}, nil
		}
		return Assessment{}, fmt.Errorf("safety check: %w", err)
	}

	return Assessment{
		Decision: discovery.DecisionSaved,
		Score:    verdict.Score,
		Reason:   verdict.Reason,
		Text:     trimmed,
	}, nil
}
