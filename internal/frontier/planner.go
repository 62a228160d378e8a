package frontier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/llm"
)

// Planner produces a SeedPlan for a topic.
type Planner interface {
	Plan(ctx context.Context, topic discovery.Topic) (SeedPlan, error)
}

const plannerSystem = `You are a research planner. Given a topic, produce a JSON seeding plan for discovering high-quality web sources. Respond with ONLY a JSON object matching this shape:
{"must_terms": [..], "should_terms": [..], "disallow_terms": [..],
 "angles": [{"angle": "mainstream|controversy|history", "target": N}, ..],
 "candidates": [{"url": "...", "title": "...", "category": "news|reference|academic|official|blog",
   "credibility_tier": 1-3, "novelty_signals": [..], "controversy": bool, "history": bool,
   "angle": "mainstream|controversy|history"}, ..]}
Produce between 18 and 22 candidates spanning all three angles.`

// LLMPlanner asks a chat model for the seeding plan.
type LLMPlanner struct {
	chat   llm.Chatter
	logger *zap.Logger
}

// NewLLMPlanner builds an LLMPlanner.
func NewLLMPlanner(chat llm.Chatter, logger *zap.Logger) *LLMPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMPlanner{chat: chat, logger: logger}
}

// Plan requests and parses the model's seeding plan. A response that is not
// clean JSON gets one fragment-recovery attempt before failing.
func (p *LLMPlanner) Plan(ctx context.Context, topic discovery.Topic) (SeedPlan, error) {
	prompt := buildPlanPrompt(topic)
	raw, err := p.chat.Complete(ctx, plannerSystem, prompt)
	if err != nil {
		return SeedPlan{}, fmt.Errorf("planner completion: %w", err)
	}

	var plan SeedPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		fragment, ok := llm.ExtractJSONObject(raw)
		if !ok {
			return SeedPlan{}, discovery.NewError(discovery.KindParse, "plan",
				fmt.Errorf("unmarshal plan: %w", err))
		}
		if err := json.Unmarshal([]byte(fragment), &plan); err != nil {
			return SeedPlan{}, discovery.NewError(discovery.KindParse, "plan",
				fmt.Errorf("unmarshal recovered plan: %w", err))
		}
	}

	if len(plan.Candidates) == 0 {
		return SeedPlan{}, discovery.NewError(discovery.KindParse, "plan",
			fmt.Errorf("plan contains no candidates"))
	}
	return plan, nil
}

func buildPlanPrompt(topic discovery.Topic) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", topic.Name)
	if len(topic.Aliases) > 0 {
		fmt.Fprintf(&sb, "Also known as: %s\n", strings.Join(topic.Aliases, ", "))
	}
	if len(topic.ContestedClaims) > 0 {
		sb.WriteString("Contested claims to cover under the controversy angle:\n")
		for _, claim := range topic.ContestedClaims {
			fmt.Fprintf(&sb, "- %s\n", claim)
		}
	}
	return sb.String()
}

// FallbackPlan returns the deterministic single-seed plan used when the
// planner fails, so the frontier is never empty.
func FallbackPlan(topic discovery.Topic) SeedPlan {
	return SeedPlan{
		MustTerms: []string{topic.Name},
		Angles:    []AngleCoverage{{Angle: AngleMainstream, Target: 1}},
		Candidates: []SeedCandidate{{
			URL:      topic.PrimaryReferenceURL(),
			Title:    topic.Name,
			Category: "reference",
			Tier:     1,
			Angle:    AngleMainstream,
		}},
	}
}
