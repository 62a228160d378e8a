// Package vetting decides whether fetched content is worth keeping: an
// LLM-backed relevance oracle, an article-shape gate, and a safety guard.
package vetting

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/llm"
)

// Verdict is the oracle's judgment of one piece of content.
type Verdict struct {
	Score    int    `json:"score"`
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason"`
}

// Oracle scores content for relevance and quality against a topic.
type Oracle interface {
	Score(ctx context.Context, text string, topic discovery.Topic) (Verdict, error)
}

const oracleSystem = `You judge whether web content is relevant, substantive coverage of a topic. Respond with ONLY a JSON object: {"score": 0-100, "relevant": true|false, "reason": "one sentence"}. Score reflects quality and depth; relevant reflects topical fit. Catalog pages, link lists, and navigation stubs score low.`

// maxOracleChars bounds prompt size; content beyond it adds tokens, not signal.
const maxOracleChars = 12000

// LLMOracle implements Oracle over a chat model.
type LLMOracle struct {
	chat   llm.Chatter
	logger *zap.Logger
}

// NewLLMOracle builds an LLMOracle.
func NewLLMOracle(chat llm.Chatter, logger *zap.Logger) *LLMOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMOracle{chat: chat, logger: logger}
}

// Score asks the model for a verdict. A malformed response gets fragment
// recovery, then a regex fallback, before defaulting to a non-accepting
// verdict — a broken oracle must deny, never save.
func (o *LLMOracle) Score(ctx context.Context, text string, topic discovery.Topic) (Verdict, error) {
	if len(text) > maxOracleChars {
		text = text[:maxOracleChars]
	}
	prompt := buildOraclePrompt(text, topic)

	raw, err := o.chat.Complete(ctx, oracleSystem, prompt)
	if err != nil {
		return Verdict{}, discovery.NewError(discovery.KindNetwork, "oracle",
			fmt.Errorf("oracle completion: %w", err))
	}

	verdict, err := ParseVerdict(raw)
	if err != nil {
		o.logger.Warn("oracle response unparseable, using default verdict",
			zap.String("topic", topic.Name), zap.Error(err))
		return Verdict{Score: 0, Relevant: false, Reason: "oracle response unparseable"}, nil
	}
	return verdict, nil
}

func buildOraclePrompt(text string, topic discovery.Topic) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", topic.Name)
	if len(topic.Aliases) > 0 {
		fmt.Fprintf(&sb, "Aliases: %s\n", strings.Join(topic.Aliases, ", "))
	}
	sb.WriteString("\nContent:\n")
	sb.WriteString(text)
	return sb.String()
}

var (
	scorePattern    = regexp.MustCompile(`"?score"?\s*[:=]\s*(\d{1,3})`)
	relevantPattern = regexp.MustCompile(`"?relevant"?\s*[:=]\s*(true|false)`)
)

// ParseVerdict decodes the oracle response, attempting fragment-level
// recovery before giving up.
func ParseVerdict(raw string) (Verdict, error) {
	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return clampVerdict(v), nil
	}

	if fragment, ok := llm.ExtractJSONObject(raw); ok {
		if err := json.Unmarshal([]byte(fragment), &v); err == nil {
			return clampVerdict(v), nil
		}
	}

	// Field-level scrape for responses that are JSON-ish but not valid JSON.
	scoreMatch := scorePattern.FindStringSubmatch(raw)
	relevantMatch := relevantPattern.FindStringSubmatch(raw)
	if scoreMatch != nil && relevantMatch != nil {
		score, _ := strconv.Atoi(scoreMatch[1])
		return clampVerdict(Verdict{
			Score:    score,
			Relevant: relevantMatch[1] == "true",
			Reason:   "recovered from malformed response",
		}), nil
	}

	return Verdict{}, discovery.NewError(discovery.KindParse, "oracle",
		fmt.Errorf("no verdict in response"))
}

func clampVerdict(v Verdict) Verdict {
	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 100 {
		v.Score = 100
	}
	return v
}
