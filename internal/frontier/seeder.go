package frontier

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/canonical"
	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// authorityDomains earn the larger allowlist bonus; referenceHubs the smaller
// one. Matching is longest-suffix so subdomains inherit their parent's tier.
var authorityDomains = []string{
	"reuters.com",
	"apnews.com",
	"bbc.co.uk",
	"bbc.com",
	"nytimes.com",
	"washingtonpost.com",
	"theguardian.com",
	"wsj.com",
	"ft.com",
	"economist.com",
	"nature.com",
	"science.org",
	"nejm.org",
}

var referenceHubs = []string{
	"wikipedia.org",
	"britannica.com",
	"plato.stanford.edu",
	"jstor.org",
	"pubmed.ncbi.nlm.nih.gov",
}

var recentYearPattern = regexp.MustCompile(`\b202[3-9]\b`)

// Priority bonus constants from the scoring formula.
const (
	basePriority      = 100
	indexPenalty      = 2
	tier1Bonus        = 25
	tier2Bonus        = 15
	tier3Bonus        = 5
	noveltyBonus      = 10
	controversyBonus  = 8
	historyBonus      = 4
	authorityBonus    = 10
	referenceHubBonus = 6
)

// Seeder turns a plan into prioritized frontier items.
type Seeder struct {
	planner Planner
	idGen   discovery.IDGenerator
	clock   discovery.Clock
	logger  *zap.Logger
}

// NewSeeder builds a Seeder.
func NewSeeder(planner Planner, idGen discovery.IDGenerator, clock discovery.Clock, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{planner: planner, idGen: idGen, clock: clock, logger: logger}
}

// Seed asks the planner for candidates and scores each into a FrontierItem.
// Planner failure degrades to the deterministic fallback plan.
func (s *Seeder) Seed(ctx context.Context, topic discovery.Topic) ([]discovery.FrontierItem, error) {
	plan, err := s.planner.Plan(ctx, topic)
	if err != nil {
		s.logger.Warn("planner failed, using fallback seed",
			zap.String("topic", topic.Name), zap.Error(err))
		plan = FallbackPlan(topic)
	}

	items := make([]discovery.FrontierItem, 0, len(plan.Candidates))
	for i, cand := range plan.Candidates {
		url := strings.TrimSpace(cand.URL)
		if url == "" {
			continue
		}
		id, err := s.idGen.NewID()
		if err != nil {
			return nil, err
		}
		items = append(items, discovery.FrontierItem{
			ID:       id,
			Provider: "planner",
			URL:      url,
			Priority: ScoreCandidate(i, cand),
			Angle:    cand.Angle,
			Metadata: map[string]string{
				"category": cand.Category,
				"title":    cand.Title,
			},
			Created: s.clock.Now(),
		})
	}
	return items, nil
}

// ScoreCandidate computes seed priority:
// 100 − 2·index, plus credibility, novelty, angle, and allowlist bonuses.
func ScoreCandidate(index int, cand SeedCandidate) int {
	score := basePriority - indexPenalty*index

	switch cand.Tier {
	case 1:
		score += tier1Bonus
	case 2:
		score += tier2Bonus
	case 3:
		score += tier3Bonus
	}

	for _, signal := range cand.NoveltySignals {
		if recentYearPattern.MatchString(signal) {
			score += noveltyBonus
			break
		}
	}
	if cand.Controversy {
		score += controversyBonus
	}
	if cand.History {
		score += historyBonus
	}

	score += allowlistBonus(canonical.DomainOf(cand.URL))
	return score
}

// allowlistBonus applies the longest-suffix winner across both allowlists.
func allowlistBonus(domain string) int {
	if domain == "" {
		return 0
	}
	bestLen, bonus := 0, 0
	for _, suffix := range authorityDomains {
		if matchesSuffix(domain, suffix) && len(suffix) > bestLen {
			bestLen, bonus = len(suffix), authorityBonus
		}
	}
	for _, suffix := range referenceHubs {
		if matchesSuffix(domain, suffix) && len(suffix) > bestLen {
			bestLen, bonus = len(suffix), referenceHubBonus
		}
	}
	return bonus
}

func matchesSuffix(domain, suffix string) bool {
	return domain == suffix || strings.HasSuffix(domain, "."+suffix)
}
