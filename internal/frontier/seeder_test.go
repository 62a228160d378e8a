package frontier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

type fakePlanner struct {
	plan SeedPlan
	err  error
}

func (p *fakePlanner) Plan(context.Context, discovery.Topic) (SeedPlan, error) {
	return p.plan, p.err
}

type seqIDGen struct{ n int }

func (g *seqIDGen) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func TestScoreCandidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		index int
		cand  SeedCandidate
		want  int
	}{
		{
			name:  "tier one first",
			index: 0,
			cand:  SeedCandidate{URL: "https://blog.example.io/post", Tier: 1},
			want:  100 + 25,
		},
		{
			name:  "index penalty",
			index: 5,
			cand:  SeedCandidate{URL: "https://blog.example.io/post", Tier: 3},
			want:  100 - 10 + 5,
		},
		{
			name:  "novelty and controversy",
			index: 0,
			cand: SeedCandidate{
				URL:            "https://blog.example.io/post",
				Tier:           2,
				NoveltySignals: []string{"major ruling in 2025"},
				Controversy:    true,
			},
			want: 100 + 15 + 10 + 8,
		},
		{
			name:  "authority domain",
			index: 0,
			cand:  SeedCandidate{URL: "https://www.reuters.com/world/story", Tier: 1, History: true},
			want:  100 + 25 + 4 + 10,
		},
		{
			name:  "reference hub",
			index: 1,
			cand:  SeedCandidate{URL: "https://en.wikipedia.org/wiki/Thing", Tier: 1},
			want:  100 - 2 + 25 + 6,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ScoreCandidate(tc.index, tc.cand))
		})
	}
}

func TestSeederUsesPlan(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{plan: SeedPlan{Candidates: []SeedCandidate{
		{URL: "https://en.wikipedia.org/wiki/Topic", Tier: 1, Angle: AngleMainstream},
		{URL: "https://www.reuters.com/world/topic", Tier: 1, Angle: AngleMainstream},
		{URL: "", Tier: 2},
	}}}
	seeder := NewSeeder(planner, &seqIDGen{}, fixedClock{at: time.Unix(500, 0)}, nil)

	items, err := seeder.Seed(context.Background(), discovery.Topic{Name: "Topic", Handle: "run-1"})
	require.NoError(t, err)
	require.Len(t, items, 2, "blank candidate URLs are skipped")
	assert.Equal(t, "planner", items[0].Provider)
	assert.Equal(t, 100+25+6, items[0].Priority)
}

func TestSeederFallbackOnPlannerFailure(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{err: errors.New("model unavailable")}
	seeder := NewSeeder(planner, &seqIDGen{}, fixedClock{at: time.Unix(500, 0)}, nil)

	items, err := seeder.Seed(context.Background(), discovery.Topic{Name: "Ada Lovelace", Handle: "run-1"})
	require.NoError(t, err)
	require.Len(t, items, 1, "frontier must never be empty")
	assert.Equal(t, "https://en.wikipedia.org/wiki/Ada_Lovelace", items[0].URL)
}
