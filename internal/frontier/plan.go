// Package frontier turns planner output into prioritized seed candidates.
package frontier

// SeedPlan is the structured plan returned by the planner model.
type SeedPlan struct {
	MustTerms     []string        `json:"must_terms"`
	ShouldTerms   []string        `json:"should_terms"`
	DisallowTerms []string        `json:"disallow_terms"`
	Angles        []AngleCoverage `json:"angles"`
	Candidates    []SeedCandidate `json:"candidates"`
}

// AngleCoverage sets a coverage target for one angle bucket.
type AngleCoverage struct {
	Angle  string `json:"angle"`
	Target int    `json:"target"`
}

// Angle bucket names the planner is asked to fill.
const (
	AngleMainstream  = "mainstream"
	AngleControversy = "controversy"
	AngleHistory     = "history"
)

// SeedCandidate is one planner-suggested source page.
type SeedCandidate struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Category       string   `json:"category"`
	Tier           int      `json:"credibility_tier"`
	NoveltySignals []string `json:"novelty_signals"`
	Controversy    bool     `json:"controversy"`
	History        bool     `json:"history"`
	Angle          string   `json:"angle"`
}
