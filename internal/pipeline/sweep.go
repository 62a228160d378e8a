package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
)

// SweepReport summarizes one reprocessing pass.
type SweepReport struct {
	Anomalies int `json:"anomalies"`
	Reset     int `json:"reset"`
}

// Sweep finds citations whose stored outcome looks inconsistent and resets
// them for another pass: denials that scored at or above the acceptance
// threshold, and saves whose content record went missing. Reset citations
// carry the rescan flag so dedup does not immediately re-deny them.
func (p *Pipeline) Sweep(ctx context.Context, runID string) (SweepReport, error) {
	var report SweepReport

	anomalies, err := p.citations.Anomalies(ctx, runID, p.cfg.SweepThreshold)
	if err != nil {
		return report, fmt.Errorf("find anomalies: %w", err)
	}
	report.Anomalies = len(anomalies)

	for _, c := range anomalies {
		if c.Decision == discovery.DecisionSaved && c.ContentID != "" {
			// Confirm the content reference is actually dangling before
			// discarding a positive decision.
			exists, err := p.contents.ContentExists(ctx, c.ContentID)
			if err != nil {
				p.logger.Warn("check content existence",
					zap.String("citation_id", c.ID), zap.Error(err))
				continue
			}
			if exists {
				continue
			}
		}
		if err := p.forceRescan(ctx, runID, c); err != nil {
			return report, err
		}
		report.Reset++
	}

	p.logger.Info("reprocessing sweep done",
		zap.String("run_id", runID),
		zap.Int("anomalies", report.Anomalies),
		zap.Int("reset", report.Reset))
	return report, nil
}

// forceRescan returns a citation to the front of the pipeline with a clean
// slate. The prior score survives for comparison after the rescan.
func (p *Pipeline) forceRescan(ctx context.Context, runID string, c discovery.Citation) error {
	c.VerificationStatus = discovery.VerificationPending
	c.ScanStatus = discovery.ScanNotScanned
	c.Decision = discovery.DecisionNone
	c.ContentID = ""
	c.ExtractedText = ""
	c.ErrorText = ""
	c.Rescan = true
	c.Updated = p.clock.Now()

	if err := p.citations.UpdateCitation(ctx, c); err != nil {
		return fmt.Errorf("reset citation %s: %w", c.ID, err)
	}
	p.tracker.Record(progress.Event{
		Kind: progress.EventRescan, RunID: runID, URL: c.URL,
		Detail: "anomaly reset",
	})
	return nil
}
