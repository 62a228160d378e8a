package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// logSaver is the standalone stand-in for the host application's save ports.
// An embedding application supplies its own adapters that feed discovered
// content into its content and memory stores; running alone, the service
// records the hand-off and moves on.
type logSaver struct {
	logger *zap.Logger
}

func newLogSaver(logger *zap.Logger) *logSaver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logSaver{logger: logger}
}

func (s *logSaver) SaveContent(_ context.Context, c discovery.DiscoveredContent) error {
	s.logger.Info("content handed to save port",
		zap.String("content_id", c.ID),
		zap.String("url", c.CanonicalURL),
		zap.Int("score", c.Score))
	return nil
}

func (s *logSaver) SaveMemory(_ context.Context, c discovery.DiscoveredContent) error {
	s.logger.Debug("memory handed to save port", zap.String("content_id", c.ID))
	return nil
}
