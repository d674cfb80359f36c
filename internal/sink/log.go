package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/Openpanel-dev/mock/internal/core"
)

// Log is a dry-run sink: it logs events instead of delivering them.
type Log struct {
	log *zap.SugaredLogger
}

// NewLog creates a logging sink.
func NewLog(log *zap.SugaredLogger) *Log {
	return &Log{log: log}
}

func (s *Log) Track(ctx context.Context, visitor *core.Visitor, name string, properties map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Infow("track",
		"visitor", visitor.ID,
		"event", name,
		"properties", properties,
		"ip", visitor.IPAddress,
		"user_agent", visitor.UserAgent,
	)
	return nil
}
