// Package progress reports coarse completion percentages for long-running
// sync operations. Reports are advisory only; failures to deliver them never
// affect the operation.
package progress

import (
	"context"

	"github.com/Gobusters/ectologger"
)

// Sink receives progress updates. Stage names the operation phase, pct is
// 0-100.
type Sink interface {
	Publish(ctx context.Context, stage string, pct int)
}

type logSink struct {
	logger ectologger.Logger
}

// NewLogSink returns a Sink that writes progress to the logger at debug
// level.
func NewLogSink(logger ectologger.Logger) Sink {
	return &logSink{logger: logger}
}

func (s *logSink) Publish(ctx context.Context, stage string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"stage":   stage,
		"percent": pct,
	}).Debug("Progress")
}

type noopSink struct{}

// NewNoopSink returns a Sink that discards all updates.
func NewNoopSink() Sink {
	return noopSink{}
}

func (noopSink) Publish(context.Context, string, int) {}
