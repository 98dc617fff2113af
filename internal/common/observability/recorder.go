// Package observability is where failures that should page somebody end up.
package observability

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/weni-ai/insights/internal/common/logging"
	"github.com/weni-ai/insights/internal/common/metrics"
)

// SourceTag is the tag used to group exceptions on the metrics side.
const SourceTag = "source"

type Recorder interface {
	RecordException(ctx context.Context, err error, tags map[string]string)
}

// LogRecorder logs every exception with its stack and bumps the exceptions counter.
type LogRecorder struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewLogRecorder(logger *log.Logger) *LogRecorder {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogRecorder{logger: logger, metrics: metrics.Get()}
}

func (r *LogRecorder) RecordException(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	fields := make(log.Fields, len(tags))
	for k, v := range tags {
		fields[k] = v
	}
	logging.WithError(r.logger.WithContext(ctx).WithFields(fields), err).Error("exception recorded")

	source := tags[SourceTag]
	if source == "" {
		source = "unknown"
	}
	r.metrics.RecordException(source)
}

// NoopRecorder drops everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordException(context.Context, error, map[string]string) {}
