package observability

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weni-ai/insights/internal/common/logging"
)

func TestLogRecorder_RecordException(t *testing.T) {
	logger, hook := test.NewNullLogger()
	recorder := NewLogRecorder(logger)

	recorder.RecordException(context.Background(), errors.New("upstream failed"), map[string]string{
		SourceTag: "vtex",
		"key":     "orders:abc",
	})

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, log.ErrorLevel, entry.Level)
	assert.Equal(t, "vtex", entry.Data[SourceTag])
	assert.Equal(t, "orders:abc", entry.Data["key"])
	assert.EqualError(t, entry.Data[log.ErrorKey].(error), "upstream failed")
	assert.NotNil(t, entry.Data[logging.StackField])
}

func TestLogRecorder_IgnoresNil(t *testing.T) {
	logger, hook := test.NewNullLogger()
	NewLogRecorder(logger).RecordException(context.Background(), nil, nil)
	assert.Empty(t, hook.AllEntries())
}
