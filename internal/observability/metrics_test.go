package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tasks", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/tasks", "GET", 200, 5*time.Millisecond)
	m.RecordRequest("/tasks", "POST", 400, time.Millisecond)
	m.RecordError("/tasks", "POST", "VALIDATION_FAILED")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/tasks|GET|200"])
	assert.Equal(t, 15*time.Millisecond, snap.Latency["/tasks|GET|200"])
	assert.Equal(t, int64(1), snap.Requests["/tasks|POST|400"])
	assert.Equal(t, int64(1), snap.Errors["/tasks|POST|VALIDATION_FAILED"])

	// snapshots are copies
	snap.Requests["/tasks|GET|200"] = 99
	assert.Equal(t, int64(2), m.Snapshot().Requests["/tasks|GET|200"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	assert.Empty(t, m.Snapshot().Requests)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
}
