// Package usage aggregates and ships per-run usage records. Records are
// merged in memory keyed by resource, so bursts of runs collapse into a few
// payloads; delivery is best effort and never blocks or fails a run.
package usage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// CategoryWorkflows tags records produced by workflow runs.
const CategoryWorkflows = "workflows"

// Record is one usage observation, either fresh from a run or the merge of
// several.
type Record struct {
	APIKey            string        `json:"api_key"`
	ExecSessionID     string        `json:"exec_session_id,omitempty"`
	Category          string        `json:"category"`
	ResourceID        string        `json:"resource_id"`
	TimestampStart    time.Time     `json:"timestamp_start"`
	TimestampStop     time.Time     `json:"timestamp_stop"`
	ProcessedFrames   int           `json:"processed_frames"`
	ExecutionDuration time.Duration `json:"execution_duration_ns"`
	FPS               float64       `json:"fps"`
}

// Key identifies the aggregation bucket a record belongs to.
func (r Record) Key() string {
	return r.APIKey + "|" + r.Category + ":" + r.ResourceID
}

// Merge folds two records of the same bucket into one. The operation is
// associative and commutative, so aggregation order never changes the
// result: the span widens to cover both, counters sum.
func Merge(a, b Record) (Record, error) {
	if a.Key() != b.Key() {
		return Record{}, fmt.Errorf("cannot merge usage records of different buckets %q and %q", a.Key(), b.Key())
	}
	out := a
	if b.TimestampStart.Before(out.TimestampStart) {
		out.TimestampStart = b.TimestampStart
	}
	if b.TimestampStop.After(out.TimestampStop) {
		out.TimestampStop = b.TimestampStop
	}
	out.ProcessedFrames += b.ProcessedFrames
	out.ExecutionDuration += b.ExecutionDuration
	if secs := out.ExecutionDuration.Seconds(); secs > 0 {
		out.FPS = float64(out.ProcessedFrames) / secs
	}
	return out, nil
}

// ResourceHash derives a short stable identifier from an arbitrary string.
func ResourceHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:5]
}

// WorkflowResourceID derives the resource id of a compiled workflow from
// its ordered step identities.
func WorkflowResourceID(typeNames []string) string {
	return ResourceHash(strings.Join(typeNames, ","))
}
