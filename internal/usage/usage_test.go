package usage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(start, stop time.Time, frames int) Record {
	return Record{
		APIKey:            "key",
		Category:          CategoryWorkflows,
		ResourceID:        "abc12",
		TimestampStart:    start,
		TimestampStop:     stop,
		ProcessedFrames:   frames,
		ExecutionDuration: stop.Sub(start),
	}
}

func TestMergeWidensSpanAndSumsCounters(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := record(base, base.Add(2*time.Second), 4)
	b := record(base.Add(-time.Second), base.Add(time.Second), 2)

	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, base.Add(-time.Second), merged.TimestampStart)
	assert.Equal(t, base.Add(2*time.Second), merged.TimestampStop)
	assert.Equal(t, 6, merged.ProcessedFrames)
	assert.Equal(t, 5*time.Second, merged.ExecutionDuration)
}

func TestMergeIsCommutative(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := record(base, base.Add(time.Second), 1)
	b := record(base.Add(time.Second), base.Add(3*time.Second), 5)

	ab, err := Merge(a, b)
	require.NoError(t, err)
	ba, err := Merge(b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestMergeRejectsDifferentBuckets(t *testing.T) {
	base := time.Now()
	a := record(base, base, 1)
	b := a
	b.ResourceID = "other"
	_, err := Merge(a, b)
	require.Error(t, err)
}

func TestResourceHash(t *testing.T) {
	h := ResourceHash("Detector:detect,Sink:out")
	assert.Len(t, h, 5)
	assert.Equal(t, h, ResourceHash("Detector:detect,Sink:out"))
	assert.NotEqual(t, h, ResourceHash("Detector:detect"))
}

func TestCollectorAggregatesAndShips(t *testing.T) {
	var mu sync.Mutex
	var payloads [][]Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		mu.Lock()
		payloads = append(payloads, batch)
		mu.Unlock()
	}))
	defer srv.Close()

	c := NewCollector(CollectorOptions{
		Endpoint:      srv.URL,
		FlushInterval: time.Hour, // flush happens on Close
		Logger:        slog.Default(),
	})

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.Record(record(base, base.Add(time.Second), 2))
	c.Record(record(base.Add(time.Second), base.Add(2*time.Second), 3))
	require.NoError(t, c.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1)
	require.Len(t, payloads[0], 1, "records of one bucket must merge")
	assert.Equal(t, 5, payloads[0][0].ProcessedFrames)
	assert.Equal(t, int64(0), c.Dropped())
}

func TestCollectorAggregatesWhileSenderIsWedged(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()

	c := NewCollector(CollectorOptions{Endpoint: srv.URL, FlushInterval: 2 * time.Millisecond})

	// With the endpoint wedged the batch channel fills after a few ticks;
	// flushes must then back off instead of stalling the aggregator, so
	// intake keeps draining and nothing is dropped.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 1000; i++ {
		rec := record(base, base.Add(time.Second), 1)
		rec.ResourceID = fmt.Sprintf("res-%d", i%8)
		c.Record(rec)
		if i%50 == 0 {
			time.Sleep(3 * time.Millisecond)
		}
	}
	assert.Equal(t, int64(0), c.Dropped())

	close(release)
	done := make(chan error, 1)
	go func() { done <- c.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not drain after the sender recovered")
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	c := NewCollector(CollectorOptions{Endpoint: srv.URL, QueueSize: 1, FlushInterval: time.Hour})
	// Saturate the intake faster than the aggregator can drain it; with a
	// queue of one at least some of these must be dropped, none may block.
	base := time.Now()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10_000; i++ {
			c.Record(record(base, base.Add(time.Second), 1))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}
	require.NoError(t, c.Close())
}
