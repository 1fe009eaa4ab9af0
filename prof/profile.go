// Package prof records wall-clock durations of the attack stages.
//
// Recording is off until Enable is called; Track is then a no-op, so library
// callers that never read the records keep nothing in memory.
package prof

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// Entry is one timed stage.
type Entry struct {
	Label string
	Dur   time.Duration
}

// Total aggregates the entries that share a stage prefix.
type Total struct {
	Stage string
	Count int
	Dur   time.Duration
}

var (
	enabled atomic.Bool
	mu      sync.Mutex
	record  []Entry
)

// Enable turns recording on.
func Enable() { enabled.Store(true) }

// Disable turns recording off and drops the entries collected so far.
func Disable() {
	enabled.Store(false)
	SnapshotAndReset()
}

// Enabled reports whether Track currently records.
func Enabled() bool { return enabled.Load() }

// Track records the time elapsed since start under label. Intended for
// `defer prof.Track(time.Now(), "stage")`.
func Track(start time.Time, label string) {
	if !enabled.Load() {
		return
	}
	elapsed := time.Since(start)
	mu.Lock()
	record = append(record, Entry{Label: label, Dur: elapsed})
	mu.Unlock()
	glog.V(2).Infof("prof: %s took %v", label, elapsed)
}

// SnapshotAndReset returns the collected entries and clears them.
func SnapshotAndReset() []Entry {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Entry, len(record))
	copy(out, record)
	record = nil
	return out
}

// Totals groups entries by stage, the label up to its second '/', so
// "cpa/correlate/byte03" counts towards "cpa/correlate". The result is sorted
// by descending duration.
func Totals(entries []Entry) []Total {
	idx := make(map[string]int)
	var out []Total
	for _, e := range entries {
		stage := stageOf(e.Label)
		i, ok := idx[stage]
		if !ok {
			i = len(out)
			idx[stage] = i
			out = append(out, Total{Stage: stage})
		}
		out[i].Count++
		out[i].Dur += e.Dur
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Dur > out[b].Dur })
	return out
}

func stageOf(label string) string {
	first := strings.IndexByte(label, '/')
	if first < 0 {
		return label
	}
	second := strings.IndexByte(label[first+1:], '/')
	if second < 0 {
		return label
	}
	return label[:first+1+second]
}
