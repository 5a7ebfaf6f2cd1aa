package types

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// EpisodeContext carries the deadline and report of a single episode
type EpisodeContext struct {
	Context context.Context
	Cancel  context.CancelFunc

	Report *EpisodeReport
}

// NewEpisodeContext bounds the episode by timeout when timeout is positive
func NewEpisodeContext(parent context.Context, episode int, timeout time.Duration) *EpisodeContext {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &EpisodeContext{
		Context: ctx,
		Cancel:  cancel,
		Report:  NewEpisodeReport(episode),
	}
}

// EpisodeReport records timing and counters of an episode, indexed by entry type
type EpisodeReport struct {
	Episode int

	lock        *sync.Mutex
	episodeStep int
	startTime   time.Time

	Timeline   []*EpisodeReportEntry
	TimeValues map[string][]*EpisodeReportEntry
	IntValues  map[string][]*EpisodeReportEntry
	Logs       map[string]string
}

func NewEpisodeReport(episode int) *EpisodeReport {
	return &EpisodeReport{
		Episode:    episode,
		lock:       new(sync.Mutex),
		startTime:  time.Now(),
		Timeline:   make([]*EpisodeReportEntry, 0),
		TimeValues: make(map[string][]*EpisodeReportEntry),
		IntValues:  make(map[string][]*EpisodeReportEntry),
		Logs:       make(map[string]string),
	}
}

// SetStep sets the episode step stamped on subsequent entries
func (e *EpisodeReport) SetStep(step int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.episodeStep = step
}

func (e *EpisodeReport) add(entryType, caller string, value interface{}) *EpisodeReportEntry {
	entry := &EpisodeReportEntry{
		Index:       len(e.Timeline),
		Timestamp:   time.Since(e.startTime),
		EpisodeStep: e.episodeStep,
		EntryType:   entryType,
		Caller:      caller,
		Value:       value,
	}
	e.Timeline = append(e.Timeline, entry)
	return entry
}

func (e *EpisodeReport) AddTimeEntry(value time.Duration, entryType string, caller string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	entry := e.add(entryType, caller, value)
	e.TimeValues[entryType] = append(e.TimeValues[entryType], entry)
}

func (e *EpisodeReport) AddIntEntry(value int, entryType string, caller string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	entry := e.add(entryType, caller, value)
	e.IntValues[entryType] = append(e.IntValues[entryType], entry)
}

func (e *EpisodeReport) AddLog(value string, key string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.Logs[key] = value
}

// TotalTime sums the durations recorded under entryType
func (e *EpisodeReport) TotalTime(entryType string) time.Duration {
	e.lock.Lock()
	defer e.lock.Unlock()
	var total time.Duration
	for _, entry := range e.TimeValues[entryType] {
		total += entry.Value.(time.Duration)
	}
	return total
}

// StringPerType lists the entries grouped by type, types in sorted order
func (e *EpisodeReport) StringPerType() string {
	e.lock.Lock()
	defer e.lock.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Episode %d\n", e.Episode)
	for _, entryType := range sortedKeys(e.TimeValues) {
		entries := e.TimeValues[entryType]
		fmt.Fprintf(&b, "%s [%d]:\n%s", entryType, len(entries), StringEntriesList(entries))
	}
	for _, entryType := range sortedKeys(e.IntValues) {
		entries := e.IntValues[entryType]
		fmt.Fprintf(&b, "%s [%d]:\n%s", entryType, len(entries), StringEntriesList(entries))
	}
	logKeys := make([]string, 0, len(e.Logs))
	for k := range e.Logs {
		logKeys = append(logKeys, k)
	}
	sort.Strings(logKeys)
	for _, k := range logKeys {
		fmt.Fprintf(&b, "%s: %s\n", k, e.Logs[k])
	}
	return b.String()
}

func sortedKeys(m map[string][]*EpisodeReportEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EpisodeReportEntry is one entry of the report
type EpisodeReportEntry struct {
	Index     int           // managed by the report
	Timestamp time.Duration // since the report was created

	EpisodeStep int
	EntryType   string
	Caller      string
	Value       interface{} // time.Duration or int
}

func (en *EpisodeReportEntry) String() string {
	switch v := en.Value.(type) {
	case time.Duration:
		return fmt.Sprintf("[ %6d | %5d | %3d ] %12s (%s)", en.Index, en.Timestamp.Milliseconds(), en.EpisodeStep, v.String(), en.Caller)
	case int:
		return fmt.Sprintf("[ %6d | %5d | %3d ] %12d (%s)", en.Index, en.Timestamp.Milliseconds(), en.EpisodeStep, v, en.Caller)
	default:
		return "wrong entry type"
	}
}

func StringEntriesList(list []*EpisodeReportEntry) string {
	var b strings.Builder
	for _, entry := range list {
		b.WriteString(entry.String())
		b.WriteString("\n")
	}
	return b.String()
}
