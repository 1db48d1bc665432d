// Package monitor tracks process counters and a ring of recent log lines
// for the admin surface. It is safe for concurrent use: the dispatcher
// writes while the admin HTTP server reads.
package monitor

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of the counters.
type Stats struct {
	Status            string    `json:"status"`
	StartedAt         time.Time `json:"started_at"`
	UptimeSeconds     int64     `json:"uptime_seconds"`
	MessagesProcessed int64     `json:"messages_processed"`
	URLsIdentified    int64     `json:"urls_identified"`
	RecordsDelivered  int64     `json:"records_delivered"`
	RecordsSkipped    int64     `json:"records_skipped"`
	CyclesCompleted   int64     `json:"cycles_completed"`
	TasksActive       int64     `json:"tasks_active"`
	SourcesActive     int64     `json:"sources_active"`
	LastSyncTime      string    `json:"last_sync_time"`
	Logs              []LogLine `json:"logs"`
}

// LogLine is one captured log record.
type LogLine struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"msg"`
}

// maxLogLines bounds the log ring.
const maxLogLines = 100

// Monitor accumulates counters and recent log lines.
type Monitor struct {
	mu        sync.Mutex
	startedAt time.Time
	status    string
	counters  map[string]int64
	lastSync  string
	logs      []LogLine
}

// New creates a Monitor.
func New() *Monitor {
	return &Monitor{
		startedAt: time.Now(),
		status:    "starting",
		counters:  make(map[string]int64),
	}
}

// SetStatus updates the process status string.
func (m *Monitor) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Add increments a named counter.
func (m *Monitor) Add(name string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += n
}

// SetGauge overwrites a named counter with an absolute value.
func (m *Monitor) SetGauge(name string, v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] = v
}

// MarkSync records the completion time of a sync cycle.
func (m *Monitor) MarkSync(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSync = at.UTC().Format(time.RFC3339)
	m.counters["cycles_completed"]++
}

// AddLog appends a line to the ring, evicting the oldest past capacity.
func (m *Monitor) AddLog(line LogLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

// Snapshot returns the current stats with logs newest-first.
func (m *Monitor) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs := make([]LogLine, len(m.logs))
	for i, l := range m.logs {
		logs[len(m.logs)-1-i] = l
	}

	lastSync := m.lastSync
	if lastSync == "" {
		lastSync = "never"
	}

	return Stats{
		Status:            m.status,
		StartedAt:         m.startedAt,
		UptimeSeconds:     int64(time.Since(m.startedAt).Seconds()),
		MessagesProcessed: m.counters["messages_processed"],
		URLsIdentified:    m.counters["urls_identified"],
		RecordsDelivered:  m.counters["records_delivered"],
		RecordsSkipped:    m.counters["records_skipped"],
		CyclesCompleted:   m.counters["cycles_completed"],
		TasksActive:       m.counters["tasks_active"],
		SourcesActive:     m.counters["sources_active"],
		LastSyncTime:      lastSync,
		Logs:              logs,
	}
}
