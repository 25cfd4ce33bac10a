// Package progress provides a terminal progress bar for fetching collections
// and rendering their views.
package progress

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// TaskStatus represents the current state of a task
type TaskStatus int

const (
	// StatusPending indicates a task is waiting to run
	StatusPending TaskStatus = iota
	// StatusRunning indicates a task is currently running
	StatusRunning
	// StatusSuccess indicates a task completed successfully
	StatusSuccess
	// StatusFailed indicates a task failed
	StatusFailed
)

// RunningTask tracks a currently executing fetch or view render
type RunningTask struct {
	Collection string
	Step       string
	StartTime  time.Time
	Status     TaskStatus
}

// Manager handles the progress display
type Manager struct {
	enabled    bool
	totalTasks int
	completed  int
	passed     int
	failed     int
	running    map[string]*RunningTask // key: "collection:step"
	mu         sync.Mutex
	bar        *progressbar.ProgressBar
	out        io.Writer
	startTime  time.Time
}

// NewManager creates a new progress manager writing to stderr. Each
// collection contributes one fetch task plus one task per view.
func NewManager(collections, views int, enabled bool) *Manager {
	return NewManagerWithWriter(collections, views, enabled, os.Stderr)
}

// NewManagerWithWriter creates a progress manager writing to out.
func NewManagerWithWriter(collections, views int, enabled bool, out io.Writer) *Manager {
	m := &Manager{
		enabled:    enabled,
		totalTasks: collections * (views + 1),
		running:    make(map[string]*RunningTask),
		out:        out,
		startTime:  time.Now(),
	}

	if enabled {
		m.setupProgressBar()
	}

	return m
}

// setupProgressBar initializes the progress bar
func (m *Manager) setupProgressBar() {
	m.bar = progressbar.NewOptions(m.totalTasks,
		progressbar.OptionSetDescription("Rendering"),
		progressbar.OptionSetWriter(m.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "|",
			BarEnd:        "|",
		}),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(m.out)
		}),
	)
}

func taskKey(collection, step string) string {
	return collection + ":" + step
}

// Start marks a task as started. step is "fetch" or a view name.
func (m *Manager) Start(collection, step string) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.running[taskKey(collection, step)] = &RunningTask{
		Collection: collection,
		Step:       step,
		StartTime:  time.Now(),
		Status:     StatusRunning,
	}
	m.describe()
}

// Complete marks a task as completed
func (m *Manager) Complete(collection, step string, success bool) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.completed++
	if success {
		m.passed++
	} else {
		m.failed++
	}
	delete(m.running, taskKey(collection, step))

	m.describe()
	_ = m.bar.Add(1)
}

// Skip counts tasks that will never run, such as the views of a collection
// whose fetch failed.
func (m *Manager) Skip(n int) {
	if !m.enabled || n <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.completed += n
	m.failed += n
	_ = m.bar.Add(n)
}

// describe updates the bar label with the oldest running task.
func (m *Manager) describe() {
	if len(m.running) == 0 {
		m.bar.Describe(fmt.Sprintf("✓ %d ✗ %d", m.passed, m.failed))
		return
	}

	tasks := make([]*RunningTask, 0, len(m.running))
	for _, t := range m.running {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].StartTime.Before(tasks[j].StartTime)
	})
	oldest := tasks[0]
	label := fmt.Sprintf("%s/%s", truncate(oldest.Collection, 20), truncate(oldest.Step, 12))
	if len(tasks) > 1 {
		label += fmt.Sprintf(" +%d", len(tasks)-1)
	}
	m.bar.Describe(fmt.Sprintf("%-36s", label))
}

// PrintAbove prints a message above the progress bar, or to stdout when the
// bar is disabled.
func (m *Manager) PrintAbove(format string, args ...interface{}) {
	if !m.IsEnabled() {
		fmt.Printf(format+"\n", args...)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.bar.Clear()
	_, _ = fmt.Fprintf(m.out, format+"\n", args...)
	_ = m.bar.RenderBlank()
}

// Finish marks the run as complete
func (m *Manager) Finish() {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.bar.Finish()
	_, _ = fmt.Fprintf(m.out, "  Completed %d tasks in %s (✓ %d passed | ✗ %d failed)\n",
		m.completed, formatDuration(time.Since(m.startTime)), m.passed, m.failed)
}

// Counts returns completed, passed and failed task totals.
func (m *Manager) Counts() (completed, passed, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed, m.passed, m.failed
}

// Total returns the number of tasks the manager expects.
func (m *Manager) Total() int {
	return m.totalTasks
}

// IsEnabled returns whether progress display is enabled
func (m *Manager) IsEnabled() bool {
	return m != nil && m.enabled
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// truncate truncates a string to max runes with ellipsis
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
