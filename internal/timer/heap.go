package timer

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

// ErrManagerStopped is returned when scheduling on a stopped manager.
var ErrManagerStopped = errors.New("timer manager is stopped")

// Task is a callback scheduled for future execution.
type Task struct {
	ID       string
	ExpiryAt time.Time
	Callback func()
	index    int // index in the heap (for heap.Interface)
}

// taskHeap is a min-heap of Tasks ordered by ExpiryAt
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].ExpiryAt.Before(h[j].ExpiryAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	n := len(*h)
	task := x.(*Task)
	task.index = n
	*h = append(*h, task)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil  // avoid memory leak
	task.index = -1 // for safety
	*h = old[0 : n-1]
	return task
}

// Manager runs scheduled callbacks using a min-heap. Callbacks run on their
// own goroutine so a slow callback never delays the next expiry.
type Manager struct {
	heap    taskHeap
	mu      sync.Mutex
	wakeup  chan struct{}
	tasks   map[string]*Task // for O(1) lookup by ID
	stopped bool
	stopCh  chan struct{}
}

// NewManager creates a new timer manager.
func NewManager() *Manager {
	m := &Manager{
		heap:   make(taskHeap, 0),
		wakeup: make(chan struct{}, 1),
		tasks:  make(map[string]*Task),
		stopCh: make(chan struct{}),
	}
	heap.Init(&m.heap)
	return m
}

// Start starts the scheduler goroutine.
func (m *Manager) Start() {
	go m.run()
}

// Stop stops the timer manager. Pending tasks are dropped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.stopCh)
	m.mu.Unlock()
}

// Schedule adds a task to be executed at the specified time, replacing any
// existing task with the same ID.
func (m *Manager) Schedule(id string, expiryAt time.Time, callback func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}

	if existing, ok := m.tasks[id]; ok {
		heap.Remove(&m.heap, existing.index)
		delete(m.tasks, id)
	}

	task := &Task{
		ID:       id,
		ExpiryAt: expiryAt,
		Callback: callback,
	}

	heap.Push(&m.heap, task)
	m.tasks[id] = task

	// Wake up the scheduler if this is now the earliest task
	if m.heap[0] == task {
		select {
		case m.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// Cancel removes a scheduled task.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return false
	}

	heap.Remove(&m.heap, task.index)
	delete(m.tasks, id)
	return true
}

// Len returns the number of scheduled tasks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// run is the main scheduler loop
func (m *Manager) run() {
	for {
		m.mu.Lock()

		if m.stopped {
			m.mu.Unlock()
			return
		}

		var waitDuration time.Duration
		if m.heap.Len() == 0 {
			// No tasks, wait indefinitely
			waitDuration = 24 * time.Hour
		} else {
			nextTask := m.heap[0]
			waitDuration = time.Until(nextTask.ExpiryAt)

			if waitDuration <= 0 {
				task := heap.Pop(&m.heap).(*Task)
				delete(m.tasks, task.ID)

				go task.Callback()

				m.mu.Unlock()
				continue
			}
		}

		m.mu.Unlock()

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
			// Time to check for expired tasks
		case <-m.wakeup:
			// New task added or existing task updated
			timer.Stop()
		case <-m.stopCh:
			timer.Stop()
			return
		}
	}
}
