package tasks

import "sync"

type pendingEntry struct {
	count    int
	held     bool
	complete bool
}

// PendingTable tracks, per object, how many queued tasks have not completed yet.
//
// An object is registered with a hold while the coordinator is still queueing its tasks, so early completions
// cannot drive the count to zero before every task is known. The object is complete once the hold is released
// with [PendingTable.Seal] and its count is zero; exactly one of Seal or Done reports that transition.
type PendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[string]*pendingEntry)}
}

// Register adds pid with a count of zero. It returns false if pid was already registered.
func (p *PendingTable) Register(pid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[pid]; ok {
		return false
	}
	p.entries[pid] = &pendingEntry{held: true}
	return true
}

// Add counts one more queued task for pid.
func (p *PendingTable) Add(pid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[pid]; ok && !e.complete {
		e.count++
	}
}

// Seal releases the registration hold and reports whether pid completed as a result.
func (p *PendingTable) Seal(pid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[pid]
	if !ok || !e.held {
		return false
	}
	e.held = false
	return e.settle()
}

// Done counts one completed task for pid and reports whether pid completed as a result.
func (p *PendingTable) Done(pid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[pid]
	if !ok || e.count == 0 {
		return false
	}
	e.count--
	return e.settle()
}

func (e *pendingEntry) settle() bool {
	if e.held || e.count > 0 || e.complete {
		return false
	}
	e.complete = true
	return true
}

// remaining returns the outstanding task count for pid.
func (p *PendingTable) remaining(pid string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[pid]
	if !ok {
		return 0, false
	}
	return e.count, true
}

// Len returns the number of registered objects.
func (p *PendingTable) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Outstanding returns the number of registered objects that have not completed.
func (p *PendingTable) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		if !e.complete {
			n++
		}
	}
	return n
}
