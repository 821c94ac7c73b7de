package testing

import "sync"

// Progress is one progress update seen by a [RecordingDisplay].
type Progress struct {
	Done  int64
	Total int64
}

// RecordingDisplay captures everything a run reports to its display.
type RecordingDisplay struct {
	mu       sync.Mutex
	messages []string
	updates  []Progress
	finished bool
	aborted  bool
}

func (d *RecordingDisplay) Notify(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
}

func (d *RecordingDisplay) Update(done, total int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, Progress{Done: done, Total: total})
}

func (d *RecordingDisplay) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finished = true
}

func (d *RecordingDisplay) Abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aborted = true
}

func (d *RecordingDisplay) Messages() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.messages...)
}

func (d *RecordingDisplay) Updates() []Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Progress(nil), d.updates...)
}

func (d *RecordingDisplay) Finished() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finished
}

func (d *RecordingDisplay) Aborted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.aborted
}
