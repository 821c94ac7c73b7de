package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fixity/internal/tasks"
	"github.com/mattn/go-isatty"
)

var (
	_ tasks.Display = (*TerminalDisplay)(nil)
	_ tasks.Display = (*LineDisplay)(nil)
)

// NewDisplay picks a progress display for w: a live bar on terminals, sampled lines otherwise.
func NewDisplay(w io.Writer) tasks.Display {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return NewTerminalDisplay(w)
	}
	return NewLineDisplay(w, 10)
}

type progressMsg tasks.ProgressUpdate

type finishMsg struct{}

// Model renders a title, a progress bar and the object counter.
type Model struct {
	bar     progress.Model
	update  tasks.ProgressUpdate
	stopped bool
}

func NewModel() Model {
	bar := progress.New(progress.WithGradient(styles.barStart, styles.barEnd))
	bar.Width = 40
	return Model{bar: bar}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(min(msg.Width-30, 60), 10)
		return m, nil
	case progressMsg:
		m.update = tasks.ProgressUpdate(msg)
		return m, nil
	case finishMsg:
		m.stopped = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	label := styles.title.Render("Auditing")
	if m.stopped {
		label = styles.ok.Render("Done    ")
	}

	line := fmt.Sprintf("%s %s %s", label, m.bar.ViewAs(fraction(m.update)), counter(m.update))
	if m.stopped {
		return line + "\n"
	}
	return line
}

// TerminalDisplay draws a live progress bar with bubbletea and prints messages above it.
type TerminalDisplay struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

// NewTerminalDisplay starts the bubbletea program writing to w. It never reads input or installs
// signal handlers; the caller owns interrupts.
func NewTerminalDisplay(w io.Writer) *TerminalDisplay {
	d := &TerminalDisplay{
		program: tea.NewProgram(NewModel(), tea.WithOutput(w), tea.WithInput(nil), tea.WithoutSignalHandler()),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(d.done)
		_, _ = d.program.Run()
	}()
	return d
}

func (d *TerminalDisplay) Notify(msg string) {
	d.program.Println(styles.Message(msg))
}

func (d *TerminalDisplay) Update(done, total int64) {
	d.program.Send(progressMsg{Done: done, Total: total})
}

// Finish renders the final frame and waits for the program to exit.
func (d *TerminalDisplay) Finish() {
	d.once.Do(func() {
		d.program.Send(finishMsg{})
		<-d.done
	})
}

// Abort stops the program without a final frame.
func (d *TerminalDisplay) Abort() {
	d.once.Do(func() {
		d.program.Quit()
		<-d.done
	})
}

// LineDisplay writes a progress line whenever the completed share crosses a bucket boundary.
//
// It is used when output is not a terminal (pipes, CI logs).
type LineDisplay struct {
	mu         sync.Mutex
	w          io.Writer
	bucketSize float64
	lastBucket int
	last       tasks.ProgressUpdate
	ended      bool
}

// NewLineDisplay creates a LineDisplay that reports every bucketSize percent (default 10).
func NewLineDisplay(w io.Writer, bucketSize float64) *LineDisplay {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &LineDisplay{w: w, bucketSize: bucketSize, lastBucket: -1}
}

func (d *LineDisplay) Notify(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.w, msg)
}

func (d *LineDisplay) Update(done, total int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = tasks.ProgressUpdate{Done: done, Total: total}
	if total <= 0 {
		return
	}

	bucket := int(fraction(d.last) * 100 / d.bucketSize)
	if bucket > d.lastBucket {
		d.lastBucket = bucket
		d.writeLine()
	}
}

// Finish writes the final counter unless the last bucket already showed it.
func (d *LineDisplay) Finish() {
	d.end("")
}

func (d *LineDisplay) Abort() {
	d.end(" (interrupted)")
}

func (d *LineDisplay) end(suffix string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ended {
		return
	}
	d.ended = true

	complete := d.last.Total > 0 && d.last.Done == d.last.Total && d.lastBucket >= 0
	if complete && suffix == "" {
		return
	}
	fmt.Fprintf(d.w, "Progress: %s%s\n", counter(d.last), suffix)
}

func (d *LineDisplay) writeLine() {
	fmt.Fprintf(d.w, "Progress: %s\n", counter(d.last))
}

func fraction(u tasks.ProgressUpdate) float64 {
	if u.Total <= 0 {
		return 0
	}
	return min(float64(u.Done)/float64(u.Total), 1)
}

func counter(u tasks.ProgressUpdate) string {
	if u.Total <= 0 {
		return fmt.Sprintf("%d objects", u.Done)
	}
	return fmt.Sprintf("%d/%d objects (%.0f%%)", u.Done, u.Total, fraction(u)*100)
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
