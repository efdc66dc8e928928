package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// TUIRenderer drives a bubbletea program showing a spinner, a per-stage
// progress bar, and a running error tally.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexModel
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer; it fails on a non-TTY output so
// NewRenderer can fall back to plain mode.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	model := newIndexModel(cfg.Workspace)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}
	return &TUIRenderer{cfg: cfg, model: model, done: make(chan struct{})}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(progressMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer. Blocks until the program exits so the final
// summary frame is flushed before the CLI returns.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program, started := r.program, r.started
	r.mu.Unlock()

	if !started || program == nil {
		return nil
	}
	program.Quit()
	<-r.done
	return nil
}

// bubbletea message types
type (
	progressMsg ProgressEvent
	errorMsg    ErrorEvent
	completeMsg CompletionStats
)

// indexModel is the bubbletea model for indexing progress.
type indexModel struct {
	workspace string
	styles    Styles

	spin spinner.Model
	bar  progress.Model

	stage    Stage
	current  int
	total    int
	symbols  int
	errors   int
	warnings int

	finished bool
	stats    CompletionStats
}

func newIndexModel(workspace string) *indexModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return &indexModel{
		workspace: workspace,
		styles:    DefaultStyles(),
		spin:      s,
		bar:       progress.New(progress.WithDefaultGradient()),
	}
}

// Init implements tea.Model.
func (m *indexModel) Init() tea.Cmd {
	return m.spin.Tick
}

// Update implements tea.Model.
func (m *indexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case progressMsg:
		m.stage = msg.Stage
		m.current = msg.Current
		m.total = msg.Total
		if msg.Symbols > 0 {
			m.symbols = msg.Symbols
		}
		return m, nil
	case errorMsg:
		if msg.IsWarn {
			m.warnings++
		} else {
			m.errors++
		}
		return m, nil
	case completeMsg:
		m.finished = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *indexModel) View() string {
	if m.finished {
		return m.summaryView()
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Indexing " + m.workspace))
	b.WriteString("\n\n")

	b.WriteString(m.spin.View())
	b.WriteString(" ")
	b.WriteString(m.styles.Active.Render(m.stage.String()))
	if m.total > 0 {
		b.WriteString(fmt.Sprintf("  %d/%d", m.current, m.total))
		b.WriteString("\n")
		b.WriteString(m.bar.ViewAs(float64(m.current) / float64(m.total)))
	}
	b.WriteString("\n")

	if m.symbols > 0 {
		b.WriteString(m.styles.Label.Render(fmt.Sprintf("%d symbols", m.symbols)))
		b.WriteString("\n")
	}
	if m.errors > 0 || m.warnings > 0 {
		b.WriteString(m.styles.Warning.Render(fmt.Sprintf("%d errors, %d warnings", m.errors, m.warnings)))
		b.WriteString("\n")
	}
	return m.styles.Panel.Render(b.String())
}

func (m *indexModel) summaryView() string {
	line := fmt.Sprintf("Indexed %d files, %d symbols in %s",
		m.stats.Files, m.stats.Symbols, m.stats.Duration.Round(10*time.Millisecond))
	out := m.styles.Success.Render(line)
	if m.stats.Errors > 0 || m.stats.Warnings > 0 {
		out += m.styles.Warning.Render(fmt.Sprintf("  (%d errors, %d warnings)", m.stats.Errors, m.stats.Warnings))
	}
	return out + "\n"
}
