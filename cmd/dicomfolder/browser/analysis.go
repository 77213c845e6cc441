package browser

import (
	"fmt"
	"iter"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mrsinham/dicomfolder/internal/analysis"
	"github.com/mrsinham/dicomfolder/internal/hierarchy"
)

// stepInterval paces the placeholder analysis so its progress is visible.
var stepInterval = 80 * time.Millisecond

// analysisTickMsg asks the analysis screen to pull the next progress value.
type analysisTickMsg struct {
	id int
}

// AnalysisScreen pulls progress from an analysis run and then lists the
// files of the series.
type AnalysisScreen struct {
	id     int
	series *hierarchy.Series

	next func() (analysis.Progress, bool)
	stop func()

	current  analysis.Progress
	finished bool
	back     bool
	quit     bool
	width    int
}

// NewAnalysisScreen starts a run over series. id tags the ticks of this run so
// that a stale tick from a previous run is ignored.
func NewAnalysisScreen(id int, series *hierarchy.Series) *AnalysisScreen {
	next, stop := iter.Pull(analysis.Run(series, 0))
	return &AnalysisScreen{
		id:     id,
		series: series,
		next:   next,
		stop:   stop,
	}
}

func (s *AnalysisScreen) tick() tea.Cmd {
	id := s.id
	return tea.Tick(stepInterval, func(time.Time) tea.Msg { return analysisTickMsg{id: id} })
}

// Init implements tea.Model
func (s *AnalysisScreen) Init() tea.Cmd {
	return s.tick()
}

// Update implements tea.Model
func (s *AnalysisScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
	case analysisTickMsg:
		if msg.id != s.id || s.finished {
			return s, nil
		}
		p, ok := s.next()
		if !ok {
			s.finish()
			return s, nil
		}
		s.current = p
		if p.Done() {
			s.finish()
			return s, nil
		}
		return s, s.tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			s.Close()
			s.quit = true
			return s, tea.Quit
		case "esc", "enter":
			s.Close()
			s.back = true
		}
	}
	return s, nil
}

func (s *AnalysisScreen) finish() {
	s.finished = true
	s.Close()
}

// Close stops the underlying run. It is safe to call more than once.
func (s *AnalysisScreen) Close() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

// Finished reports whether the run went through every step.
func (s *AnalysisScreen) Finished() bool { return s.finished }

// Back reports whether the user asked to return to the tree.
func (s *AnalysisScreen) Back() bool { return s.back }

// Quit reports whether the user asked to leave.
func (s *AnalysisScreen) Quit() bool { return s.quit }

// View implements tea.Model
func (s *AnalysisScreen) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf(runSeriesFormat, s.series.Key(), s.series.InstanceCount())))
	sb.WriteString("\n")

	if !s.finished {
		barWidth := 40
		if s.width > 60 {
			barWidth = min(s.width/2, 60)
		}
		percent := s.current.Percent()
		if s.current.Total == 0 {
			percent = 0
		}
		sb.WriteString(renderProgressBar(percent, barWidth))
		sb.WriteString(" ")
		sb.WriteString(progressPercentStyle.Render(fmt.Sprintf("%d%%", int(percent*100))))
		sb.WriteString("\n\n")
		if s.current.Instance != nil {
			sb.WriteString(pathStyle.Render(fmt.Sprintf("Instance %d/%d: %s",
				s.current.Step, s.current.Total, s.current.Instance.FilePath)))
			sb.WriteString("\n\n")
		}
		sb.WriteString(hintStyle.Render("Esc: back to tree • Ctrl+C: quit"))
		return sb.String()
	}

	sb.WriteString(successStyle.Render("✓ Analysis complete"))
	sb.WriteString("\n\n")
	for _, p := range s.series.FilePaths() {
		sb.WriteString("  ")
		sb.WriteString(pathStyle.Render(p))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(hintStyle.Render("Enter: back to tree • q: quit"))
	return sb.String()
}

// renderProgressBar creates a visual progress bar for a ratio in [0, 1].
func renderProgressBar(ratio float64, width int) string {
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	empty := width - filled

	bar := progressBarStyle.Render("[" + strings.Repeat("█", filled))
	bar += progressBarEmptyStyle.Render(strings.Repeat("░", empty) + "]")
	return bar
}
