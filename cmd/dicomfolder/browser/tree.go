package browser

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mrsinham/dicomfolder/internal/hierarchy"
	"github.com/mrsinham/dicomfolder/internal/scan"
)

// Status messages shown when the user asks to run.
const (
	noSeriesSelected = "please choose a series to run!"
	runSeriesFormat  = "run series %s of total %d instances"
)

type row struct {
	node  hierarchy.Node
	depth int
}

// TreeScreen shows the scanned hierarchy as an expandable tree.
type TreeScreen struct {
	root       string
	collection *hierarchy.Collection
	report     *scan.Report

	expanded map[any]bool
	rows     []row
	cursor   int
	offset   int

	status          string
	showDiagnostics bool

	// run is set when the user started a run on a series.
	run *hierarchy.Series
	// reopen is set when the user asked for another folder.
	reopen bool
	quit   bool

	width  int
	height int
}

// NewTreeScreen creates a tree with every patient and study expanded.
func NewTreeScreen(root string, c *hierarchy.Collection, report *scan.Report) *TreeScreen {
	s := &TreeScreen{
		root:       root,
		collection: c,
		report:     report,
		expanded:   make(map[any]bool),
	}
	for _, p := range c.Patients() {
		s.expanded[p] = true
		for _, st := range p.Studies() {
			s.expanded[st] = true
		}
	}
	s.refresh()
	return s
}

// Init implements tea.Model
func (s *TreeScreen) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (s *TreeScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.clampOffset()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			s.quit = true
			return s, tea.Quit
		case "up", "k":
			s.move(-1)
		case "down", "j":
			s.move(1)
		case "home", "g":
			s.move(-len(s.rows))
		case "end", "G":
			s.move(len(s.rows))
		case "right", "l", "enter", " ":
			s.setExpanded(true)
		case "left", "h":
			s.collapseOrParent()
		case "r":
			s.runSelected()
		case "d":
			s.showDiagnostics = !s.showDiagnostics
		case "o":
			s.reopen = true
		}
	}
	return s, nil
}

// Selected returns the node under the cursor.
func (s *TreeScreen) Selected() (hierarchy.Node, bool) {
	if len(s.rows) == 0 {
		return hierarchy.Node{}, false
	}
	return s.rows[s.cursor].node, true
}

// Status returns the last status line.
func (s *TreeScreen) Status() string { return s.status }

// TakeRun returns the series the user asked to run, once.
func (s *TreeScreen) TakeRun() (*hierarchy.Series, bool) {
	se := s.run
	s.run = nil
	return se, se != nil
}

// Reopen reports whether the user asked to open another folder.
func (s *TreeScreen) Reopen() bool { return s.reopen }

// Quit reports whether the user asked to leave.
func (s *TreeScreen) Quit() bool { return s.quit }

func (s *TreeScreen) runSelected() {
	n, ok := s.Selected()
	if !ok || n.Level != hierarchy.LevelSeries {
		s.status = noSeriesSelected
		return
	}
	s.status = fmt.Sprintf(runSeriesFormat, n.Series.Key(), n.Series.InstanceCount())
	s.run = n.Series
}

func (s *TreeScreen) move(delta int) {
	s.cursor += delta
	if s.cursor < 0 {
		s.cursor = 0
	}
	if s.cursor >= len(s.rows) {
		s.cursor = len(s.rows) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
	s.clampOffset()
}

func (s *TreeScreen) setExpanded(open bool) {
	n, ok := s.Selected()
	if !ok {
		return
	}
	if ptr := nodePtr(n); ptr != nil {
		s.expanded[ptr] = open
		s.refresh()
	}
}

func (s *TreeScreen) collapseOrParent() {
	n, ok := s.Selected()
	if !ok {
		return
	}
	if ptr := nodePtr(n); ptr != nil && s.expanded[ptr] {
		s.expanded[ptr] = false
		s.refresh()
		return
	}
	depth := s.rows[s.cursor].depth
	for i := s.cursor - 1; i >= 0; i-- {
		if s.rows[i].depth < depth {
			s.cursor = i
			s.clampOffset()
			return
		}
	}
}

// nodePtr returns the pointer identifying an expandable node, nil for instances.
func nodePtr(n hierarchy.Node) any {
	switch n.Level {
	case hierarchy.LevelPatient:
		return n.Patient
	case hierarchy.LevelStudy:
		return n.Study
	case hierarchy.LevelSeries:
		return n.Series
	}
	return nil
}

func (s *TreeScreen) refresh() {
	var selected any
	if n, ok := s.Selected(); ok {
		selected = selectedKey(n)
	}

	s.rows = s.rows[:0]
	s.collection.Walk(func(n hierarchy.Node) bool {
		s.rows = append(s.rows, row{node: n, depth: int(n.Level)})
		ptr := nodePtr(n)
		return ptr != nil && s.expanded[ptr]
	})

	s.cursor = 0
	for i, r := range s.rows {
		if selected != nil && selectedKey(r.node) == selected {
			s.cursor = i
			break
		}
	}
	s.clampOffset()
}

func selectedKey(n hierarchy.Node) any {
	if ptr := nodePtr(n); ptr != nil {
		return ptr
	}
	return n.Instance
}

// visibleRows is the number of tree lines that fit on screen.
func (s *TreeScreen) visibleRows() int {
	if s.height <= 0 {
		return len(s.rows)
	}
	// title, subtitle, status and hints take about 8 lines
	n := s.height - 8
	if s.showDiagnostics {
		n -= 8
	}
	if n < 3 {
		n = 3
	}
	return n
}

func (s *TreeScreen) clampOffset() {
	visible := s.visibleRows()
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+visible {
		s.offset = s.cursor - visible + 1
	}
	if s.offset < 0 {
		s.offset = 0
	}
}

// View implements tea.Model
func (s *TreeScreen) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("dicomfolder"))
	sb.WriteString("\n")
	stats := s.collection.Stats()
	sb.WriteString(subtitleStyle.Render(fmt.Sprintf("%s: %d patients, %d studies, %d series, %d instances",
		s.root, stats.Patients, stats.Studies, stats.Series, stats.Instances)))
	sb.WriteString("\n")

	if len(s.rows) == 0 {
		sb.WriteString(hintStyle.Render("No DICOM files found."))
		sb.WriteString("\n")
	}

	end := min(s.offset+s.visibleRows(), len(s.rows))
	for i := s.offset; i < end; i++ {
		line := s.renderRow(s.rows[i])
		if i == s.cursor {
			line = cursorStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if s.status != "" {
		sb.WriteString(statusStyle.Render(s.status))
		sb.WriteString("\n")
	}
	if s.report != nil && s.report.Skipped() > 0 {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("%d files skipped (d to show)", s.report.Skipped())))
		sb.WriteString("\n")
		if s.showDiagnostics {
			sb.WriteString(s.renderDiagnostics())
			sb.WriteString("\n")
		}
	}
	sb.WriteString(hintStyle.Render("↑/↓ move • →/← expand/collapse • r run • o open folder • q quit"))
	return sb.String()
}

func (s *TreeScreen) renderRow(r row) string {
	n := r.node
	indent := strings.Repeat("  ", r.depth)
	marker := "  "
	if ptr := nodePtr(n); ptr != nil {
		if s.expanded[ptr] {
			marker = "▾ "
		} else {
			marker = "▸ "
		}
	}
	level := levelStyles[n.Level.String()].Render(n.Level.String())
	return indent + marker + level + " " + describe(n)
}

// describe renders the key and the present attributes of a node.
func describe(n hierarchy.Node) string {
	parts := []string{n.Key()}
	switch n.Level {
	case hierarchy.LevelPatient:
		parts = appendNonEmpty(parts, n.Patient.PatientName)
	case hierarchy.LevelStudy:
		parts = appendNonEmpty(parts, n.Study.StudyDate, n.Study.StudyDescription)
	case hierarchy.LevelSeries:
		if n.Series.SeriesNumber != nil {
			parts = append(parts, fmt.Sprintf("#%d", *n.Series.SeriesNumber))
		}
		parts = appendNonEmpty(parts, n.Series.Modality, n.Series.SeriesDescription)
		parts = append(parts, fmt.Sprintf("(%d)", n.Series.InstanceCount()))
	case hierarchy.LevelInstance:
		if n.Instance.InstanceNumber != nil {
			parts = append(parts, fmt.Sprintf("#%d", *n.Instance.InstanceNumber))
		}
		parts = append(parts, pathStyle.Render(n.Instance.FilePath))
	}
	return strings.Join(parts, "  ")
}

func appendNonEmpty(parts []string, values ...string) []string {
	for _, v := range values {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return parts
}

func (s *TreeScreen) renderDiagnostics() string {
	const maxShown = 6
	var lines []string
	for i, d := range s.report.Diagnostics {
		if i == maxShown {
			lines = append(lines, fmt.Sprintf("… and %d more", len(s.report.Diagnostics)-maxShown))
			break
		}
		lines = append(lines, d.String())
	}
	style := diagnosticsPanelStyle
	if s.width > 4 {
		style = style.Width(s.width - 4)
	}
	return style.Render(strings.Join(lines, "\n"))
}
