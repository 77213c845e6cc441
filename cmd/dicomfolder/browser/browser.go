// Package browser is the interactive terminal front end: it asks for a folder,
// scans it and lets the user walk the hierarchy and run a series.
package browser

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mrsinham/dicomfolder/internal/hierarchy"
	"github.com/mrsinham/dicomfolder/internal/scan"
)

// BuildFunc scans root. It is called from a bubbletea command.
type BuildFunc func(root string) (*hierarchy.Collection, *scan.Report, error)

// Phase represents the current screen of the browser.
type Phase int

const (
	PhaseFolder Phase = iota
	PhaseScanning
	PhaseTree
	PhaseAnalysis
	PhaseError
)

// scanDoneMsg carries the result of a scan.
type scanDoneMsg struct {
	root       string
	collection *hierarchy.Collection
	report     *scan.Report
}

// scanErrMsg carries a fatal scan error.
type scanErrMsg struct {
	root string
	err  error
}

// Browser is the main orchestrator of the terminal UI.
type Browser struct {
	build BuildFunc
	root  string
	phase Phase

	folderScreen   *FolderScreen
	treeScreen     *TreeScreen
	analysisScreen *AnalysisScreen
	runs           int

	err    error
	width  int
	height int
}

// New creates a browser. With an empty root it starts on the folder prompt.
func New(root string, build BuildFunc) *Browser {
	b := &Browser{build: build, root: root}
	if root == "" {
		b.phase = PhaseFolder
		b.folderScreen = NewFolderScreen("")
	} else {
		b.phase = PhaseScanning
	}
	return b
}

// Phase returns the current screen.
func (b *Browser) Phase() Phase { return b.phase }

// Init implements tea.Model.
func (b *Browser) Init() tea.Cmd {
	if b.phase == PhaseFolder {
		return b.folderScreen.Init()
	}
	return b.scan(b.root)
}

func (b *Browser) scan(root string) tea.Cmd {
	build := b.build
	return func() tea.Msg {
		c, report, err := build(root)
		if err != nil {
			return scanErrMsg{root: root, err: err}
		}
		return scanDoneMsg{root: root, collection: c, report: report}
	}
}

// Update implements tea.Model.
func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		b.width = wsm.Width
		b.height = wsm.Height
	}

	switch msg := msg.(type) {
	case scanDoneMsg:
		b.root = msg.root
		b.phase = PhaseTree
		b.treeScreen = NewTreeScreen(msg.root, msg.collection, msg.report)
		b.treeScreen.Update(tea.WindowSizeMsg{Width: b.width, Height: b.height})
		return b, nil
	case scanErrMsg:
		b.root = msg.root
		b.phase = PhaseError
		b.err = msg.err
		return b, nil
	}

	switch b.phase {
	case PhaseFolder:
		return b.updateFolder(msg)
	case PhaseScanning:
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
			return b, tea.Quit
		}
	case PhaseTree:
		return b.updateTree(msg)
	case PhaseAnalysis:
		return b.updateAnalysis(msg)
	case PhaseError:
		return b.updateError(msg)
	}
	return b, nil
}

func (b *Browser) updateFolder(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := b.folderScreen.Update(msg)
	if fs, ok := model.(*FolderScreen); ok {
		b.folderScreen = fs
	}
	if b.folderScreen.Cancelled() {
		return b, tea.Quit
	}
	if b.folderScreen.Done() {
		b.phase = PhaseScanning
		b.root = b.folderScreen.Path()
		return b, b.scan(b.root)
	}
	return b, cmd
}

func (b *Browser) updateTree(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := b.treeScreen.Update(msg)
	if ts, ok := model.(*TreeScreen); ok {
		b.treeScreen = ts
	}
	if b.treeScreen.Quit() {
		return b, tea.Quit
	}
	if b.treeScreen.Reopen() {
		b.phase = PhaseFolder
		b.folderScreen = NewFolderScreen(b.root)
		return b, b.folderScreen.Init()
	}
	if series, ok := b.treeScreen.TakeRun(); ok {
		b.runs++
		b.phase = PhaseAnalysis
		b.analysisScreen = NewAnalysisScreen(b.runs, series)
		b.analysisScreen.Update(tea.WindowSizeMsg{Width: b.width, Height: b.height})
		return b, b.analysisScreen.Init()
	}
	return b, cmd
}

func (b *Browser) updateAnalysis(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := b.analysisScreen.Update(msg)
	if as, ok := model.(*AnalysisScreen); ok {
		b.analysisScreen = as
	}
	if b.analysisScreen.Quit() {
		return b, tea.Quit
	}
	if b.analysisScreen.Back() {
		b.phase = PhaseTree
		b.analysisScreen = nil
		return b, nil
	}
	return b, cmd
}

func (b *Browser) updateError(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return b, nil
	}
	switch key.String() {
	case "ctrl+c", "q":
		return b, tea.Quit
	case "enter", "esc", "o":
		b.err = nil
		b.phase = PhaseFolder
		b.folderScreen = NewFolderScreen(b.root)
		return b, b.folderScreen.Init()
	}
	return b, nil
}

// View implements tea.Model.
func (b *Browser) View() string {
	switch b.phase {
	case PhaseFolder:
		return b.folderScreen.View()
	case PhaseScanning:
		return titleStyle.Render("dicomfolder") + "\n" +
			subtitleStyle.Render(fmt.Sprintf("Scanning %s...", b.root)) + "\n" +
			hintStyle.Render("Press Ctrl+C to cancel")
	case PhaseTree:
		return b.treeScreen.View()
	case PhaseAnalysis:
		return b.analysisScreen.View()
	case PhaseError:
		return b.viewError()
	}
	return ""
}

func (b *Browser) viewError() string {
	var sb strings.Builder
	sb.WriteString(errorTitleStyle.Render("✗ Cannot organize folder"))
	sb.WriteString("\n\n")
	sb.WriteString("  ")
	sb.WriteString(errorMessageStyle.Render(b.err.Error()))
	sb.WriteString("\n\n")
	sb.WriteString(hintStyle.Render("Enter: choose another folder • q: quit"))
	return sb.String()
}

// Run starts the browser on root, or on the folder prompt when root is empty.
func Run(root string, build BuildFunc) error {
	p := tea.NewProgram(New(root, build), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("running browser: %w", err)
	}
	if b, ok := finalModel.(*Browser); ok && b.analysisScreen != nil {
		b.analysisScreen.Close()
	}
	return nil
}
