package browser

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// FolderScreen asks for the folder to organize.
type FolderScreen struct {
	form      *huh.Form
	path      string
	done      bool
	cancelled bool
}

// NewFolderScreen creates the prompt, prefilled with initial.
func NewFolderScreen(initial string) *FolderScreen {
	s := &FolderScreen{path: initial}
	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("source_folder").
				Title("Source Folder").
				Description("Folder to scan for DICOM files. Press Enter to organize.").
				Value(&s.path).
				Validate(validateFolder),
		),
	).WithShowHelp(false)
	return s
}

func validateFolder(p string) error {
	p = strings.TrimSpace(p)
	if p == "" {
		return fmt.Errorf("folder is required")
	}
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("cannot open folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a folder", p)
	}
	return nil
}

// Init implements tea.Model
func (s *FolderScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *FolderScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			s.cancelled = true
			return s, tea.Quit
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}
	if s.form.State == huh.StateCompleted {
		s.done = true
	}
	return s, cmd
}

// View implements tea.Model
func (s *FolderScreen) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("dicomfolder"),
		s.form.View(),
		"",
		hintStyle.Render("Enter: Organize | Esc: Quit"),
	)
}

// Path returns the chosen folder.
func (s *FolderScreen) Path() string { return strings.TrimSpace(s.path) }

// Done returns true once a valid folder was submitted.
func (s *FolderScreen) Done() bool { return s.done }

// Cancelled returns true if the user left the prompt.
func (s *FolderScreen) Cancelled() bool { return s.cancelled }
