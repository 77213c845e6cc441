// Package scan walks a folder and folds every DICOM file it finds into a
// patient/study/series/instance hierarchy.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mrsinham/dicomfolder/internal/dicom"
	"github.com/mrsinham/dicomfolder/internal/hierarchy"
	"github.com/rs/zerolog"
)

var (
	// ErrRootNotFound is returned when the folder to scan does not exist.
	ErrRootNotFound = errors.New("root folder not found")
	// ErrRootNotDir is returned when the folder to scan is a regular file.
	ErrRootNotDir = errors.New("root is not a directory")
)

// Extractor turns one candidate file into a record.
type Extractor interface {
	Extract(path string) (hierarchy.Record, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(path string) (hierarchy.Record, error)

func (f ExtractorFunc) Extract(path string) (hierarchy.Record, error) { return f(path) }

// Diagnostic is a file or directory skipped during a scan.
type Diagnostic struct {
	Path string
	Err  error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %v", d.Path, d.Err)
}

// Report summarizes one scan.
type Report struct {
	Root string
	// Visited counts regular files seen by the walk.
	Visited int
	// Candidates counts files accepted by the matcher.
	Candidates int
	// Folded counts records merged into the collection.
	Folded int
	// Duplicates counts instances whose key was already present in their series.
	Duplicates int
	// Conflicts counts the duplicates whose file content differs from the
	// instance already holding the key.
	Conflicts   int
	Diagnostics []Diagnostic
}

// Skipped returns the number of entries that could not be used.
func (r *Report) Skipped() int { return len(r.Diagnostics) }

// Option configures a Scanner.
type Option func(*Scanner)

// WithMatcher sets the candidate predicate.
func WithMatcher(m Matcher) Option {
	return func(s *Scanner) { s.matcher = m }
}

// WithExtractor sets the per-file record extractor.
func WithExtractor(x Extractor) Option {
	return func(s *Scanner) { s.extractor = x }
}

// WithLogger sets the logger used for per-file events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

// WithSkipHidden makes the walk ignore dot-files and not enter dot-directories.
func WithSkipHidden(skip bool) Option {
	return func(s *Scanner) { s.skipHidden = skip }
}

// WithMetrics records per-file outcomes and scan durations in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// Scanner builds hierarchies. The zero value is not usable; use New.
type Scanner struct {
	matcher       Matcher
	extractor     Extractor
	log           zerolog.Logger
	metrics    *Metrics
	skipHidden bool
}

// New returns a Scanner matching *.dcm files and reading them with the
// tolerant DICOM extractor unless options say otherwise.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		matcher:   ExtensionMatcher{},
		extractor: dicom.FileExtractor{},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildHierarchy is a shortcut for New(opts...).Build(root).
func BuildHierarchy(root string, opts ...Option) (*hierarchy.Collection, *Report, error) {
	return New(opts...).Build(root)
}

// Build walks root recursively and returns a fresh collection of every record
// extracted from a candidate file. Files that fail extraction are skipped and
// reported. An error is returned only when root itself cannot be walked.
func (s *Scanner) Build(root string) (*hierarchy.Collection, *Report, error) {
	start := time.Now()
	c, report, err := s.build(root)
	if err != nil {
		s.metrics.done(time.Since(start).Seconds(), "error", 0)
		return nil, nil, err
	}
	s.metrics.done(time.Since(start).Seconds(), "ok", c.Stats().Instances)
	return c, report, nil
}

func (s *Scanner) build(root string) (*hierarchy.Collection, *Report, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}

	// WalkDir does not follow a symlinked root
	walkRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve root: %w", err)
	}

	c := hierarchy.NewCollection()
	report := &Report{Root: root}

	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, walkErr error) error {
		isRoot := path == walkRoot
		if walkRoot != root {
			rel, err := filepath.Rel(walkRoot, path)
			if err != nil {
				return err
			}
			path = filepath.Join(root, rel)
		}
		if walkErr != nil {
			if isRoot {
				return fmt.Errorf("read root directory: %w", walkErr)
			}
			s.skip(report, path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !isRoot && s.skipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		report.Visited++
		if !s.matcher.Match(path) {
			s.metrics.file(outcomeIgnored)
			return nil
		}
		report.Candidates++

		rec, err := s.extractor.Extract(path)
		if err != nil {
			s.skip(report, path, err)
			return nil
		}
		res, err := Fold(c, rec)
		if err != nil {
			s.skip(report, path, fmt.Errorf("fold record: %w", err))
			return nil
		}

		report.Folded++
		s.metrics.created(res.Created)
		if res.Duplicate {
			s.duplicate(report, path, res.Existing)
		} else {
			s.metrics.file(outcomeFolded)
		}
		s.log.Debug().
			Str("path", path).
			Str("created", res.Created.String()).
			Bool("duplicate", res.Duplicate).
			Msg("folded file")
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	stats := c.Stats()
	s.log.Info().
		Str("root", root).
		Int("candidates", report.Candidates).
		Int("skipped", report.Skipped()).
		Int("patients", stats.Patients).
		Int("studies", stats.Studies).
		Int("series", stats.Series).
		Int("instances", stats.Instances).
		Msg("scan complete")

	return c, report, nil
}

// duplicate records a file whose instance key was already in its series.
// Both instances stay in the hierarchy.
func (s *Scanner) duplicate(report *Report, path string, existing *hierarchy.Instance) {
	report.Duplicates++
	same, err := sameContent(existing.FilePath, path)
	if err != nil {
		s.log.Debug().Err(err).Str("path", path).Msg("cannot compare duplicate instance")
	}
	if err != nil || same {
		s.metrics.file(outcomeDuplicate)
		s.log.Debug().
			Str("path", path).
			Str("first", existing.FilePath).
			Msg("duplicate instance")
		return
	}
	report.Conflicts++
	s.metrics.file(outcomeConflict)
	s.log.Warn().
		Str("path", path).
		Str("first", existing.FilePath).
		Str("sop_instance_uid", existing.SOPInstanceUID).
		Msg("conflicting duplicate instance")
}

func (s *Scanner) skip(report *Report, path string, err error) {
	s.metrics.file(outcomeSkipped)
	report.Diagnostics = append(report.Diagnostics, Diagnostic{Path: path, Err: err})
	s.log.Warn().Str("path", path).Str("reason", err.Error()).Msg("skipping entry")
}
