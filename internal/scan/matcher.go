package scan

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is the file extension accepted when nothing else is configured.
const DefaultExtension = ".dcm"

// Matcher decides whether a file is a candidate for extraction.
type Matcher interface {
	Match(path string) bool
}

// MatcherFunc adapts a plain function to Matcher.
type MatcherFunc func(path string) bool

func (f MatcherFunc) Match(path string) bool { return f(path) }

// ExtensionMatcher accepts files whose extension equals one of Extensions,
// ignoring case. An empty list means DefaultExtension.
type ExtensionMatcher struct {
	Extensions []string
}

// NewExtensionMatcher normalizes exts so that "dcm" and ".DCM" both work.
func NewExtensionMatcher(exts ...string) ExtensionMatcher {
	m := ExtensionMatcher{}
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m.Extensions = append(m.Extensions, e)
	}
	return m
}

func (m ExtensionMatcher) Match(path string) bool {
	ext := filepath.Ext(path)
	if len(m.Extensions) == 0 {
		return strings.EqualFold(ext, DefaultExtension)
	}
	for _, e := range m.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// GlobMatcher accepts files whose base name matches one of Patterns
// (filepath.Match syntax, e.g. "IM*"). Malformed patterns never match.
type GlobMatcher struct {
	Patterns []string
}

func (m GlobMatcher) Match(path string) bool {
	base := filepath.Base(path)
	for _, p := range m.Patterns {
		if ok, err := filepath.Match(p, base); err == nil && ok {
			return true
		}
	}
	return false
}

// dicmOffset is where the "DICM" magic sits after the Part 10 preamble.
const dicmOffset = 128

var dicmMagic = []byte("DICM")

// PreambleMatcher accepts files carrying the DICOM Part 10 preamble and magic,
// whatever their name.
type PreambleMatcher struct{}

func (PreambleMatcher) Match(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, dicmOffset+len(dicmMagic))
	if _, err := io.ReadFull(f, buf); err != nil {
		return false
	}
	return bytes.Equal(buf[dicmOffset:], dicmMagic)
}

// AnyMatcher accepts a file when at least one of its matchers does.
type AnyMatcher []Matcher

func (m AnyMatcher) Match(path string) bool {
	for _, mm := range m {
		if mm.Match(path) {
			return true
		}
	}
	return false
}
