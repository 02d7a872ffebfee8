package utils

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PatternMatcher decides whether a path passes the include and exclude
// filters. A pattern is tried both as a doublestar glob and as a regular
// expression. Globs containing a separator or "**" match the whole
// slash-separated path; other globs match the base name.
type PatternMatcher struct {
	includeGlobs []string
	includeRegex []*regexp.Regexp
	excludeGlobs []string
	excludeRegex []*regexp.Regexp
}

func NewPatternMatcher(includePatterns, excludePatterns []string) *PatternMatcher {
	return &PatternMatcher{
		includeGlobs: validGlobs(includePatterns),
		includeRegex: compileRegex(includePatterns),
		excludeGlobs: validGlobs(excludePatterns),
		excludeRegex: compileRegex(excludePatterns),
	}
}

func (m *PatternMatcher) ShouldInclude(path string) bool {
	if m == nil {
		return true
	}
	if (len(m.includeGlobs) > 0 || len(m.includeRegex) > 0) && !m.matches(path, m.includeGlobs, m.includeRegex) {
		return false
	}
	if (len(m.excludeGlobs) > 0 || len(m.excludeRegex) > 0) && m.matches(path, m.excludeGlobs, m.excludeRegex) {
		return false
	}
	return true
}

func (m *PatternMatcher) matches(path string, globs []string, regexes []*regexp.Regexp) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range globs {
		target := base
		if strings.Contains(pattern, "/") || strings.Contains(pattern, "**") {
			target = slashed
		}
		if doublestar.MatchUnvalidated(pattern, target) {
			return true
		}
	}
	for _, re := range regexes {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func validGlobs(patterns []string) []string {
	globs := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if doublestar.ValidatePattern(pattern) {
			globs = append(globs, pattern)
		}
	}
	return globs
}

func compileRegex(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		if re, err := regexp.Compile(pattern); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}
