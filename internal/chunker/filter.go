package chunker

import (
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/domain/paper"
)

var metadataTitles = []string{
	"content", "header", "authors", "author", "affiliation", "email",
	"arxiv", "preprint", "submitted", "received", "accepted",
}

var metadataPatterns = []string{
	"@", "arxiv:", "university", "institute", "department", "college",
	"gmail.com", "edu", "ac.uk", "preprint",
}

const (
	minTitleLen           = 5
	shortTitleLen         = 20
	metadataContentWords  = 20
	minMetadataMatches    = 2
	abstractOverlapWords  = 10
	abstractOverlapCutoff = 0.8
)

// filterSections drops blank, metadata and abstract-duplicate sections and
// trims the content of the ones it keeps.
func (c *Chunker) filterSections(sections paper.Sections, abstract string) paper.Sections {
	abs := newAbstractMatcher(abstract)

	kept := make(paper.Sections, 0, len(sections))
	for _, s := range sections {
		content := strings.TrimSpace(s.Content)
		switch {
		case content == "":
			continue
		case isMetadataTitle(s.Title):
			c.logger.Debug("skipping metadata section", zap.String("section", s.Title))
			continue
		case abs.duplicates(content):
			c.logger.Debug("skipping duplicate abstract section", zap.String("section", s.Title))
			continue
		case wordCount(content) < metadataContentWords && isMetadataContent(content):
			c.logger.Debug("skipping metadata-only section", zap.String("section", s.Title))
			continue
		}
		kept = append(kept, paper.Section{Title: s.Title, Content: content})
	}
	return kept
}

func isMetadataTitle(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	if len([]rune(t)) < minTitleLen {
		return true
	}
	for _, ind := range metadataTitles {
		if t == ind {
			return true
		}
		if len([]rune(t)) < shortTitleLen && strings.Contains(t, ind) {
			return true
		}
	}
	return false
}

func isMetadataContent(content string) bool {
	lower := strings.ToLower(content)
	matches := 0
	for _, p := range metadataPatterns {
		if strings.Contains(lower, p) {
			matches++
		}
	}
	return matches >= minMetadataMatches
}

type abstractMatcher struct {
	text  string
	words map[string]struct{}
}

func newAbstractMatcher(abstract string) abstractMatcher {
	text := strings.ToLower(strings.TrimSpace(abstract))
	words := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		words[w] = struct{}{}
	}
	return abstractMatcher{text: text, words: words}
}

// duplicates reports whether content restates the abstract: substring
// containment either way, or for abstracts with more than ten distinct words
// an overlap above 80% of the abstract's word set.
func (m abstractMatcher) duplicates(content string) bool {
	// Intentional: without an abstract nothing is a duplicate. An empty
	// needle is contained in every section and would drop them all.
	if m.text == "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(content))
	if strings.Contains(lower, m.text) || strings.Contains(m.text, lower) {
		return true
	}
	if len(m.words) <= abstractOverlapWords {
		return false
	}

	seen := make(map[string]struct{}, len(m.words))
	for _, w := range strings.Fields(lower) {
		if _, ok := m.words[w]; ok {
			seen[w] = struct{}{}
		}
	}
	return float64(len(seen))/float64(len(m.words)) > abstractOverlapCutoff
}
