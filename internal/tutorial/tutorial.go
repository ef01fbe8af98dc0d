// Package tutorial serves the markdown lessons: a catalog of entries and a
// parser that splits a lesson into sections with their python code blocks.
package tutorial

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotFound is returned for a key that is not in the catalog.
var ErrNotFound = errors.New("tutorial not found")

// Tutorial is a parsed lesson.
type Tutorial struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Section is the text under one "## " heading, heading line included.
type Section struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	CodeBlocks []string `json:"code_blocks"`
}

// Provider resolves catalog keys to lesson files under a notes directory.
type Provider struct {
	notesDir string
	entries  []Entry
}

// NewProvider creates a Provider. A nil catalog uses DefaultCatalog.
func NewProvider(notesDir string, catalog []Entry) *Provider {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Provider{notesDir: notesDir, entries: catalog}
}

// List returns the catalog in display order.
func (p *Provider) List() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Lookup returns the catalog entry for key.
func (p *Provider) Lookup(key string) (Entry, error) {
	for _, e := range p.entries {
		if e.Key == key {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Tutorial reads and parses the lesson for key.
func (p *Provider) Tutorial(key string) (*Tutorial, error) {
	entry, err := p.Lookup(key)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(p.notesDir, entry.File)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("Markdown file '%s' not found", path)
		}
		return nil, fmt.Errorf("Error reading tutorial content: %w", err)
	}
	return Parse(string(data)), nil
}

// Parse splits markdown into its title and sections.
func Parse(md string) *Tutorial {
	md = strings.ReplaceAll(md, "\r\n", "\n")

	first, _, _ := strings.Cut(md, "\n")
	return &Tutorial{
		Title:    strings.TrimSpace(strings.TrimLeft(first, "#")),
		Sections: ExtractSections(md),
	}
}

// ExtractSections splits md at lines starting with "## ". Text before the
// first heading and sections whose heading is empty are dropped.
func ExtractSections(md string) []Section {
	sections := []Section{}
	var cur *Section

	flush := func() {
		if cur != nil && cur.Title != "" {
			cur.CodeBlocks = ExtractCodeBlocks(cur.Content)
			sections = append(sections, *cur)
		}
	}

	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			cur = &Section{Title: line[3:], Content: line + "\n"}
			continue
		}
		if cur != nil {
			cur.Content += line + "\n"
		}
	}
	flush()
	return sections
}

var codeBlockRe = regexp.MustCompile("(?s)```python\n(.+?)\n```")

// ExtractCodeBlocks returns the bodies of ```python fences in source order.
func ExtractCodeBlocks(md string) []string {
	blocks := []string{}
	for _, m := range codeBlockRe.FindAllStringSubmatch(md, -1) {
		blocks = append(blocks, m[1])
	}
	return blocks
}
