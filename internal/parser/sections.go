// Package parser provides content sectioning and SQL schema extraction
// for generated task output.
package parser

import (
	"bufio"
	"regexp"
	"strings"
)

// Section represents a level-2 heading and the content beneath it.
type Section struct {
	Title   string
	Content string
}

var sectionHeadingRegex = regexp.MustCompile(`^##\s+(.+)$`)

// SplitSections splits Markdown content on level-2 headings. Content before
// the first heading is discarded. Documents with fewer than two sections are
// treated as unstructured and return nil.
func SplitSections(content string) []Section {
	var sections []Section
	var current *Section
	var body strings.Builder

	flush := func() {
		if current != nil {
			current.Content = strings.TrimSpace(body.String())
			sections = append(sections, *current)
			body.Reset()
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if match := sectionHeadingRegex.FindStringSubmatch(line); len(match) > 1 {
			flush()
			current = &Section{Title: strings.TrimSpace(match[1])}
			continue
		}
		if current != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()

	if len(sections) < 2 {
		return nil
	}
	return sections
}
