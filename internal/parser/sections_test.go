package parser

import "testing"

func TestSplitSections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Section
	}{
		{
			name:    "no headings",
			content: "just some plain text\nwith multiple lines",
			want:    nil,
		},
		{
			name:    "single section treated as unstructured",
			content: "## Overview\nsome content",
			want:    nil,
		},
		{
			name:    "preamble discarded",
			content: "intro text before any heading\n\n## First\nalpha\n\n## Second\nbeta",
			want: []Section{
				{Title: "First", Content: "alpha"},
				{Title: "Second", Content: "beta"},
			},
		},
		{
			name:    "level 1 and 3 headings ignored",
			content: "# Title\n\n## Design\n### Detail\nnested body\n\n## Notes\nclosing",
			want: []Section{
				{Title: "Design", Content: "### Detail\nnested body"},
				{Title: "Notes", Content: "closing"},
			},
		},
		{
			name:    "empty trailing section kept",
			content: "## A\nbody\n## B\n",
			want: []Section{
				{Title: "A", Content: "body"},
				{Title: "B", Content: ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSections(tt.content)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sections, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Title != tt.want[i].Title {
					t.Errorf("section %d title = %q, want %q", i, got[i].Title, tt.want[i].Title)
				}
				if got[i].Content != tt.want[i].Content {
					t.Errorf("section %d content = %q, want %q", i, got[i].Content, tt.want[i].Content)
				}
			}
		})
	}
}

func TestSplitSectionsIdempotent(t *testing.T) {
	content := "preamble\n\n## One\nfirst body\n\n## Two\nsecond body\n"
	first := SplitSections(content)
	second := SplitSections(content)

	if len(first) != len(second) {
		t.Fatalf("repeated sectionizing differed: %d vs %d sections", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("section %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
