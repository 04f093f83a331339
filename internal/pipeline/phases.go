package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/dbcoach/dbcoach-go/internal/models"
	"gopkg.in/yaml.v3"
)

// Phase defines one step of the generation workflow. The user template may
// reference {prompt}, {flavor} and {previous}; {previous} expands to the full
// text output of the immediately preceding phase (empty for the first).
type Phase struct {
	Title        string             `yaml:"title"`
	Agent        string             `yaml:"agent"`
	SystemPrompt string             `yaml:"system_prompt"`
	UserTemplate string             `yaml:"user_template"`
	ContentKind  models.ContentKind `yaml:"content_kind"`
	FallbackText string             `yaml:"fallback_text"`
}

// BuildRequest constructs the phase's user prompt from the run inputs.
func (p Phase) BuildRequest(prompt string, flavor models.SchemaFlavor, previous string) string {
	return strings.NewReplacer(
		"{prompt}", prompt,
		"{flavor}", string(flavor),
		"{previous}", previous,
	).Replace(p.UserTemplate)
}

// Fallback returns the deterministic substitute content used when the phase
// cannot produce real output.
func (p Phase) Fallback(prompt string, flavor models.SchemaFlavor) string {
	if p.FallbackText != "" {
		return p.FallbackText
	}
	return fmt.Sprintf("## %s\n\nGeneration for this phase was unavailable. "+
		"A %s design for the request %q should be revisited manually.",
		p.Title, flavor, prompt)
}

// DefaultPhases returns the standard four-phase generation workflow.
func DefaultPhases() []Phase {
	return []Phase{
		{
			Title:       "Requirements Analysis",
			Agent:       "Requirements Analyst",
			ContentKind: models.ContentText,
			SystemPrompt: "You are a senior database requirements analyst. " +
				"Identify entities, attributes, relationships, and access patterns from the user's request. " +
				"Structure your answer with level-2 Markdown headings.",
			UserTemplate: "Analyze the database requirements for this request (target: {flavor}):\n\n{prompt}",
			FallbackText: "## Requirements Analysis\n\nThe request could not be analyzed automatically. " +
				"Key entities and relationships should be identified manually before proceeding.",
		},
		{
			Title:       "Schema Design",
			Agent:       "Schema Architect",
			ContentKind: models.ContentSchema,
			SystemPrompt: "You are a database schema architect. Produce a complete schema design " +
				"with CREATE TABLE statements, sensible types, primary keys, foreign keys, and NOT NULL constraints. " +
				"Structure your answer with level-2 Markdown headings.",
			UserTemplate: "Design a {flavor} database schema for:\n\n{prompt}\n\nRequirements analysis:\n{previous}",
			FallbackText: "## Schema Design\n\n-- Schema generation was unavailable.\n" +
				"-- Define tables for the core entities and link them with foreign keys.",
		},
		{
			Title:       "Implementation Package",
			Agent:       "Implementation Specialist",
			ContentKind: models.ContentCode,
			SystemPrompt: "You are a database implementation specialist. Produce migration scripts, " +
				"indexes, and sample seed data for the given schema. " +
				"Structure your answer with level-2 Markdown headings.",
			UserTemplate: "Write the implementation package (migrations, indexes, seed data) for:\n\n{prompt}\n\nSchema design:\n{previous}",
			FallbackText: "## Implementation Package\n\n-- Implementation generation was unavailable.\n" +
				"-- Derive migrations directly from the schema design phase.",
		},
		{
			Title:       "Quality Validation",
			Agent:       "Quality Assurance",
			ContentKind: models.ContentText,
			SystemPrompt: "You are a database quality engineer. Review the design for normalization issues, " +
				"missing indexes, and performance risks, and list concrete recommendations. " +
				"Structure your answer with level-2 Markdown headings.",
			UserTemplate: "Validate this database design for:\n\n{prompt}\n\nImplementation:\n{previous}",
			FallbackText: "## Quality Validation\n\nAutomated validation was unavailable. " +
				"Review normalization, index coverage, and constraint completeness manually.",
		},
	}
}

// LoadPhases reads a phase catalog from a YAML file. An empty path returns
// the default catalog.
func LoadPhases(path string) ([]Phase, error) {
	if path == "" {
		return DefaultPhases(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phases file: %w", err)
	}

	var catalog struct {
		Phases []Phase `yaml:"phases"`
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse phases file: %w", err)
	}
	if len(catalog.Phases) == 0 {
		return nil, fmt.Errorf("phases file %s defines no phases", path)
	}

	for i := range catalog.Phases {
		p := &catalog.Phases[i]
		if p.Title == "" || p.Agent == "" || p.UserTemplate == "" {
			return nil, fmt.Errorf("phase %d is missing title, agent, or user_template", i)
		}
		if p.ContentKind == "" {
			p.ContentKind = models.ContentText
		}
	}

	return catalog.Phases, nil
}
