package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// Column is a single extracted column definition.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	ForeignKey bool
	Required   bool
	References string // "table.column" for foreign keys, empty otherwise
}

// Table is a single extracted table definition.
type Table struct {
	Name    string
	Columns []Column
}

// Relationship links a foreign-key column to the table it references.
type Relationship struct {
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// SchemaStats summarizes an extracted schema.
type SchemaStats struct {
	Tables        int `json:"tables"`
	Columns       int `json:"columns"`
	PrimaryKeys   int `json:"primary_keys"`
	ForeignKeys   int `json:"foreign_keys"`
	Relationships int `json:"relationships"`
}

var (
	createTableRegex = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?["` + "`" + `]?(\w+)["` + "`" + `]?\s*\((.*?)\)\s*;`)
	columnRegex      = regexp.MustCompile(`(?i)^["` + "`" + `]?(\w+)["` + "`" + `]?\s+(\w+(?:\(\d+(?:,\s*\d+)?\))?)(.*)$`)
	referencesRegex  = regexp.MustCompile(`(?i)REFERENCES\s+["` + "`" + `]?(\w+)["` + "`" + `]?\s*(?:\(\s*["` + "`" + `]?(\w+)["` + "`" + `]?\s*\))?`)
)

// table-level constraint keywords that are not column declarations
var constraintKeywords = []string{
	"primary key", "foreign key", "constraint", "unique (", "unique(",
	"check (", "check(", "index ", "key ",
}

// ExtractTables extracts table definitions from generated SQL text.
// Extraction is best-effort: unmatched constructs are skipped, never fatal.
func ExtractTables(content string) []Table {
	var tables []Table
	for _, match := range createTableRegex.FindAllStringSubmatch(content, -1) {
		table := Table{Name: strings.ToLower(match[1])}
		for _, line := range splitColumnLines(match[2]) {
			if col, ok := parseColumn(line); ok {
				table.Columns = append(table.Columns, col)
			}
		}
		tables = append(tables, table)
	}
	return tables
}

// splitColumnLines splits a table body on commas, respecting parentheses
// so types like DECIMAL(10, 2) stay intact.
func splitColumnLines(body string) []string {
	var lines []string
	var current strings.Builder
	depth := 0
	for _, r := range body {
		switch r {
		case '(':
			depth++
			current.WriteRune(r)
		case ')':
			depth--
			current.WriteRune(r)
		case ',':
			if depth == 0 {
				lines = append(lines, strings.TrimSpace(current.String()))
				current.Reset()
			} else {
				current.WriteRune(r)
			}
		default:
			current.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		lines = append(lines, s)
	}
	return lines
}

func parseColumn(line string) (Column, bool) {
	lower := strings.ToLower(line)
	for _, kw := range constraintKeywords {
		if strings.HasPrefix(lower, kw) {
			return Column{}, false
		}
	}

	match := columnRegex.FindStringSubmatch(line)
	if len(match) == 0 {
		return Column{}, false
	}

	col := Column{
		Name: strings.ToLower(match[1]),
		Type: strings.ToUpper(match[2]),
	}
	rest := strings.ToLower(match[3])

	col.PrimaryKey = strings.Contains(rest, "primary key")
	col.Required = col.PrimaryKey || strings.Contains(rest, "not null")

	if refMatch := referencesRegex.FindStringSubmatch(match[3]); len(refMatch) > 0 {
		col.ForeignKey = true
		refTable := strings.ToLower(refMatch[1])
		refColumn := "id"
		if refMatch[2] != "" {
			refColumn = strings.ToLower(refMatch[2])
		}
		col.References = refTable + "." + refColumn
	}

	return col, true
}

// Relationships derives the relationship listing from extracted tables.
// Pure function of its input.
func Relationships(tables []Table) []Relationship {
	var rels []Relationship
	for _, table := range tables {
		for _, col := range table.Columns {
			if !col.ForeignKey || col.References == "" {
				continue
			}
			toTable, toColumn, ok := strings.Cut(col.References, ".")
			if !ok {
				continue
			}
			rels = append(rels, Relationship{
				FromTable:  table.Name,
				FromColumn: col.Name,
				ToTable:    toTable,
				ToColumn:   toColumn,
			})
		}
	}
	return rels
}

// Stats computes aggregate statistics for an extracted schema.
// Pure function of its input.
func Stats(tables []Table) SchemaStats {
	stats := SchemaStats{Tables: len(tables)}
	for _, table := range tables {
		stats.Columns += len(table.Columns)
		for _, col := range table.Columns {
			if col.PrimaryKey {
				stats.PrimaryKeys++
			}
			if col.ForeignKey {
				stats.ForeignKeys++
			}
		}
	}
	stats.Relationships = len(Relationships(tables))
	return stats
}

// Diagram renders a plain-text entity-relationship summary of the schema.
// Pure function of its input.
func Diagram(tables []Table) string {
	if len(tables) == 0 {
		return ""
	}

	var b strings.Builder
	for i, table := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s]\n", table.Name)
		for _, col := range table.Columns {
			var markers []string
			if col.PrimaryKey {
				markers = append(markers, "PK")
			}
			if col.ForeignKey {
				markers = append(markers, "FK")
			}
			if col.Required && !col.PrimaryKey {
				markers = append(markers, "NOT NULL")
			}
			fmt.Fprintf(&b, "  %s %s", col.Name, col.Type)
			if len(markers) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(markers, ", "))
			}
			b.WriteString("\n")
		}
	}

	rels := Relationships(tables)
	if len(rels) > 0 {
		b.WriteString("\n")
		for _, rel := range rels {
			fmt.Fprintf(&b, "%s.%s -> %s.%s\n", rel.FromTable, rel.FromColumn, rel.ToTable, rel.ToColumn)
		}
	}

	return b.String()
}
