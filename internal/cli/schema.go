package cli

import (
	"fmt"

	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/dbcoach/dbcoach-go/internal/parser"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <session-id>",
	Short: "Show the schema extracted from a session",
	Long: `Schema extracts table definitions from a session's design output and
prints an entity-relationship summary with aggregate statistics.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	data := store.GetSessionData(cmd.Context(), args[0])
	if data == nil {
		return fmt.Errorf("session %s not found", args[0])
	}

	var schemaText string
	for _, chunk := range data.Chunks {
		if chunk.Kind == models.ContentSchema {
			schemaText += chunk.Content
		}
	}
	if schemaText == "" {
		for _, task := range data.Session.Tasks {
			schemaText += task.Content
		}
	}

	tables := parser.ExtractTables(schemaText)
	if len(tables) == 0 {
		fmt.Println("No table definitions found in this session.")
		return nil
	}

	fmt.Println(parser.Diagram(tables))

	stats := parser.Stats(tables)
	fmt.Printf("%d tables, %d columns, %d primary keys, %d foreign keys, %d relationships\n",
		stats.Tables, stats.Columns, stats.PrimaryKeys, stats.ForeignKeys, stats.Relationships)
	return nil
}
