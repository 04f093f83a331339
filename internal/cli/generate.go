package cli

import (
	"fmt"
	"strings"

	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/dbcoach/dbcoach-go/internal/pipeline"
	"github.com/spf13/cobra"
)

var generateFlavor string

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate a database design from a prompt",
	Long: `Generate runs the full multi-phase design workflow for a prompt and
streams each phase's output to the terminal as it is produced.

Examples:
  dbcoach generate "blog with posts and comments"
  dbcoach generate --flavor nosql "IoT sensor readings with device metadata"`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateFlavor, "flavor", "f", "sql", "target schema flavor (sql, nosql, vectordb)")
}

// consoleListener prints pipeline events as they arrive.
type consoleListener struct {
	pipeline.NopListener
	verbose bool
}

func (l consoleListener) OnTaskStart(e pipeline.TaskStartEvent) {
	fmt.Printf("\n%s\n", defaultTheme.statusStyle().Render(
		fmt.Sprintf("[%d/%d] %s (%s)", e.Position+1, e.Total, e.Title, e.Agent)))
}

func (l consoleListener) OnChunk(e pipeline.ChunkEvent) {
	fmt.Print(e.Content)
}

func (l consoleListener) OnTaskComplete(e pipeline.TaskCompleteEvent) {
	marker := defaultTheme.completedStyle().Render("✓")
	if e.Status == models.TaskFailed {
		marker = defaultTheme.errorStyle().Render("✗")
	} else if e.Fallback {
		marker = defaultTheme.hintStyle().Render("~ (fallback)")
	}
	fmt.Printf("\n%s %s\n", marker, e.Title)
}

func (l consoleListener) OnInsight(e pipeline.InsightEvent) {
	if l.verbose {
		fmt.Println(defaultTheme.hintStyle().Render(fmt.Sprintf("  %s: %s", e.Agent, e.Message)))
	}
}

func (l consoleListener) OnError(e pipeline.ErrorEvent) {
	fmt.Println(defaultTheme.errorStyle().Render("  error: " + e.Message))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(args[0])
	if prompt == "" {
		return fmt.Errorf("prompt must not be empty")
	}

	ctx := cmd.Context()
	runner, err := getRunner(ctx)
	if err != nil {
		return err
	}

	flavor := models.ParseSchemaFlavor(generateFlavor)
	sessionID, err := runner.Run(ctx, userID, prompt, flavor, consoleListener{verbose: verbose})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	data := store.GetSessionData(ctx, sessionID)
	fmt.Printf("\nSession %s captured", sessionID)
	if data != nil && data.Session.ProjectID != nil {
		fmt.Printf(" as project %s", *data.Session.ProjectID)
	}
	fmt.Printf("\nUse 'dbcoach replay %s' to watch it again.\n", sessionID)
	return nil
}
