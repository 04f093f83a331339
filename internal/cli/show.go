package cli

import (
	"fmt"

	"github.com/dbcoach/dbcoach-go/internal/parser"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a captured session's content",
	Long: `Show prints every task of a captured session with its full content.
Tasks whose content splits into level-2 sections are rendered per section.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	data := store.GetSessionData(cmd.Context(), args[0])
	if data == nil {
		return fmt.Errorf("session %s not found", args[0])
	}

	fmt.Printf("Session %s (%s, %s)\n", data.Session.ID, data.Session.Flavor, data.Session.Status)
	fmt.Printf("Prompt: %s\n", data.Session.Prompt)
	if data.Session.ProjectID != nil {
		fmt.Printf("Project: %s\n", *data.Session.ProjectID)
	}

	for _, task := range data.Session.Tasks {
		header := fmt.Sprintf("%s (%s)", task.Title, task.Agent)
		if task.Fallback {
			header += " [fallback]"
		}
		fmt.Printf("\n%s\n", defaultTheme.statusStyle().Render(header))

		sections := parser.SplitSections(task.Content)
		if sections == nil {
			fmt.Println(task.Content)
			continue
		}
		for _, section := range sections {
			fmt.Printf("%s\n%s\n", defaultTheme.completedStyle().Render("## "+section.Title), section.Content)
		}
	}

	if verbose {
		fmt.Printf("\n%d chunks, %d insights captured\n", len(data.Chunks), len(data.Insights))
		for _, insight := range data.Insights {
			fmt.Println(defaultTheme.hintStyle().Render(
				fmt.Sprintf("  [%s] %s: %s", insight.Kind, insight.Agent, insight.Message)))
		}
	}
	return nil
}
