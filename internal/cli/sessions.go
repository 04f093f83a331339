package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List captured sessions",
	Long: `Sessions lists every captured generation session for a user, newest
first. Sessions that could not be persisted are listed from memory.`,
	RunE: runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	sessions := store.SavedSessions(cmd.Context(), userID)
	if len(sessions) == 0 {
		fmt.Println("No sessions captured yet.")
		return nil
	}

	for _, session := range sessions {
		prompt := session.Prompt
		if len(prompt) > 60 {
			prompt = prompt[:57] + "..."
		}
		line := fmt.Sprintf("%s  %-9s  %-8s  %s",
			session.ID, session.Status, session.Flavor, prompt)
		fmt.Println(line)
		if verbose {
			fmt.Printf("          updated %s, %d tasks\n",
				session.UpdatedAt.Format("2006-01-02 15:04:05"), len(session.Tasks))
		}
	}
	return nil
}
