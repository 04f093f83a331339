package cli

import (
	"fmt"

	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List and manage materialized projects",
	RunE:  runProjectsList,
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project and its queries",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsShow,
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project with its sessions and queries",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsDelete,
}

func init() {
	projectsCmd.AddCommand(projectsShowCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
}

func requireDB() error {
	if dbClient == nil {
		return fmt.Errorf("project storage requires a database connection")
	}
	return nil
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	if err := requireDB(); err != nil {
		return err
	}

	projects, err := dbClient.ListProjects(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	if len(projects) == 0 {
		fmt.Println("No projects saved yet.")
		return nil
	}

	for _, project := range projects {
		fmt.Printf("%s  %-8s  %s\n",
			models.MustRecordIDString(project.ID), project.Flavor, project.Title)
	}
	return nil
}

func runProjectsShow(cmd *cobra.Command, args []string) error {
	if err := requireDB(); err != nil {
		return err
	}

	project, err := dbClient.GetProject(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %s not found", args[0])
	}

	fmt.Printf("%s (%s)\n%s\n", project.Title, project.Flavor, project.Description)

	queries, err := dbClient.GetProjectQueries(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get project queries: %w", err)
	}
	for _, query := range queries {
		fmt.Printf("\n%s\n", defaultTheme.statusStyle().Render(query.Text))
		if query.Result.Kind == models.ResultStreamingChunk {
			fmt.Println(query.Result.Text)
		}
	}
	return nil
}

func runProjectsDelete(cmd *cobra.Command, args []string) error {
	if err := requireDB(); err != nil {
		return err
	}
	if err := dbClient.DeleteProject(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	fmt.Printf("Project %s deleted.\n", args[0])
	return nil
}
