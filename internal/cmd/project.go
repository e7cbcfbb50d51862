package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buildagent/buildagent/internal/api"
	"github.com/buildagent/buildagent/internal/errors"
)

var ideaCmd = &cobra.Command{
	Use:   "idea <description...>",
	Short: "Create a project from an idea",
	Long: `Create a new project from a one-line idea and print its id.

Example:
  buildagent idea "A habit tracker with weekly streaks"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIdea,
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Show the selected project",
	RunE:  runProjectShow,
}

var projectSetStatusCmd = &cobra.Command{
	Use:   "set-status <status>",
	Short: "Set the project's workflow status",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectSetStatus,
}

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Attach and analyze the project's repository",
}

var repoSelectCmd = &cobra.Command{
	Use:   "select <repo-url>",
	Short: "Attach a repository to the project",
	Args:  cobra.ExactArgs(1),
	RunE:  runRepoSelect,
}

var repoAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the attached repository",
	RunE:  runRepoAnalyze,
}

var repoToken string

func init() {
	rootCmd.AddCommand(ideaCmd)
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectSetStatusCmd)
	rootCmd.AddCommand(repoCmd)
	repoCmd.AddCommand(repoSelectCmd)
	repoCmd.AddCommand(repoAnalyzeCmd)

	repoSelectCmd.Flags().StringVar(&repoToken, "token", "", "GitHub token (default: api.github_token)")
}

func runIdea(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.client.CreateProject(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	s.logger.WithProject(p.ID).Info("project created")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created project %d\n", p.ID)
	fmt.Fprintf(out, "Next: buildagent repo select <url> --project %d\n", p.ID)
	return nil
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	asYAML, err := wantYAML()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.client.GetProject(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asYAML {
		return printYAML(out, p)
	}
	fmt.Fprintf(out, "Project %d (%s)\n", p.ID, p.Status)
	fmt.Fprintf(out, "Idea: %s\n", p.Idea)
	if p.RepoURL != "" {
		fmt.Fprintf(out, "Repository: %s\n", p.RepoURL)
	}
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created: %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runProjectSetStatus(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	status := strings.TrimSpace(args[0])
	if status == "" {
		return errors.NewValidationError("status must not be empty").WithField("status")
	}
	p, err := s.client.UpdateProject(cmd.Context(), id, api.ProjectUpdate{Status: &status})
	if err != nil {
		return err
	}
	s.logger.WithProject(id).Info("project status updated", "status", p.Status)
	fmt.Fprintf(cmd.OutOrStdout(), "Project %d is now %s\n", p.ID, p.Status)
	return nil
}

func runRepoSelect(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	token := repoToken
	if token == "" {
		token = s.cfg.API.GitHubToken
	}

	sel, err := s.client.SelectRepo(cmd.Context(), id, args[0], token)
	if err != nil {
		return err
	}
	s.logger.WithProject(id).Info("repository selected", "repo_path", sel.RepoPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Repository ready at %s (%s)\n", sel.RepoPath, sel.Status)
	return nil
}

func runRepoAnalyze(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	asYAML, err := wantYAML()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.client.AnalyzeRepo(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asYAML {
		return printYAML(out, a)
	}
	printAnalysis(out, a)
	return nil
}

func printAnalysis(out io.Writer, a *api.RepoAnalysis) {
	printList(out, "Tech stack", a.TechStack)
	printList(out, "Routing", a.Routing)
	printList(out, "Components", a.Components)
	printList(out, "APIs", a.APIs)
	printList(out, "Models", a.Models)
	if len(a.DBSchema) > 0 {
		fmt.Fprintf(out, "DB schema: %d table(s)\n", len(a.DBSchema))
	}
}
