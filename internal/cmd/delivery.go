package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildagent/buildagent/internal/api"
	"github.com/buildagent/buildagent/internal/util"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run tests in the project's repository",
}

var testRunCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Run a test command and print its output",
	Long: `Run a test command in the project's repository on the backend.

Flags after the command are passed to it; use -- to separate them.

Example:
  buildagent test run --project 3 -- go test ./...`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTestRun,
}

var testLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recorded test runs",
	RunE:  runTestLogs,
}

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "Open or show the project's pull request",
}

var prCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a pull request with the generated changes",
	RunE:  runPRCreate,
}

var prShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the project's pull request",
	RunE:  runPRShow,
}

var (
	prBase  string
	prToken string
)

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.AddCommand(testRunCmd)
	testCmd.AddCommand(testLogsCmd)

	rootCmd.AddCommand(prCmd)
	prCmd.AddCommand(prCreateCmd)
	prCmd.AddCommand(prShowCmd)

	prCreateCmd.Flags().StringVar(&prBase, "base", "", "base branch (default: api.base_branch)")
	prCreateCmd.Flags().StringVar(&prToken, "token", "", "GitHub token (default: api.github_token)")
}

func runTestRun(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.client.RunTestCommand(cmd.Context(), id, api.TestCommand{Command: args[0], Args: args[1:]})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Stdout != "" {
		fmt.Fprintln(out, res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Stderr)
	}
	if !res.Passed() {
		return fmt.Errorf("%s exited with code %d", args[0], res.ReturnCode)
	}
	fmt.Fprintln(out, "Tests passed")
	return nil
}

func runTestLogs(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	logs, err := s.client.TestLogs(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(logs) == 0 {
		fmt.Fprintln(out, "No test runs")
		return nil
	}
	for _, l := range logs {
		fmt.Fprintf(out, "#%d %s  %s\n", l.ID, l.CreatedAt.Format("2006-01-02 15:04:05"), util.TruncateString(l.Content, 120))
	}
	return nil
}

func runPRCreate(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	req := api.PullRequestRequest{
		GitHubToken: orDefault(prToken, s.cfg.API.GitHubToken),
		BaseBranch:  orDefault(prBase, s.cfg.API.BaseBranch),
	}
	pr, err := s.client.CreatePullRequest(cmd.Context(), id, req)
	if err != nil {
		return err
	}
	s.logger.WithProject(id).Info("pull request created", "number", pr.PRNumber, "branch", pr.BranchName)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Opened pull request #%d from %s\n", pr.PRNumber, pr.BranchName)
	if pr.PRURL != "" {
		fmt.Fprintln(out, pr.PRURL)
	}
	return nil
}

func runPRShow(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	pr, err := s.client.GetPullRequest(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "#%d %s (%s)\n%s\n", pr.PRNumber, pr.BranchName, pr.Status, pr.PRURL)
	return nil
}
