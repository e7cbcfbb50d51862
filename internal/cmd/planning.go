package cmd

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/buildagent/buildagent/internal/api"
	"github.com/buildagent/buildagent/internal/errors"
	"github.com/buildagent/buildagent/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate, review and approve the project plan",
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the plan document",
	RunE:  runPlanGenerate,
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest plan",
	RunE:  runPlanShow,
}

var planApproveCmd = &cobra.Command{
	Use:   "approve <section>",
	Short: "Approve (or with --reject, reject) one plan section",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanApprove,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Generate or show the phased task list",
	RunE:  runTasksShow,
}

var tasksGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate phases and tasks from the plan",
	RunE:  runTasksGenerate,
}

var designCmd = &cobra.Command{
	Use:   "design",
	Short: "Generate, show and approve phase designs",
}

var designGenerateCmd = &cobra.Command{
	Use:   "generate <phase-id>",
	Short: "Generate the technical design of a phase",
	Args:  cobra.ExactArgs(1),
	RunE:  runDesignGenerate,
}

var designShowCmd = &cobra.Command{
	Use:   "show [phase-id]",
	Short: "Show the design of one phase, or of every phase",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDesignShow,
}

var designApproveCmd = &cobra.Command{
	Use:   "approve <phase-id>",
	Short: "Approve (or with --reject, withdraw approval of) one phase design",
	Args:  cobra.ExactArgs(1),
	RunE:  runDesignApprove,
}

var designApproveAllCmd = &cobra.Command{
	Use:   "approve-all",
	Short: "Approve the designs of every phase",
	RunE:  runDesignApproveAll,
}

var (
	planReject   bool
	designReject bool
)

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planGenerateCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planApproveCmd)
	planApproveCmd.Flags().BoolVar(&planReject, "reject", false, "reject the section instead of approving it")

	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksGenerateCmd)

	rootCmd.AddCommand(designCmd)
	designCmd.AddCommand(designGenerateCmd)
	designCmd.AddCommand(designShowCmd)
	designCmd.AddCommand(designApproveCmd)
	designCmd.AddCommand(designApproveAllCmd)
	designApproveCmd.Flags().BoolVar(&designReject, "reject", false, "withdraw approval instead of approving")
}

func runPlanGenerate(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	gp, err := s.client.GeneratePlan(cmd.Context(), id)
	if err != nil {
		return err
	}
	s.logger.WithProject(id).Info("plan generated", "plan_id", gp.PlanID)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Plan %d\n\n%s\n", gp.PlanID, gp.PlanDocument)
	return nil
}

func runPlanShow(cmd *cobra.Command, args []string) error {
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

	p, err := s.client.GetPlan(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asYAML {
		return printYAML(out, p)
	}
	fmt.Fprintf(out, "Plan %d\n\n%s\n", p.ID, p.PlanDocument)
	if len(p.Questions) > 0 {
		fmt.Fprintf(out, "\n%d question(s) answered while planning\n", len(p.Questions))
	}
	return nil
}

func runPlanApprove(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.client.ApproveSection(cmd.Context(), id, args[0], !planReject)
	if err != nil {
		return err
	}

	verdict := "approved"
	if !a.Approved {
		verdict = "rejected"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Section %q %s\n", a.Section, verdict)
	return nil
}

func runTasksGenerate(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	phases, err := s.client.GenerateTasks(cmd.Context(), id)
	if err != nil {
		return err
	}
	phases = plan.Dedupe(phases)
	plan.SortPhases(phases)
	s.logger.WithProject(id).Info("tasks generated", "phases", len(phases))

	printPhases(cmd.OutOrStdout(), phases)
	return nil
}

func runTasksShow(cmd *cobra.Command, args []string) error {
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

	phases, err := s.client.GetTasks(cmd.Context(), id)
	if err != nil {
		return err
	}
	// The board applies the same dedupe and ordering the dashboard shows.
	board := plan.NewBoard(phases)

	out := cmd.OutOrStdout()
	if asYAML {
		return printYAML(out, board.Phases())
	}
	printPhases(out, board.Phases())
	return nil
}

func parsePhaseID(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, errors.NewValidationError("phase id must be a positive integer").
			WithField("phase-id").
			WithValue(arg)
	}
	return n, nil
}

func runDesignGenerate(cmd *cobra.Command, args []string) error {
	phaseID, err := parsePhaseID(args[0])
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := s.client.GenerateDesign(cmd.Context(), phaseID)
	if err != nil {
		return err
	}
	s.logger.WithPhase(strconv.Itoa(phaseID)).Info("design generated", "design_id", d.ID)
	return printYAML(cmd.OutOrStdout(), d)
}

func runDesignShow(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		phaseID, err := parsePhaseID(args[0])
		if err != nil {
			return err
		}
		d, err := s.client.GetDesign(cmd.Context(), phaseID)
		if err != nil {
			return err
		}
		return printYAML(out, d)
	}

	id, err := projectID()
	if err != nil {
		return err
	}
	phases, err := s.client.GetTasks(cmd.Context(), id)
	if err != nil {
		return err
	}
	// Designs are keyed by phase, so one entry per phase number.
	phases = plan.DedupeByNumber(phases)
	plan.SortPhases(phases)

	for _, p := range phases {
		d, err := s.client.GetDesign(cmd.Context(), p.ID)
		if err != nil {
			if isNotFound(err) {
				fmt.Fprintf(out, "Phase %d: %s (no design yet)\n", p.PhaseNumber, p.Name)
				continue
			}
			return err
		}
		mark := "pending approval"
		if d.Approved {
			mark = "approved"
		}
		fmt.Fprintf(out, "Phase %d: %s (%s)\n", p.PhaseNumber, p.Name, mark)
		if d.Architecture != "" {
			fmt.Fprintf(out, "  architecture: %s\n", d.Architecture)
		}
	}
	return nil
}

// isNotFound reports whether err is a 404 from the backend.
func isNotFound(err error) bool {
	var apiErr *errors.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func runDesignApprove(cmd *cobra.Command, args []string) error {
	phaseID, err := parsePhaseID(args[0])
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	// Updates are keyed by design id, not phase id.
	d, err := s.client.GetDesign(cmd.Context(), phaseID)
	if err != nil {
		return err
	}
	approved := !designReject
	d, err = s.client.UpdateDesign(cmd.Context(), d.ID, api.DesignUpdate{Approved: &approved})
	if err != nil {
		return err
	}
	s.logger.WithPhase(strconv.Itoa(phaseID)).Info("design updated", "design_id", d.ID, "approved", d.Approved)

	verb := "approved"
	if !d.Approved {
		verb = "not approved"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Design %d of phase %d %s\n", d.ID, phaseID, verb)
	return nil
}

func runDesignApproveAll(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.client.ApproveAllDesigns(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d/%d phases)\n", r.Message, r.ApprovedCount, r.TotalPhases)
	return nil
}
