package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/buildagent/buildagent/internal/event"
	"github.com/buildagent/buildagent/internal/logging"
	"github.com/buildagent/buildagent/internal/questions"
	"github.com/buildagent/buildagent/internal/tui"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Review the clarifying questions for a project",
	Long: `Select clarifying questions from the question bank, reveal them, and
let you review or change the assumed answers.

In a terminal this opens an interactive review. When output is piped the
questions are printed with their assumed answers.

Submitting the interactive review (or passing --submit) generates the
project's plan when --project is set; the next step is "tasks generate".

Examples:
  # Review with the built-in bank
  buildagent questions --project 3

  # Use a custom bank and reload it whenever it is saved
  buildagent questions --bank ./bank.txt --watch

  # Write the answers as YAML
  buildagent questions --export answers.yaml

  # Accept the assumed answers and generate the plan
  buildagent questions --project 3 --plain --submit`,
	RunE: runQuestions,
}

var (
	questionsBank   string
	questionsWatch  bool
	questionsExport string
	questionsPlain  bool
	questionsSubmit bool
)

func init() {
	rootCmd.AddCommand(questionsCmd)

	questionsCmd.Flags().StringVar(&questionsBank, "bank", "", "question bank file (default: questions.bank_path or the built-in bank)")
	questionsCmd.Flags().BoolVar(&questionsWatch, "watch", false, "reload the bank file when it changes")
	questionsCmd.Flags().StringVar(&questionsExport, "export", "", "write answers as YAML to this file ('-' for stdout)")
	questionsCmd.Flags().BoolVar(&questionsPlain, "plain", false, "print lines instead of the interactive review")
	questionsCmd.Flags().BoolVar(&questionsSubmit, "submit", false, "generate the plan after a non-interactive review")
}

func runQuestions(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bankPath := questionsBank
	if bankPath == "" {
		bankPath = s.cfg.Questions.BankPath
	}
	source := questions.SourceFor(bankPath)
	all, err := source.Load(ctx)
	if err != nil {
		return err
	}

	logger := s.logger
	if id := viper.GetInt("project"); id > 0 {
		logger = logger.WithProject(id)
		// The local bank is authoritative; a backend failure here only loses
		// the record of the request.
		if _, err := s.client.GenerateQuestions(ctx, id); err != nil {
			logger.Warn("failed to record question generation", "error", err)
		}
	}

	selected := questions.FilterWithLimits(all, s.cfg.Questions.Min, s.cfg.Questions.Max)
	logger.Info("questions selected", "source", source.Describe(), "bank", len(all), "selected", len(selected))

	sheet := questions.NewAnswerSheet(selected)
	bus := event.NewBus(logger)
	revealer := questions.NewRevealer(selected, questions.RevealOptionsFrom(s.cfg.Questions), bus, logger)

	out := cmd.OutOrStdout()
	interactive := useTUI(s.cfg, questionsPlain)
	if !interactive {
		printer := tui.NewLinePrinter(out, bus)
		defer printer.Close()
	}

	watching := questionsWatch && bankPath != ""
	if questionsWatch && bankPath == "" {
		fmt.Fprintln(out, "The built-in bank cannot be watched; pass --bank to watch a file")
	}
	if watching {
		go watchBank(ctx, bankPath, bus, logger)
	}

	submit := questionsSubmit
	if interactive {
		submitted, err := reviewInteractive(ctx, selected, sheet, revealer, bus)
		if err != nil {
			return err
		}
		if !submitted {
			fmt.Fprintln(out, "Review canceled")
			return nil
		}
		submit = true
	} else if err := reviewPlain(ctx, out, selected, sheet, revealer); err != nil {
		return err
	}

	if err := exportAnswers(out, sheet, questionsExport); err != nil {
		return err
	}

	if pending := sheet.Unanswered(); len(pending) > 0 {
		fmt.Fprintf(out, "%d question(s) still need an answer: %v\n", len(pending), pending)
	}

	if submit {
		if err := submitReview(ctx, out, s, logger); err != nil {
			return err
		}
	}

	if watching && !interactive {
		// Keep printing reloads until interrupted.
		<-ctx.Done()
	}
	return nil
}

// submitReview generates the plan for the selected project, the step that
// follows the question review.
func submitReview(ctx context.Context, out io.Writer, s *session, logger *logging.Logger) error {
	id := viper.GetInt("project")
	if id <= 0 {
		fmt.Fprintln(out, "No project selected; run 'buildagent plan generate --project <id>' to continue")
		return nil
	}
	gp, err := s.client.GeneratePlan(ctx, id)
	if err != nil {
		return err
	}
	logger.WithPhase("plan").Info("plan generated after review", "plan_id", gp.PlanID)
	fmt.Fprintf(out, "Plan %d generated; next: buildagent tasks generate --project %d\n", gp.PlanID, id)
	return nil
}

func reviewInteractive(ctx context.Context, qs []questions.Question, sheet *questions.AnswerSheet, revealer *questions.Revealer, bus *event.Bus) (bool, error) {
	model := tui.NewQuestionsModel(qs, sheet, revealer)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	bridge := tui.NewBridge(bus, p)
	defer bridge.Close()

	revealer.Start(ctx)

	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("question review failed: %w", err)
	}
	qm, ok := final.(tui.QuestionsModel)
	return ok && qm.Submitted(), nil
}

func reviewPlain(ctx context.Context, out io.Writer, qs []questions.Question, sheet *questions.AnswerSheet, revealer *questions.Revealer) error {
	fmt.Fprintln(out, questions.Summary(len(qs)))
	if err := revealer.Run(ctx); err != nil {
		return err
	}

	sections, bySection := questions.GroupBySection(qs)
	n := 0
	for _, section := range sections {
		fmt.Fprintf(out, "\n%s\n", section)
		for _, q := range bySection[section] {
			n++
			a, _ := sheet.Get(q.ID)
			answer := a.TextAnswer
			if answer == "" {
				answer = "(no answer)"
			}
			fmt.Fprintf(out, "%d. %s\n   -> %s\n", n, q.Question, answer)
		}
	}
	fmt.Fprintln(out)
	return nil
}

// watchBank publishes a BankReloadedEvent each time the bank file changes.
// The review keeps its current question set; reloads report the new count.
func watchBank(ctx context.Context, path string, bus *event.Bus, logger *logging.Logger) {
	err := questions.Watch(ctx, path, questions.DefaultDebounce, logger, func(qs []questions.Question, err error) {
		bus.Publish(event.NewBankReloadedEvent(path, len(qs), err))
	})
	if err != nil && ctx.Err() == nil {
		bus.Publish(event.NewNoticeEvent(event.NoticeWarning, "Bank watch stopped: "+err.Error(), err))
	}
}

func exportAnswers(out io.Writer, sheet *questions.AnswerSheet, dest string) error {
	if dest == "" {
		return nil
	}
	data, err := sheet.Export().YAML()
	if err != nil {
		return err
	}
	if dest == "-" {
		_, err = out.Write(data)
		return err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("failed to write answers: %w", err)
	}
	fmt.Fprintf(out, "Answers written to %s\n", dest)
	return nil
}
