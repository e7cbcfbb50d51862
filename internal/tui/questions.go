package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buildagent/buildagent/internal/event"
	"github.com/buildagent/buildagent/internal/questions"
	"github.com/buildagent/buildagent/internal/tui/styles"
	"github.com/buildagent/buildagent/internal/util"
)

// chatLines is how many companion chat lines stay on screen.
const chatLines = 3

// QuestionsModel reviews the clarifying questions while they are revealed
// and lets the user change answers before the plan is generated.
type QuestionsModel struct {
	questions []questions.Question
	sheet     *questions.AnswerSheet
	revealer  *questions.Revealer

	spinner spinner.Model
	input   textinput.Model

	cursor  int
	editing bool
	chat    []string
	notice  string
	width   int

	submitted bool
	quitting  bool
}

// NewQuestionsModel creates the review model. revealer may be nil, in which
// case every question is visible from the start.
func NewQuestionsModel(qs []questions.Question, sheet *questions.AnswerSheet, revealer *questions.Revealer) QuestionsModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Primary

	in := textinput.New()
	in.Placeholder = "Type your answer"
	in.CharLimit = 500
	in.Prompt = "› "

	return QuestionsModel{
		questions: qs,
		sheet:     sheet,
		revealer:  revealer,
		spinner:   sp,
		input:     in,
		width:     80,
	}
}

// Init starts the spinner.
func (m QuestionsModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Submitted reports whether the user accepted the answers.
func (m QuestionsModel) Submitted() bool {
	return m.submitted
}

func (m QuestionsModel) generating() bool {
	return m.revealer != nil && m.revealer.Generating()
}

// visible returns the questions shown so far, in bank order.
func (m QuestionsModel) visible() []questions.Question {
	if m.revealer == nil {
		return m.questions
	}
	var out []questions.Question
	for _, q := range m.questions {
		if m.revealer.IsVisible(q.ID) {
			out = append(out, q)
		}
	}
	return out
}

func (m QuestionsModel) current() (questions.Question, bool) {
	vis := m.visible()
	if m.cursor < 0 || m.cursor >= len(vis) {
		return questions.Question{}, false
	}
	return vis[m.cursor], true
}

// Update handles messages.
func (m QuestionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-8, 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		return m.handleEvent(msg.event), nil

	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m QuestionsModel) handleEvent(e event.Event) QuestionsModel {
	switch e := e.(type) {
	case event.ChatMessageEvent:
		m.chat = append(m.chat, e.Content)
	case event.BankReloadedEvent:
		if e.Err != nil {
			m.notice = styles.ErrorMsg.Render("Bank reload failed: " + e.Err.Error())
		} else {
			m.notice = styles.SuccessMsg.Render(fmt.Sprintf("Bank reloaded (%d questions)", e.Count))
		}
	case event.NoticeEvent:
		m.notice = e.Message
	}
	return m
}

func (m QuestionsModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}

	case "1", "2", "3", "4", "5":
		q, ok := m.current()
		if !ok {
			break
		}
		label := questions.OptionLabel(int(key[0] - '1'))
		if err := m.sheet.SelectOption(q.ID, label); err != nil {
			m.notice = styles.WarningMsg.Render(fmt.Sprintf("%s has no option %s", q.ID, label))
		} else {
			m.notice = ""
		}

	case "e", "enter":
		q, ok := m.current()
		if !ok {
			break
		}
		a, _ := m.sheet.Get(q.ID)
		_ = m.sheet.ToggleEdit(q.ID)
		m.editing = true
		m.input.SetValue(a.TextAnswer)
		m.input.CursorEnd()
		return m, m.input.Focus()

	case "g":
		if m.generating() {
			m.notice = styles.WarningMsg.Render("Questions are still being prepared")
			break
		}
		m.submitted = true
		return m, tea.Quit
	}
	return m, nil
}

func (m QuestionsModel) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	q, ok := m.current()
	if !ok {
		m.editing = false
		return m, nil
	}

	switch msg.String() {
	case "enter":
		a, _ := m.sheet.Get(q.ID)
		if value := m.input.Value(); value != a.TextAnswer {
			_ = m.sheet.SetText(q.ID, value)
		}
		_ = m.sheet.Save(q.ID)
		m.editing = false
		m.input.Blur()
		return m, nil

	case "esc":
		_ = m.sheet.Cancel(q.ID)
		m.editing = false
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the model.
func (m QuestionsModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.Header.Render("Clarifying questions"))
	b.WriteString("\n")

	vis := m.visible()
	if m.generating() {
		fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(),
			styles.Muted.Render(fmt.Sprintf("Preparing questions (%d/%d)", len(vis), len(m.questions))))
	} else {
		b.WriteString(styles.Subtitle.Render(questions.Summary(len(m.questions))))
		b.WriteString("\n\n")
	}

	section := ""
	for i, q := range vis {
		if q.Section != section {
			section = q.Section
			b.WriteString(styles.SectionTitle.Render(section))
			b.WriteString("\n")
		}
		b.WriteString(m.renderQuestion(i, q))
	}

	if len(m.chat) > 0 {
		b.WriteString("\n")
		for _, line := range util.Tail(m.chat, chatLines) {
			b.WriteString(styles.Muted.Render(util.TruncateANSI(line, m.width)))
			b.WriteString("\n")
		}
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(m.notice)
		b.WriteString("\n")
	}

	b.WriteString(m.helpBar())
	return b.String()
}

func (m QuestionsModel) renderQuestion(i int, q questions.Question) string {
	var b strings.Builder
	a, _ := m.sheet.Get(q.ID)

	title := fmt.Sprintf("%s. %s", strings.TrimPrefix(q.ID, "q"), q.Question)
	title = util.TruncateANSI(title, max(m.width-4, 10))
	switch {
	case i == m.cursor:
		title = styles.ItemActive.Render(title)
	case q.NeedsInput && !a.IsUserModified:
		title = styles.ItemInputNeeded.Render(title)
	}
	prefix := "  "
	if i == m.cursor {
		prefix = "› "
	}
	b.WriteString(prefix + title + "\n")

	if i != m.cursor {
		answer := a.TextAnswer
		if answer == "" {
			answer = styles.Muted.Render("(no answer)")
		}
		b.WriteString("    " + util.TruncateANSI(answer, max(m.width-6, 10)) + "\n")
		return b.String()
	}

	for j, opt := range q.Options {
		label := questions.OptionLabel(j)
		marker := "○"
		line := fmt.Sprintf("%s %s. %s", marker, label, opt)
		if a.MCQAnswer == label {
			line = styles.Secondary.Render(fmt.Sprintf("● %s. %s", label, opt))
		}
		b.WriteString("    " + line + "\n")
	}
	if q.Reasoning != "" {
		b.WriteString("    " + styles.Subtitle.Render(q.Reasoning) + "\n")
	}
	if m.editing {
		b.WriteString("    " + m.input.View() + "\n")
	} else if a.TextAnswer != "" {
		b.WriteString("    " + styles.Text.Render("Answer: "+a.TextAnswer) + "\n")
	}
	return b.String()
}

func (m QuestionsModel) helpBar() string {
	keys := [][2]string{{"↑/↓", "move"}, {"1-5", "choose"}, {"e", "edit"}, {"g", "generate plan"}, {"q", "quit"}}
	if m.editing {
		keys = [][2]string{{"enter", "save"}, {"esc", "cancel"}}
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, styles.HelpKey.Render(k[0])+" "+k[1])
	}
	return styles.HelpBar.Render(strings.Join(parts, "  "))
}
