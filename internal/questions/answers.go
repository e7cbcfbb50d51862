package questions

import (
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/buildagent/buildagent/internal/errors"
)

// Answer is the user's current response to one question.
type Answer struct {
	QuestionID     string `yaml:"question_id"`
	TextAnswer     string `yaml:"text_answer"`
	MCQAnswer      string `yaml:"mcq_answer,omitempty"`
	IsEditing      bool   `yaml:"-"`
	IsUserModified bool   `yaml:"user_modified"`
}

// AnswerSheet holds exactly one Answer per question. It is safe for
// concurrent use.
type AnswerSheet struct {
	mu                sync.RWMutex
	questions         map[string]Question
	order             []string
	answers           map[string]*Answer
	additionalContext string
}

// NewAnswerSheet seeds an answer for every question from its assumed option.
func NewAnswerSheet(qs []Question) *AnswerSheet {
	s := &AnswerSheet{
		questions: make(map[string]Question, len(qs)),
		answers:   make(map[string]*Answer, len(qs)),
	}
	for _, q := range qs {
		if _, dup := s.questions[q.ID]; dup {
			continue
		}
		s.questions[q.ID] = q
		s.order = append(s.order, q.ID)
		s.answers[q.ID] = &Answer{
			QuestionID: q.ID,
			TextAnswer: q.DefaultText(),
			MCQAnswer:  q.Assumed,
		}
	}
	return s
}

// lookup returns the question and answer for id. Must be called with mu held.
func (s *AnswerSheet) lookup(id string) (Question, *Answer, error) {
	a, ok := s.answers[id]
	if !ok {
		return Question{}, nil, errors.NewNotFoundError("question", id).WithCause(errors.ErrUnknownQuestion)
	}
	return s.questions[id], a, nil
}

// Get returns a copy of the answer for id.
func (s *AnswerSheet) Get(id string) (Answer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[id]
	if !ok {
		return Answer{}, false
	}
	return *a, true
}

// All returns copies of every answer in question order.
func (s *AnswerSheet) All() []Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Answer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.answers[id])
	}
	return out
}

// SetText replaces the free-text answer and marks it user-modified.
func (s *AnswerSheet) SetText(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, a, err := s.lookup(id)
	if err != nil {
		return err
	}
	a.TextAnswer = text
	a.IsUserModified = true
	return nil
}

// SelectOption picks an option by label; the text answer becomes the option text.
func (s *AnswerSheet) SelectOption(id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, a, err := s.lookup(id)
	if err != nil {
		return err
	}
	if idx, ok := labelIndex(label); !ok || idx >= len(q.Options) {
		return errors.NewValidationError("option out of range").
			WithField(id).
			WithValue(label).
			WithCause(errors.ErrInvalidOption)
	}
	a.MCQAnswer = label
	a.TextAnswer = q.OptionText(label)
	a.IsUserModified = true
	return nil
}

// ToggleEdit flips the edit-mode flag.
func (s *AnswerSheet) ToggleEdit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, a, err := s.lookup(id)
	if err != nil {
		return err
	}
	a.IsEditing = !a.IsEditing
	return nil
}

// Save leaves edit mode, keeping the current answer.
func (s *AnswerSheet) Save(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, a, err := s.lookup(id)
	if err != nil {
		return err
	}
	a.IsEditing = false
	return nil
}

// Cancel leaves edit mode. An answer the user never modified is reset to the
// assumed default; a user-modified answer is kept as is.
func (s *AnswerSheet) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, a, err := s.lookup(id)
	if err != nil {
		return err
	}
	a.IsEditing = false
	if !a.IsUserModified {
		a.TextAnswer = q.DefaultText()
		a.MCQAnswer = q.Assumed
	}
	return nil
}

// AdditionalContext returns the free-form context the user attached.
func (s *AnswerSheet) AdditionalContext() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.additionalContext
}

// SetAdditionalContext replaces the free-form context.
func (s *AnswerSheet) SetAdditionalContext(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.additionalContext = text
}

// AddLink appends "Link: <url>" to the additional context, separated from
// earlier content by a blank line. Blank URLs are ignored and report false.
func (s *AnswerSheet) AddLink(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.additionalContext != "" {
		s.additionalContext += "\n\nLink: " + url
	} else {
		s.additionalContext = "Link: " + url
	}
	return true
}

// ExportedAnswer is one answered question in an exported sheet.
type ExportedAnswer struct {
	ID         string `yaml:"id"`
	Section    string `yaml:"section,omitempty"`
	Question   string `yaml:"question"`
	Answer     string `yaml:"answer"`
	Option     string `yaml:"option,omitempty"`
	Source     string `yaml:"source"` // "assumed", "user" or "unanswered"
	NeedsInput bool   `yaml:"needs_input,omitempty"`
}

// Export is the serializable form of an answer sheet.
type Export struct {
	Answers           []ExportedAnswer `yaml:"answers"`
	AdditionalContext string           `yaml:"additional_context,omitempty"`
}

// Export snapshots the sheet for persistence or submission.
func (s *AnswerSheet) Export() Export {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Export{AdditionalContext: s.additionalContext}
	for _, id := range s.order {
		q, a := s.questions[id], s.answers[id]
		source := "assumed"
		switch {
		case a.IsUserModified:
			source = "user"
		case a.TextAnswer == "" && a.MCQAnswer == "":
			source = "unanswered"
		}
		out.Answers = append(out.Answers, ExportedAnswer{
			ID:         id,
			Section:    q.Section,
			Question:   q.Question,
			Answer:     a.TextAnswer,
			Option:     a.MCQAnswer,
			Source:     source,
			NeedsInput: q.NeedsInput,
		})
	}
	return out
}

// Unanswered returns the ids of questions that need input and have no answer.
func (s *AnswerSheet) Unanswered() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.order {
		a := s.answers[id]
		if s.questions[id].NeedsInput && strings.TrimSpace(a.TextAnswer) == "" && a.MCQAnswer == "" {
			out = append(out, id)
		}
	}
	return out
}

// YAML renders the exported sheet.
func (e Export) YAML() ([]byte, error) {
	return yaml.Marshal(e)
}
