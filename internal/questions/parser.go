package questions

import (
	"fmt"
	"regexp"
	"strings"
)

// Question is one multiple-choice question parsed from a bank.
type Question struct {
	ID         string   `json:"id" yaml:"id"`
	Section    string   `json:"section" yaml:"section"`
	Question   string   `json:"question" yaml:"question"`
	Options    []string `json:"options" yaml:"options"`
	NeedsInput bool     `json:"needs_input" yaml:"needs_input"`
	Assumed    string   `json:"assumed,omitempty" yaml:"assumed,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// OptionText returns the text of the option with the given label ("A" is the
// first option). Labels past the end of the option list yield "".
func (q Question) OptionText(label string) string {
	idx, ok := labelIndex(label)
	if !ok || idx >= len(q.Options) {
		return ""
	}
	return q.Options[idx]
}

// DefaultText is the answer text implied by the assumed option, if any.
func (q Question) DefaultText() string {
	if q.Assumed == "" || len(q.Options) == 0 {
		return ""
	}
	return q.OptionText(q.Assumed)
}

// OptionLabel returns the label for the option at position i.
func OptionLabel(i int) string {
	return string(rune('A' + i))
}

func labelIndex(label string) (int, bool) {
	if len(label) != 1 || label[0] < 'A' || label[0] > 'Z' {
		return 0, false
	}
	return int(label[0] - 'A'), true
}

// MarkerGlyph prefixes the annotation line that follows a question's options.
const MarkerGlyph = "➡️"

var (
	sectionRe  = regexp.MustCompile(`^([A-Z])\.\s(.+)$`)
	questionRe = regexp.MustCompile(`^(\d+)\.\s(.+)$`)
	optionRe   = regexp.MustCompile(`^([A-E])\.\s(.+)$`)

	needsInputRe    = regexp.MustCompile(`Needs input\s*(?:\(|—)?(.+?)(?:\)|$)`)
	assumedReasonRe = regexp.MustCompile(`Assumed:\s*([A-E])\s*(?:\([^)]+\))?\s*—\s*(.+)$`)
	assumedRe       = regexp.MustCompile(`Assumed:\s*([A-E])`)
)

// ParseQuestionBank parses the bank grammar:
//
//	A. Section title
//	1. Question text?
//	A. First option
//	B. Second option
//	➡️ Needs input (why a human must decide)
//
// Lines are trimmed and blank lines dropped first. A single-letter line
// outside a question starts a section; option lines are only recognised
// directly after a question. The marker line after the options is consumed
// whether or not it carries a recognisable annotation. Unmatched lines are
// skipped, so malformed input degrades rather than failing.
func ParseQuestionBank(text string) []Question {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	var (
		questions []Question
		section   string
		number    int
	)

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := sectionRe.FindStringSubmatch(line); m != nil {
			section = m[2]
			continue
		}

		m := questionRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		number++
		q := Question{
			ID:       fmt.Sprintf("q%d", number),
			Section:  section,
			Question: m[2],
			Options:  []string{},
		}

		j := i + 1
		for ; j < len(lines); j++ {
			opt := optionRe.FindStringSubmatch(lines[j])
			if opt == nil {
				break
			}
			q.Options = append(q.Options, opt[2])
		}

		if j < len(lines) && strings.Contains(lines[j], MarkerGlyph) {
			applyMarker(&q, lines[j])
			j++
		}

		questions = append(questions, q)
		i = j - 1
	}

	return questions
}

// applyMarker reads a "Needs input" or "Assumed:" annotation into q.
func applyMarker(q *Question, note string) {
	switch {
	case strings.Contains(note, "Needs input"):
		q.NeedsInput = true
		if m := needsInputRe.FindStringSubmatch(note); m != nil {
			q.Reasoning = strings.TrimSpace(m[1])
		}
	case strings.Contains(note, "Assumed:"):
		if m := assumedReasonRe.FindStringSubmatch(note); m != nil {
			q.Assumed = m[1]
			q.Reasoning = strings.TrimSpace(m[2])
		} else if m := assumedRe.FindStringSubmatch(note); m != nil {
			q.Assumed = m[1]
		}
	}
}

// GroupBySection returns section labels in first-seen order and the questions
// of each section in input order.
func GroupBySection(qs []Question) ([]string, map[string][]Question) {
	var order []string
	groups := make(map[string][]Question)
	for _, q := range qs {
		if _, ok := groups[q.Section]; !ok {
			order = append(order, q.Section)
		}
		groups[q.Section] = append(groups[q.Section], q)
	}
	return order, groups
}
