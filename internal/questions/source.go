package questions

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/buildagent/buildagent/internal/errors"
)

//go:embed bank/plan-mcq.txt
var embeddedBank string

// EmbeddedBank returns the text of the bundled demo question bank.
func EmbeddedBank() string {
	return embeddedBank
}

// Source loads a question bank. Implementations keep the storage format
// separate from selection and reveal.
type Source interface {
	Load(ctx context.Context) ([]Question, error)
	// Describe names the source for logs and status lines.
	Describe() string
}

// TextSource reads the plain-text bank grammar from a file, or from the
// embedded bank when Path is empty.
type TextSource struct {
	Path string
}

// Load implements Source.
func (s TextSource) Load(ctx context.Context) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Path == "" {
		return ParseQuestionBank(embeddedBank), nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrBankUnreadable, s.Path, err)
	}
	return ParseQuestionBank(string(data)), nil
}

// Describe implements Source.
func (s TextSource) Describe() string {
	if s.Path == "" {
		return "embedded:plan-mcq.txt"
	}
	return s.Path
}

// yamlBank is the structured bank layout:
//
//	sections:
//	  - title: System architecture
//	    questions:
//	      - question: Where should scoring run?
//	        options: [Inline, Async worker]
//	        assumed: A
//	        reasoning: lowest latency
//	      - question: Which provider?
//	        options: [Stripe, Adyen]
//	        needs_input: true
type yamlBank struct {
	Sections []struct {
		Title     string `yaml:"title"`
		Questions []struct {
			Question   string   `yaml:"question"`
			Options    []string `yaml:"options"`
			NeedsInput bool     `yaml:"needs_input"`
			Assumed    string   `yaml:"assumed"`
			Reasoning  string   `yaml:"reasoning"`
		} `yaml:"questions"`
	} `yaml:"sections"`
}

// YAMLSource reads a structured bank file. Ids are assigned in file order
// the same way the text parser assigns them.
type YAMLSource struct {
	Path string
}

// Load implements Source.
func (s YAMLSource) Load(ctx context.Context) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrBankUnreadable, s.Path, err)
	}
	return ParseYAMLBank(data)
}

// Describe implements Source.
func (s YAMLSource) Describe() string {
	return s.Path
}

// ParseYAMLBank decodes a structured bank. Unlike the text grammar, a YAML
// document that does not decode is an error.
func ParseYAMLBank(data []byte) ([]Question, error) {
	var bank yamlBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrBankUnreadable, err)
	}

	var out []Question
	for _, sec := range bank.Sections {
		for _, yq := range sec.Questions {
			q := Question{
				ID:         fmt.Sprintf("q%d", len(out)+1),
				Section:    sec.Title,
				Question:   yq.Question,
				Options:    append([]string{}, yq.Options...),
				NeedsInput: yq.NeedsInput,
				Reasoning:  yq.Reasoning,
			}
			if !q.NeedsInput {
				if a := strings.ToUpper(strings.TrimSpace(yq.Assumed)); len(a) == 1 && a[0] >= 'A' && a[0] <= 'E' {
					q.Assumed = a
				}
			}
			out = append(out, q)
		}
	}
	return out, nil
}

// SourceFor picks a Source by file extension: .yaml and .yml are structured,
// anything else uses the text grammar. An empty path selects the embedded bank.
func SourceFor(path string) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLSource{Path: path}
	default:
		return TextSource{Path: path}
	}
}
