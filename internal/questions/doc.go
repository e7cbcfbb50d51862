// Package questions turns a plain-text question bank into the clarifying
// questions shown to the user before a plan is generated.
//
// The pipeline has four stages:
//
//   - [ParseQuestionBank] reads the section/question/option/marker grammar.
//   - [Filter] trims a large bank to a balanced set of 10 to 12 questions,
//     always keeping the ones that need human input.
//   - [Revealer] makes the selected questions visible over time and reports
//     progress on the event bus.
//   - [AnswerSheet] tracks the user's answers, seeded from each question's
//     assumed option.
//
// Banks come from a [Source]: the embedded demo bank, a text file, or a YAML
// file. [Watch] re-reads a bank file when it changes on disk.
package questions
