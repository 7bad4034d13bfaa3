// Package quiz converts AI-generated checked-box markdown into structured
// multiple-choice questions and grades student answers against them.
package quiz

import (
	"errors"
	"strings"
)

// ErrEmptyQuiz is returned when no questions could be parsed; callers must
// report the content as invalid rather than offer a partial quiz.
var ErrEmptyQuiz = errors.New("quiz: content is empty or invalid")

// Question is one parsed multiple-choice question. CorrectIndex is -1 when
// no option carried the checked marker (ungraded).
type Question struct {
	Text         string
	Options      []string
	CorrectIndex int
}

// Parse scans markdown of the form
//
//	**Question text**
//	- [ ] Option A
//	- [x] Correct option
//
// line by line. A bold-delimited line opens a new question, flushing the
// previous one; a list-item line appends an option and marks it correct if
// it carries [x] or [X]. When several options are checked the last one wins.
// Lines matching neither pattern are ignored.
func Parse(markdown string) ([]Question, error) {
	var questions []Question
	var current *Question

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**") && len(line) > 4:
			if current != nil {
				questions = append(questions, *current)
			}
			current = &Question{
				Text:         strings.ReplaceAll(line, "**", ""),
				CorrectIndex: -1,
			}
		case strings.HasPrefix(line, "- [") && current != nil:
			closing := strings.Index(line, "]")
			if closing < 0 {
				continue
			}
			checked := strings.Contains(line, "[x]") || strings.Contains(line, "[X]")
			option := strings.TrimSpace(line[closing+1:])
			current.Options = append(current.Options, option)
			if checked {
				current.CorrectIndex = len(current.Options) - 1
			}
		}
	}
	if current != nil {
		questions = append(questions, *current)
	}

	if len(questions) == 0 {
		return nil, ErrEmptyQuiz
	}
	return questions, nil
}

// Grade scores a set of answers, keyed by question index, against the
// correct options. Unanswered and ungraded questions score zero.
func Grade(questions []Question, answers map[int]int) (score, total int) {
	for i, q := range questions {
		if picked, ok := answers[i]; ok && q.CorrectIndex >= 0 && picked == q.CorrectIndex {
			score++
		}
	}
	return score, len(questions)
}
