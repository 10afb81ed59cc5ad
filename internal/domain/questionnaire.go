package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Question is a single scripted interview question.
type Question struct {
	ID    string `json:"question_id" yaml:"question_id"`
	Title string `json:"question_title" yaml:"question_title"`
	Text  string `json:"question" yaml:"question"`
}

// Section groups related questions, e.g. "Personal Information".
type Section struct {
	Title     string     `json:"title" yaml:"title"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Questionnaire is the full interview script spoken by the skill.
type Questionnaire struct {
	Opening  string    `json:"opening" yaml:"opening"`
	Closing  string    `json:"closing" yaml:"closing"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// QuestionAt returns the question at the given section and question indices.
// The second return value is false when the position is past the end of the
// section, or past the last section entirely.
func (q Questionnaire) QuestionAt(section, question int) (Question, bool) {
	if section < 0 || question < 0 || section >= len(q.Sections) {
		return Question{}, false
	}
	s := q.Sections[section]
	if question >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[question], true
}

// Validate checks the script is complete enough to run an interview.
func (q Questionnaire) Validate() error {
	if strings.TrimSpace(q.Opening) == "" {
		return errors.New("questionnaire: opening is required")
	}
	if strings.TrimSpace(q.Closing) == "" {
		return errors.New("questionnaire: closing is required")
	}
	if len(q.Sections) == 0 {
		return errors.New("questionnaire: at least one section is required")
	}
	seen := make(map[string]struct{})
	for si, s := range q.Sections {
		if len(s.Questions) == 0 {
			return fmt.Errorf("questionnaire: section %d has no questions", si)
		}
		for qi, question := range s.Questions {
			if strings.TrimSpace(question.ID) == "" {
				return fmt.Errorf("questionnaire: section %d question %d missing question_id", si, qi)
			}
			if strings.TrimSpace(question.Title) == "" {
				return fmt.Errorf("questionnaire: question %s missing question_title", question.ID)
			}
			if strings.TrimSpace(question.Text) == "" {
				return fmt.Errorf("questionnaire: question %s missing question text", question.ID)
			}
			if _, dup := seen[question.ID]; dup {
				return fmt.Errorf("questionnaire: duplicate question_id %s", question.ID)
			}
			seen[question.ID] = struct{}{}
		}
	}
	return nil
}
